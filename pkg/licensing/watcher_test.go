package licensing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReloadsReplacedLicense(t *testing.T) {
	pub, priv := testKeypair(t)
	now := time.Now().UTC().Truncate(time.Second)

	first := proPayload(now)
	first.Licensee = "first@example.com"
	second := proPayload(now)
	second.Licensee = "second@example.com"

	path := filepath.Join(t.TempDir(), "license.key")
	if err := os.WriteFile(path, []byte(mintLicense(t, priv, first)), 0o600); err != nil {
		t.Fatal(err)
	}

	changes := make(chan *License, 4)
	service := NewService(NewVerifier(pub), WithChangeCallback(func(lic *License) {
		changes <- lic
	}))

	w, err := NewWatcher(service, path, VerifyOptions{})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	// Let the initial modtime settle past filesystem timestamp granularity.
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(path, []byte(mintLicense(t, priv, second)), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case lic := <-changes:
		if lic == nil {
			t.Fatal("change callback delivered nil license")
		}
		if lic.Payload.Licensee != "second@example.com" {
			t.Errorf("licensee = %q, want reloaded license", lic.Payload.Licensee)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("watcher never reloaded the replaced license file")
	}
}

func TestWatcherKeepsLicenseWhenReplacementInvalid(t *testing.T) {
	pub, priv := testKeypair(t)
	now := time.Now().UTC().Truncate(time.Second)

	path := filepath.Join(t.TempDir(), "license.key")
	key := mintLicense(t, priv, proPayload(now))
	if err := os.WriteFile(path, []byte(key), 0o600); err != nil {
		t.Fatal(err)
	}

	service := NewService(NewVerifier(pub))
	if _, err := service.Validate(context.Background(), key, VerifyOptions{}); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	w, err := NewWatcher(service, path, VerifyOptions{})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("pro_garbage.nope"), 0o600); err != nil {
		t.Fatal(err)
	}

	// Past the debounce window plus slack for the reload attempt.
	time.Sleep(2 * time.Second)

	lic := service.Current()
	if lic == nil {
		t.Fatal("previous license dropped after invalid replacement")
	}
	if service.Tier() != TierPro {
		t.Errorf("tier = %q after invalid replacement", service.Tier())
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	pub, priv := testKeypair(t)
	now := time.Now().UTC().Truncate(time.Second)

	path := filepath.Join(t.TempDir(), "license.key")
	if err := os.WriteFile(path, []byte(mintLicense(t, priv, proPayload(now))), 0o600); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(NewService(NewVerifier(pub)), path, VerifyOptions{})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Start(context.Background())
	w.Stop()
	w.Stop()
}
