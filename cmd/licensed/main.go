// Command licensed is the mcp-guard license issuer daemon plus the
// operator tooling around it (key generation, local verification).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/botzrDev/mcp-guard-license/internal/config"
	"github.com/botzrDev/mcp-guard-license/internal/issuer"
	"github.com/botzrDev/mcp-guard-license/internal/logging"
	"github.com/botzrDev/mcp-guard-license/internal/signer"
	"github.com/botzrDev/mcp-guard-license/pkg/licensing"
)

// Version information (set at build time with -ldflags).
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "licensed",
	Short:   "mcp-guard license issuer",
	Long:    "licensed mints and validates signed mcp-guard license keys. The root command runs the issuer HTTP service.",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("licensed %s\n", Version)
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new Ed25519 signing keypair",
	Long: `Generate a new signing keypair for first deployment or key rotation.

The private seed goes into the issuer's secret store (` + signer.EnvSigningKey + `);
the public key is embedded into gateway builds or set via
` + licensing.EnvPublicKey + `. During rotation, ship gateway builds that also
trust the previous key through ` + licensing.EnvLegacyPublicKey + ` until the
overlap period ends.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pair, err := signer.GenerateKeypair()
		if err != nil {
			return err
		}
		fmt.Printf("Private key seed (keep secret):\n  %s=%s\n\n", signer.EnvSigningKey, pair.Seed)
		fmt.Printf("Public key (embed in verifier builds):\n  %s=%s\n", licensing.EnvPublicKey, pair.PublicKey)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <license-key>",
	Short: "Verify a license key locally",
	Long: `Verify a license key against the trusted public key set
(` + licensing.EnvPublicKey + ` or the embedded build-time key, plus the legacy
key when configured). Only local checks run; no network call is made.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verifier, err := licensing.NewVerifierFromEnv()
		if err != nil {
			return err
		}

		lic, err := verifier.Verify(args[0], licensing.VerifyOptions{})
		if err != nil {
			return fmt.Errorf("license invalid: %w", err)
		}

		fmt.Printf("Tier:        %s\n", lic.Payload.Tier.DisplayName())
		fmt.Printf("Licensee:    %s\n", lic.Payload.Licensee)
		fmt.Printf("Issued:      %s\n", lic.Payload.IssuedAt)
		fmt.Printf("Expires:     %s (%d days remaining)\n", lic.Payload.ExpiresAt, lic.DaysRemaining())
		if lic.Payload.Seats > 0 {
			fmt.Printf("Seats:       %d\n", lic.Payload.Seats)
		}
		fmt.Printf("Features:    %v\n", lic.EnabledFeatures())
		fmt.Printf("Fingerprint: %s\n", lic.Fingerprint)
		return nil
	},
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: issuer.ServiceName,
	})

	key, err := signer.LoadPrivateKey()
	if err != nil {
		return err
	}
	s, err := signer.New(key)
	if err != nil {
		return err
	}
	log.Info().Msg("Signing key loaded")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := issuer.NewRouter(cfg, s, reg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return issuer.Serve(ctx, cfg, router)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
