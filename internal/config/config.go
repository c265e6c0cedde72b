// Package config loads issuer process configuration from the environment
// once at startup. Secrets are wrapped in the Secret holder type so they
// cannot leak through logs or serialization by accident.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	envListenAddr  = "MCP_GUARD_ISSUER_LISTEN"
	envAPISecret   = "MCP_GUARD_API_SECRET"
	envRevokedFile = "MCP_GUARD_REVOKED_FILE"
	envLogLevel    = "MCP_GUARD_LOG_LEVEL"
	envLogFormat   = "MCP_GUARD_LOG_FORMAT"
	envPort        = "PORT"

	defaultListenAddr = ":8787"
)

// Config is the issuer's process-scoped configuration.
type Config struct {
	// ListenAddr is the issuer HTTP listen address.
	ListenAddr string

	// APISecret gates the /sign endpoint. May be plaintext or a bcrypt
	// hash of the shared secret.
	APISecret Secret

	// RevokedFile is an optional newline-delimited list of revoked
	// license fingerprints consulted by the /validate endpoint.
	RevokedFile string

	// LogLevel and LogFormat feed logger initialization.
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present, matching how the
// gateway itself is configured.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded environment from .env file")
	}

	cfg := &Config{
		ListenAddr:  strings.TrimSpace(os.Getenv(envListenAddr)),
		APISecret:   NewSecret(os.Getenv(envAPISecret)),
		RevokedFile: strings.TrimSpace(os.Getenv(envRevokedFile)),
		LogLevel:    strings.TrimSpace(os.Getenv(envLogLevel)),
		LogFormat:   strings.TrimSpace(os.Getenv(envLogFormat)),
	}

	if cfg.ListenAddr == "" {
		if port := os.Getenv(envPort); port != "" {
			if _, err := strconv.Atoi(port); err != nil {
				return nil, fmt.Errorf("invalid %s value %q", envPort, port)
			}
			cfg.ListenAddr = ":" + port
		} else {
			cfg.ListenAddr = defaultListenAddr
		}
	}

	if cfg.APISecret.IsZero() {
		return nil, errors.New(envAPISecret + " must be set; the issuer refuses to run unauthenticated")
	}

	return cfg, nil
}
