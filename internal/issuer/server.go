// Package issuer implements the authenticated HTTP service that mints
// signed license keys, plus the online validation endpoint Enterprise
// verifiers call.
package issuer

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/botzrDev/mcp-guard-license/internal/config"
	"github.com/botzrDev/mcp-guard-license/internal/signer"
	"github.com/botzrDev/mcp-guard-license/pkg/licensing"
)

// NewRouter builds the issuer's HTTP router.
func NewRouter(cfg *config.Config, s *signer.Signer, reg *prometheus.Registry) http.Handler {
	metrics := NewMetrics(reg)
	verifier := licensing.NewVerifier(s.PublicKey())
	handlers := NewHandlers(s, verifier, NewRevocationList(cfg.RevokedFile), metrics)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", handlers.HandleHealth)
	r.Post("/validate", handlers.HandleValidate)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(requireSecret(cfg.APISecret, metrics))
		r.Post("/sign", handlers.HandleSign)
	})

	return r
}

// requestLogger tags each request with an ID and logs its completion.
// Secrets and license keys never appear here: only method, path, status
// and timing.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}

// Serve runs the issuer until the context is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, cfg *config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("License issuer listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Issuer did not shut down cleanly")
		return err
	}
	log.Info().Msg("Issuer shut down")
	return nil
}
