package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/monti/acw/internal/api"
	"github.com/dennisdiepolder/monti/acw/internal/auth"
	"github.com/dennisdiepolder/monti/acw/internal/config"
	"github.com/dennisdiepolder/monti/acw/internal/metrics"
	"github.com/dennisdiepolder/monti/acw/internal/websocket"
	"github.com/dennisdiepolder/monti/acw/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the report API and dashboard websocket",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var serveSkipInitial bool

func init() {
	serveCmd.Flags().BoolVar(&serveSkipInitial, "skip-initial", false, "Do not build a report from the record source on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Str("record_source", cfg.RecordSource).
		Msg("starting ACW report server")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	authenticator := auth.NewAuthenticator(cfg, log.Logger)
	if cfg.VerifySignature() && !cfg.SkipAuth {
		if err := authenticator.InitJWKS(); err != nil {
			return err
		}
	}

	source, sourceName, err := newRecordSource(ctx, cfg, sourceOptions{}, log.Logger)
	if err != nil {
		return err
	}

	// Create WebSocket hub
	hub := websocket.NewHub(log.Logger)
	go hub.Run()

	reports := api.NewReportHandler(source, sourceName, hub, cfg.MaxUploadBytes, log.Logger)
	if !serveSkipInitial {
		initialReport(ctx, reports, sourceName)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg, authenticator, reports, websocket.NewHandler(hub, cfg, log.Logger), log.Logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	log.Info().Msg("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("server stopped")
	return nil
}

// initialReport primes the latest report. A missing transaction log is not
// fatal; uploads and refreshes still work.
func initialReport(ctx context.Context, reports *api.ReportHandler, sourceName string) {
	if _, err := reports.Rebuild(ctx); err != nil {
		log.Warn().Err(err).Str("source", sourceName).Msg("no initial report, waiting for upload or refresh")
	}
}

func newRouter(cfg *config.Config, authenticator *auth.Authenticator, reports *api.ReportHandler, ws http.Handler, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Public routes
	r.Get("/health", api.HealthHandler)
	r.Handle("/metrics", metrics.Get().Handler())

	r.Group(func(r chi.Router) {
		r.Use(authenticator.Middleware)

		r.Route("/api/reports", func(r chi.Router) {
			r.Post("/", reports.Create)
			r.Get("/latest", reports.Latest)
			r.Get("/latest/slots", reports.LatestSlots)
			r.With(auth.RequireRole(auth.RoleAdmin, auth.RoleSupervisor)).Post("/refresh", reports.Refresh)
		})

		r.Get("/ws", ws.ServeHTTP)
	})

	return r
}
