package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/elile/backend/internal/app"
	"github.com/zhouzirui/elile/backend/internal/config"
	"github.com/zhouzirui/elile/backend/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	root := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	log.Logger = root
	if envErr != nil {
		root.Warn().Err(envErr).Msg("no .env file loaded, continuing with system environment variables only")
	}

	application, err := app.Build(ctx, cfg, root)
	if err != nil {
		root.Fatal().Err(err).Msg("failed to initialize services")
	}
	defer func() {
		if err := application.Close(); err != nil {
			root.Error().Err(err).Msg("failed to close history store")
		}
	}()

	go application.Warmup(ctx)

	if err := startServer(ctx, cfg.Server, application.Router(), root); err != nil {
		root.Error().Err(err).Msg("server error")
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, root zerolog.Logger) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	root.Info().Str("addr", addr).Msg("Elile backend listening")
	if err := runServer(ctx, srv); err != nil {
		return err
	}
	root.Info().Msg("server stopped")
	return nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
