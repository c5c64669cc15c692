package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/map-pickban-backend/internal/archive"
	"github.com/DoyleJ11/map-pickban-backend/internal/config"
	"github.com/DoyleJ11/map-pickban-backend/internal/httpapi"
	"github.com/DoyleJ11/map-pickban-backend/internal/hub"
	"github.com/DoyleJ11/map-pickban-backend/internal/logging"
	"github.com/DoyleJ11/map-pickban-backend/internal/ws"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			files, _ := cmd.Flags().GetStringSlice("env-file")
			cfg, err := config.Load(files...)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Addr = addr
			}

			log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, log)
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides PICKBAN_ADDR)")
	return cmd
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) (err error) {
	store, err := archive.Open(cfg.ArchiveMode, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	recorder := archive.NewRecorder(store, cfg.ArchiveBuffer, log.Named("archive"))

	h := hub.NewHub(context.Background(), hub.Options{
		IdleTimeout: cfg.IdleTimeout,
		OnComplete:  recorder.Record,
		Logger:      log.Named("hub"),
	})

	handler := httpapi.SetupRoutes(httpapi.Deps{
		Hub:     h,
		Results: store,
		Gateway: ws.New(h, ws.Options{
			OriginPatterns: cfg.AllowedOrigins,
			PingInterval:   cfg.PingInterval,
			WriteTimeout:   cfg.WriteTimeout,
			Logger:         log.Named("ws"),
		}),
		Logger: log.Named("http"),
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.String("archive", cfg.ArchiveMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return recorder.Run(recorderCtx) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		// Closing the hub first ends every websocket's lobby subscriptions.
		err := multierr.Combine(
			h.Shutdown(shutdownCtx),
			srv.Shutdown(shutdownCtx),
		)
		stopRecorder()
		return err
	})

	return g.Wait()
}
