package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/sieffosman/hotel-dashboard/internal/http"
	"github.com/sieffosman/hotel-dashboard/internal/service"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTML console",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, "")
			if err != nil {
				return err
			}
			defer a.close()
			if addr != "" {
				a.cfg.HTTP.Addr = addr
			}
			return serve(cmd.Context(), a)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	router, err := httpapi.NewRouter(a.svc, a.registry, a.logger)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}
	srv := service.NewServer(a.cfg.HTTP.Addr, router, a.logger)

	a.logger.Info("hotel-dashboard ready",
		zap.String("version", Version),
		zap.String("api_base_url", a.cfg.API.BaseURL),
		zap.String("media_base_url", a.cfg.API.MediaBaseURL),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		a.logger.Error("Server shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
