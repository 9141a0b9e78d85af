package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chaosmonkey "github.com/BBVA/chaos-monkey-engine"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动调度引擎，执行到期的attack",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.zap.Sync() }()

		var srv *http.Server
		if addr := a.cfg.Metrics.Addr; addr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				a.logger.Info("serving metrics", chaosmonkey.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("metrics server failed", chaosmonkey.Err(err))
				}
			}()
		}

		if err = a.scheduler.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		a.logger.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if srv != nil {
			_ = srv.Shutdown(sctx)
		}
		return a.scheduler.Shutdown(sctx)
	},
}
