package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/arroweffect/imgapi"
	"github.com/arroweffect/imgapi/config"
	imgapihttp "github.com/arroweffect/imgapi/http"
	"github.com/arroweffect/imgapi/metrics"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the imgapi HTTP gateway and, when metrics.addr is set, the metrics listener.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8080, "HTTP server port")
	serveCmd.Flags().String("transform-backend", "", "image transformation backend: cloudflare, local")
	serveCmd.Flags().String("metrics-addr", "", "metrics listen address, e.g. :9090 (empty disables)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closer, err := newStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	transformer, err := newTransformer(cfg.Transform, store)
	if err != nil {
		return fmt.Errorf("create transformer: %w", err)
	}

	purger, err := newPurger(cfg.Cloudflare)
	if err != nil {
		return fmt.Errorf("create purger: %w", err)
	}

	observer, err := metrics.NewObserver(metrics.DefaultNamespace, nil)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	service, err := imgapi.NewService(store, purger, transformer, imgapi.ServiceConfig{
		OriginBaseURL: cfg.Origin.BaseURL,
		UserAgent:     cfg.Transform.UserAgent,
		Observer:      observer,
	})
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	if cfg.Auth.Secret == "" {
		slog.Warn("auth.secret is empty; admin routes will reject every request")
	}

	handlerConfig := imgapihttp.HandlerConfig{
		Secret:      cfg.Auth.Secret,
		MaxBodySize: cfg.Server.MaxBodySize,
		CORS: imgapihttp.CORSConfig{
			Enabled:          cfg.CORS.Enabled,
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   cfg.CORS.AllowedMethods,
			AllowedHeaders:   cfg.CORS.AllowedHeaders,
			ExposedHeaders:   cfg.CORS.ExposedHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		},
		Middlewares: []func(http.Handler) http.Handler{observer.Middleware},
	}

	handler := imgapihttp.NewHandler(&handlerConfig, service)

	servers := []*http.Server{{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}}
	if cfg.Metrics.Addr != "" {
		servers = append(servers, &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metrics.Handler(nil),
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, server := range servers {
		g.Go(func() error {
			slog.Info("starting server", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", server.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, server := range servers {
			if err := server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", server.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
