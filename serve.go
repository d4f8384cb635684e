package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront-cart/handler"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cart HTTP endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := opts.newService(opts.cfg, opts.logger)
			if err != nil {
				return err
			}

			r := mux.NewRouter()
			handler.NewHandler(svc, handler.Options{
				CookieName:   opts.cfg.Cart.CookieName,
				CookieMaxAge: opts.cfg.Cart.CookieLifetime(),
				Logger:       opts.logger,
			}).RegisterRoutes(r)

			if addr == "" {
				addr = opts.cfg.Server.Addr
			}
			srv := &http.Server{
				Addr:         addr,
				Handler:      r,
				ReadTimeout:  opts.cfg.Server.ReadTimeoutDuration(),
				WriteTimeout: opts.cfg.Server.WriteTimeoutDuration(),
			}
			return runServer(ctx, srv, opts.cfg.Server.ShutdownTimeoutDuration(), opts.logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")

	return cmd
}

// runServer serves until ctx is done, then shuts down within grace.
func runServer(ctx context.Context, srv *http.Server, grace time.Duration, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server shutting down", zap.Duration("grace", grace))
		sctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}
