package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"storefront-cart/cartstate"
	"storefront-cart/config"
	"storefront-cart/graphql"
	"storefront-cart/refstore"
	"storefront-cart/service"
	"storefront-cart/store"
)

// rootOptions holds global flags and what PersistentPreRunE builds from them.
type rootOptions struct {
	ConfigPath string
	Verbose    bool

	cfg    *config.Config
	logger *zap.Logger

	// overridable in tests
	newService func(cfg *config.Config, logger *zap.Logger) (*service.Service, error)
	openRefs   func(ctx context.Context, cfg config.ReferencesConfig) (refstore.Store, error)
	newCart    func(opts *rootOptions) (cartstate.Orchestrator, error)
}

func newRootCommand() *cobra.Command {
	return newRootCommandWith(&rootOptions{
		newService: buildService,
		openRefs:   openRefStore,
		newCart: func(o *rootOptions) (cartstate.Orchestrator, error) {
			svc, err := o.newService(o.cfg, o.logger)
			if err != nil {
				return nil, err
			}
			return svc, nil
		},
	})
}

func newRootCommandWith(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storefront",
		Short: "Cart session reconciliation for a hosted storefront",
		Long: `storefront keeps shopper carts in step with the remote Storefront API.
It serves the cart HTTP endpoints and can drive a cart from the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Logging, opts.Verbose)
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			opts.cfg, opts.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "storefront.yaml", "config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newCartCommand(opts))

	return cmd
}

func newLogger(cfg config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		l, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		level = l
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// buildService wires client, accessor and orchestrator from cfg.
func buildService(cfg *config.Config, logger *zap.Logger) (*service.Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := graphql.New(graphql.Config{
		Endpoint: cfg.Shop.GraphQLEndpoint(),
		Token:    cfg.Shop.StorefrontToken,
		Timeout:  cfg.Shop.RequestTimeout(),
	}, nil, logger)
	if err != nil {
		return nil, err
	}
	st := store.NewShopifyStore(client, store.Options{
		LineLimit:          cfg.Cart.LineLimit,
		SerializeMutations: cfg.Cart.SerializeMutations,
		Logger:             logger,
	})
	return service.NewService(st, logger), nil
}

func openRefStore(ctx context.Context, cfg config.ReferencesConfig) (refstore.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return refstore.NewMemoryStore(cfg.Lifetime()), nil
	case "postgres":
		pg, err := refstore.NewPostgresStore(cfg.DSN, cfg.Lifetime())
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown references driver %q", cfg.Driver)
	}
}
