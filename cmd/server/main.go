package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/gridhost/internal/config"
	"github.com/JonMunkholm/gridhost/internal/core"
	_ "github.com/JonMunkholm/gridhost/internal/core/modes" // Register built-in modes
	"github.com/JonMunkholm/gridhost/internal/formula"
	"github.com/JonMunkholm/gridhost/internal/logging"
	"github.com/JonMunkholm/gridhost/internal/paste"
	"github.com/JonMunkholm/gridhost/internal/resolve"
	"github.com/JonMunkholm/gridhost/internal/web"
)

func main() {
	root := &cobra.Command{
		Use:   "server",
		Short: "Grid editor host",
		Long:  "Hosts bulk spreadsheet editing sessions and resolves product codes against a catalog.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd(), formulaCmd(), inspectCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

// formulaCmd evaluates a formula against one pair of prices, the same way
// a session applies it to each target row.
func formulaCmd() *cobra.Command {
	var actual, compra float64
	cmd := &cobra.Command{
		Use:   "formula <expression>",
		Short: "Evaluate a price formula",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := formula.Compile(args[0])
			if err != nil {
				return fmt.Errorf("%s (%s)", core.MapError(err).Message, core.MapError(err).Code)
			}
			v, err := prog.Eval(formula.Inputs{Actual: actual, Compra: compra})
			if err != nil {
				return fmt.Errorf("%s (%s)", core.MapError(err).Message, core.MapError(err).Code)
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
	cmd.Flags().Float64Var(&actual, "actual", 0, "value of price.actual")
	cmd.Flags().Float64Var(&compra, "compra", 0, "value of price.compra")
	return cmd
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <text>",
		Short: "Report ambiguous decimals and invisible characters in pasted text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.ReplaceAll(args[0], `\t`, "\t")
			text = strings.ReplaceAll(text, `\n`, "\n")
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(paste.InspectBlock(text))
		},
	}
}

func runServe(ctx context.Context) error {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"lookup_max_concurrent", cfg.Lookup.MaxConcurrent,
		"max_sessions", cfg.Editor.MaxSessions,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	svcCfg := core.ServiceConfig{
		Store:   store,
		Limiter: resolve.NewLimiter(cfg.Lookup.MaxConcurrent, cfg.Lookup.MaxWaitTime),
		Lookup: resolve.Options{
			BulkThreshold: cfg.Editor.BulkThreshold,
			BulkDelay:     cfg.Editor.BulkDelay,
			Timeout:       cfg.Lookup.Timeout,
		},
		CacheTTL: cfg.Lookup.CacheTTL,
		Debounce: cfg.Editor.Debounce,
		Reconciler: core.Options{
			SeedRows:          cfg.Editor.SeedRows,
			BulkThreshold:     cfg.Editor.BulkThreshold,
			SuppressionWindow: cfg.Editor.SuppressionWindow,
			AdvisoryTTL:       cfg.Editor.AdvisoryTTL,
		},
		MaxSessions: cfg.Editor.MaxSessions,
		Logger:      logger,
	}
	service := core.NewService(svcCfg)

	modes := service.ListModes()
	keys := make([]string, len(modes))
	for i, m := range modes {
		keys[i] = m.Key
	}
	slog.Info("modes registered", "count", len(modes), "modes", keys)

	server := web.NewServer(ctx, service, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		service.StartReaper(gctx, core.ReaperConfig{
			IdleTimeout:   cfg.Editor.IdleTimeout,
			CheckInterval: cfg.Editor.ReapInterval,
		})
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if active := service.Limiter().ActiveCount(); active > 0 {
			slog.Info("waiting for lookups to complete", "active", active)
		}
		if err := service.Shutdown(shutdownCtx); err != nil {
			slog.Warn("lookups did not complete in time", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// openStore opens the configured catalog backend. It returns a nil Store
// when no driver is configured.
func openStore(ctx context.Context, db config.DatabaseConfig) (resolve.Store, error) {
	switch db.Driver {
	case config.DriverPostgres:
		store, err := resolve.OpenPgStore(ctx, db.URL, resolve.PoolOptions{
			MaxConns:        db.MaxConns,
			MinConns:        db.MinConns,
			MaxConnLifetime: db.MaxConnLifetime,
			MaxConnIdleTime: db.MaxConnIdleTime,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if db.Migrate {
			if err := store.Migrate(ctx); err != nil {
				store.Close()
				return nil, err
			}
		}
		slog.Info("connected to catalog", "driver", db.Driver)
		return store, nil

	case config.DriverSQLite:
		store, err := resolve.OpenSQLite(ctx, db.URL)
		if err != nil {
			return nil, err
		}
		slog.Info("opened catalog", "driver", db.Driver, "dsn", db.URL)
		return store, nil

	default:
		slog.Warn("no catalog configured; lookups will leave codes unresolved")
		return nil, nil
	}
}
