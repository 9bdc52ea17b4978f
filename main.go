//
// Articles
// ========
// A HTTP REST service over a single "article" resource stored in
// PostgreSQL (or in memory with --store=memory).
//
// Also check the routes command for the generated docs of the router,
// to run yourself do: `go run . routes`
//
// Boot the server:
// ----------------
// $ go run . --store=memory
//
// Client requests:
// ----------------
// $ curl -X POST -H 'Content-Type: application/json' \
//     -d '{"author":"Jane","content":"Hello"}' http://localhost:3333/api/articles
// {"id":1,"author":"Jane","content":"Hello","created":"2024-01-01T00:00:00","updated":"2024-01-01T00:00:00"}
//
// $ curl -X PATCH -H 'Content-Type: application/json' \
//     -d '{"content":"Hello world"}' http://localhost:3333/api/articles/1
// {"id":1,"author":"Jane","content":"Hello world","created":"2024-01-01T00:00:00","updated":"2024-01-01T00:00:07"}
//
// $ curl http://localhost:3333/api/articles
// {"objects":[{"id":1,"author":"Jane",...}]}
//
// $ curl -X DELETE http://localhost:3333/api/articles/1
// {"message":"ok"}
//
// $ curl http://localhost:3333/api/articles/1
// {"error":"article 1 not found"}
//
// Metrics and health checks are served on --diag-addr (:9999 by default)
// at /metrics, /healthz and /ping.
//
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/docgen"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SergeyParamoshkin/articles/internal/article"
	"github.com/SergeyParamoshkin/articles/internal/config"
	"github.com/SergeyParamoshkin/articles/internal/metrics"
	"github.com/SergeyParamoshkin/articles/internal/server"
)

func main() {
	if err := config.LoadDotenv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.FromEnv()

	root := &cobra.Command{
		Use:          server.ServiceName,
		Short:        "REST service over the article resource",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
	cfg.BindFlags(root.PersistentFlags())

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the HTTP API (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the articles table if it does not exist",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate(cmd.Context(), cfg)
			},
		},
		newRoutesCmd(),
	)

	return root
}

func newRoutesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Generate router documentation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeRoutes(cmd.OutOrStdout(), format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "markdown", "output format: markdown or json")

	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Dev)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() // flushes buffer, if any

	sugar := logger.Sugar()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	m, err := metrics.New(server.ServiceName)
	if err != nil {
		return err
	}

	app := server.New(sugar, store, m, server.Options{CORSOrigins: cfg.CORSOrigins})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sugar.Infow("starting", "store", cfg.Store, "addr", cfg.Addr, "diag_addr", cfg.DiagAddr)

	return app.Run(ctx, cfg.Addr, cfg.DiagAddr, cfg.ShutdownTimeout)
}

func migrate(ctx context.Context, cfg config.Config) error {
	cfg.Store = config.StorePostgres
	if err := cfg.Validate(); err != nil {
		return err
	}

	pool, err := article.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	return article.EnsureSchema(ctx, pool)
}

// openStore returns the configured store and a func releasing it.
func openStore(ctx context.Context, cfg config.Config) (article.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		return article.NewMemoryStore(nil), func() {}, nil
	}

	pool, err := article.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Migrate {
		if err := article.EnsureSchema(ctx, pool); err != nil {
			pool.Close()

			return nil, nil, err
		}
	}

	return article.NewPostgresStore(pool, nil), pool.Close, nil
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}

func writeRoutes(w io.Writer, format string) error {
	app := server.New(zap.NewNop().Sugar(), article.NewMemoryStore(nil), nil, server.Options{})
	r := app.Router()

	var doc string

	switch format {
	case "markdown":
		doc = docgen.MarkdownRoutesDoc(r, docgen.MarkdownOpts{
			ProjectPath: "github.com/SergeyParamoshkin/articles",
			Intro:       "Routes of the articles REST service.",
		})
	case "json":
		doc = docgen.JSONRoutesDoc(r)
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	_, err := fmt.Fprintln(w, doc)

	return err
}
