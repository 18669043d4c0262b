package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-rubric/internal/catalog"
	"github.com/ahrav/go-rubric/internal/config"
	"github.com/ahrav/go-rubric/internal/evaluation"
	"github.com/ahrav/go-rubric/internal/llm"
	"github.com/ahrav/go-rubric/internal/llm/cache"
)

// app carries state shared by all subcommands once the root pre-run has
// resolved configuration.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	// flag overrides; empty means keep the environment value
	logLevel   string
	logFormat  string
	schemesDir string
	strict     bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "rubric",
		Short:         "LLM-judged rubric and legal gate evaluation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (env LOG_LEVEL)")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: text or json (env LOG_FORMAT)")
	pf.StringVar(&a.schemesDir, "schemes-dir", "", "directory of scheme YAML files (env SCHEMES_DIR)")
	pf.BoolVar(&a.strict, "strict", false, "fail on the first malformed scheme file")

	root.AddCommand(
		newServeCmd(a),
		newWorkerCmd(a),
		newEvaluateCmd(a),
		newSchemesCmd(a),
	)
	return root
}

// init loads configuration from the environment, applies flag overrides
// and installs the logger.
func (a *app) init(logOut io.Writer) error {
	cfg := config.DefaultConfig()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = strings.ToLower(a.logLevel)
	}
	if a.logFormat != "" {
		cfg.Log.Format = strings.ToLower(a.logFormat)
	}
	if a.schemesDir != "" {
		cfg.SchemesDir = a.schemesDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = newLogger(logOut, cfg.Log)
	slog.SetDefault(a.logger)
	return nil
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (a *app) loadCatalog() (*catalog.Catalog, error) {
	opts := []catalog.LoadOption{catalog.WithLogger(a.logger.With("component", "catalog"))}
	if a.strict {
		opts = append(opts, catalog.WithStrict())
	}
	cat, err := catalog.LoadDir(a.cfg.SchemesDir, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading schemes from %s: %w", a.cfg.SchemesDir, err)
	}
	return cat, nil
}

// buildEngine wires catalog, LLM client and optional Redis cache into an
// engine. The returned cleanup closes the Redis connection.
func (a *app) buildEngine(ctx context.Context) (*evaluation.Engine, func(), error) {
	cat, err := a.loadCatalog()
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	clientOpts := []llm.Option{llm.WithLogger(a.logger)}
	if a.cfg.Cache.Enabled() {
		rdb, err := cache.Connect(ctx, a.cfg.Cache)
		if err != nil {
			a.logger.Warn("completion cache disabled, redis unreachable",
				"addr", a.cfg.Cache.RedisAddr,
				"error", err)
		} else {
			clientOpts = append(clientOpts, llm.WithCache(rdb, a.cfg.Cache.TTL))
			cleanup = func() { _ = rdb.Close() }
		}
	}

	client, err := llm.NewClient(a.cfg.LLM, clientOpts...)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("building llm client: %w", err)
	}

	engine := evaluation.NewEngine(cat, client,
		evaluation.WithMaxConcurrency(a.cfg.MaxConcurrency),
		evaluation.WithDefaultModel(client.DefaultModel()),
		evaluation.WithLogger(a.logger),
	)
	return engine, cleanup, nil
}
