package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AshwinKadaruDev/vc-audit/internal/config"
	"github.com/AshwinKadaruDev/vc-audit/internal/engine"
	"github.com/AshwinKadaruDev/vc-audit/internal/loader"
	"github.com/AshwinKadaruDev/vc-audit/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "vc-audit",
	Short: "Private company valuation with full audit trails",
	Long:  "Values private companies via last-round market adjustment and comparable-company multiples, recording every calculation step for review.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// appEnv bundles the wired store, loader, and engine for one command run.
type appEnv struct {
	st  store.Store
	dl  *loader.StoreLoader
	eng *engine.Engine
}

func (e *appEnv) Close() {
	if err := e.st.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

// initEnv opens the configured store backend, runs migrations, and builds
// the engine on top of it.
func initEnv(ctx context.Context) (*appEnv, error) {
	var st store.Store
	var err error

	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	valCfg, err := cfg.Valuation.Parse()
	if err != nil {
		st.Close()
		return nil, err
	}

	dl := loader.NewStoreLoader(st)
	return &appEnv{
		st:  st,
		dl:  dl,
		eng: engine.New(dl, valCfg),
	}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
