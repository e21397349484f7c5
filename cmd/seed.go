package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AshwinKadaruDev/vc-audit/internal/store"
)

var seedDir string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load reference data fixtures into the store",
	Long:  "Reads companies.yaml, comparables.yaml, and indices.yaml from the seed directory and upserts them. Re-running is safe.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		dir := seedDir
		if dir == "" {
			dir = cfg.Seed.Dir
		}

		if err := store.SeedFromDir(ctx, env.st, dir); err != nil {
			return err
		}
		env.dl.Invalidate()
		zap.L().Info("seed complete", zap.String("dir", dir))
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedDir, "dir", "", "seed directory (default from config)")
	rootCmd.AddCommand(seedCmd)
}
