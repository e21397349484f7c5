package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AshwinKadaruDev/vc-audit/internal/mathx"
	"github.com/AshwinKadaruDev/vc-audit/internal/model"
)

var (
	batchConcurrency int
	batchSave        bool
)

type batchOutcome struct {
	companyID string
	result    model.ValuationResult
	err       error
}

var batchCmd = &cobra.Command{
	Use:   "batch [company-id...]",
	Short: "Value several companies concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		outcomes := make([]batchOutcome, len(args))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(batchConcurrency)

		for i, id := range args {
			g.Go(func() error {
				result, err := env.eng.Run(gctx, id)
				outcomes[i] = batchOutcome{companyID: id, result: result, err: err}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "batch")
		}

		failed := 0
		for _, o := range outcomes {
			if o.err != nil {
				failed++
				cmd.Printf("%-20s FAILED: %v\n", o.companyID, o.err)
				continue
			}
			if batchSave {
				if _, err := env.st.SaveValuation(ctx, o.result); err != nil {
					return err
				}
			}
			s := o.result.Summary
			cmd.Printf("%-20s %-12s %s (%s confidence)\n",
				o.companyID, mathx.FormatCurrency(s.PrimaryValue), s.PrimaryMethod, s.OverallConfidence)
		}

		zap.L().Info("batch complete",
			zap.Int("total", len(args)),
			zap.Int("failed", failed),
		)
		if failed > 0 {
			return eris.Errorf("batch: %d of %d valuations failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 4, "concurrent valuations")
	batchCmd.Flags().BoolVar(&batchSave, "save", false, "persist each result to the store")
	rootCmd.AddCommand(batchCmd)
}
