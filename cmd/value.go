package main

import (
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AshwinKadaruDev/vc-audit/internal/mathx"
	"github.com/AshwinKadaruDev/vc-audit/internal/model"
)

var (
	valueJSON bool
	valueSave bool
	valueFile string
)

var valueCmd = &cobra.Command{
	Use:   "value [company-id]",
	Short: "Run a valuation for a stored company or a data file",
	Long:  "Runs every applicable valuation method for the company and prints the reconciled result with its full audit trail. Pass a stored company id, or --file with a JSON company payload.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (len(args) == 0) == (valueFile == "") {
			return eris.New("provide exactly one of: a company id, or --file")
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var result model.ValuationResult
		if valueFile != "" {
			data, err := readCompanyFile(valueFile)
			if err != nil {
				return err
			}
			result, err = env.eng.RunWithData(ctx, data)
			if err != nil {
				return err
			}
		} else {
			result, err = env.eng.Run(ctx, args[0])
			if err != nil {
				return err
			}
		}

		if valueSave {
			rec, err := env.st.SaveValuation(ctx, result)
			if err != nil {
				return err
			}
			zap.L().Info("valuation saved", zap.String("id", rec.ID))
		}

		if valueJSON {
			return printJSON(cmd, result)
		}
		renderResult(cmd, result)
		return nil
	},
}

func readCompanyFile(path string) (model.CompanyData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.CompanyData{}, eris.Wrapf(err, "read %s", path)
	}
	var data model.CompanyData
	if err := json.Unmarshal(raw, &data); err != nil {
		return model.CompanyData{}, eris.Wrapf(err, "parse %s", path)
	}
	if err := data.Validate(); err != nil {
		return model.CompanyData{}, err
	}
	return data, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal result")
	}
	cmd.Println(string(raw))
	return nil
}

func renderResult(cmd *cobra.Command, result model.ValuationResult) {
	s := result.Summary
	cmd.Printf("%s: %s (%s method, %s confidence)\n",
		result.CompanyName, mathx.FormatCurrency(s.PrimaryValue), s.PrimaryMethod, s.OverallConfidence)
	cmd.Println(s.SummaryText)
	if s.SelectionReason != "" {
		cmd.Println(s.SelectionReason)
	}
	if s.ValueRangeLow != nil && s.ValueRangeHigh != nil {
		cmd.Printf("Value range: %s to %s\n",
			mathx.FormatCurrency(*s.ValueRangeLow), mathx.FormatCurrency(*s.ValueRangeHigh))
	}
	if result.CrossMethodAnalysis != "" {
		cmd.Println()
		cmd.Println(result.CrossMethodAnalysis)
	}

	for _, mr := range result.MethodResults {
		cmd.Println()
		cmd.Printf("== %s: %s (%s confidence)\n",
			mr.Method.DisplayName(), mathx.FormatCurrency(mr.Value), mr.Confidence)
		cmd.Printf("   %s\n", mr.ConfidenceReason)
		for _, w := range mr.Warnings {
			cmd.Printf("   WARNING: %s\n", w)
		}
		for _, step := range mr.AuditTrail {
			cmd.Printf("   %d. %s\n", step.StepNumber, step.Description)
			if step.Calculation != "" {
				cmd.Printf("      %s\n", step.Calculation)
			}
			cmd.Printf("      %s\n", step.Result)
		}
	}

	for _, sk := range result.SkippedMethods {
		cmd.Println()
		cmd.Printf("== %s: skipped (%s)\n", sk.Method.DisplayName(), sk.Reason)
	}

	if comp := s.MethodComparison; comp != nil && len(comp.SelectionSteps) > 0 {
		cmd.Println()
		cmd.Println("Selection:")
		for i, step := range comp.SelectionSteps {
			cmd.Printf("  %d. %s\n", i+1, step)
		}
		if comp.SpreadWarning != "" {
			cmd.Printf("  %s\n", comp.SpreadWarning)
		}
	}

	if len(result.ConfigSnapshot) > 0 {
		pairs := make([]string, 0, len(result.ConfigSnapshot))
		for k, v := range result.ConfigSnapshot {
			pairs = append(pairs, k+"="+v)
		}
		sort.Strings(pairs)
		cmd.Println()
		cmd.Printf("Config: %s\n", strings.Join(pairs, " "))
	}
}

func init() {
	valueCmd.Flags().BoolVar(&valueJSON, "json", false, "print the full result as JSON")
	valueCmd.Flags().BoolVar(&valueSave, "save", false, "persist the result to the store")
	valueCmd.Flags().StringVar(&valueFile, "file", "", "JSON file with company data to value instead of a stored company")
	rootCmd.AddCommand(valueCmd)
}
