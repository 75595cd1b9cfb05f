package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/procureops/sourcing-cli/internal/model"
)

var (
	runItemID      string
	runDescription string
	runMaxPrice    float64
	runQuantity    int
	runRegion      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Source a single item",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		item := model.Item{
			ID:          runItemID,
			Description: runDescription,
			Quantity:    runQuantity,
			Region:      runRegion,
		}
		if runMaxPrice > 0 {
			item.MaxPrice = &runMaxPrice
		}

		run, err := env.Store.CreateRun(ctx, item)
		if err != nil {
			return eris.Wrap(err, "create run")
		}

		result := env.coordinatorFor(run.ID).Source(ctx, item)

		if err := env.Store.SaveResult(ctx, run.ID, result); err != nil {
			_ = env.Store.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed)
			return eris.Wrap(err, "save result")
		}

		fields := []zap.Field{
			zap.String("run_id", run.ID),
			zap.String("item_id", item.ID),
			zap.String("strategy", result.Strategy),
		}
		if winner := result.Winner(); winner != nil {
			fields = append(fields,
				zap.String("winner_link", winner.Link),
				zap.Float64("total_price", winner.TotalPrice),
				zap.Int("risk_score", winner.RiskScore),
			)
			zap.L().Info("sourcing complete", fields...)
		} else {
			zap.L().Info("sourcing finished without an offer", fields...)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runItemID, "id", "", "item identifier (required)")
	runCmd.Flags().StringVar(&runDescription, "description", "", "item specification text (required)")
	runCmd.Flags().Float64Var(&runMaxPrice, "max-price", 0, "budget ceiling per unit")
	runCmd.Flags().IntVar(&runQuantity, "quantity", 1, "units to source")
	runCmd.Flags().StringVar(&runRegion, "region", "", "delivery region (default from config)")
	_ = runCmd.MarkFlagRequired("id")
	_ = runCmd.MarkFlagRequired("description")
	rootCmd.AddCommand(runCmd)
}
