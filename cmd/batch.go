package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/procureops/sourcing-cli/internal/fetcher"
	"github.com/procureops/sourcing-cli/internal/model"
)

var (
	batchFile  string
	batchSheet string
	batchLimit int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Source every item in a spreadsheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		items, err := readItemFile(batchFile, batchSheet)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		return processBatch(ctx, env, items, batchLimit, cfg.Batch.MaxConcurrentItems)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "item sheet, .xlsx or .csv (required)")
	batchCmd.Flags().StringVar(&batchSheet, "sheet", "", "worksheet name (default first sheet)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of items to process (0 = all)")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

func readItemFile(path, sheet string) ([]model.Item, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return fetcher.ReadItemsXLSX(path, fetcher.XLSXOptions{SheetName: sheet})
	case ".csv":
		return fetcher.ReadItemsCSV(path)
	default:
		return nil, eris.Errorf("unsupported item file %q (want .xlsx or .csv)", path)
	}
}

// processBatch sources items concurrently. Individual failures are
// recorded against their runs and never abort the batch.
func processBatch(ctx context.Context, env *pipelineEnv, items []model.Item, limit, concurrency int) error {
	if len(items) == 0 {
		zap.L().Info("no items to source")
		return nil
	}

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("items", len(items)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var withOffer, noOffer, failed atomic.Int64

	for _, item := range items {
		g.Go(func() error {
			log := zap.L().With(zap.String("item_id", item.ID))

			run, err := env.Store.CreateRun(gctx, item)
			if err != nil {
				failed.Add(1)
				log.Error("create run failed", zap.Error(err))
				return nil
			}

			result := env.coordinatorFor(run.ID).Source(gctx, item)

			if err := env.Store.SaveResult(gctx, run.ID, result); err != nil {
				failed.Add(1)
				log.Error("save result failed", zap.String("run_id", run.ID), zap.Error(err))
				_ = env.Store.UpdateRunStatus(gctx, run.ID, model.RunStatusFailed)
				return nil
			}

			if winner := result.Winner(); winner != nil {
				withOffer.Add(1)
				log.Info("item sourced",
					zap.String("run_id", run.ID),
					zap.Float64("total_price", winner.TotalPrice),
					zap.Int("risk_score", winner.RiskScore),
				)
			} else {
				noOffer.Add(1)
				log.Info("no offer found", zap.String("run_id", run.ID))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("with_offer", withOffer.Load()),
		zap.Int64("no_offer", noOffer.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
