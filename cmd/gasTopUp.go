package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/lpstake/lpstake/internal/config"
	"github.com/lpstake/lpstake/pkg/gasTopUp"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const gasTopUpReportFlag = "report"

var gasTopUpCmd = &cobra.Command{
	Use:   "gas-top-up",
	Short: "Fund every wallet whose native balance is below gas-top-up.amount",
	Run: func(cmd *cobra.Command, args []string) {
		bindCommandFlags(cmd)
		cfg, l := loadConfig()
		ctx := context.Background()

		if cfg.GasTopUpConfig.Amount == "" {
			l.Sugar().Fatalw(fmt.Sprintf("%s is required", config.GasTopUpAmount))
		}

		svc, err := newServices(ctx, cfg, l, setupMetrics(cfg, l))
		if err != nil {
			l.Sugar().Fatalw("Failed to initialize services", zap.Error(err))
		}
		defer svc.close()

		total := int64(-1)
		if cfg.GasTopUpConfig.Max > 0 {
			total = int64(cfg.GasTopUpConfig.Max)
		}
		bar := progressbar.Default(total, "checking wallets")

		summary := svc.newGasTopUp(func(processed int) {
			_ = bar.Set(processed)
		}).TopUpAll(ctx, cfg.GasTopUpConfig.Amount)
		_ = bar.Finish()

		fmt.Printf("\nRun %s: checked %d, topped up %d, errors %d\n",
			summary.RunId, summary.TotalChecked, summary.TotalToppedUp, summary.TotalErrors)

		if reportPath := viper.GetString(gasTopUpReportFlag); reportPath != "" {
			if err := writeTopUpReport(reportPath, summary.Details); err != nil {
				l.Sugar().Errorw("Failed to write top-up report", zap.String("path", reportPath), zap.Error(err))
			} else {
				l.Sugar().Infow("Wrote top-up report", zap.String("path", reportPath))
			}
		}

		if !summary.Success {
			svc.close()
			l.Sugar().Fatalw("Gas top-up failed", zap.String("error", summary.Error))
		}
	},
}

func writeTopUpReport(path string, details []*gasTopUp.TopUpResult) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.MarshalFile(&details, f)
}

func init() {
	gasTopUpCmd.Flags().String(gasTopUpReportFlag, "", `Write per-wallet results to this CSV file`)
}
