package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lpstake/lpstake/pkg/rewards"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const rewardsPeriodFlag = "period"

var rewardsCmd = &cobra.Command{
	Use:   "rewards",
	Short: "Run a rewards notification job once",
	Run: func(cmd *cobra.Command, args []string) {
		bindCommandFlags(cmd)
		cfg, l := loadConfig()
		ctx := context.Background()

		period, err := rewards.ParsePeriodType(viper.GetString(rewardsPeriodFlag))
		if err != nil {
			l.Sugar().Fatalw("Invalid period", zap.Error(err))
		}

		svc, err := newServices(ctx, cfg, l, setupMetrics(cfg, l))
		if err != nil {
			l.Sugar().Fatalw("Failed to initialize services", zap.Error(err))
		}
		defer svc.close()

		result := svc.rewards.RunManual(ctx, period)
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		if !result.Success {
			svc.close()
			l.Sugar().Fatalw("Rewards job failed", zap.String("message", result.Message))
		}
	},
}

func init() {
	rewardsCmd.Flags().String(rewardsPeriodFlag, string(rewards.PeriodType_Daily), `Period to summarize (daily, weekly, monthly)`)
}
