package cmd

import (
	"context"
	"time"

	"github.com/lpstake/lpstake/internal/metrics/prometheus"
	"github.com/lpstake/lpstake/internal/shutdown"
	"github.com/lpstake/lpstake/pkg/adminServer"
	"github.com/lpstake/lpstake/pkg/queue/rabbitmq"
	"github.com/lpstake/lpstake/pkg/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the rewards scheduler and the admin server",
	Run: func(cmd *cobra.Command, args []string) {
		bindCommandFlags(cmd)
		cfg, l := loadConfig()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ms := setupMetrics(cfg, l)

		svc, err := newServices(ctx, cfg, l, ms)
		if err != nil {
			l.Sugar().Fatalw("Failed to initialize services", zap.Error(err))
		}
		defer svc.close()

		var producer *rabbitmq.EventProducer
		if cfg.RabbitMqConfig.Url != "" {
			producer, err = rabbitmq.NewEventProducer(cfg.RabbitMqConfig.Url, cfg.RabbitMqConfig.Exchange, l)
			if err != nil {
				l.Sugar().Fatalw("Failed to connect to rabbitmq", zap.Error(err))
			}
			rabbitmq.NewForwarder(producer, svc.eventBus, l).Start(ctx)
		}

		topUp := svc.newGasTopUp(nil)

		location, err := time.LoadLocation(cfg.SchedulerConfig.Timezone)
		if err != nil {
			l.Sugar().Fatalw("Invalid scheduler timezone", zap.Error(err))
		}
		sched := scheduler.NewScheduler(
			scheduler.BuildJobDefinitions(cfg, svc.rewards, topUp),
			&scheduler.SchedulerConfig{
				Location:       location,
				PreventOverlap: cfg.SchedulerConfig.PreventOverlap,
			},
			ms,
			l,
		)
		if cfg.SchedulerConfig.Disabled {
			l.Sugar().Infow("Scheduler disabled, jobs can only be run through the admin api")
		} else {
			sched.StartAll(ctx)
		}

		admin := adminServer.NewAdminServer(&adminServer.AdminServerConfig{
			Port:        cfg.AdminConfig.HttpPort,
			ApiKey:      cfg.AdminConfig.ApiKey,
			JwtSecret:   cfg.AdminConfig.JwtSecret,
			TopUpAmount: cfg.GasTopUpConfig.Amount,
		}, sched, svc.rewards, topUp, ms, l)
		admin.Start()

		var promServer *prometheus.PrometheusServer
		if cfg.PrometheusConfig.Enabled {
			promServer = prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{
				Port: cfg.PrometheusConfig.Port,
			}, l)
			promServer.Start()
		}

		l.Sugar().Info("Started lpstake")

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()
		shutdown.ListenForShutdown(gracefulShutdown, func(deadline time.Duration) {
			l.Sugar().Info("Shutting down...")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), deadline)
			defer shutdownCancel()

			admin.Shutdown(shutdownCtx)
			if promServer != nil {
				promServer.Shutdown(shutdownCtx)
			}

			select {
			case <-sched.StopAll().Done():
			case <-shutdownCtx.Done():
				l.Sugar().Warnw("Timed out waiting for running jobs to finish")
			}
			cancel()

			if producer != nil {
				producer.Close()
			}
		}, time.Second*30, l)
	},
}
