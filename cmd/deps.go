package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lpstake/lpstake/internal/config"
	"github.com/lpstake/lpstake/internal/logger"
	"github.com/lpstake/lpstake/internal/metrics"
	"github.com/lpstake/lpstake/pkg/clients/ethereum"
	"github.com/lpstake/lpstake/pkg/clients/subgraph"
	"github.com/lpstake/lpstake/pkg/eventBus"
	"github.com/lpstake/lpstake/pkg/gasTopUp"
	"github.com/lpstake/lpstake/pkg/notifications"
	"github.com/lpstake/lpstake/pkg/postgres"
	"github.com/lpstake/lpstake/pkg/postgres/migrations"
	"github.com/lpstake/lpstake/pkg/rewards"
	pgStorage "github.com/lpstake/lpstake/pkg/storage/postgres"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// services holds everything the commands share once config is loaded.
type services struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.MetricsSink
	grm      *gorm.DB
	store    *pgStorage.PostgresStore
	eventBus *eventBus.EventBus
	rewards  *rewards.RewardsJob
	funder   gasTopUp.Funder
}

func loadConfig() (*config.Config, *zap.Logger) {
	cfg := config.NewConfig()
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

	if err := cfg.Validate(); err != nil {
		l.Sugar().Fatalw("Invalid configuration", zap.Error(err))
	}
	return cfg, l
}

func setupMetrics(cfg *config.Config, l *zap.Logger) *metrics.MetricsSink {
	metricsClients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
	if err != nil {
		l.Sugar().Fatalw("Failed to setup metrics sink", zap.Error(err))
	}

	sink, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, metricsClients, l)
	if err != nil {
		l.Sugar().Fatalw("Failed to setup metrics sink", zap.Error(err))
	}
	return sink
}

func setupDatabase(cfg *config.Config, l *zap.Logger) (*gorm.DB, error) {
	pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
	pgConfig.CreateDbIfNotExists = true

	pg, err := postgres.NewPostgres(pgConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to setup postgres connection: %w", err)
	}

	grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
	if err != nil {
		return nil, fmt.Errorf("failed to create gorm instance: %w", err)
	}

	migrator := migrations.NewMigrator(pg.Db, grm, l, cfg)
	if err = migrator.MigrateAll(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return grm, nil
}

// setupFunder returns a nil Funder when no custody key is configured so that
// top-up runs report the missing signer instead of failing startup.
func setupFunder(ctx context.Context, cfg *config.Config, l *zap.Logger) (gasTopUp.Funder, error) {
	if !cfg.HasCustodyKey() {
		l.Sugar().Warnw("No custody private key configured, gas top-ups are disabled")
		return nil, nil
	}
	if cfg.EthereumConfig.RpcUrl == "" {
		return nil, fmt.Errorf("%s is required when a custody key is set", config.EthereumRpcUrl)
	}

	backend, err := ethereum.NewBackend(ctx, cfg.EthereumConfig.RpcUrl, l)
	if err != nil {
		return nil, err
	}
	sender, err := ethereum.NewCustodySender(backend, &ethereum.SenderConfig{
		PrivateKey: cfg.EthereumConfig.CustodyPrivateKey,
		ChainId:    cfg.EthereumConfig.ChainId,
		MaxRetries: cfg.EthereumConfig.SendMaxRetries,
	}, l)
	if err != nil {
		return nil, err
	}
	l.Sugar().Infow("Loaded custody signer", zap.String("address", sender.Address().Hex()))
	return sender, nil
}

func newServices(ctx context.Context, cfg *config.Config, l *zap.Logger, ms *metrics.MetricsSink) (*services, error) {
	grm, err := setupDatabase(cfg, l)
	if err != nil {
		return nil, err
	}
	store := pgStorage.NewPostgresStore(grm, l, cfg)
	eb := eventBus.NewEventBus(l)

	subgraphClient := subgraph.NewSubgraphClient(&http.Client{}, l, cfg)
	emitter := notifications.NewEmitter(store, eb, l)
	rewardsJob := rewards.NewRewardsJob(store, subgraphClient, emitter, ms, l)

	funder, err := setupFunder(ctx, cfg, l)
	if err != nil {
		return nil, err
	}

	return &services{
		cfg:      cfg,
		logger:   l,
		metrics:  ms,
		grm:      grm,
		store:    store,
		eventBus: eb,
		rewards:  rewardsJob,
		funder:   funder,
	}, nil
}

func (s *services) newGasTopUp(onProgress func(int)) *gasTopUp.GasTopUp {
	return gasTopUp.NewGasTopUp(s.store, s.store, s.funder, s.eventBus, gasTopUp.Options{
		PageSize:            s.cfg.GasTopUpConfig.PageSize,
		Concurrency:         s.cfg.GasTopUpConfig.Concurrency,
		Max:                 s.cfg.GasTopUpConfig.Max,
		ConfirmationTimeout: s.cfg.EthereumConfig.ConfirmationTimeout,
		OnProgress:          onProgress,
	}, s.metrics, s.logger)
}

func (s *services) close() {
	if rawDb, err := s.grm.DB(); err == nil {
		_ = rawDb.Close()
	}
}
