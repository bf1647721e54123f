package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runDatabaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Create the database if needed and apply pending migrations",
	Run: func(cmd *cobra.Command, args []string) {
		bindCommandFlags(cmd)
		cfg, l := loadConfig()

		grm, err := setupDatabase(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to migrate database", zap.Error(err))
		}
		if rawDb, err := grm.DB(); err == nil {
			_ = rawDb.Close()
		}
		l.Sugar().Infow("Database is up to date")
	},
}
