package _202609241030_gasTopUpAudits

import (
	"database/sql"

	"github.com/lpstake/lpstake/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS gas_top_up_audits (
			id                serial primary key,
			run_id            uuid not null,
			user_id           varchar not null,
			wallet_id         varchar not null,
			wallet_address    varchar not null,
			balance_wei       numeric not null,
			needed_wei        numeric not null,
			top_up_performed  boolean not null default false,
			tx_hash           varchar default null,
			error             text default null,
			created_at        timestamp with time zone default current_timestamp
		)`,
		`CREATE INDEX IF NOT EXISTS idx_gas_top_up_audits_run_id ON gas_top_up_audits(run_id)`,
	}
	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202609241030_gasTopUpAudits"
}
