package _202609210900_bootstrapDb

import (
	"database/sql"

	"github.com/lpstake/lpstake/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

// Up creates the users table when the job runs against its own database.
// In shared deployments the table already exists and is owned by the platform.
func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
		`CREATE TABLE IF NOT EXISTS users (
			id              uuid primary key default gen_random_uuid(),
			email           varchar not null,
			full_name       varchar default null,
			wallet_id       varchar default null,
			wallet_address  varchar default null,
			created_at      timestamp with time zone default current_timestamp,
			updated_at      timestamp with time zone default null
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_wallet_address ON users(wallet_address)`,
	}
	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202609210900_bootstrapDb"
}
