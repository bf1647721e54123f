package _202609210915_notifications

import (
	"database/sql"

	"github.com/lpstake/lpstake/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	query := `
		CREATE TABLE IF NOT EXISTS notifications (
			id          uuid primary key,
			user_id     uuid not null,
			title       varchar not null,
			message     text not null,
			type        varchar not null,
			metadata    jsonb not null default '{}'::jsonb,
			read        boolean not null default false,
			created_at  timestamp with time zone default current_timestamp
		)
	`
	res := grm.Exec(query)
	return res.Error
}

func (m *Migration) GetName() string {
	return "202609210915_notifications"
}
