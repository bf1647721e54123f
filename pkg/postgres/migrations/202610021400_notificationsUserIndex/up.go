package _202610021400_notificationsUserIndex

import (
	"database/sql"

	"github.com/lpstake/lpstake/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	query := `CREATE INDEX IF NOT EXISTS idx_notifications_user_id_created_at ON notifications(user_id, created_at desc)`
	res := grm.Exec(query)
	return res.Error
}

func (m *Migration) GetName() string {
	return "202610021400_notificationsUserIndex"
}
