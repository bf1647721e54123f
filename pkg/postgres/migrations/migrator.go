package migrations

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lpstake/lpstake/internal/config"
	_202609210900_bootstrapDb "github.com/lpstake/lpstake/pkg/postgres/migrations/202609210900_bootstrapDb"
	_202609210915_notifications "github.com/lpstake/lpstake/pkg/postgres/migrations/202609210915_notifications"
	_202609241030_gasTopUpAudits "github.com/lpstake/lpstake/pkg/postgres/migrations/202609241030_gasTopUpAudits"
	_202610021400_notificationsUserIndex "github.com/lpstake/lpstake/pkg/postgres/migrations/202610021400_notificationsUserIndex"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Migration interface {
	Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error
	GetName() string
}

type Migrator struct {
	Db           *sql.DB
	GDb          *gorm.DB
	Logger       *zap.Logger
	globalConfig *config.Config
}

func NewMigrator(db *sql.DB, gDb *gorm.DB, l *zap.Logger, cfg *config.Config) *Migrator {
	_ = gDb.AutoMigrate(&Migrations{})
	return &Migrator{
		Db:           db,
		GDb:          gDb,
		Logger:       l,
		globalConfig: cfg,
	}
}

func (m *Migrator) GetMigrations() []Migration {
	return []Migration{
		&_202609210900_bootstrapDb.Migration{},
		&_202609210915_notifications.Migration{},
		&_202609241030_gasTopUpAudits.Migration{},
		&_202610021400_notificationsUserIndex.Migration{},
	}
}

func (m *Migrator) MigrateAll() error {
	for _, migration := range m.GetMigrations() {
		if err := m.Migrate(migration); err != nil {
			return fmt.Errorf("migration '%s' failed: %w", migration.GetName(), err)
		}
	}
	return nil
}

func (m *Migrator) Migrate(migration Migration) error {
	name := migration.GetName()

	// find migration by name
	var migrationRecord Migrations
	result := m.GDb.Find(&migrationRecord, "name = ?", name).Limit(1)

	if result.Error != nil {
		m.Logger.Sugar().Errorw(fmt.Sprintf("Failed to find migration '%s'", name), zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected > 0 {
		m.Logger.Sugar().Debugf("Migration %s already run", name)
		return nil
	}

	m.Logger.Sugar().Infof("Running migration '%s'", name)
	if err := migration.Up(m.Db, m.GDb, m.globalConfig); err != nil {
		m.Logger.Sugar().Errorw(fmt.Sprintf("Failed to run migration '%s'", name), zap.Error(err))
		return err
	}

	migrationRecord = Migrations{
		Name: name,
	}
	result = m.GDb.Create(&migrationRecord)
	if result.Error != nil {
		m.Logger.Sugar().Errorw(fmt.Sprintf("Failed to record migration '%s'", name), zap.Error(result.Error))
		return result.Error
	}
	return nil
}

type Migrations struct {
	Name      string    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"default:current_timestamp;type:timestamp with time zone"`
	UpdatedAt time.Time `gorm:"default:null;type:timestamp with time zone"`
}
