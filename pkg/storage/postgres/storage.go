package postgres

import (
	"context"
	"strings"

	"github.com/lpstake/lpstake/internal/config"
	pg "github.com/lpstake/lpstake/pkg/postgres"
	"github.com/lpstake/lpstake/pkg/postgres/helpers"
	"github.com/lpstake/lpstake/pkg/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresStore struct {
	Db           *gorm.DB
	Logger       *zap.Logger
	GlobalConfig *config.Config
}

func NewPostgresStore(db *gorm.DB, l *zap.Logger, cfg *config.Config) *PostgresStore {
	return &PostgresStore{
		Db:           db,
		Logger:       l,
		GlobalConfig: cfg,
	}
}

const recipientsQuery = `
	select
		id as user_id,
		coalesce(wallet_id, '') as wallet_id,
		wallet_address,
		email,
		full_name
	from users
	where
		wallet_address is not null
		and wallet_address <> ''
	order by id asc
`

func (s *PostgresStore) ListRecipients(ctx context.Context) ([]*storage.Recipient, error) {
	recipients := make([]*storage.Recipient, 0)
	res := s.Db.WithContext(ctx).Raw(recipientsQuery).Scan(&recipients)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to list recipients")
	}
	return recipients, nil
}

func (s *PostgresStore) ListRecipientsPage(ctx context.Context, offset int, limit int) ([]*storage.Recipient, error) {
	recipients := make([]*storage.Recipient, 0, limit)
	query := strings.TrimSpace(recipientsQuery) + ` limit @limit offset @offset`
	res := s.Db.WithContext(ctx).Raw(query, map[string]interface{}{
		"limit":  limit,
		"offset": offset,
	}).Scan(&recipients)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "failed to list recipients page (offset %d, limit %d)", offset, limit)
	}
	return recipients, nil
}

// InsertNotification stores a notification. Inserting an id that already exists is
// treated as done so a retried emit does not fail.
func (s *PostgresStore) InsertNotification(ctx context.Context, notification *storage.Notification) error {
	res := s.Db.WithContext(ctx).Model(&storage.Notification{}).Clauses(clause.Returning{}).Create(notification)
	if pg.IsDuplicateKeyError(res.Error) {
		s.Logger.Sugar().Debugw("Notification already stored", zap.String("notificationId", notification.Id))
		return nil
	}
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to insert notification for user '%s'", notification.UserId)
	}
	return nil
}

func (s *PostgresStore) ListNotificationsForUser(ctx context.Context, userId string, limit int) ([]*storage.Notification, error) {
	notifications := make([]*storage.Notification, 0)
	res := s.Db.WithContext(ctx).
		Model(&storage.Notification{}).
		Where("user_id = ?", userId).
		Order("created_at desc").
		Limit(limit).
		Find(&notifications)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "failed to list notifications for user '%s'", userId)
	}
	return notifications, nil
}

func (s *PostgresStore) InsertGasTopUpAudits(ctx context.Context, audits []*storage.GasTopUpAudit) error {
	if len(audits) == 0 {
		return nil
	}
	// one run's rows land together or not at all
	_, err := helpers.WrapTxAndCommit(ctx, s.Db, nil, func(tx *gorm.DB) (int64, error) {
		res := tx.Model(&storage.GasTopUpAudit{}).CreateInBatches(audits, 250)
		return res.RowsAffected, res.Error
	})
	if err != nil {
		return errors.Wrap(err, "failed to insert gas top-up audits")
	}
	return nil
}
