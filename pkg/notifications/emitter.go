package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lpstake/lpstake/pkg/eventBus/eventBusTypes"
	"github.com/lpstake/lpstake/pkg/storage"
	"go.uber.org/zap"
)

var ErrMissingUserId = errors.New("notification has no user id")

// Emitter persists notifications and announces them on the event bus.
type Emitter struct {
	store    storage.NotificationStore
	eventBus eventBusTypes.IEventBus
	logger   *zap.Logger
	now      func() time.Time
}

func NewEmitter(store storage.NotificationStore, eb eventBusTypes.IEventBus, l *zap.Logger) *Emitter {
	return &Emitter{
		store:    store,
		eventBus: eb,
		logger:   l,
		now:      time.Now,
	}
}

func (e *Emitter) Emit(ctx context.Context, notification *storage.Notification) error {
	if notification.UserId == "" {
		return ErrMissingUserId
	}
	if notification.Id == "" {
		notification.Id = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = e.now().UTC()
	}
	notification.Read = false

	if err := e.store.InsertNotification(ctx, notification); err != nil {
		return err
	}
	e.logger.Sugar().Debugw("Emitted notification",
		zap.String("notificationId", notification.Id),
		zap.String("userId", notification.UserId),
		zap.String("type", notification.Type),
	)

	if e.eventBus != nil {
		e.eventBus.Publish(&eventBusTypes.Event{
			Name: eventBusTypes.Event_NotificationCreated,
			Data: &eventBusTypes.NotificationCreatedData{Notification: notification},
		})
	}
	return nil
}
