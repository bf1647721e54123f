package rabbitmq

import (
	"context"
	"time"

	"github.com/lpstake/lpstake/pkg/eventBus/eventBusTypes"
	"go.uber.org/zap"
)

const (
	forwarderConsumerId = "rabbitmq-forwarder"
	forwarderBuffer     = 1000
	publishTimeout      = 5 * time.Second
)

// Forwarder relays event bus events to RabbitMQ using the event name as routing key.
type Forwarder struct {
	publisher Publisher
	eventBus  eventBusTypes.IEventBus
	logger    *zap.Logger
	consumer  *eventBusTypes.Consumer
}

func NewForwarder(publisher Publisher, eb eventBusTypes.IEventBus, l *zap.Logger) *Forwarder {
	return &Forwarder{
		publisher: publisher,
		eventBus:  eb,
		logger:    l,
	}
}

// Start subscribes to the bus and forwards events until ctx is done.
func (f *Forwarder) Start(ctx context.Context) {
	f.consumer = &eventBusTypes.Consumer{
		Id:      forwarderConsumerId,
		Context: ctx,
		Channel: make(chan *eventBusTypes.Event, forwarderBuffer),
	}
	f.eventBus.Subscribe(f.consumer)

	go func() {
		defer f.eventBus.Unsubscribe(f.consumer)
		for {
			select {
			case <-ctx.Done():
				f.logger.Sugar().Infow("Stopping rabbitmq forwarder")
				return
			case event := <-f.consumer.Channel:
				f.forward(ctx, event)
			}
		}
	}()
}

func (f *Forwarder) forward(ctx context.Context, event *eventBusTypes.Event) {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := f.publisher.Publish(pubCtx, event.Name, event.Data); err != nil {
		f.logger.Sugar().Errorw("Failed to forward event",
			zap.String("eventName", event.Name),
			zap.Error(err),
		)
	}
}
