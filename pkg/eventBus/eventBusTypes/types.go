package eventBusTypes

import (
	"context"
	"sync"
	"time"

	"github.com/lpstake/lpstake/pkg/storage"
)

const (
	Event_NotificationCreated = "notification.created"
	Event_GasTopUpCompleted   = "gasTopUp.completed"
)

type Event struct {
	Name string
	Data any
}

type ConsumerId string

type Consumer struct {
	Id      ConsumerId
	Context context.Context
	Channel chan *Event
}

type ConsumerList struct {
	mu        sync.Mutex
	consumers []*Consumer
}

func NewConsumerList() *ConsumerList {
	return &ConsumerList{
		consumers: make([]*Consumer, 0),
	}
}

func (cl *ConsumerList) Add(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.consumers = append(cl.consumers, consumer)
}

func (cl *ConsumerList) Remove(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for i, c := range cl.consumers {
		if c.Id == consumer.Id {
			cl.consumers = append(cl.consumers[:i], cl.consumers[i+1:]...)
			break
		}
	}
}

// GetAll returns a snapshot so callers can iterate while consumers come and go.
func (cl *ConsumerList) GetAll() []*Consumer {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	consumers := make([]*Consumer, len(cl.consumers))
	copy(consumers, cl.consumers)
	return consumers
}

type IEventBus interface {
	Subscribe(consumer *Consumer)
	Unsubscribe(consumer *Consumer)
	Publish(event *Event)
}

type NotificationCreatedData struct {
	Notification *storage.Notification `json:"notification"`
}

type GasTopUpCompletedData struct {
	RunId         string    `json:"runId"`
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
	TotalChecked  int       `json:"totalChecked"`
	TotalToppedUp int       `json:"totalToppedUp"`
	TotalErrors   int       `json:"totalErrors"`
	CompletedAt   time.Time `json:"completedAt"`
}
