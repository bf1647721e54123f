package storage

import (
	"context"
	"time"
)

// RecipientStore enumerates users that have a linked wallet.
type RecipientStore interface {
	// ListRecipients returns every user with a non-empty wallet address.
	ListRecipients(ctx context.Context) ([]*Recipient, error)

	// ListRecipientsPage returns one page of ListRecipients ordered by user id ascending.
	ListRecipientsPage(ctx context.Context, offset int, limit int) ([]*Recipient, error)
}

type NotificationStore interface {
	InsertNotification(ctx context.Context, notification *Notification) error
	ListNotificationsForUser(ctx context.Context, userId string, limit int) ([]*Notification, error)
}

type GasTopUpAuditStore interface {
	InsertGasTopUpAudits(ctx context.Context, audits []*GasTopUpAudit) error
}

type Store interface {
	RecipientStore
	NotificationStore
	GasTopUpAuditStore
}

// Tables.
type User struct {
	Id            string `gorm:"type:uuid;primaryKey"`
	Email         string
	FullName      *string
	WalletId      *string
	WalletAddress *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const NotificationType_Reward = "reward"

type NotificationMetadata struct {
	Period        string    `json:"period"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	RewardEvents  int       `json:"rewardEvents"`
	WalletAddress string    `json:"walletAddress"`
}

type Notification struct {
	Id        string               `gorm:"type:uuid;primaryKey" json:"id"`
	UserId    string               `gorm:"type:uuid" json:"userId"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Type      string               `json:"type"`
	Metadata  NotificationMetadata `gorm:"type:jsonb;serializer:json" json:"metadata"`
	Read      bool                 `json:"read"`
	CreatedAt time.Time            `json:"createdAt"`
}

type GasTopUpAudit struct {
	Id             uint64 `gorm:"primaryKey;autoIncrement"`
	RunId          string `gorm:"type:uuid"`
	UserId         string
	WalletId       string
	WalletAddress  string
	BalanceWei     string `gorm:"type:numeric"`
	NeededWei      string `gorm:"type:numeric"`
	TopUpPerformed bool
	TxHash         *string
	Error          *string
	CreatedAt      time.Time
}

// Recipient is a projection of User that is eligible for rewards and gas top-ups.
type Recipient struct {
	UserId        string
	WalletId      string
	WalletAddress string
	Email         string
	FullName      *string
}
