package messages

import (
	"errors"
	"time"
)

const maxMessageBodyLength = 1000

var (
	// ErrEmptyMessage indicates a message with no usable text.
	ErrEmptyMessage = errors.New("messages: body must not be empty")
	// ErrMessageTooLong indicates the body exceeds the storage bound.
	ErrMessageTooLong = errors.New("messages: body exceeds 1000 characters")
	// ErrSelfMessage indicates a customer messaging themselves.
	ErrSelfMessage = errors.New("messages: cannot message yourself")
)

// Message is one direct message between two customers of a shop. Delivery is
// by page reload; nothing is pushed.
type Message struct {
	ID          uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Shop        string    `gorm:"column:shop;size:190;not null;index:idx_messages_shop_time,priority:1"`
	SenderID    string    `gorm:"column:sender_id;size:190;not null;index"`
	RecipientID string    `gorm:"column:recipient_id;size:190;not null;index"`
	Body        string    `gorm:"column:body;type:text;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;autoCreateTime;index:idx_messages_shop_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Message) TableName() string {
	return "direct_messages"
}

// Conversation summarizes the latest exchange with one partner.
type Conversation struct {
	PartnerID   string
	PartnerName string
	LastBody    string
	LastAt      time.Time
	LastFromMe  bool
}
