package messages

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// conversationScanWindow bounds how many recent rows feed the inbox view.
	conversationScanWindow = 500
	// threadWindow bounds a thread page; messages are polled, not pushed.
	threadWindow = 100
)

var errMissingDatabase = errors.New("messages: database handle is required")

// ServiceConfig bundles the message service dependencies.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service stores and reads direct messages between shop customers.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the message service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

// Send persists one message.
func (s *Service) Send(ctx context.Context, shop, senderID, recipientID, body string) (Message, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return Message{}, ErrEmptyMessage
	}
	if len(trimmed) > maxMessageBodyLength {
		return Message{}, ErrMessageTooLong
	}
	if senderID == recipientID {
		return Message{}, ErrSelfMessage
	}

	message := Message{
		Shop:        shop,
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        trimmed,
		CreatedAt:   s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return Message{}, err
	}
	return message, nil
}

// Conversations lists the customer's exchanges, newest first, one entry per
// partner. The reduction happens over a bounded recent window rather than a
// per-partner query fan-out.
func (s *Service) Conversations(ctx context.Context, shop, customerID string) ([]Conversation, error) {
	var rows []Message
	err := s.db.WithContext(ctx).
		Where("shop = ? AND (sender_id = ? OR recipient_id = ?)", shop, customerID, customerID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(conversationScanWindow).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	conversations := make([]Conversation, 0)
	seen := make(map[string]struct{})
	for _, row := range rows {
		partner := row.SenderID
		if partner == customerID {
			partner = row.RecipientID
		}
		if _, ok := seen[partner]; ok {
			continue
		}
		seen[partner] = struct{}{}
		conversations = append(conversations, Conversation{
			PartnerID:  partner,
			LastBody:   row.Body,
			LastAt:     row.CreatedAt,
			LastFromMe: row.SenderID == customerID,
		})
	}
	return conversations, nil
}

// Thread returns the recent messages between two customers in chronological
// order.
func (s *Service) Thread(ctx context.Context, shop, customerID, partnerID string) ([]Message, error) {
	var rows []Message
	err := s.db.WithContext(ctx).
		Where("shop = ? AND ((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?))",
			shop, customerID, partnerID, partnerID, customerID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(threadWindow).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	// Stored newest-first for the limit; rendered oldest-first.
	for left, right := 0, len(rows)-1; left < right; left, right = left+1, right-1 {
		rows[left], rows[right] = rows[right], rows[left]
	}
	return rows, nil
}
