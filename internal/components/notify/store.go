package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotificationNotFound is returned for unknown or foreign notifications.
var ErrNotificationNotFound = errors.New("notification not found")

// Notification is a delivered event persisted for the recipient's inbox.
type Notification struct {
	ID        string         `gorm:"primaryKey" json:"id"`
	UserID    int64          `gorm:"index;not null" json:"user_id"`
	Type      string         `gorm:"not null" json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Payload   datatypes.JSON `json:"payload"`
	Read      bool           `gorm:"index;not null;default:false" json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}

// StoreNotifier persists each event as a notification row.
type StoreNotifier struct {
	db *gorm.DB
}

// NewStoreNotifier creates a database-backed notifier.
func NewStoreNotifier(db *gorm.DB) *StoreNotifier {
	return &StoreNotifier{db: db}
}

func (s *StoreNotifier) Notify(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev.Payload)
	if err != nil {
		raw = []byte("{}")
	}
	n := &Notification{
		ID:        uuid.New().String(),
		UserID:    ev.UserID,
		Type:      ev.Type,
		Title:     ev.Title,
		Body:      ev.Body,
		Payload:   datatypes.JSON(raw),
		CreatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Create(n).Error
}

// List returns a user's notifications, newest first.
func (s *StoreNotifier) List(ctx context.Context, userID int64, unreadOnly bool) ([]Notification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	var out []Notification
	if err := q.Order("created_at DESC").Limit(100).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead marks one of the user's notifications as read.
func (s *StoreNotifier) MarkRead(ctx context.Context, id string, userID int64) error {
	result := s.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// DeleteReadBefore purges read notifications older than cutoff and
// returns how many were removed. Used by the janitor.
func (s *StoreNotifier) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Delete(&Notification{}, "read = ? AND created_at < ?", true, cutoff)
	return result.RowsAffected, result.Error
}

var _ Notifier = (*StoreNotifier)(nil)
