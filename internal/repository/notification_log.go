package repository

import (
	"context"
	"sync"

	"push-relay/internal/domain"
)

const defaultNotificationLogSize = 1000

// InMemoryNotificationLog keeps the most recent notification records in a bounded buffer.
type InMemoryNotificationLog struct {
	records []domain.Notification
	limit   int
	mu      sync.RWMutex
}

func NewInMemoryNotificationLog(limit int) *InMemoryNotificationLog {
	if limit <= 0 {
		limit = defaultNotificationLogSize
	}
	return &InMemoryNotificationLog{
		records: make([]domain.Notification, 0, limit),
		limit:   limit,
	}
}

func (l *InMemoryNotificationLog) Name() string { return "memory-log" }

// Deliver appends records, dropping the oldest once the buffer is full.
func (l *InMemoryNotificationLog) Deliver(_ context.Context, records []domain.Notification) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, records...)
	if over := len(l.records) - l.limit; over > 0 {
		kept := make([]domain.Notification, l.limit)
		copy(kept, l.records[over:])
		l.records = kept
	}
	return nil
}

// Recent returns up to limit records for userID, newest first.
// An empty userID matches every user.
func (l *InMemoryNotificationLog) Recent(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]domain.Notification, 0)
	for i := len(l.records) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		if userID != "" && l.records[i].UserID != userID {
			continue
		}
		result = append(result, l.records[i])
	}
	return result, nil
}

// Len returns the number of buffered records.
func (l *InMemoryNotificationLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
