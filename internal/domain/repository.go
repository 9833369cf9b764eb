package domain

import (
	"context"
	"time"
)

// DeviceRegistry tracks which devices belong to which users.
type DeviceRegistry interface {
	RegisterDevice(userID, deviceID, platform, pushToken string) error
	RemoveDevice(userID, deviceID string)
	Status(userID string) UserStatus
	ResolveTargets(userID string) []Target
	InvalidateToken(userID, token string) bool
	SweepStale(staleAfter time.Duration, now time.Time) SweepReport
	Stats() RegistryStats
}

// PushProvider is the external push-messaging service.
type PushProvider interface {
	Enabled() bool
	MaxBatchSize() int
	SendMulticast(ctx context.Context, tokens []string, msg PushMessage) (*SendResult, error)
}

// NotificationSink receives every generated notification record.
type NotificationSink interface {
	Name() string
	Deliver(ctx context.Context, records []Notification) error
}

// NotificationLog keeps generated notification records for later inspection.
type NotificationLog interface {
	NotificationSink
	Recent(ctx context.Context, userID string, limit int) ([]Notification, error)
}
