package domain

import "time"

// DefaultNotificationType is used when a request carries no type.
const DefaultNotificationType = "general"

// Notification is the record produced for every device a notification addresses,
// whether or not a push provider delivered it.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	DeviceID  string         `json:"deviceId"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Platform  string         `json:"platform"`
}

// PushMessage is the provider payload. Data values are already strings.
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// TokenFailure reports a single token the provider did not accept.
type TokenFailure struct {
	TokenIndex int    `json:"tokenIndex"`
	Token      string `json:"-"`
	Reason     string `json:"reason"`
	// Permanent is set for unregistered or malformed tokens.
	Permanent bool `json:"permanent"`
}

// SendResult is the synchronous outcome of one multicast call.
type SendResult struct {
	SuccessCount int
	Failures     []TokenFailure
}

// PushSummary aggregates provider outcomes over all batches of a dispatch.
type PushSummary struct {
	Attempted   int `json:"attempted"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	Invalidated int `json:"invalidated"`
	Batches     int `json:"batches"`
	BatchErrors int `json:"batchErrors"`
}

// DispatchResult is returned by single-user dispatch.
type DispatchResult struct {
	SentCount     int
	Notifications []Notification
	Push          *PushSummary
}

// BulkDispatchResult is returned by multi-user dispatch.
type BulkDispatchResult struct {
	TotalUsers    int
	SentToDevices int
	Notifications []Notification
	Push          *PushSummary
}
