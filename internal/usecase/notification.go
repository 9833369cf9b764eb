package usecase

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"push-relay/internal/domain"
)

// SendRequest addresses one user.
type SendRequest struct {
	UserID string
	Title  string
	Body   string
	Data   map[string]any
	Type   string
}

// BulkSendRequest addresses several users with the same message.
type BulkSendRequest struct {
	UserIDs []string
	Title   string
	Body    string
	Data    map[string]any
	Type    string
}

type DispatcherConfig struct {
	// BatchSize caps tokens per provider call; clamped to the provider maximum.
	BatchSize       int
	ProviderTimeout time.Duration
	// RatePerSec paces provider calls; 0 disables pacing.
	RatePerSec float64
}

// NotificationUsecase resolves notification requests into provider calls and
// notification records.
type NotificationUsecase struct {
	registry  domain.DeviceRegistry
	provider  domain.PushProvider
	sinks     []domain.NotificationSink
	limiter   *rate.Limiter
	batchSize int
	timeout   time.Duration
	now       func() time.Time
	newID     func() string
	log       zerolog.Logger
}

func NewNotificationUsecase(
	registry domain.DeviceRegistry,
	provider domain.PushProvider,
	cfg DispatcherConfig,
	log zerolog.Logger,
	sinks ...domain.NotificationSink,
) *NotificationUsecase {
	batchSize := cfg.BatchSize
	if provider != nil && provider.MaxBatchSize() > 0 && (batchSize <= 0 || batchSize > provider.MaxBatchSize()) {
		batchSize = provider.MaxBatchSize()
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	uc := &NotificationUsecase{
		registry:  registry,
		provider:  provider,
		sinks:     sinks,
		batchSize: batchSize,
		timeout:   timeout,
		now:       time.Now,
		newID:     uuid.NewString,
		log:       log.With().Str("component", "dispatcher").Logger(),
	}
	if cfg.RatePerSec > 0 {
		burst := int(cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		uc.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return uc
}

// PushEnabled reports whether notifications reach a real provider.
func (uc *NotificationUsecase) PushEnabled() bool {
	return uc.provider != nil && uc.provider.Enabled()
}

// SendToUser notifies every device of one user. A user without devices is not an error.
func (uc *NotificationUsecase) SendToUser(ctx context.Context, req SendRequest) (*domain.DispatchResult, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, domain.NewValidationError("userId", "userId is required")
	}
	if err := validateMessage(req.Title, req.Body); err != nil {
		return nil, err
	}
	notificationType := normalizeType(req.Type)
	msg := BuildPushMessage(req.Title, req.Body, notificationType, req.Data)
	if err := ValidatePushMessage(msg); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	targets := uc.registry.ResolveTargets(req.UserID)
	records := uc.buildRecords(req.UserID, targets, req.Title, req.Body, req.Data, notificationType)
	result := &domain.DispatchResult{
		SentCount:     len(targets),
		Notifications: records,
	}

	tokens, owners := collectTokens(nil, nil, req.UserID, targets)
	if len(tokens) > 0 && uc.PushEnabled() {
		result.Push = uc.push(ctx, tokens, owners, msg)
	}

	uc.deliver(ctx, records)

	uc.log.Info().
		Str("user_id", req.UserID).
		Int("devices", len(targets)).
		Int("tokens", len(tokens)).
		Str("type", notificationType).
		Msg("notification dispatched")
	return result, nil
}

// SendToUsers notifies every device of several users, batching provider calls.
func (uc *NotificationUsecase) SendToUsers(ctx context.Context, req BulkSendRequest) (*domain.BulkDispatchResult, error) {
	if len(req.UserIDs) == 0 {
		return nil, domain.NewValidationError("userIds", "userIds must be a non-empty array")
	}
	if err := validateMessage(req.Title, req.Body); err != nil {
		return nil, err
	}
	notificationType := normalizeType(req.Type)
	msg := BuildPushMessage(req.Title, req.Body, notificationType, req.Data)
	if err := ValidatePushMessage(msg); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	result := &domain.BulkDispatchResult{
		TotalUsers:    len(req.UserIDs),
		Notifications: make([]domain.Notification, 0),
	}

	var (
		tokens []string
		owners map[string][]string
		seen   = make(map[string]struct{}, len(req.UserIDs))
	)
	for _, userID := range req.UserIDs {
		if userID == "" {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		targets := uc.registry.ResolveTargets(userID)
		result.SentToDevices += len(targets)
		result.Notifications = append(result.Notifications,
			uc.buildRecords(userID, targets, req.Title, req.Body, req.Data, notificationType)...)
		tokens, owners = collectTokens(tokens, owners, userID, targets)
	}

	if len(tokens) > 0 && uc.PushEnabled() {
		result.Push = uc.push(ctx, tokens, owners, msg)
	}

	uc.deliver(ctx, result.Notifications)

	uc.log.Info().
		Int("users", result.TotalUsers).
		Int("devices", result.SentToDevices).
		Int("tokens", len(tokens)).
		Str("type", notificationType).
		Msg("bulk notification dispatched")
	return result, nil
}

// push sends tokens in batches and invalidates tokens the provider rejects permanently.
// Batch failures are logged and counted; they never abort the remaining batches.
func (uc *NotificationUsecase) push(ctx context.Context, tokens []string, owners map[string][]string, msg domain.PushMessage) *domain.PushSummary {
	summary := &domain.PushSummary{Attempted: len(tokens)}

	for start := 0; start < len(tokens); start += uc.batchSize {
		batch := tokens[start:min(start+uc.batchSize, len(tokens))]
		summary.Batches++

		res, err := uc.sendBatch(ctx, batch, msg)
		if err != nil {
			perr := &domain.ProviderError{Batch: summary.Batches, Tokens: len(batch), Err: err}
			uc.log.Warn().Err(perr).Msg("push batch failed")
			summary.BatchErrors++
			summary.Failed += len(batch)
			continue
		}

		summary.Succeeded += res.SuccessCount
		summary.Failed += len(res.Failures)
		for _, f := range res.Failures {
			if !f.Permanent || f.TokenIndex < 0 || f.TokenIndex >= len(batch) {
				continue
			}
			token := batch[f.TokenIndex]
			for _, userID := range owners[token] {
				for uc.registry.InvalidateToken(userID, token) {
					summary.Invalidated++
					uc.log.Info().Str("user_id", userID).Str("reason", f.Reason).Msg("push token invalidated")
				}
			}
		}
	}
	return summary
}

func (uc *NotificationUsecase) sendBatch(ctx context.Context, batch []string, msg domain.PushMessage) (*domain.SendResult, error) {
	if uc.limiter != nil {
		if err := uc.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	return uc.provider.SendMulticast(ctx, batch, msg)
}

func (uc *NotificationUsecase) buildRecords(userID string, targets []domain.Target, title, body string, data map[string]any, notificationType string) []domain.Notification {
	now := uc.now()
	records := make([]domain.Notification, 0, len(targets))
	for _, t := range targets {
		d := maps.Clone(data)
		if d == nil {
			d = map[string]any{}
		}
		records = append(records, domain.Notification{
			ID:        uc.newID(),
			UserID:    userID,
			DeviceID:  t.DeviceID,
			Title:     title,
			Body:      body,
			Data:      d,
			Type:      notificationType,
			Timestamp: now,
			Platform:  t.Platform,
		})
	}
	return records
}

// deliver hands records to every sink. Sink errors are logged only.
func (uc *NotificationUsecase) deliver(ctx context.Context, records []domain.Notification) {
	if len(records) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	for _, sink := range uc.sinks {
		if err := sink.Deliver(ctx, records); err != nil {
			uc.log.Warn().Err(err).Str("sink", sink.Name()).Int("records", len(records)).Msg("notification sink failed")
		}
	}
}

// collectTokens appends the distinct tokens of targets and records their owner.
func collectTokens(tokens []string, owners map[string][]string, userID string, targets []domain.Target) ([]string, map[string][]string) {
	if owners == nil {
		owners = make(map[string][]string)
	}
	for _, t := range targets {
		if t.PushToken == "" {
			continue
		}
		users, known := owners[t.PushToken]
		if !known {
			tokens = append(tokens, t.PushToken)
		}
		if len(users) == 0 || users[len(users)-1] != userID {
			owners[t.PushToken] = append(users, userID)
		}
	}
	return tokens, owners
}

func validateMessage(title, body string) error {
	if strings.TrimSpace(title) == "" {
		return domain.NewValidationError("title", "title is required")
	}
	if strings.TrimSpace(body) == "" {
		return domain.NewValidationError("body", "body is required")
	}
	return nil
}
