package fcm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"push-relay/internal/domain"
)

// MaxMulticastTokens is the FCM limit for one SendEachForMulticast call.
const MaxMulticastTokens = 500

type Config struct {
	CredentialsPath  string
	CredentialsJSON  string
	ProjectID        string
	AndroidChannelID string
}

// multicastSender is the subset of *messaging.Client the relay uses.
type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type Client struct {
	sender            multicastSender
	channelID         string
	isUnregistered    func(error) bool
	isInvalidArgument func(error) bool
	log               zerolog.Logger
}

// NewClient initializes Firebase Cloud Messaging.
// Without credentials it returns a disabled client and no error, so the relay still starts.
func NewClient(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	log = log.With().Str("component", "fcm").Logger()

	var opt option.ClientOption
	switch {
	case cfg.CredentialsPath != "":
		opt = option.WithCredentialsFile(cfg.CredentialsPath)
	case cfg.CredentialsJSON != "":
		if !json.Valid([]byte(cfg.CredentialsJSON)) {
			return nil, errors.New("firebase credentials JSON is malformed")
		}
		opt = option.WithCredentialsJSON([]byte(cfg.CredentialsJSON))
	default:
		log.Warn().Msg("no Firebase credentials found, push delivery disabled")
		return newDisabledClient(log), nil
	}

	var appCfg *firebase.Config
	if cfg.ProjectID != "" {
		appCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, appCfg, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	log.Info().Msg("Firebase Cloud Messaging initialized")
	return newClient(client, cfg.AndroidChannelID, log), nil
}

func newClient(sender multicastSender, channelID string, log zerolog.Logger) *Client {
	if channelID == "" {
		channelID = "default"
	}
	return &Client{
		sender:            sender,
		channelID:         channelID,
		isUnregistered:    messaging.IsUnregistered,
		isInvalidArgument: messaging.IsInvalidArgument,
		log:               log,
	}
}

func newDisabledClient(log zerolog.Logger) *Client {
	return &Client{log: log}
}

// Enabled returns true if the messaging client is initialized.
func (c *Client) Enabled() bool {
	return c != nil && c.sender != nil
}

func (c *Client) MaxBatchSize() int { return MaxMulticastTokens }

// SendMulticast sends msg to every token in one call and reports per-token failures.
func (c *Client) SendMulticast(ctx context.Context, tokens []string, msg domain.PushMessage) (*domain.SendResult, error) {
	if !c.Enabled() {
		return nil, domain.ErrProviderDisabled
	}
	if len(tokens) == 0 {
		return &domain.SendResult{}, nil
	}
	if len(tokens) > MaxMulticastTokens {
		return nil, fmt.Errorf("%d tokens exceeds multicast limit of %d", len(tokens), MaxMulticastTokens)
	}

	response, err := c.sender.SendEachForMulticast(ctx, c.buildMessage(tokens, msg))
	if err != nil {
		return nil, fmt.Errorf("error sending multicast: %w", err)
	}

	result := &domain.SendResult{SuccessCount: response.SuccessCount}
	for i, resp := range response.Responses {
		if resp == nil || resp.Success {
			continue
		}
		reason := "unknown error"
		if resp.Error != nil {
			reason = resp.Error.Error()
		}
		result.Failures = append(result.Failures, domain.TokenFailure{
			TokenIndex: i,
			Token:      tokens[i],
			Reason:     reason,
			Permanent:  resp.Error != nil && c.isPermanent(resp.Error, response.Responses),
		})
	}

	c.log.Debug().
		Int("success", response.SuccessCount).
		Int("failure", response.FailureCount).
		Msg("multicast sent")
	return result, nil
}

func (c *Client) buildMessage(tokens []string, msg domain.PushMessage) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: c.channelID,
				Priority:  messaging.PriorityHigh,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}
}

// isPermanent reports whether err means the token itself will never be accepted.
// UNREGISTERED always does. INVALID_ARGUMENT is also raised for message-level
// problems (reserved data keys, oversized payloads), so it only counts when the
// same message reached another token in the batch or the reason names the
// registration token.
func (c *Client) isPermanent(err error, batch []*messaging.SendResponse) bool {
	if c.isUnregistered(err) {
		return true
	}
	if !c.isInvalidArgument(err) {
		return false
	}
	for _, resp := range batch {
		if resp != nil && resp.Success {
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "registration token")
}
