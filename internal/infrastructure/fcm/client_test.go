package fcm

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"push-relay/internal/domain"
)

var (
	errGone        = errors.New("registration token is not registered")
	errReservedKey = errors.New("Invalid data payload key: from")
	errBadToken    = errors.New("The registration token is not a valid FCM registration token")
)

func isInvalidArgument(err error) bool {
	return errors.Is(err, errReservedKey) || errors.Is(err, errBadToken)
}

type fakeSender struct {
	got  *messaging.MulticastMessage
	resp *messaging.BatchResponse
	err  error
}

func (f *fakeSender) SendEachForMulticast(_ context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.got = m
	return f.resp, f.err
}

func TestNewClientWithoutCredentialsIsDisabled(t *testing.T) {
	c, err := NewClient(context.Background(), Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	_, err = c.SendMulticast(context.Background(), []string{"t1"}, domain.PushMessage{Title: "a", Body: "b"})
	assert.ErrorIs(t, err, domain.ErrProviderDisabled)
}

func TestNewClientRejectsMalformedCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), Config{CredentialsJSON: "{not json"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestSendMulticastReportsFailures(t *testing.T) {
	sender := &fakeSender{resp: &messaging.BatchResponse{
		SuccessCount: 1,
		FailureCount: 2,
		Responses: []*messaging.SendResponse{
			{Success: true, MessageID: "m1"},
			{Success: false, Error: errGone},
			{Success: false, Error: errors.New("unavailable")},
		},
	}}
	c := newClient(sender, "alerts", zerolog.Nop())
	c.isUnregistered = func(err error) bool { return errors.Is(err, errGone) }

	res, err := c.SendMulticast(context.Background(), []string{"a", "b", "c"}, domain.PushMessage{
		Title: "Hi",
		Body:  "there",
		Data:  map[string]string{"type": "general"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessCount)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, domain.TokenFailure{TokenIndex: 1, Token: "b", Reason: errGone.Error(), Permanent: true}, res.Failures[0])
	assert.False(t, res.Failures[1].Permanent)

	require.NotNil(t, sender.got)
	assert.Equal(t, []string{"a", "b", "c"}, sender.got.Tokens)
	assert.Equal(t, "Hi", sender.got.Notification.Title)
	assert.Equal(t, "alerts", sender.got.Android.Notification.ChannelID)
	assert.Equal(t, "general", sender.got.Data["type"])
}

func TestSendMulticastPropagatesCallError(t *testing.T) {
	c := newClient(&fakeSender{err: errors.New("network down")}, "", zerolog.Nop())
	_, err := c.SendMulticast(context.Background(), []string{"a"}, domain.PushMessage{})
	assert.ErrorContains(t, err, "network down")
}

func TestSendMulticastRejectsOversizedBatch(t *testing.T) {
	c := newClient(&fakeSender{}, "", zerolog.Nop())
	_, err := c.SendMulticast(context.Background(), make([]string, MaxMulticastTokens+1), domain.PushMessage{})
	assert.Error(t, err)
}

func TestSendMulticastMessageLevelInvalidArgumentKeepsTokens(t *testing.T) {
	sender := &fakeSender{resp: &messaging.BatchResponse{
		FailureCount: 2,
		Responses: []*messaging.SendResponse{
			{Success: false, Error: errReservedKey},
			{Success: false, Error: errReservedKey},
		},
	}}
	c := newClient(sender, "", zerolog.Nop())
	c.isUnregistered = func(error) bool { return false }
	c.isInvalidArgument = isInvalidArgument

	res, err := c.SendMulticast(context.Background(), []string{"valid-1", "valid-2"}, domain.PushMessage{
		Title: "T",
		Body:  "B",
		Data:  map[string]string{"from": "alice"},
	})
	require.NoError(t, err)
	require.Len(t, res.Failures, 2)
	for _, f := range res.Failures {
		assert.False(t, f.Permanent, "token %s", f.Token)
	}
}

func TestSendMulticastTokenSpecificInvalidArgumentIsPermanent(t *testing.T) {
	tests := []struct {
		name      string
		responses []*messaging.SendResponse
	}{
		{
			name: "other token delivered",
			responses: []*messaging.SendResponse{
				{Success: true, MessageID: "m1"},
				{Success: false, Error: errReservedKey},
			},
		},
		{
			name: "reason names the token",
			responses: []*messaging.SendResponse{
				{Success: true, MessageID: "m1"},
				{Success: false, Error: errBadToken},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(&fakeSender{resp: &messaging.BatchResponse{SuccessCount: 1, FailureCount: 1, Responses: tt.responses}}, "", zerolog.Nop())
			c.isUnregistered = func(error) bool { return false }
			c.isInvalidArgument = isInvalidArgument

			res, err := c.SendMulticast(context.Background(), []string{"good", "broken"}, domain.PushMessage{Title: "T", Body: "B"})
			require.NoError(t, err)
			require.Len(t, res.Failures, 1)
			assert.Equal(t, "broken", res.Failures[0].Token)
			assert.True(t, res.Failures[0].Permanent)
		})
	}
}

func TestSendMulticastSingleMalformedTokenIsPermanent(t *testing.T) {
	c := newClient(&fakeSender{resp: &messaging.BatchResponse{
		FailureCount: 1,
		Responses:    []*messaging.SendResponse{{Success: false, Error: errBadToken}},
	}}, "", zerolog.Nop())
	c.isUnregistered = func(error) bool { return false }
	c.isInvalidArgument = isInvalidArgument

	res, err := c.SendMulticast(context.Background(), []string{"garbage"}, domain.PushMessage{Title: "T", Body: "B"})
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.True(t, res.Failures[0].Permanent)
}
