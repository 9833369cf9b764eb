package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"push-relay/internal/domain"
)

func TestNotificationLogKeepsNewest(t *testing.T) {
	l := NewInMemoryNotificationLog(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Deliver(ctx, []domain.Notification{{ID: fmt.Sprintf("n%d", i), UserID: "u1"}}))
	}
	assert.Equal(t, 3, l.Len())

	got, err := l.Recent(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "n4", got[0].ID)
	assert.Equal(t, "n2", got[2].ID)
}

func TestNotificationLogFiltersByUser(t *testing.T) {
	l := NewInMemoryNotificationLog(0)
	ctx := context.Background()
	require.NoError(t, l.Deliver(ctx, []domain.Notification{
		{ID: "a", UserID: "u1"},
		{ID: "b", UserID: "u2"},
		{ID: "c", UserID: "u1"},
	}))

	got, err := l.Recent(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)

	all, err := l.Recent(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := l.Recent(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
