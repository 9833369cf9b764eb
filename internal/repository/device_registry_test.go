package repository

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"push-relay/internal/domain"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time { return c.t }

func (c *stepClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRegisterDeviceCreatesActiveEntry(t *testing.T) {
	r := NewDeviceRegistry()
	require.NoError(t, r.RegisterDevice("u1", "d1", "android", ""))

	status := r.Status("u1")
	require.Len(t, status.Devices, 1)
	assert.Equal(t, "d1", status.Devices[0].DeviceID)
	assert.Equal(t, "android", status.Devices[0].Platform)
	assert.True(t, status.Devices[0].Active)
	assert.Equal(t, 1, status.ActiveCount)
}

func TestRegisterDeviceValidation(t *testing.T) {
	r := NewDeviceRegistry()

	err := r.RegisterDevice("", "d1", "android", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = r.RegisterDevice("u1", " ", "android", "")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "deviceId", verr.Field)

	assert.Equal(t, 0, r.Stats().Users)
}

func TestReRegisterOverwritesWithoutDuplicating(t *testing.T) {
	clock := &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := NewDeviceRegistryWithClock(clock.now)

	require.NoError(t, r.RegisterDevice("u1", "d1", "android", "tok-a"))
	first := r.Status("u1").Devices[0].LastSeen

	clock.advance(time.Minute)
	require.NoError(t, r.RegisterDevice("u1", "d1", "ios", "tok-b"))

	status := r.Status("u1")
	require.Len(t, status.Devices, 1)
	assert.Equal(t, "ios", status.Devices[0].Platform)
	assert.True(t, status.Devices[0].LastSeen.After(first))

	targets := r.ResolveTargets("u1")
	require.Len(t, targets, 1)
	assert.Equal(t, "tok-b", targets[0].PushToken)
}

func TestReRegisterWithoutTokenKeepsStoredToken(t *testing.T) {
	r := NewDeviceRegistry()
	require.NoError(t, r.RegisterDevice("u1", "d1", "android", "tok"))
	require.NoError(t, r.RegisterDevice("u1", "d1", "android", ""))

	targets := r.ResolveTargets("u1")
	require.Len(t, targets, 1)
	assert.Equal(t, "tok", targets[0].PushToken)
}

func TestRemoveDevice(t *testing.T) {
	r := NewDeviceRegistry()

	// never registered: no-op
	r.RemoveDevice("ghost", "d1")
	assert.Equal(t, domain.RegistryStats{}, r.Stats())

	require.NoError(t, r.RegisterDevice("u1", "d1", "android", ""))
	require.NoError(t, r.RegisterDevice("u1", "d2", "android", ""))

	r.RemoveDevice("u1", "missing")
	assert.Len(t, r.Status("u1").Devices, 2)

	r.RemoveDevice("u1", "d1")
	assert.Len(t, r.Status("u1").Devices, 1)

	r.RemoveDevice("u1", "d2")
	assert.Empty(t, r.Status("u1").Devices)
	assert.Equal(t, 0, r.Stats().Users)
}

func TestUnknownUserQueriesAreEmpty(t *testing.T) {
	r := NewDeviceRegistry()

	status := r.Status("nobody")
	assert.NotNil(t, status.Devices)
	assert.Empty(t, status.Devices)
	assert.Equal(t, 0, status.ActiveCount)
	assert.Empty(t, r.ResolveTargets("nobody"))
	assert.False(t, r.InvalidateToken("nobody", "tok"))
}

func TestInvalidateTokenClearsFirstMatchOnly(t *testing.T) {
	r := NewDeviceRegistry()
	require.NoError(t, r.RegisterDevice("u1", "a", "android", "shared"))
	require.NoError(t, r.RegisterDevice("u1", "b", "android", "shared"))
	require.NoError(t, r.RegisterDevice("u2", "a", "android", "shared"))

	assert.True(t, r.InvalidateToken("u1", "shared"))

	targets := r.ResolveTargets("u1")
	require.Len(t, targets, 2)
	assert.Equal(t, "", targets[0].PushToken)
	assert.Equal(t, "shared", targets[1].PushToken)
	assert.Equal(t, "shared", r.ResolveTargets("u2")[0].PushToken, "other users are untouched")
	assert.False(t, r.InvalidateToken("u1", ""))
}

func TestSweepStaleBoundary(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := &stepClock{t: now.Add(-time.Hour)}
	r := NewDeviceRegistryWithClock(clock.now)

	require.NoError(t, r.RegisterDevice("u1", "exact", "android", ""))
	clock.t = now.Add(-time.Hour - time.Nanosecond)
	require.NoError(t, r.RegisterDevice("u1", "older", "android", ""))
	clock.t = now.Add(-2 * time.Hour)
	require.NoError(t, r.RegisterDevice("u2", "gone", "android", ""))

	report := r.SweepStale(time.Hour, now)
	assert.Equal(t, domain.SweepReport{DevicesRemoved: 2, UsersRemoved: 1}, report)

	status := r.Status("u1")
	require.Len(t, status.Devices, 1)
	assert.Equal(t, "exact", status.Devices[0].DeviceID)
}

func TestStats(t *testing.T) {
	r := NewDeviceRegistry()
	require.NoError(t, r.RegisterDevice("u1", "d1", "android", "t1"))
	require.NoError(t, r.RegisterDevice("u1", "d2", "ios", ""))
	require.NoError(t, r.RegisterDevice("u2", "d1", "ios", "t2"))

	assert.Equal(t, domain.RegistryStats{Users: 2, Devices: 3, WithToken: 2}, r.Stats())
}

func TestConcurrentAccess(t *testing.T) {
	r := NewDeviceRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i%2)
			for j := 0; j < 100; j++ {
				dev := fmt.Sprintf("d%d", j%5)
				_ = r.RegisterDevice(user, dev, "android", "tok")
				r.ResolveTargets(user)
				r.InvalidateToken(user, "tok")
				if j%7 == 0 {
					r.RemoveDevice(user, dev)
				}
				r.SweepStale(time.Hour, time.Now())
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, r.Stats().Users, 2)
}
