package repository

import (
	"sort"
	"strings"
	"sync"
	"time"

	"push-relay/internal/domain"
)

// DeviceRegistry keeps devices per user in memory.
// A user key exists only while it owns at least one device.
type DeviceRegistry struct {
	users map[string]map[string]*domain.Device // userID -> deviceID -> device
	mu    sync.RWMutex
	now   func() time.Time
}

func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{
		users: make(map[string]map[string]*domain.Device),
		now:   time.Now,
	}
}

// NewDeviceRegistryWithClock is used by tests that need deterministic lastSeen values.
func NewDeviceRegistryWithClock(now func() time.Time) *DeviceRegistry {
	r := NewDeviceRegistry()
	if now != nil {
		r.now = now
	}
	return r
}

// RegisterDevice adds or refreshes a device. An empty pushToken keeps the stored one.
func (r *DeviceRegistry) RegisterDevice(userID, deviceID, platform, pushToken string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.NewValidationError("userId", "userId is required")
	}
	if strings.TrimSpace(deviceID) == "" {
		return domain.NewValidationError("deviceId", "deviceId is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	devices, ok := r.users[userID]
	if !ok {
		devices = make(map[string]*domain.Device)
		r.users[userID] = devices
	}

	dev, exists := devices[deviceID]
	if !exists {
		dev = &domain.Device{DeviceID: deviceID}
		devices[deviceID] = dev
	}
	dev.Platform = platform
	dev.LastSeen = r.now()
	dev.Active = true
	if pushToken != "" {
		dev.PushToken = pushToken
	}
	return nil
}

// RemoveDevice deletes a device and prunes the user when nothing is left.
// Unknown users or devices are a no-op.
func (r *DeviceRegistry) RemoveDevice(userID, deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices, ok := r.users[userID]
	if !ok {
		return
	}
	delete(devices, deviceID)
	if len(devices) == 0 {
		delete(r.users, userID)
	}
}

// Status returns the devices of a user ordered by deviceID.
func (r *DeviceRegistry) Status(userID string) domain.UserStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := domain.UserStatus{Devices: make([]domain.DeviceStatus, 0)}
	for _, dev := range sortedDevices(r.users[userID]) {
		status.Devices = append(status.Devices, domain.DeviceStatus{
			DeviceID:     dev.DeviceID,
			Platform:     dev.Platform,
			LastSeen:     dev.LastSeen,
			Active:       dev.Active,
			HasPushToken: dev.PushToken != "",
		})
		if dev.Active {
			status.ActiveCount++
		}
	}
	return status
}

// ResolveTargets returns a snapshot of the user's devices for dispatch.
func (r *DeviceRegistry) ResolveTargets(userID string) []domain.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := sortedDevices(r.users[userID])
	targets := make([]domain.Target, 0, len(devices))
	for _, dev := range devices {
		targets = append(targets, domain.Target{
			DeviceID:  dev.DeviceID,
			Platform:  dev.Platform,
			PushToken: dev.PushToken,
		})
	}
	return targets
}

// InvalidateToken clears token from the first of the user's devices holding it.
// The device itself stays registered. Reports whether a token was cleared.
func (r *DeviceRegistry) InvalidateToken(userID, token string) bool {
	if token == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, dev := range sortedDevices(r.users[userID]) {
		if dev.PushToken == token {
			dev.PushToken = ""
			return true
		}
	}
	return false
}

// SweepStale removes devices last seen before now-staleAfter and prunes empty users.
func (r *DeviceRegistry) SweepStale(staleAfter time.Duration, now time.Time) domain.SweepReport {
	cutoff := now.Add(-staleAfter)
	var report domain.SweepReport

	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, devices := range r.users {
		for deviceID, dev := range devices {
			if dev.LastSeen.Before(cutoff) {
				delete(devices, deviceID)
				report.DevicesRemoved++
			}
		}
		if len(devices) == 0 {
			delete(r.users, userID)
			report.UsersRemoved++
		}
	}
	return report
}

// Stats counts users, devices and devices holding a push token.
func (r *DeviceRegistry) Stats() domain.RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := domain.RegistryStats{Users: len(r.users)}
	for _, devices := range r.users {
		stats.Devices += len(devices)
		for _, dev := range devices {
			if dev.PushToken != "" {
				stats.WithToken++
			}
		}
	}
	return stats
}

// sortedDevices orders by deviceID so "first match" is deterministic.
func sortedDevices(devices map[string]*domain.Device) []*domain.Device {
	out := make([]*domain.Device, 0, len(devices))
	for _, dev := range devices {
		out = append(out, dev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}
