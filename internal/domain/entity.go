package domain

import "time"

// Device represents one app installation registered under a user.
type Device struct {
	DeviceID  string
	Platform  string // e.g. "android", "ios"
	LastSeen  time.Time
	Active    bool
	PushToken string // empty when no token is known
}

// DeviceStatus is the public view of a device returned by status queries.
type DeviceStatus struct {
	DeviceID     string    `json:"deviceId"`
	Platform     string    `json:"platform"`
	LastSeen     time.Time `json:"lastSeen"`
	Active       bool      `json:"active"`
	HasPushToken bool      `json:"hasPushToken"`
}

// UserStatus summarizes the devices registered under a user.
type UserStatus struct {
	Devices     []DeviceStatus `json:"devices"`
	ActiveCount int            `json:"activeCount"`
}

// Target is a device resolved for dispatch.
type Target struct {
	DeviceID  string
	Platform  string
	PushToken string
}

// RegistryStats is a point-in-time count of registry contents.
type RegistryStats struct {
	Users     int `json:"users"`
	Devices   int `json:"devices"`
	WithToken int `json:"withToken"`
}

// SweepReport counts what a stale sweep removed.
type SweepReport struct {
	DevicesRemoved int
	UsersRemoved   int
}
