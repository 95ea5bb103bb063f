package repository

import "time"

// User is a row of the users table.
type User struct {
	ID             int64
	Email          string
	Name           string
	PasswordDigest string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserUpdate carries the columns to change; nil fields are left alone.
type UserUpdate struct {
	Email          *string
	Name           *string
	PasswordDigest *string
}

// Device is a registered PMScan sensor.
type Device struct {
	ID         int64
	UserID     int64
	Name       string
	DeviceID   string
	DeviceName string
	Display    []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DeviceUpdate carries the device columns to change.
type DeviceUpdate struct {
	Name       *string
	DeviceID   *string
	DeviceName *string
	Display    []byte
}

// Record is one stored sensor capture. Data is opaque.
type Record struct {
	ID        int64
	DeviceID  int64
	Name      string
	Type      string
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}
