package model

import "time"

// User stores Telegram user metadata.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	FirstName  string
	LastName   string
	Username   string
	// Timezone is an IANA name; due dates follow the user's local calendar day.
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location resolves Timezone, falling back to fallback (or UTC) when the
// name is empty or unknown.
func (u User) Location(fallback *time.Location) *time.Location {
	if u.Timezone != "" {
		if loc, err := time.LoadLocation(u.Timezone); err == nil {
			return loc
		}
	}
	if fallback != nil {
		return fallback
	}
	return time.UTC
}
