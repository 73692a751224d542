package models

import "time"

// Order represents a single grocery delivery extracted from one notification
// email. It is built once per email and never mutated afterwards; the calendar
// service is the only place it is persisted.
type Order struct {
	Summary     string    // Event title, e.g. "FreshPrep Order - Chicken Tacos, Veggie Bowl"
	Description string    // Comma-joined item names
	Items       []string  // Item names in the order they appear in the email
	Start       time.Time // Start of the delivery window, UTC civil time
	End         time.Time // End of the delivery window, UTC civil time
}

// Event represents a calendar event as returned by a calendar provider.
// Start and End are kept as the raw datetime strings the provider returned;
// they may carry a trailing UTC offset that the provider added.
type Event struct {
	ID          string // Identifier assigned by the calendar service
	Summary     string
	Description string
	Start       string // e.g. "2024-03-05T17:00:00-08:00"
	End         string
	TimeZone    string // IANA timezone name sent alongside the datetimes
}

// Email is a raw notification email fetched from the mailbox.
type Email struct {
	ID      string
	From    string
	Subject string
	HTML    string // Decoded HTML body
}
