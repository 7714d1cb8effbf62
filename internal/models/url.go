package models

import "time"

// LocationUnknown is recorded when the client IP cannot be resolved
// to a country code.
const LocationUnknown = "Unknown"

// URL represents a shortened URL and its associated metadata.
type URL struct {
	// ID is the unique identifier for the shortened URL record.
	ID int64
	// ShortCode is the short code or key associated with the original URL.
	ShortCode string
	// OriginalURL is the original, full-length URL that the short code points to.
	OriginalURL string
	// Expiry is the timestamp after which the short code is no longer redirectable.
	Expiry time.Time
	// Clicks holds the recorded redirects in insertion order.
	Clicks []Click
	// CreatedAt is the timestamp indicating when the shortened URL was created.
	CreatedAt time.Time
}

// IsExpired reports whether the record is past its expiry at the given moment.
// The comparison is strict: a record expires the instant after its expiry.
func (u *URL) IsExpired(now time.Time) bool {
	return now.After(u.Expiry)
}

// Click represents a single recorded redirect through a short code.
type Click struct {
	// Timestamp is the moment the redirect was served.
	Timestamp time.Time
	// Referrer is the Referer header of the redirect request; empty for direct access.
	Referrer string
	// Location is the country code resolved from the client IP, or "Unknown".
	Location string
}
