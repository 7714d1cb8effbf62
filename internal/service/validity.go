package service

import (
	"time"
)

// computeExpiry derives the expiry timestamp from the validity period in
// minutes. Zero means the caller omitted the period and the configured
// default applies; a negative period is a caller mistake. The result is
// always strictly after createdAt.
func (s *URLService) computeExpiry(createdAt time.Time, validityMin int) (time.Time, error) {
	if validityMin < 0 {
		return time.Time{}, ErrInvalidValidity
	}

	validity := time.Duration(validityMin) * time.Minute
	if validityMin == 0 {
		validity = s.defaultValidity
	}

	return createdAt.Add(validity), nil
}
