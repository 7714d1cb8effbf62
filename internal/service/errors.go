package service

import "errors"

var (
	// ErrInvalidURL is returned when the original URL is not a syntactically valid absolute URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidValidity is returned when the validity period is not a positive number of minutes.
	ErrInvalidValidity = errors.New("invalid validity period")
	// ErrInvalidShortCode is returned when a custom short code doesn't match the allowed pattern.
	ErrInvalidShortCode = errors.New("invalid short code format")
	// ErrShortCodeTaken is returned when the requested custom short code is already in use.
	ErrShortCodeTaken = errors.New("short code taken")
	// ErrGenerationExhausted is returned when random short code generation keeps colliding.
	// Exhaustion signals a systemic problem rather than bad luck, so it is surfaced
	// instead of looping indefinitely.
	ErrGenerationExhausted = errors.New("short code generation exhausted")
	// ErrURLExpired is returned when a short code exists but its validity window has passed.
	// Distinct from not-found so callers can render a different response.
	ErrURLExpired = errors.New("url expired")
)
