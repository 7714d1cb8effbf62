package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"time"

	"github.com/vadimbarashkov/shorturls/internal/config"
	"github.com/vadimbarashkov/shorturls/internal/database"
	"github.com/vadimbarashkov/shorturls/internal/models"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// shortCodeRegexp is the allowed custom short code pattern. It matches the
// nanoid URL alphabet, so generated and custom codes share one namespace.
var shortCodeRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// URLRepository defines the interface for working with URLs at the business logic layer.
type URLRepository interface {
	// Create inserts a new shortened URL with the given expiry.
	// Returns the created URL model or an error if the operation fails.
	// The repository enforces short code uniqueness and reports a duplicate
	// insert as database.ErrShortCodeExists.
	Create(ctx context.Context, shortCode, originalURL string, expiry time.Time) (*models.URL, error)

	// Exists reports whether a short code is already in use.
	Exists(ctx context.Context, shortCode string) (bool, error)

	// GetByShortCode retrieves a URL by its short code, including click events.
	// Returns the URL model if found or an error if not found.
	GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error)

	// AppendClick atomically appends a single click event to the record's
	// click sequence.
	AppendClick(ctx context.Context, shortCode string, click models.Click) error

	// DeleteExpired removes all records whose expiry is before now and
	// returns the number of purged records.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Locator resolves a client IP to a country code, or "Unknown".
type Locator interface {
	Country(ip string) string
}

// LogSink receives best-effort telemetry entries. Implementations must never
// block the caller or surface delivery failures.
type LogSink interface {
	Info(component, message string)
	Warn(component, message string)
	Error(component, message string)
}

// URLService provides methods to manage the short URL lifecycle: creation,
// redirect resolution with click tracking, and detail lookups.
// The service uses a URLRepository interface to interact with the underlying database.
type URLService struct {
	repo            URLRepository
	locator         Locator
	sink            LogSink
	logger          *slog.Logger
	shortCodeLength int
	maxAttempts     int
	defaultValidity time.Duration
	now             func() time.Time
}

// NewURLService creates a new instance of URLService with the provided collaborators.
func NewURLService(repo URLRepository, locator Locator, sink LogSink, logger *slog.Logger, cfg config.Shortener) *URLService {
	return &URLService{
		repo:            repo,
		locator:         locator,
		sink:            sink,
		logger:          logger,
		shortCodeLength: cfg.ShortCodeLength,
		maxAttempts:     cfg.MaxAttempts,
		defaultValidity: time.Duration(cfg.DefaultValidityMin) * time.Minute,
		now:             time.Now,
	}
}

// CreateShortURL validates the original URL and validity period, resolves a
// short code (custom or randomly generated), and persists the record as a
// single atomic insert.
//
// validityMin is the validity window in minutes; zero means "not provided"
// and falls back to the configured default. customCode is optional; when set
// it must match the allowed pattern and must not be in use. There is no
// fallback to random generation for custom requests.
func (s *URLService) CreateShortURL(ctx context.Context, originalURL string, validityMin int, customCode string) (*models.URL, error) {
	const op = "service.URLService.CreateShortURL"

	if !isValidURL(originalURL) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidURL)
	}

	createdAt := s.now()

	expiry, err := s.computeExpiry(createdAt, validityMin)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if customCode != "" {
		return s.createWithCustomCode(ctx, op, originalURL, customCode, expiry)
	}

	return s.createWithGeneratedCode(ctx, op, originalURL, expiry)
}

func (s *URLService) createWithCustomCode(ctx context.Context, op, originalURL, customCode string, expiry time.Time) (*models.URL, error) {
	if !shortCodeRegexp.MatchString(customCode) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidShortCode)
	}

	// Fast user-facing error path; the unique index remains the source of truth.
	exists, err := s.repo.Exists(ctx, customCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to check short code existence: %w", op, err)
	}
	if exists {
		return nil, fmt.Errorf("%s: %w", op, ErrShortCodeTaken)
	}

	url, err := s.repo.Create(ctx, customCode, originalURL, expiry)
	if err != nil {
		if errors.Is(err, database.ErrShortCodeExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrShortCodeTaken)
		}

		return nil, fmt.Errorf("%s: failed to create short url: %w", op, err)
	}

	s.sink.Info("service", fmt.Sprintf("short url created with custom code %s", url.ShortCode))

	return url, nil
}

func (s *URLService) createWithGeneratedCode(ctx context.Context, op, originalURL string, expiry time.Time) (*models.URL, error) {
	shortCode, err := s.reserveShortCode(ctx, op)
	if err != nil {
		return nil, err
	}

	url, err := s.repo.Create(ctx, shortCode, originalURL, expiry)
	if err != nil {
		if !errors.Is(err, database.ErrShortCodeExists) {
			return nil, fmt.Errorf("%s: failed to create short url: %w", op, err)
		}

		// Lost the existence check vs insert race; one fresh attempt before
		// giving up.
		shortCode, err = s.reserveShortCode(ctx, op)
		if err != nil {
			return nil, err
		}

		url, err = s.repo.Create(ctx, shortCode, originalURL, expiry)
		if err != nil {
			if errors.Is(err, database.ErrShortCodeExists) {
				return nil, fmt.Errorf("%s: %w", op, ErrGenerationExhausted)
			}

			return nil, fmt.Errorf("%s: failed to create short url: %w", op, err)
		}
	}

	s.sink.Info("service", fmt.Sprintf("short url created with code %s", url.ShortCode))

	return url, nil
}

// reserveShortCode generates random candidates until one is unused, up to a
// bounded number of attempts. Collisions at correct entropy are vanishingly
// rare, so exhaustion is surfaced rather than retried forever.
func (s *URLService) reserveShortCode(ctx context.Context, op string) (string, error) {
	for i := 0; i < s.maxAttempts; i++ {
		shortCode, err := gonanoid.New(s.shortCodeLength)
		if err != nil {
			return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		exists, err := s.repo.Exists(ctx, shortCode)
		if err != nil {
			return "", fmt.Errorf("%s: failed to check short code existence: %w", op, err)
		}
		if !exists {
			return shortCode, nil
		}
	}

	return "", fmt.Errorf("%s: %w", op, ErrGenerationExhausted)
}

// ResolveForRedirect resolves a short code to its destination URL and records
// a click event with the request's referrer and the country resolved from the
// client IP.
//
// A failed click append is logged and swallowed: correctness of redirection
// dominates completeness of analytics, so the redirect decision already made
// stands.
func (s *URLService) ResolveForRedirect(ctx context.Context, shortCode, referrer, clientIP string) (string, error) {
	const op = "service.URLService.ResolveForRedirect"

	url, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return "", fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	now := s.now()
	if url.IsExpired(now) {
		return "", fmt.Errorf("%s: %w", op, ErrURLExpired)
	}

	click := models.Click{
		Timestamp: now,
		Referrer:  referrer,
		Location:  s.locator.Country(clientIP),
	}

	if err := s.repo.AppendClick(ctx, shortCode, click); err != nil {
		s.logger.Warn("failed to record click",
			slog.String("short_code", shortCode),
			slog.Any("err", err),
		)
		s.sink.Error("service", fmt.Sprintf("failed to record click for %s: %v", shortCode, err))
	}

	return url.OriginalURL, nil
}

// GetURLDetails retrieves a URL record with its full click history. There is
// no expiry check: expired records remain visible for audit until the reaper
// purges them.
func (s *URLService) GetURLDetails(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "service.URLService.GetURLDetails"

	url, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url details: %w", op, err)
	}

	return url, nil
}

func isValidURL(rawURL string) bool {
	u, err := url.ParseRequestURI(rawURL)
	return err == nil && u.Scheme != "" && u.Host != ""
}
