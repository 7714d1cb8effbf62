package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shorturls/internal/database"
	"github.com/vadimbarashkov/shorturls/internal/models"
)

type urlRecord struct {
	ID          int64     `db:"id"`
	ShortCode   string    `db:"short_code"`
	OriginalURL string    `db:"original_url"`
	Expiry      time.Time `db:"expiry"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r *urlRecord) ToURL() *models.URL {
	return &models.URL{
		ID:          r.ID,
		ShortCode:   r.ShortCode,
		OriginalURL: r.OriginalURL,
		Expiry:      r.Expiry,
		CreatedAt:   r.CreatedAt,
	}
}

type clickRecord struct {
	ID        int64     `db:"id"`
	URLID     int64     `db:"url_id"`
	ClickedAt time.Time `db:"clicked_at"`
	Referrer  string    `db:"referrer"`
	Location  string    `db:"location"`
}

func (r *clickRecord) ToClick() models.Click {
	return models.Click{
		Timestamp: r.ClickedAt,
		Referrer:  r.Referrer,
		Location:  r.Location,
	}
}

// URLRepository persists shortened URLs and their click events. Uniqueness of
// short codes is enforced by a unique index, so a concurrent insert of the
// same code surfaces as database.ErrShortCodeExists rather than an overwrite.
type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{
		db: db,
	}
}

// Create inserts a new shortened URL record with an empty click history.
func (r *URLRepository) Create(ctx context.Context, shortCode, originalURL string, expiry time.Time) (*models.URL, error) {
	const op = "database.postgres.URLRepository.Create"

	rec := new(urlRecord)
	query := `INSERT INTO urls(short_code, original_url, expiry)
		VALUES ($1, $2, $3)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, shortCode, originalURL, expiry)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to create url record: %w", op, err)
	}

	url := rec.ToURL()
	url.Clicks = []models.Click{}

	return url, nil
}

// Exists reports whether a short code is already in use.
func (r *URLRepository) Exists(ctx context.Context, shortCode string) (bool, error) {
	const op = "database.postgres.URLRepository.Exists"

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM urls WHERE short_code = $1)`

	err := r.db.GetContext(ctx, &exists, query, shortCode)
	if err != nil {
		return false, fmt.Errorf("%s: failed to check short code existence: %w", op, err)
	}

	return exists, nil
}

// GetByShortCode retrieves a URL record along with its click events in
// insertion order. Expired records are returned as long as they haven't
// been purged yet.
func (r *URLRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetByShortCode"

	rec := new(urlRecord)
	query := `SELECT * FROM urls WHERE short_code = $1`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	var clickRecs []clickRecord
	clicksQuery := `SELECT * FROM clicks WHERE url_id = $1 ORDER BY id`

	if err := r.db.SelectContext(ctx, &clickRecs, clicksQuery, rec.ID); err != nil {
		return nil, fmt.Errorf("%s: failed to get click records: %w", op, err)
	}

	url := rec.ToURL()
	url.Clicks = make([]models.Click, 0, len(clickRecs))
	for _, c := range clickRecs {
		url.Clicks = append(url.Clicks, c.ToClick())
	}

	return url, nil
}

// AppendClick records a single click event for the given short code as one
// atomic insert. Concurrent appends for the same code are serialized by the
// database, never read-modify-write in the application.
func (r *URLRepository) AppendClick(ctx context.Context, shortCode string, click models.Click) error {
	const op = "database.postgres.URLRepository.AppendClick"

	query := `INSERT INTO clicks(url_id, clicked_at, referrer, location)
		SELECT id, $2, $3, $4 FROM urls WHERE short_code = $1`

	res, err := r.db.ExecContext(ctx, query, shortCode, click.Timestamp, click.Referrer, click.Location)
	if err != nil {
		return fmt.Errorf("%s: failed to append click record: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
	}

	return nil
}

// DeleteExpired removes every record whose expiry lies strictly before now,
// cascading to the associated click events. It returns the number of purged
// records and is a no-op when nothing has expired.
func (r *URLRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "database.postgres.URLRepository.DeleteExpired"

	query := `DELETE FROM urls WHERE expiry < $1`

	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to delete expired url records: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}

	return rows, nil
}
