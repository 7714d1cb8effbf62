package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/golang-migrate/migrate/v4"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vadimbarashkov/shorturls/internal/config"
	"github.com/vadimbarashkov/shorturls/internal/database/postgres"
	"github.com/vadimbarashkov/shorturls/internal/geo"
	"github.com/vadimbarashkov/shorturls/internal/service"
	"github.com/vadimbarashkov/shorturls/internal/telemetry"
	"github.com/vadimbarashkov/shorturls/tests"

	api "github.com/vadimbarashkov/shorturls/internal/api/http"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const baseURL = "http://localhost:8080"

var shortCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8}$`)

type APITestSuite struct {
	suite.Suite
	pgCont  testcontainers.Container
	cfg     config.Postgres
	db      *sqlx.DB
	urlRepo *postgres.URLRepository
	urlSvc  *service.URLService
	logger  *httplog.Logger
	server  *httptest.Server
	e       *httpexpect.Expect
}

func (suite *APITestSuite) SetupSuite() {
	ctx := context.Background()

	pgUser := "test"
	pgPassword := "test"
	pgDB := "shorturls"

	var err error
	suite.pgCont, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "postgres:16-alpine",
			Env: map[string]string{
				"POSTGRES_USER":     pgUser,
				"POSTGRES_PASSWORD": pgPassword,
				"POSTGRES_DB":       pgDB,
			},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForListeningPort("5432/tcp"),
		},
		Started: true,
	})
	if err != nil {
		suite.T().Fatalf("Failed to start postgres container: %v", err)
	}
	suite.T().Cleanup(func() {
		if err := suite.pgCont.Terminate(ctx); err != nil {
			suite.T().Fatalf("Failed to terminate postgres container: %v", err)
		}
	})

	pgHost, err := suite.pgCont.Host(ctx)
	if err != nil {
		suite.T().Fatalf("Failed to get postgres container host: %v", err)
	}

	pgPort, err := suite.pgCont.MappedPort(ctx, "5432")
	if err != nil {
		suite.T().Fatalf("Failed to get postgres container port: %v", err)
	}

	suite.cfg = config.Postgres{
		User:     pgUser,
		Password: pgPassword,
		Host:     pgHost,
		Port:     pgPort.Int(),
		DB:       pgDB,
		SSLMode:  "disable",
	}

	suite.db, err = sqlx.Connect("pgx", suite.cfg.DSN())
	if err != nil {
		suite.T().Fatalf("Failed to connect to database: %v", err)
	}
	suite.T().Cleanup(func() {
		if err := suite.db.Close(); err != nil {
			suite.T().Fatalf("Failed to close database: %v", err)
		}
	})

	root, err := tests.FindProjectRoot()
	if err != nil {
		suite.T().Fatalf("Failed to get project root: %v", err)
	}

	migrationsPath := filepath.Join("file://"+root, "/migrations")

	m, err := migrate.New(migrationsPath, suite.cfg.DSN())
	if err != nil {
		suite.T().Fatalf("Failed to initialize migrations: %v", err)
	}

	if err := m.Up(); err != nil {
		suite.T().Fatalf("Failed to run migrations: %v", err)
	}
	suite.T().Cleanup(func() {
		if err := m.Down(); err != nil {
			suite.T().Fatalf("Failed to rollback migrations: %v", err)
		}
	})

	suite.urlRepo = postgres.NewURLRepository(suite.db)
	suite.urlSvc = service.NewURLService(
		suite.urlRepo,
		geo.NopLocator{},
		telemetry.Nop{},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		config.Shortener{ShortCodeLength: 8, MaxAttempts: 10, DefaultValidityMin: 30},
	)

	suite.logger = httplog.NewLogger("", httplog.Options{Writer: io.Discard})
	router := api.NewRouter(suite.logger, suite.urlSvc, baseURL)
	suite.server = httptest.NewServer(router)
	suite.e = httpexpect.Default(suite.T(), suite.server.URL)
}

func (suite *APITestSuite) TearDownSubTest() {
	ctx := context.Background()

	_, err := suite.db.ExecContext(ctx, `TRUNCATE TABLE urls RESTART IDENTITY CASCADE`)
	if err != nil {
		suite.T().Fatalf("Failed to clean urls table: %v", err)
	}
}

// createShortURL creates a record through the API and returns its short code.
func (suite *APITestSuite) createShortURL(body map[string]any) string {
	resp := suite.e.POST("/shorturls").
		WithJSON(body).
		Expect().
		Status(http.StatusCreated).
		JSON().Object()

	shortLink := resp.Value("shortLink").String().Raw()
	return strings.TrimPrefix(shortLink, baseURL+"/")
}

// insertURL writes a record directly, bypassing the service, so tests can
// control the expiry timestamp.
func (suite *APITestSuite) insertURL(shortCode, originalURL string, expiry time.Time) {
	_, err := suite.db.ExecContext(context.Background(),
		`INSERT INTO urls(short_code, original_url, expiry) VALUES ($1, $2, $3)`,
		shortCode, originalURL, expiry,
	)
	if err != nil {
		suite.T().Fatalf("Failed to insert url record: %v", err)
	}
}

func (suite *APITestSuite) countClicks(shortCode string) int {
	var count int
	err := suite.db.GetContext(context.Background(), &count,
		`SELECT COUNT(*) FROM clicks c JOIN urls u ON u.id = c.url_id WHERE u.short_code = $1`,
		shortCode,
	)
	if err != nil {
		suite.T().Fatalf("Failed to count clicks: %v", err)
	}

	return count
}

func (suite *APITestSuite) TestHealth() {
	suite.Run("success", func() {
		resp := suite.e.GET("/health").
			Expect().
			Status(http.StatusOK).
			JSON().Object()

		resp.HasValue("status", "OK")
		resp.ContainsKey("timestamp")
	})
}

func (suite *APITestSuite) TestCreateShortURL() {
	const path = "/shorturls"

	suite.Run("empty request body", func() {
		resp := suite.e.POST(path).
			WithHeader("Content-Type", "application/json").
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object()

		resp.HasValue("status", "error")
		resp.ContainsKey("message")
	})

	suite.Run("invalid url", func() {
		resp := suite.e.POST(path).
			WithJSON(map[string]any{"url": "not a url"}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object()

		resp.HasValue("status", "error")
		resp.ContainsKey("details")
	})

	suite.Run("negative validity", func() {
		suite.e.POST(path).
			WithJSON(map[string]any{"url": "https://example.com", "validity": -5}).
			Expect().
			Status(http.StatusBadRequest)
	})

	suite.Run("malformed custom short code", func() {
		suite.e.POST(path).
			WithJSON(map[string]any{"url": "https://example.com", "shortcode": "bad code!"}).
			Expect().
			Status(http.StatusBadRequest)
	})

	suite.Run("generated short code", func() {
		before := time.Now().UTC()

		resp := suite.e.POST(path).
			WithJSON(map[string]any{"url": "https://example.com/a/b"}).
			Expect().
			Status(http.StatusCreated).
			JSON().Object()

		shortLink := resp.Value("shortLink").String().Raw()
		shortCode := strings.TrimPrefix(shortLink, baseURL+"/")
		suite.True(shortCodePattern.MatchString(shortCode), "unexpected short code %q", shortCode)

		expiry := resp.Value("expiry").String().AsDateTime(time.RFC3339).Raw()
		suite.WithinDuration(before.Add(30*time.Minute), expiry, time.Minute)

		url, err := suite.urlRepo.GetByShortCode(context.Background(), shortCode)
		if err != nil {
			suite.T().Fatalf("Failed to retrieve url record: %v", err)
		}
		suite.Equal("https://example.com/a/b", url.OriginalURL)
		suite.Empty(url.Clicks)
	})

	suite.Run("explicit validity", func() {
		before := time.Now().UTC()

		resp := suite.e.POST(path).
			WithJSON(map[string]any{"url": "https://example.com", "validity": 5}).
			Expect().
			Status(http.StatusCreated).
			JSON().Object()

		expiry := resp.Value("expiry").String().AsDateTime(time.RFC3339).Raw()
		suite.WithinDuration(before.Add(5*time.Minute), expiry, time.Minute)
	})

	suite.Run("custom short code round trip", func() {
		shortCode := suite.createShortURL(map[string]any{
			"url":       "https://example.com/custom",
			"shortcode": "my_code-1",
		})
		suite.Equal("my_code-1", shortCode)

		resp := suite.e.GET("/shorturls/my_code-1").
			Expect().
			Status(http.StatusOK).
			JSON().Object()

		resp.HasValue("shortcode", "my_code-1")
		resp.HasValue("originalUrl", "https://example.com/custom")
	})

	suite.Run("duplicate custom short code", func() {
		suite.createShortURL(map[string]any{
			"url":       "https://example.com/first",
			"shortcode": "taken123",
		})

		resp := suite.e.POST(path).
			WithJSON(map[string]any{"url": "https://example.com/second", "shortcode": "taken123"}).
			Expect().
			Status(http.StatusConflict).
			JSON().Object()

		resp.HasValue("status", "error")
	})
}

func (suite *APITestSuite) TestRedirect() {
	suite.Run("unknown short code", func() {
		resp := suite.e.GET("/missing12").
			Expect().
			Status(http.StatusNotFound).
			JSON().Object()

		resp.HasValue("status", "error")
	})

	suite.Run("expired short code", func() {
		suite.insertURL("expired1", "https://example.com", time.Now().UTC().Add(-time.Minute))

		suite.e.GET("/expired1").
			WithRedirectPolicy(httpexpect.DontFollowRedirects).
			Expect().
			Status(http.StatusGone)

		suite.Equal(0, suite.countClicks("expired1"))
	})

	suite.Run("redirect records a click", func() {
		shortCode := suite.createShortURL(map[string]any{"url": "https://example.com/target"})

		suite.e.GET("/" + shortCode).
			WithRedirectPolicy(httpexpect.DontFollowRedirects).
			WithHeader("Referer", "https://example.org/page").
			Expect().
			Status(http.StatusMovedPermanently).
			Header("Location").IsEqual("https://example.com/target")

		resp := suite.e.GET("/shorturls/" + shortCode).
			Expect().
			Status(http.StatusOK).
			JSON().Object()

		clicks := resp.Value("clicks").Array()
		clicks.Length().IsEqual(1)
		clicks.Value(0).Object().HasValue("referrer", "https://example.org/page")
		clicks.Value(0).Object().HasValue("location", "Unknown")
	})

	suite.Run("concurrent redirects record every click", func() {
		const n = 20

		shortCode := suite.createShortURL(map[string]any{"url": "https://example.com/hot"})

		client := &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}

		var wg sync.WaitGroup
		errCh := make(chan error, n)

		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				resp, err := client.Get(suite.server.URL + "/" + shortCode)
				if err != nil {
					errCh <- err
					return
				}
				resp.Body.Close()

				if resp.StatusCode != http.StatusMovedPermanently {
					errCh <- fmt.Errorf("unexpected status: %d", resp.StatusCode)
				}
			}()
		}

		wg.Wait()
		close(errCh)

		for err := range errCh {
			suite.T().Fatalf("Redirect failed: %v", err)
		}

		suite.Equal(n, suite.countClicks(shortCode))
	})
}

func (suite *APITestSuite) TestGetURLDetails() {
	suite.Run("unknown short code", func() {
		resp := suite.e.GET("/shorturls/missing12").
			Expect().
			Status(http.StatusNotFound).
			JSON().Object()

		resp.HasValue("status", "error")
	})

	suite.Run("empty click history serializes as an array", func() {
		shortCode := suite.createShortURL(map[string]any{"url": "https://example.com"})

		resp := suite.e.GET("/shorturls/" + shortCode).
			Expect().
			Status(http.StatusOK).
			JSON().Object()

		resp.Value("clicks").Array().Length().IsEqual(0)
	})

	suite.Run("expired record is returned until reaped", func() {
		suite.insertURL("expired1", "https://example.com", time.Now().UTC().Add(-time.Hour))

		resp := suite.e.GET("/shorturls/expired1").
			Expect().
			Status(http.StatusOK).
			JSON().Object()

		resp.HasValue("shortcode", "expired1")
		resp.HasValue("originalUrl", "https://example.com")
	})
}

func (suite *APITestSuite) TestDeleteExpired() {
	suite.Run("purges expired records and their clicks", func() {
		ctx := context.Background()
		now := time.Now().UTC()

		suite.insertURL("expired1", "https://example.com/old", now.Add(-time.Hour))
		suite.insertURL("live1234", "https://example.com/new", now.Add(time.Hour))

		_, err := suite.db.ExecContext(ctx,
			`INSERT INTO clicks(url_id, clicked_at) SELECT id, $1 FROM urls WHERE short_code = 'expired1'`,
			now.Add(-time.Hour),
		)
		if err != nil {
			suite.T().Fatalf("Failed to insert click record: %v", err)
		}

		purged, err := suite.urlRepo.DeleteExpired(ctx, now)
		if err != nil {
			suite.T().Fatalf("Failed to delete expired urls: %v", err)
		}
		suite.Equal(int64(1), purged)

		suite.e.GET("/shorturls/expired1").
			Expect().
			Status(http.StatusNotFound)

		suite.e.GET("/shorturls/live1234").
			Expect().
			Status(http.StatusOK)

		var orphans int
		if err := suite.db.GetContext(ctx, &orphans, `SELECT COUNT(*) FROM clicks`); err != nil {
			suite.T().Fatalf("Failed to count clicks: %v", err)
		}
		suite.Equal(0, orphans)
	})
}

func TestAPI(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
