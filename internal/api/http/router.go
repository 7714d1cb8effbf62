package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shorturls/internal/models"

	httpSwagger "github.com/swaggo/http-swagger"
)

// URLService defines the interface for the core short URL business logic.
type URLService interface {
	// CreateShortURL creates a shortened URL with the given validity window
	// (in minutes, zero for the default) and optional custom short code.
	CreateShortURL(ctx context.Context, originalURL string, validityMin int, customCode string) (*models.URL, error)

	// ResolveForRedirect resolves a live short code to its destination URL
	// and records a click event built from the referrer and client IP.
	ResolveForRedirect(ctx context.Context, shortCode, referrer, clientIP string) (string, error)

	// GetURLDetails retrieves a URL record with its full click history,
	// regardless of expiry.
	GetURLDetails(ctx context.Context, shortCode string) (*models.URL, error)
}

// getValidate initializes a new validator instance for validating incoming request payloads.
// It customizes tag name extraction from struct fields to match JSON tags.
func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter initializes and returns a new HTTP router with all routes and middleware configured.
// baseURL is the public prefix used to assemble returned short links.
func NewRouter(logger *httplog.Logger, urlSvc URLService, baseURL string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowedMethods:   []string{"POST", "GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           84600,
	}))
	r.Use(middleware.AllowContentType("application/json"))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	validate := getValidate()

	r.Get("/health", handleHealth)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))
	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger.yml")
	})

	r.Post("/shorturls", handleCreateShortURL(urlSvc, validate, baseURL))
	r.Get("/shorturls/{shortCode}", handleGetURLDetails(urlSvc))
	r.Get("/{shortCode}", handleRedirect(urlSvc))

	return r
}
