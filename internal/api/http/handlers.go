package http

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shorturls/internal/database"
	"github.com/vadimbarashkov/shorturls/internal/models"
	"github.com/vadimbarashkov/shorturls/internal/service"
	"github.com/vadimbarashkov/shorturls/pkg/response"
)

// healthResponse is the payload returned by the health check endpoint.
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, healthResponse{
		Status:    "OK",
		Timestamp: time.Now().UTC(),
	})
}

// createShortURLRequest represents the request payload for creating a shortened URL.
// Validity is a pointer so an omitted period (defaulted) is distinguishable
// from an explicit non-positive one (rejected).
type createShortURLRequest struct {
	URL       string `json:"url" validate:"required,url"`
	Validity  *int   `json:"validity" validate:"omitempty,gt=0"`
	ShortCode string `json:"shortcode"`
}

// createShortURLResponse is the deliberately minimal creation result:
// the assembled short link and its expiry.
type createShortURLResponse struct {
	ShortLink string    `json:"shortLink"`
	Expiry    time.Time `json:"expiry"`
}

// handleCreateShortURL handles POST requests to create a shortened URL.
//
// The request must contain a valid absolute URL and may carry a validity
// period in minutes and a custom short code. The handler validates the input,
// calls the shortening service, and returns the assembled short link with its
// expiry timestamp.
func handleCreateShortURL(svc URLService, validate *validator.Validate, baseURL string) http.HandlerFunc {
	const op = "api.http.handleCreateShortURL"

	return func(w http.ResponseWriter, r *http.Request) {
		var req createShortURLRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		var validityMin int
		if req.Validity != nil {
			validityMin = *req.Validity
		}

		url, err := svc.CreateShortURL(r.Context(), req.URL, validityMin, req.ShortCode)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidURL):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.InvalidURLResponse)
			case errors.Is(err, service.ErrInvalidValidity):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.InvalidValidityResponse)
			case errors.Is(err, service.ErrInvalidShortCode):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.InvalidShortCodeResponse)
			case errors.Is(err, service.ErrShortCodeTaken):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.ShortCodeTakenResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, createShortURLResponse{
			ShortLink: strings.TrimSuffix(baseURL, "/") + "/" + url.ShortCode,
			Expiry:    url.Expiry,
		})
	}
}

// clickResponse represents a single recorded redirect in the detail view.
type clickResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Referrer  string    `json:"referrer"`
	Location  string    `json:"location"`
}

// urlDetailsResponse represents the detail/statistics view of a shortened URL.
type urlDetailsResponse struct {
	ShortCode   string          `json:"shortcode"`
	OriginalURL string          `json:"originalUrl"`
	CreatedAt   time.Time       `json:"createdAt"`
	Expiry      time.Time       `json:"expiry"`
	Clicks      []clickResponse `json:"clicks"`
}

func toURLDetailsResponse(url *models.URL) urlDetailsResponse {
	clicks := make([]clickResponse, 0, len(url.Clicks))
	for _, c := range url.Clicks {
		clicks = append(clicks, clickResponse{
			Timestamp: c.Timestamp,
			Referrer:  c.Referrer,
			Location:  c.Location,
		})
	}

	return urlDetailsResponse{
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		CreatedAt:   url.CreatedAt,
		Expiry:      url.Expiry,
		Clicks:      clicks,
	}
}

// handleGetURLDetails handles GET requests for a short URL's details and
// click statistics. Expired records are still returned until the reaper
// purges them.
func handleGetURLDetails(svc URLService) http.HandlerFunc {
	const op = "api.http.handleGetURLDetails"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		url, err := svc.GetURLDetails(r.Context(), shortCode)
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, toURLDetailsResponse(url))
	}
}

// handleRedirect handles GET requests on a bare short code and issues a 301
// redirect to the original URL. Unknown codes return 404, expired codes 410.
func handleRedirect(svc URLService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		destination, err := svc.ResolveForRedirect(r.Context(), shortCode, r.Referer(), clientIP(r))
		if err != nil {
			switch {
			case errors.Is(err, database.ErrURLNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			case errors.Is(err, service.ErrURLExpired):
				render.Status(r, http.StatusGone)
				render.JSON(w, r, response.URLExpiredResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		http.Redirect(w, r, destination, http.StatusMovedPermanently)
	}
}

// clientIP extracts the client address from the request. The RealIP
// middleware has already replaced RemoteAddr with the forwarded address when
// a proxy header is present; a port suffix remains for direct connections.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}

	return r.RemoteAddr
}
