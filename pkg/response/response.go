// Package response provides the JSON envelope used for API error and status
// responses, along with helpers for extracting validation error details.
package response

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the common payload shape for error and status responses.
type Response struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
	Details []any  `json:"details,omitempty"`
}

var EmptyRequestBodyResponse = Response{
	Status:  StatusError,
	Error:   "Empty Request Body",
	Message: "Request body is empty. Please provide necessary data.",
}

var BadRequestResponse = Response{
	Status:  StatusError,
	Error:   "Bad Request",
	Message: "The request could not be processed. Please check your input.",
}

var InvalidURLResponse = Response{
	Status:  StatusError,
	Error:   "Invalid URL",
	Message: "The provided URL is not a valid absolute URL.",
}

var InvalidValidityResponse = Response{
	Status:  StatusError,
	Error:   "Invalid Validity",
	Message: "Validity must be a positive integer number of minutes.",
}

var InvalidShortCodeResponse = Response{
	Status:  StatusError,
	Error:   "Invalid Shortcode",
	Message: "Shortcode must contain only alphanumeric characters, hyphens, and underscores.",
}

var ShortCodeTakenResponse = Response{
	Status:  StatusError,
	Error:   "Shortcode Taken",
	Message: "The requested shortcode already exists.",
}

var ResourceNotFoundResponse = Response{
	Status:  StatusError,
	Error:   "Resource Not Found",
	Message: "The requested resource was not found.",
}

var URLExpiredResponse = Response{
	Status:  StatusError,
	Error:   "URL Expired",
	Message: "The short URL has expired.",
}

var ServerErrorResponse = Response{
	Status:  StatusError,
	Error:   "Server Error",
	Message: "An internal server error occurred. Please try again later.",
}

// ValidationErrorResponse builds a bad-request response carrying one detail
// entry per failed field.
func ValidationErrorResponse(err error) Response {
	resp := Response{
		Status:  StatusError,
		Error:   "Validation Error",
		Message: "The request contains invalid data.",
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, fieldErr := range validationErrs {
			resp.Details = append(resp.Details,
				fmt.Sprintf("field %q failed on the %q rule", fieldErr.Field(), fieldErr.Tag()))
		}
	}

	return resp
}
