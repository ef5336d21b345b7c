// Package response provides the HTTP response envelope for the placemap API.
// Successful responses carry results plus metadata; failures carry an error
// code and a human readable message.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/agentstation/placemap/pkg/errors"
)

// Error codes returned in the error field.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Response is the envelope written by every endpoint.
type Response struct {
	Success  bool   `json:"success"`
	Results  any    `json:"results,omitempty"`
	Metadata any    `json:"metadata,omitempty"`
	Error    string `json:"error,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Success creates a successful response.
func Success(results, metadata any) Response {
	return Response{
		Success:  true,
		Results:  results,
		Metadata: metadata,
	}
}

// Fail creates an error response.
func Fail(code, message string) Response {
	return Response{
		Success: false,
		Error:   code,
		Message: message,
	}
}

// JSON writes resp with the given status code.
func JSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers are already sent, nothing useful to do on failure
	_ = json.NewEncoder(w).Encode(resp)
}

// OK writes a 200 response.
func OK(w http.ResponseWriter, results, metadata any) {
	JSON(w, http.StatusOK, Success(results, metadata))
}

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, message string) {
	JSON(w, http.StatusBadRequest, Fail(CodeBadRequest, message))
}

// Unauthorized writes a 401 error response.
func Unauthorized(w http.ResponseWriter, message string) {
	JSON(w, http.StatusUnauthorized, Fail(CodeUnauthorized, message))
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, message string) {
	JSON(w, http.StatusNotFound, Fail(CodeNotFound, message))
}

// MethodNotAllowed writes a 405 error response.
func MethodNotAllowed(w http.ResponseWriter, method string) {
	JSON(w, http.StatusMethodNotAllowed, Fail(
		CodeMethodNotAllowed,
		"method "+method+" is not supported for this endpoint",
	))
}

// RateLimited writes a 429 error response.
func RateLimited(w http.ResponseWriter, message string) {
	JSON(w, http.StatusTooManyRequests, Fail(CodeRateLimited, message))
}

// InternalError writes a 500 error response. The cause is not exposed.
func InternalError(w http.ResponseWriter, _ error) {
	JSON(w, http.StatusInternalServerError, Fail(CodeInternal, "an unexpected error occurred"))
}

// ServiceUnavailable writes a 503 error response.
func ServiceUnavailable(w http.ResponseWriter, message string) {
	JSON(w, http.StatusServiceUnavailable, Fail(CodeServiceUnavailable, message))
}

// ErrorFromType maps engine errors to HTTP responses.
func ErrorFromType(w http.ResponseWriter, err error) {
	var (
		validation *errors.ValidationError
		notFound   *errors.NotFoundError
		catalog    *errors.CatalogUnavailableError
		api        *errors.APIError
	)

	switch {
	case errors.As(err, &validation):
		BadRequest(w, validation.Error())
	case errors.As(err, &notFound):
		NotFound(w, notFound.Error())
	case errors.As(err, &catalog):
		ServiceUnavailable(w, "place catalog is unavailable")
	case errors.IsRateLimited(err):
		RateLimited(w, "upstream rate limit exceeded")
	case errors.As(err, &api) && api.StatusCode < 500 && api.StatusCode >= 400:
		BadRequest(w, api.Error())
	default:
		InternalError(w, err)
	}
}
