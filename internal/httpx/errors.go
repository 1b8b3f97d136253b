package httpx

import (
	"net/http"

	"github.com/sundayezeilo/shortlinks/internal/errx"
)

// ErrorKindToStatus maps errx.Kind to HTTP status codes.
// Conflict is normally absorbed by the service's retry loop; it maps to 409 if it leaks.
func ErrorKindToStatus(kind errx.Kind) int {
	switch kind {
	case errx.Invalid:
		return http.StatusBadRequest
	case errx.NotFound:
		return http.StatusNotFound
	case errx.Conflict:
		return http.StatusConflict
	case errx.Expired:
		return http.StatusGone
	case errx.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorKindToCode maps errx.Kind to the machine-readable "error" field of JSON responses.
func ErrorKindToCode(kind errx.Kind) string {
	switch kind {
	case errx.Invalid:
		return "invalid_request"
	case errx.NotFound:
		return "not_found"
	case errx.Conflict:
		return "conflict"
	case errx.Expired:
		return "expired"
	case errx.Unavailable:
		return "unavailable"
	default:
		return "internal_error"
	}
}

// WriteKindError writes an error response whose status and code derive from err's kind.
func WriteKindError(w http.ResponseWriter, err error, message string) {
	kind := errx.KindOf(err)
	WriteError(w, ErrorKindToStatus(kind), ErrorKindToCode(kind), message, nil)
}
