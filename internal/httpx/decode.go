package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sundayezeilo/shortlinks/internal/errx"
)

// MaxRequestBodySize caps JSON request bodies at 64KiB; a link request is a URL and a number.
const MaxRequestBodySize = 64 << 10

// DecodeJSON decodes a single JSON value from the request body.
// Every failure is returned as an errx.Invalid error carrying a client-safe message.
// Unknown fields are ignored.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	const op = "httpx.DecodeJSON"
	var zero T

	body := http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	defer func() { _ = body.Close() }()

	dec := json.NewDecoder(body)

	var v T
	if err := dec.Decode(&v); err != nil {
		return zero, errx.E(op, errx.Invalid, describeDecodeError(err))
	}
	if dec.More() {
		return zero, errx.Errorf(op, errx.Invalid, "request body must contain a single JSON object")
	}
	return v, nil
}

func describeDecodeError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.As(err, &syntaxErr):
		return fmt.Errorf("malformed JSON at position %d", syntaxErr.Offset)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return errors.New("malformed JSON")
	case errors.As(err, &typeErr):
		return fmt.Errorf("invalid value for field %q", typeErr.Field)
	case errors.As(err, &maxBytesErr):
		return fmt.Errorf("request body too large (max %d bytes)", maxBytesErr.Limit)
	case errors.Is(err, io.EOF):
		return errors.New("request body is empty")
	default:
		return fmt.Errorf("invalid request body: %w", err)
	}
}
