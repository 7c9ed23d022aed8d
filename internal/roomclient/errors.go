package roomclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse marks a response body that broke the API contract.
var ErrMalformedResponse = errors.New("malformed response")

// NotFoundError is returned when the target room does not exist.
type NotFoundError struct {
	Op string
	ID int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: room %d not found", e.Op, e.ID)
}

// TransportError covers network failures, non-2xx statuses other than
// 404, and contract violations in a response body.
type TransportError struct {
	Op         string
	StatusCode int    // 0 when no response was received
	Detail     string // server-provided detail, if any
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode == 0 && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %d %s: %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode), e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %d %s: %v", e.Op, e.StatusCode, http.StatusText(e.StatusCode), e.Err)
	default:
		return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
