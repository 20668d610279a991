package authsrv

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed authorization server call. Every remote
// failure is classified exactly once at the point of call; the orchestrator
// branches on the kind instead of inspecting raw responses.
type ErrorKind int

const (
	// KindBadRequest covers malformed or unauthorized requests (400/401).
	// Terminal; routed to the generic error page.
	KindBadRequest ErrorKind = iota

	// KindConflict means the challenge was already accepted (409). A
	// recoverable race: log it and restart the flow.
	KindConflict

	// KindGone means the challenge expired (410). The server supplies an
	// alternate redirect that must be followed instead of erroring.
	KindGone

	// KindUnreachable covers transport failures and 5xx responses.
	// Terminal for this request; safe to retry from the top because
	// nothing was accepted.
	KindUnreachable
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindConflict:
		return "conflict"
	case KindGone:
		return "gone"
	case KindUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// RequestError is the classified result of a failed authorization server
// call.
type RequestError struct {
	Kind   ErrorKind
	Status int

	// RedirectTo is set for Gone responses: the server's own recovery
	// link, to be followed instead of rendering an error.
	RedirectTo string

	// Detail is a bounded slice of the response body for diagnostics.
	// Never contains tokens; the admin API does not echo them on errors.
	Detail string
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("authorization server request failed: %s (status %d): %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("authorization server request failed: %s: %s", e.Kind, e.Detail)
}

// AsRequestError unwraps err into a RequestError if it is one.
func AsRequestError(err error) (*RequestError, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr, true
	}
	return nil, false
}
