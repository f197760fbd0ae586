// Package errs defines the failure taxonomy shared by the resolution
// chain, the stream relay, and the HTTP layer.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Classification buckets every failure the gateway can produce. The
// chain uses it to decide continue-vs-abort and the HTTP layer maps it
// to a status code.
type Classification int

const (
	// ClassUnknown is the zero value for unclassified errors.
	ClassUnknown Classification = iota
	// ClassInvalidIdentifier means the video id failed validation.
	ClassInvalidIdentifier
	// ClassUpstreamRejected means the upstream declared the content
	// unplayable (private, removed, geo blocked).
	ClassUpstreamRejected
	// ClassTransport covers network failures, timeouts, and non-success
	// HTTP statuses from a strategy's upstream.
	ClassTransport
	// ClassToolUnavailable means a local resolver binary is missing.
	ClassToolUnavailable
	// ClassNoUsableFormat means the response parsed but carried no
	// format with a usable URL.
	ClassNoUsableFormat
	// ClassExhausted means every strategy in the chain failed.
	ClassExhausted
	// ClassRelayUpstream means the CDN rejected a previously resolved
	// URL at relay time.
	ClassRelayUpstream
)

var classNames = map[Classification]string{
	ClassUnknown:           "unknown",
	ClassInvalidIdentifier: "invalid_identifier",
	ClassUpstreamRejected:  "upstream_rejected",
	ClassTransport:         "transport",
	ClassToolUnavailable:   "tool_unavailable",
	ClassNoUsableFormat:    "no_usable_format",
	ClassExhausted:         "exhausted",
	ClassRelayUpstream:     "relay_upstream",
}

func (c Classification) String() string {
	if s, ok := classNames[c]; ok {
		return s
	}
	return "unknown"
}

var (
	// ErrInvalidVideoID indicates a malformed content identifier.
	ErrInvalidVideoID = errors.New("invalid video id")
	// ErrVideoUnavailable indicates the upstream refused to play the content.
	ErrVideoUnavailable = errors.New("video unavailable")
	// ErrNoUsableFormat indicates no parsed format carried a usable URL.
	ErrNoUsableFormat = errors.New("no usable format")
	// ErrToolUnavailable indicates no candidate resolver binary was found.
	ErrToolUnavailable = errors.New("resolver tool unavailable")
	// ErrAllStrategiesFailed indicates the whole chain was exhausted.
	ErrAllStrategiesFailed = errors.New("all strategies failed")
)

// Error pairs an underlying error with its Classification.
type Error struct {
	Class Classification
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a classification. A nil err returns nil.
func New(class Classification, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Class: class, Err: err}
}

// Newf is New with fmt.Errorf formatting.
func Newf(class Classification, format string, args ...any) error {
	return &Error{Class: class, Err: fmt.Errorf(format, args...)}
}

// ClassOf extracts the Classification from err, falling back to
// sentinel mapping, then ClassUnknown.
func ClassOf(err error) Classification {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Class
	}
	switch {
	case errors.Is(err, ErrInvalidVideoID):
		return ClassInvalidIdentifier
	case errors.Is(err, ErrVideoUnavailable):
		return ClassUpstreamRejected
	case errors.Is(err, ErrNoUsableFormat):
		return ClassNoUsableFormat
	case errors.Is(err, ErrToolUnavailable):
		return ClassToolUnavailable
	case errors.Is(err, ErrAllStrategiesFailed):
		return ClassExhausted
	}
	return ClassUnknown
}

// HTTPStatus maps a Classification to the status code the gateway
// reports to callers.
func HTTPStatus(c Classification) int {
	switch c {
	case ClassInvalidIdentifier:
		return http.StatusBadRequest
	case ClassUpstreamRejected:
		return http.StatusForbidden
	case ClassExhausted, ClassRelayUpstream, ClassTransport,
		ClassToolUnavailable, ClassNoUsableFormat:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
