// Package resolve turns an opaque video identifier into a playable
// media URL by trying an ordered chain of acquisition strategies.
package resolve

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nathanplyles/oblivion/errs"
	"github.com/nathanplyles/oblivion/types"
)

// videoIDRe matches the only identifier shape the gateway accepts.
var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ValidID reports whether id is a well-formed 11-character video id.
func ValidID(id string) bool {
	return videoIDRe.MatchString(id)
}

// Strategy is one concrete method of resolving an identifier to a
// direct media URL. Implementations classify their own failures; the
// chain never sees an unclassified panic or raw error.
type Strategy interface {
	// Name identifies the strategy in logs, cache records, and
	// failure reports.
	Name() string
	// Resolve attempts to produce a playable URL for videoID.
	Resolve(ctx context.Context, videoID string) (*types.Resolution, error)
	// CacheTTL is how long a successful resolution stays usable.
	// Zero means do not cache.
	CacheTTL() time.Duration
}

// FailureRecord captures one failed strategy attempt for diagnostics.
type FailureRecord struct {
	Strategy string
	Class    errs.Classification
	Message  string
}

// ExhaustedError aggregates the failures of a fully exhausted chain.
type ExhaustedError struct {
	VideoID string
	Records []FailureRecord
}

func (e *ExhaustedError) Error() string {
	last := "no strategies configured"
	if n := len(e.Records); n > 0 {
		r := e.Records[n-1]
		last = fmt.Sprintf("last: %s (%s): %s", r.Strategy, r.Class, r.Message)
	}
	return fmt.Sprintf("resolve %s: %v; %s", e.VideoID, errs.ErrAllStrategiesFailed, last)
}

func (e *ExhaustedError) Unwrap() error { return errs.ErrAllStrategiesFailed }

// Summary renders the per-strategy failures on one line.
func (e *ExhaustedError) Summary() string {
	parts := make([]string, 0, len(e.Records))
	for _, r := range e.Records {
		parts = append(parts, fmt.Sprintf("%s=%s", r.Strategy, r.Class))
	}
	return strings.Join(parts, ", ")
}
