// Package relay proxies resolved media URLs to clients, forwarding
// range requests so seeking works without the gateway buffering whole
// files.
package relay

import (
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/nathanplyles/oblivion/client"
	"github.com/nathanplyles/oblivion/errs"
	"github.com/nathanplyles/oblivion/types"
)

// hop-by-hop response headers copied verbatim from the media host.
var copiedHeaders = []string{"Content-Type", "Content-Length", "Content-Range"}

// Invalidator drops a cached resolution whose URL stopped serving.
// Satisfied by resolve.Cache.
type Invalidator interface {
	Invalidate(videoID string)
}

// Relay streams upstream media bytes through to the client.
type Relay struct {
	httpc       *http.Client
	invalidator Invalidator
	log         zerolog.Logger

	// OnBytes, when set, is called with the byte count of each
	// finished or aborted stream copy.
	OnBytes func(n int64)
}

// New builds a Relay. A nil httpc gets a transport tuned for
// long-lived streaming responses.
func New(httpc *http.Client, invalidator Invalidator, log zerolog.Logger) *Relay {
	if httpc == nil {
		httpc = &http.Client{
			Transport: client.Transport(),
			// No client timeout: it would cut off long streams.
			// The response-header timeout on the transport bounds
			// the wait for upstream to start talking.
		}
	}
	return &Relay{httpc: httpc, invalidator: invalidator, log: log}
}

// Stream fetches res.URL, forwarding the client's Range header, and
// copies the upstream response through. Any upstream status other
// than 200 or 206 invalidates the cached resolution and reports
// ClassRelayUpstream so the caller can answer 502.
func (rl *Relay) Stream(w http.ResponseWriter, r *http.Request, res *types.Resolution) error {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, res.URL, nil)
	if err != nil {
		rl.invalidate(res.VideoID)
		return errs.Newf(errs.ClassRelayUpstream, "relay request: %w", err)
	}
	req.Header.Set("User-Agent", client.UserAgent)
	req.Header.Set("Accept", "*/*")
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}

	resp, err := rl.httpc.Do(req)
	if err != nil {
		rl.invalidate(res.VideoID)
		return errs.Newf(errs.ClassRelayUpstream, "relay fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		rl.invalidate(res.VideoID)
		rl.log.Warn().
			Str("video_id", res.VideoID).
			Str("strategy", res.Strategy).
			Int("status", resp.StatusCode).
			Msg("upstream refused relayed fetch")
		return errs.Newf(errs.ClassRelayUpstream, "upstream HTTP %d", resp.StatusCode)
	}

	h := w.Header()
	for _, name := range copiedHeaders {
		if v := resp.Header.Get(name); v != "" {
			h.Set(name, v)
		}
	}
	if h.Get("Content-Type") == "" {
		ct := res.MimeType
		if ct == "" {
			ct = "audio/mp4"
		}
		h.Set("Content-Type", ct)
	}
	h.Set("Accept-Ranges", "bytes")
	h.Set("Cache-Control", "no-cache")
	h.Set("Cross-Origin-Resource-Policy", "same-origin")
	w.WriteHeader(resp.StatusCode)

	n, err := io.Copy(w, resp.Body)
	if rl.OnBytes != nil {
		rl.OnBytes(n)
	}
	if err != nil {
		// Mid-stream failures after the status line are usually the
		// listener seeking away or dropping the connection. The
		// status is already written; nothing to signal but a log.
		rl.log.Debug().
			Str("video_id", res.VideoID).
			Int64("bytes", n).
			Err(err).
			Msg("stream ended early")
		return nil
	}
	rl.log.Debug().
		Str("video_id", res.VideoID).
		Str("strategy", res.Strategy).
		Int64("bytes", n).
		Int("status", resp.StatusCode).
		Msg("stream complete")
	return nil
}

func (rl *Relay) invalidate(videoID string) {
	if rl.invalidator != nil && videoID != "" {
		rl.invalidator.Invalidate(videoID)
	}
}
