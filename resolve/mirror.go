package resolve

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nathanplyles/oblivion/errs"
	"github.com/nathanplyles/oblivion/types"
)

const (
	mirrorTimeout = 8 * time.Second
	mirrorTTL     = 5 * time.Minute
)

// DefaultMirrors lists public Invidious-compatible instances, in
// preference order.
var DefaultMirrors = []string{
	"https://inv.nadeko.net",
	"https://invidious.nerdvpn.de",
	"https://yewtu.be",
}

// MirrorStrategy queries functionally-equivalent third-party mirror
// APIs for the same metadata, trying each mirror in sequence. It fails
// only after every mirror is exhausted.
type MirrorStrategy struct {
	httpc   *http.Client
	mirrors []string
	// redirectOnly marks mirror results as origin-bound: the signed
	// URLs they hand out reject fetches from a different IP, so the
	// caller must be redirected rather than relayed.
	redirectOnly bool
}

// NewMirrorStrategy builds the strategy over mirrors. Empty mirrors
// default to DefaultMirrors.
func NewMirrorStrategy(httpc *http.Client, mirrors []string, redirectOnly bool) *MirrorStrategy {
	if httpc == nil {
		httpc = &http.Client{Timeout: mirrorTimeout}
	}
	if len(mirrors) == 0 {
		mirrors = DefaultMirrors
	}
	return &MirrorStrategy{httpc: httpc, mirrors: mirrors, redirectOnly: redirectOnly}
}

func (s *MirrorStrategy) Name() string { return "mirror" }

func (s *MirrorStrategy) CacheTTL() time.Duration { return mirrorTTL }

// mirrorStream is one stream entry in a mirror's video response.
// Bitrate comes back as a string on Invidious.
type mirrorStream struct {
	URL     string `json:"url"`
	Type    string `json:"type"`
	Bitrate string `json:"bitrate"`
	Quality string `json:"quality"`
}

type mirrorVideo struct {
	AdaptiveFormats []mirrorStream `json:"adaptiveFormats"`
	FormatStreams   []mirrorStream `json:"formatStreams"`
	Error           string         `json:"error"`
}

func (s *MirrorStrategy) Resolve(ctx context.Context, videoID string) (*types.Resolution, error) {
	var lastErr error
	for _, mirror := range s.mirrors {
		res, err := s.tryMirror(ctx, mirror, videoID)
		if err != nil {
			lastErr = err
			continue
		}
		res.RedirectOnly = s.redirectOnly
		return res, nil
	}
	if lastErr == nil {
		lastErr = errs.Newf(errs.ClassTransport, "no mirrors configured")
	}
	return nil, lastErr
}

func (s *MirrorStrategy) tryMirror(ctx context.Context, mirror, videoID string) (*types.Resolution, error) {
	ctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()

	endpoint := strings.TrimRight(mirror, "/") + "/api/v1/videos/" + videoID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errs.Newf(errs.ClassTransport, "mirror %s: %w", mirror, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, errs.Newf(errs.ClassTransport, "mirror %s: %w", mirror, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden {
		return nil, errs.Newf(errs.ClassUpstreamRejected, "mirror %s: HTTP %d: %w", mirror, resp.StatusCode, errs.ErrVideoUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.Newf(errs.ClassTransport, "mirror %s: HTTP %d", mirror, resp.StatusCode)
	}

	var video mirrorVideo
	if err := json.NewDecoder(resp.Body).Decode(&video); err != nil {
		return nil, errs.Newf(errs.ClassTransport, "mirror %s: decode: %w", mirror, err)
	}
	if video.Error != "" {
		return nil, errs.Newf(errs.ClassUpstreamRejected, "mirror %s: %s: %w", mirror, video.Error, errs.ErrVideoUnavailable)
	}

	if chosen := pickMirrorStream(video); chosen != nil {
		return &types.Resolution{URL: chosen.URL, MimeType: baseMime(chosen.Type)}, nil
	}
	return nil, errs.Newf(errs.ClassNoUsableFormat, "mirror %s: %w", mirror, errs.ErrNoUsableFormat)
}

// pickMirrorStream prefers adaptive audio streams by descending
// bitrate, then combined audio+video streams lowest-quality-first
// (combined streams are bulkier, so the cheapest one wins).
func pickMirrorStream(video mirrorVideo) *mirrorStream {
	var audio []mirrorStream
	for _, f := range video.AdaptiveFormats {
		if f.URL != "" && strings.HasPrefix(strings.ToLower(f.Type), "audio/") {
			audio = append(audio, f)
		}
	}
	if len(audio) > 0 {
		sort.SliceStable(audio, func(i, j int) bool {
			return parseBitrate(audio[i].Bitrate) > parseBitrate(audio[j].Bitrate)
		})
		return &audio[0]
	}

	var combined []mirrorStream
	for _, f := range video.FormatStreams {
		if f.URL != "" {
			combined = append(combined, f)
		}
	}
	if len(combined) == 0 {
		return nil
	}
	sort.SliceStable(combined, func(i, j int) bool {
		return parseBitrate(combined[i].Bitrate) < parseBitrate(combined[j].Bitrate)
	})
	return &combined[0]
}

func parseBitrate(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// baseMime strips codec parameters from a mime string like
// `audio/webm; codecs="opus"`.
func baseMime(mime string) string {
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime)
}
