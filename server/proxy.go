package server

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Upstream bases for the passthrough proxies. Variables so tests can
// point them at local servers.
var (
	lastFMBase = "https://ws.audioscrobbler.com/2.0/"
	itunesBase = "https://itunes.apple.com/search"
	lyricsBase = "https://lrclib.net/api/get"
)

func (s *Server) handleLastFM(w http.ResponseWriter, r *http.Request) {
	if s.cfg.LastFMKey == "" {
		writeError(w, http.StatusServiceUnavailable, "lastfm api key not configured")
		return
	}
	q := r.URL.Query()
	q.Set("api_key", s.cfg.LastFMKey)
	q.Set("format", "json")
	s.proxyGet(w, r, lastFMBase+"?"+q.Encode())
}

func (s *Server) handleITunes(w http.ResponseWriter, r *http.Request) {
	s.proxyGet(w, r, itunesBase+"?"+r.URL.Query().Encode())
}

func (s *Server) handleLyrics(w http.ResponseWriter, r *http.Request) {
	in := r.URL.Query()
	track := strings.TrimSpace(in.Get("track"))
	if track == "" {
		writeError(w, http.StatusBadRequest, "missing track parameter")
		return
	}
	out := url.Values{}
	out.Set("track_name", track)
	if artist := strings.TrimSpace(in.Get("artist")); artist != "" {
		out.Set("artist_name", artist)
	}
	if album := strings.TrimSpace(in.Get("album")); album != "" {
		out.Set("album_name", album)
	}
	if duration := strings.TrimSpace(in.Get("duration")); duration != "" {
		out.Set("duration", duration)
	}
	s.proxyGet(w, r, lyricsBase+"?"+out.Encode())
}

// handleImage fetches an external https image and serves it under the
// gateway's origin, so artwork loads inside the isolated page.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "*")
	if r.URL.RawQuery != "" {
		raw += "?" + r.URL.RawQuery
	}
	target, err := imageTarget(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image url")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image url")
		return
	}
	resp, err := s.proxyClient.Do(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, "image fetch failed")
		return
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		writeError(w, http.StatusBadGateway, "image fetch failed")
		return
	}

	h := w.Header()
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		h.Set("Content-Type", ct)
	}
	h.Set("Cache-Control", "public, max-age=86400")
	h.Set("Cross-Origin-Resource-Policy", "cross-origin")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, resp.Body)
}

// imageTarget rebuilds an absolute https URL from the wildcard path
// segment, which arrives with its scheme separator collapsed.
func imageTarget(raw string) (string, error) {
	raw = strings.TrimPrefix(raw, "/")
	switch {
	case strings.HasPrefix(raw, "https://"):
	case strings.HasPrefix(raw, "https:/"):
		raw = "https://" + strings.TrimPrefix(raw, "https:/")
	default:
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "https" || u.Host == "" {
		return "", errInvalidImageURL
	}
	return u.String(), nil
}

var errInvalidImageURL = errors.New("image url must be absolute https")

// proxyGet forwards a GET to target and copies status, content type,
// and body back verbatim.
func (s *Server) proxyGet(w http.ResponseWriter, r *http.Request, target string) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		writeError(w, http.StatusBadGateway, "upstream request failed")
		return
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.proxyClient.Do(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, "upstream request failed")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}
