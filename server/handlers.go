package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nathanplyles/oblivion/errs"
	"github.com/nathanplyles/oblivion/resolve"
	"github.com/nathanplyles/oblivion/types"
)

// resolveResponse is the JSON body for a successful resolution.
type resolveResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType,omitempty"`
	Strategy string `json:"strategy"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoId")
	res, ok := s.resolveOrFail(w, r, videoID)
	if !ok {
		return
	}
	if res.RedirectOnly && r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, res.URL, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{
		URL:      res.URL,
		MimeType: res.MimeType,
		Strategy: res.Strategy,
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoId")
	res, ok := s.resolveOrFail(w, r, videoID)
	if !ok {
		return
	}
	// Origin-bound URLs refuse fetches from the gateway's IP; the
	// listener has to go direct.
	if res.RedirectOnly {
		http.Redirect(w, r, res.URL, http.StatusFound)
		return
	}
	if err := s.relay.Stream(w, r, res); err != nil {
		class := errs.ClassOf(err)
		s.log.Warn().Str("video_id", videoID).Err(err).Msg("relay failed")
		writeError(w, errs.HTTPStatus(class), "upstream stream unavailable")
	}
}

// resolveOrFail runs the chain and writes the error response itself
// when resolution fails. The bool reports whether res is usable.
func (s *Server) resolveOrFail(w http.ResponseWriter, r *http.Request, videoID string) (*types.Resolution, bool) {
	res, err := s.chain.Resolve(r.Context(), videoID)
	if err != nil {
		class := errs.ClassOf(err)
		s.metrics.ObserveResolution("", "error")
		writeError(w, errs.HTTPStatus(class), errorMessage(class))
		return nil, false
	}
	if res.Strategy == resolve.CacheSource {
		s.metrics.IncCacheHit()
	} else {
		s.metrics.IncCacheMiss()
	}
	s.metrics.ObserveResolution(res.Strategy, "ok")
	return res, true
}

func errorMessage(class errs.Classification) string {
	switch class {
	case errs.ClassInvalidIdentifier:
		return "invalid video id"
	case errs.ClassUpstreamRejected:
		return "video unavailable"
	default:
		return "could not resolve audio stream"
	}
}

// searchResponse carries the top hit for a query, null when nothing
// matched.
type searchResponse struct {
	VideoID *string `json:"videoId"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	id, err := s.scraper.TopVideoID(r.Context(), query)
	if err != nil {
		s.log.Warn().Str("query", query).Err(err).Msg("search failed")
		writeError(w, http.StatusBadGateway, "search unavailable")
		return
	}
	if id == "" {
		writeJSON(w, http.StatusOK, searchResponse{VideoID: nil})
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{VideoID: &id})
}
