package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

const (
	aiProviderTimeout = 20 * time.Second
	aiMaxTokens       = 4096
)

// aiProvider is one OpenAI-compatible chat-completion backend.
type aiProvider struct {
	Name     string
	Endpoint string
	Model    string
	Key      string
}

// defaultProviders lists the fallback chain in preference order.
// Providers without a configured key are kept in the list and skipped
// at request time, so the order in logs stays stable.
func defaultProviders(cfg Config) []aiProvider {
	return []aiProvider{
		{
			Name:     "cerebras",
			Endpoint: "https://api.cerebras.ai/v1/chat/completions",
			Model:    "llama-3.3-70b",
			Key:      cfg.CerebrasKey,
		},
		{
			Name:     "groq",
			Endpoint: "https://api.groq.com/openai/v1/chat/completions",
			Model:    "llama-3.3-70b-versatile",
			Key:      cfg.GroqKey,
		},
		{
			Name:     "gemini",
			Endpoint: "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions",
			Model:    "gemini-2.0-flash",
			Key:      cfg.GeminiKey,
		},
	}
}

// aiRequest is the subset of the chat-completion body the gateway
// inspects. Unknown fields are dropped rather than forwarded.
type aiRequest struct {
	Messages  []json.RawMessage `json:"messages"`
	MaxTokens int               `json:"max_tokens"`
}

func (s *Server) handleAI(w http.ResponseWriter, r *http.Request) {
	var in aiRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(in.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages required")
		return
	}
	if in.MaxTokens <= 0 || in.MaxTokens > aiMaxTokens {
		in.MaxTokens = aiMaxTokens
	}

	var lastStatus int
	var lastBody []byte
	tried := 0
	for _, p := range s.providers {
		if p.Key == "" {
			continue
		}
		tried++
		status, body, err := s.callProvider(r.Context(), p, in)
		if err != nil {
			s.log.Warn().Str("provider", p.Name).Err(err).Msg("ai provider unreachable")
			continue
		}
		if status == http.StatusOK {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			return
		}
		// Quota exhaustion and upstream faults fall through to the
		// next provider; a request-shaped rejection will repeat
		// everywhere, so surface it immediately.
		if status != http.StatusTooManyRequests && status < 500 {
			s.log.Warn().Str("provider", p.Name).Int("status", status).Msg("ai provider rejected request")
			writeError(w, http.StatusBadRequest, "provider rejected request")
			return
		}
		s.log.Warn().Str("provider", p.Name).Int("status", status).Msg("ai provider failed, trying next")
		lastStatus, lastBody = status, body
	}

	if tried == 0 {
		writeError(w, http.StatusServiceUnavailable, "no ai providers configured")
		return
	}
	excerpt := string(lastBody)
	if len(excerpt) > 200 {
		excerpt = excerpt[:200]
	}
	s.log.Error().Int("last_status", lastStatus).Str("last_body", excerpt).Msg("all ai providers failed")
	writeError(w, http.StatusBadGateway, "all ai providers failed")
}

func (s *Server) callProvider(ctx context.Context, p aiProvider, in aiRequest) (int, []byte, error) {
	payload, err := json.Marshal(map[string]any{
		"model":      p.Model,
		"messages":   in.Messages,
		"max_tokens": in.MaxTokens,
	})
	if err != nil {
		return 0, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, aiProviderTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.Key)

	resp, err := s.proxyClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}
