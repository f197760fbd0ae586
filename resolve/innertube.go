package resolve

import (
	"context"
	"time"

	"github.com/nathanplyles/oblivion/errs"
	"github.com/nathanplyles/oblivion/types"
	"github.com/nathanplyles/oblivion/youtube/cipher"
	"github.com/nathanplyles/oblivion/youtube/formats"
	"github.com/nathanplyles/oblivion/youtube/innertube"
)

// innertubeTTL is short on purpose: signed URLs from the embedded
// clients may already be close to expiry when we obtain them.
const innertubeTTL = 5 * time.Minute

// InnertubeStrategy resolves through the impersonated /player API,
// walking its client profiles most-reliable-first. A profile failure
// advances to the next profile; only when every profile fails does the
// strategy itself fail, with the last profile's error.
type InnertubeStrategy struct {
	client   *innertube.Client
	profiles []innertube.Profile
	decoder  *cipher.Decoder
}

// NewInnertubeStrategy builds the strategy over client and profiles.
// Empty profiles default to innertube.DefaultProfiles(). The decoder
// is optional; without it, formats lacking a direct URL are unusable.
func NewInnertubeStrategy(c *innertube.Client, profiles []innertube.Profile, decoder *cipher.Decoder) *InnertubeStrategy {
	if len(profiles) == 0 {
		profiles = innertube.DefaultProfiles()
	}
	return &InnertubeStrategy{client: c, profiles: profiles, decoder: decoder}
}

func (s *InnertubeStrategy) Name() string { return "innertube" }

func (s *InnertubeStrategy) CacheTTL() time.Duration { return innertubeTTL }

func (s *InnertubeStrategy) Resolve(ctx context.Context, videoID string) (*types.Resolution, error) {
	var lastErr error
	for _, p := range s.profiles {
		pr, err := s.client.Player(ctx, videoID, p)
		if err != nil {
			lastErr = err
			continue
		}
		selected := formats.SelectAudio(formats.Parse(pr))
		if selected == nil || !formats.HasUsableSource(*selected) {
			lastErr = errs.Newf(errs.ClassNoUsableFormat, "innertube %s: %w", p.Name, errs.ErrNoUsableFormat)
			continue
		}
		mediaURL := selected.URL
		if mediaURL == "" {
			mediaURL, err = s.materialize(ctx, videoID, selected.SignatureCipher)
			if err != nil {
				lastErr = err
				continue
			}
		}
		return &types.Resolution{URL: mediaURL, MimeType: selected.MimeType}, nil
	}
	if lastErr == nil {
		lastErr = errs.New(errs.ClassNoUsableFormat, errs.ErrNoUsableFormat)
	}
	return nil, lastErr
}

// materialize turns a signatureCipher blob into a direct URL via the
// player.js decoder.
func (s *InnertubeStrategy) materialize(ctx context.Context, videoID, signatureCipher string) (string, error) {
	if s.decoder == nil {
		return "", errs.Newf(errs.ClassNoUsableFormat, "format needs deciphering but no decoder configured: %w", errs.ErrNoUsableFormat)
	}
	jsURL, err := s.decoder.PlayerJSURL(ctx, videoID)
	if err != nil {
		return "", errs.Newf(errs.ClassTransport, "player.js discovery: %w", err)
	}
	out, err := s.decoder.ResolveURL(ctx, jsURL, signatureCipher)
	if err != nil {
		return "", errs.Newf(errs.ClassNoUsableFormat, "decipher: %w", err)
	}
	return out, nil
}
