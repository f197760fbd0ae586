package resolve

import (
	"context"
	"time"

	"github.com/nathanplyles/oblivion/errs"
	"github.com/nathanplyles/oblivion/types"
	"github.com/nathanplyles/oblivion/youtube/scrape"
)

const scrapeTTL = 5 * time.Minute

// inner is the materializing half of the scrape strategy: anything
// that can turn a confirmed id into a playable URL.
type inner interface {
	Resolve(ctx context.Context, videoID string) (*types.Resolution, error)
}

// ScrapeStrategy confirms the identifier exists by scraping a search
// results page for it, then materializes a URL through the
// impersonated API. It earns its place in the chain when the direct
// API path is blocked but the public search pages still render.
type ScrapeStrategy struct {
	scraper *scrape.Client
	inner   inner
}

// NewScrapeStrategy builds the strategy over scraper and the
// materializing resolver (normally the innertube strategy).
func NewScrapeStrategy(scraper *scrape.Client, materializer inner) *ScrapeStrategy {
	return &ScrapeStrategy{scraper: scraper, inner: materializer}
}

func (s *ScrapeStrategy) Name() string { return "scrape" }

func (s *ScrapeStrategy) CacheTTL() time.Duration { return scrapeTTL }

func (s *ScrapeStrategy) Resolve(ctx context.Context, videoID string) (*types.Resolution, error) {
	ids, err := s.scraper.Search(ctx, videoID)
	if err != nil {
		return nil, err
	}
	found := false
	for _, id := range ids {
		if id == videoID {
			found = true
			break
		}
	}
	if !found {
		return nil, errs.Newf(errs.ClassNoUsableFormat, "id not present in search results: %w", errs.ErrNoUsableFormat)
	}
	return s.inner.Resolve(ctx, videoID)
}
