package resolve

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/nathanplyles/oblivion/errs"
	"github.com/nathanplyles/oblivion/types"
)

// CacheSource is the strategy name reported for cache hits.
const CacheSource = "cache"

// Chain tries an ordered list of strategies until one resolves,
// consulting the shared Cache first. Order is fixed at construction;
// there is no adaptive reordering.
type Chain struct {
	strategies []Strategy
	cache      *Cache
	log        zerolog.Logger
	group      singleflight.Group
}

// NewChain builds a Chain over cache and strategies, tried in the
// given order.
func NewChain(cache *Cache, log zerolog.Logger, strategies ...Strategy) *Chain {
	if cache == nil {
		cache = NewCache(0)
	}
	return &Chain{strategies: strategies, cache: cache, log: log}
}

// Cache exposes the underlying cache so the relay layer can invalidate
// entries whose URL stopped serving.
func (c *Chain) Cache() *Cache { return c.cache }

// Resolve validates videoID, serves a cache hit if present, and
// otherwise walks the strategy chain. Concurrent requests for the
// same id collapse into a single in-flight attempt.
func (c *Chain) Resolve(ctx context.Context, videoID string) (*types.Resolution, error) {
	if !ValidID(videoID) {
		return nil, errs.New(errs.ClassInvalidIdentifier, errs.ErrInvalidVideoID)
	}

	if res, ok := c.cache.Get(videoID); ok {
		c.log.Debug().Str("video_id", videoID).Str("strategy", res.Strategy).Msg("cache hit")
		hit := res
		hit.Strategy = CacheSource
		return &hit, nil
	}

	v, err, _ := c.group.Do(videoID, func() (any, error) {
		// A winner of a concurrent race may have populated the cache
		// while we waited on the flight group.
		if res, ok := c.cache.Get(videoID); ok {
			return &res, nil
		}
		return c.runChain(ctx, videoID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Resolution), nil
}

func (c *Chain) runChain(ctx context.Context, videoID string) (*types.Resolution, error) {
	records := make([]FailureRecord, 0, len(c.strategies))
	for _, s := range c.strategies {
		if ctx.Err() != nil {
			return nil, errs.New(errs.ClassTransport, ctx.Err())
		}
		res, err := s.Resolve(ctx, videoID)
		if err != nil {
			class := errs.ClassOf(err)
			records = append(records, FailureRecord{
				Strategy: s.Name(),
				Class:    class,
				Message:  err.Error(),
			})
			c.log.Warn().
				Str("video_id", videoID).
				Str("strategy", s.Name()).
				Str("class", class.String()).
				Err(err).
				Msg("strategy failed")
			continue
		}
		res.VideoID = videoID
		res.Strategy = s.Name()
		c.cache.Put(videoID, *res, s.CacheTTL())
		c.log.Info().
			Str("video_id", videoID).
			Str("strategy", s.Name()).
			Bool("redirect_only", res.RedirectOnly).
			Msg("resolved")
		return res, nil
	}
	exhausted := &ExhaustedError{VideoID: videoID, Records: records}
	c.log.Error().
		Str("video_id", videoID).
		Str("failures", exhausted.Summary()).
		Msg("all strategies failed")
	// A unanimous rejection is the upstream's verdict on the content,
	// not a gateway fault.
	if allRejected(records) {
		return nil, errs.New(errs.ClassUpstreamRejected, exhausted)
	}
	return nil, errs.New(errs.ClassExhausted, exhausted)
}

func allRejected(records []FailureRecord) bool {
	if len(records) == 0 {
		return false
	}
	for _, r := range records {
		if r.Class != errs.ClassUpstreamRejected {
			return false
		}
	}
	return true
}
