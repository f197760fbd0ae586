package resolve

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nathanplyles/oblivion/errs"
	"github.com/nathanplyles/oblivion/types"
)

type stubStrategy struct {
	name  string
	ttl   time.Duration
	calls atomic.Int64
	fn    func(ctx context.Context, videoID string) (*types.Resolution, error)
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) CacheTTL() time.Duration {
	if s.ttl == 0 {
		return time.Minute
	}
	return s.ttl
}

func (s *stubStrategy) Resolve(ctx context.Context, videoID string) (*types.Resolution, error) {
	s.calls.Add(1)
	return s.fn(ctx, videoID)
}

func failing(name string, class errs.Classification) *stubStrategy {
	return &stubStrategy{name: name, fn: func(context.Context, string) (*types.Resolution, error) {
		return nil, errs.Newf(class, "%s says no", name)
	}}
}

func succeeding(name, url string) *stubStrategy {
	return &stubStrategy{name: name, fn: func(_ context.Context, id string) (*types.Resolution, error) {
		return &types.Resolution{URL: url}, nil
	}}
}

func TestChain_InvalidIDNoStrategyCalls(t *testing.T) {
	s := succeeding("a", "https://cdn/a")
	chain := NewChain(NewCache(10), zerolog.Nop(), s)

	for _, id := range []string{"", "short", "dQw4w9WgXc!", "dQw4w9WgXcQQ"} {
		_, err := chain.Resolve(context.Background(), id)
		if errs.ClassOf(err) != errs.ClassInvalidIdentifier {
			t.Fatalf("id %q: class = %v", id, errs.ClassOf(err))
		}
	}
	if s.calls.Load() != 0 {
		t.Fatalf("strategy invoked %d times for malformed ids", s.calls.Load())
	}
}

func TestChain_FixedOrderFirstSuccessWins(t *testing.T) {
	first := failing("first", errs.ClassTransport)
	second := succeeding("second", "https://cdn/second")
	third := succeeding("third", "https://cdn/third")
	chain := NewChain(NewCache(10), zerolog.Nop(), first, second, third)

	res, err := chain.Resolve(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatal(err)
	}
	if res.Strategy != "second" || res.URL != "https://cdn/second" {
		t.Fatalf("got %+v", res)
	}
	if third.calls.Load() != 0 {
		t.Fatal("later strategy invoked after success")
	}
	if res.VideoID != "dQw4w9WgXcQ" {
		t.Fatalf("video id not stamped: %+v", res)
	}
}

func TestChain_CacheHitSkipsStrategies(t *testing.T) {
	s := succeeding("live", "https://cdn/live")
	chain := NewChain(NewCache(10), zerolog.Nop(), s)

	if _, err := chain.Resolve(context.Background(), "dQw4w9WgXcQ"); err != nil {
		t.Fatal(err)
	}
	res, err := chain.Resolve(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatal(err)
	}
	if res.Strategy != CacheSource {
		t.Fatalf("strategy = %q, want %q", res.Strategy, CacheSource)
	}
	if res.URL != "https://cdn/live" {
		t.Fatalf("url = %q", res.URL)
	}
	if s.calls.Load() != 1 {
		t.Fatalf("strategy called %d times, want 1", s.calls.Load())
	}
}

func TestChain_ExhaustionAggregatesFailures(t *testing.T) {
	a := failing("a", errs.ClassTransport)
	b := failing("b", errs.ClassNoUsableFormat)
	chain := NewChain(NewCache(10), zerolog.Nop(), a, b)

	_, err := chain.Resolve(context.Background(), "dQw4w9WgXcQ")
	if errs.ClassOf(err) != errs.ClassExhausted {
		t.Fatalf("class = %v", errs.ClassOf(err))
	}
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("error does not wrap ExhaustedError: %v", err)
	}
	if len(ex.Records) != 2 {
		t.Fatalf("records = %d", len(ex.Records))
	}
	if ex.Records[0].Strategy != "a" || ex.Records[1].Strategy != "b" {
		t.Fatalf("record order wrong: %+v", ex.Records)
	}
	if !errors.Is(err, errs.ErrAllStrategiesFailed) {
		t.Fatal("sentinel not reachable via errors.Is")
	}
}

func TestChain_UnanimousRejectionIsRejected(t *testing.T) {
	chain := NewChain(NewCache(10), zerolog.Nop(),
		failing("a", errs.ClassUpstreamRejected),
		failing("b", errs.ClassUpstreamRejected))

	_, err := chain.Resolve(context.Background(), "dQw4w9WgXcQ")
	if errs.ClassOf(err) != errs.ClassUpstreamRejected {
		t.Fatalf("class = %v", errs.ClassOf(err))
	}
}

func TestChain_InvalidateForcesReResolution(t *testing.T) {
	s := succeeding("live", "https://cdn/live")
	chain := NewChain(NewCache(10), zerolog.Nop(), s)

	if _, err := chain.Resolve(context.Background(), "dQw4w9WgXcQ"); err != nil {
		t.Fatal(err)
	}
	chain.Cache().Invalidate("dQw4w9WgXcQ")
	if _, err := chain.Resolve(context.Background(), "dQw4w9WgXcQ"); err != nil {
		t.Fatal(err)
	}
	if s.calls.Load() != 2 {
		t.Fatalf("strategy called %d times, want 2", s.calls.Load())
	}
}

func TestChain_ConcurrentRequestsCollapse(t *testing.T) {
	release := make(chan struct{})
	s := &stubStrategy{name: "slow", fn: func(context.Context, string) (*types.Resolution, error) {
		<-release
		return &types.Resolution{URL: "https://cdn/slow"}, nil
	}}
	chain := NewChain(NewCache(10), zerolog.Nop(), s)

	const n = 8
	var wg sync.WaitGroup
	results := make([]*types.Resolution, n)
	errsOut := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errsOut[i] = chain.Resolve(context.Background(), "dQw4w9WgXcQ")
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range n {
		if errsOut[i] != nil {
			t.Fatal(errsOut[i])
		}
		if results[i].URL != "https://cdn/slow" {
			t.Fatalf("result %d: %+v", i, results[i])
		}
	}
	if got := s.calls.Load(); got != 1 {
		t.Fatalf("strategy called %d times under concurrency, want 1", got)
	}
}

func TestChain_ContextCancellationStopsChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := succeeding("a", "https://cdn/a")
	chain := NewChain(NewCache(10), zerolog.Nop(), s)

	_, err := chain.Resolve(ctx, "dQw4w9WgXcQ")
	if err == nil {
		t.Fatal("expected error with cancelled context")
	}
	if s.calls.Load() != 0 {
		t.Fatal("strategy invoked despite cancelled context")
	}
}
