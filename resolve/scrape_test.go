package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nathanplyles/oblivion/client"
	"github.com/nathanplyles/oblivion/errs"
	"github.com/nathanplyles/oblivion/types"
	"github.com/nathanplyles/oblivion/youtube/scrape"
)

type stubInner struct {
	calls int
	res   *types.Resolution
	err   error
}

func (s *stubInner) Resolve(context.Context, string) (*types.Resolution, error) {
	s.calls++
	return s.res, s.err
}

func scrapePage(ids ...string) string {
	page := `<html><script>var ytInitialData = {"contents":[`
	for _, id := range ids {
		page += `{"videoRenderer":{"videoId":"` + id + `"}},`
	}
	return page + `]};</script></html>`
}

func TestScrape_ConfirmsThenMaterializes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(scrapePage("aaaaaaaaaaa", "dQw4w9WgXcQ")))
	}))
	defer srv.Close()

	inner := &stubInner{res: &types.Resolution{URL: "https://cdn.example/audio"}}
	s := NewScrapeStrategy(scrapeClientFor(srv), inner)

	res, err := s.Resolve(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatal(err)
	}
	if res.URL != "https://cdn.example/audio" {
		t.Fatalf("url = %q", res.URL)
	}
	if inner.calls != 1 {
		t.Fatalf("inner called %d times", inner.calls)
	}
}

func TestScrape_IDAbsentFromResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(scrapePage("aaaaaaaaaaa", "bbbbbbbbbbb")))
	}))
	defer srv.Close()

	inner := &stubInner{res: &types.Resolution{URL: "unused"}}
	s := NewScrapeStrategy(scrapeClientFor(srv), inner)

	_, err := s.Resolve(context.Background(), "dQw4w9WgXcQ")
	if errs.ClassOf(err) != errs.ClassNoUsableFormat {
		t.Fatalf("class = %v", errs.ClassOf(err))
	}
	if inner.calls != 0 {
		t.Fatal("inner resolver called for unconfirmed id")
	}
}

func TestScrape_MarkerMissingIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>nothing here</html>"))
	}))
	defer srv.Close()

	s := NewScrapeStrategy(scrapeClientFor(srv), &stubInner{})
	_, err := s.Resolve(context.Background(), "dQw4w9WgXcQ")
	if errs.ClassOf(err) != errs.ClassTransport {
		t.Fatalf("class = %v", errs.ClassOf(err))
	}
}

func scrapeClientFor(srv *httptest.Server) *scrape.Client {
	return scrape.New(client.New()).WithBaseURL(srv.URL)
}
