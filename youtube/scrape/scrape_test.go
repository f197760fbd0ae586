package scrape

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nathanplyles/oblivion/client"
	"github.com/nathanplyles/oblivion/errs"
)

func newTestClient() *client.Client {
	return client.NewWith(client.Config{Timeout: 5 * time.Second, Retries: 1})
}

func TestSearch_ExtractsIDs(t *testing.T) {
	page := `<html><script>var ytInitialData = {"contents": [` +
		`{"videoRenderer":{"videoId":"dQw4w9WgXcQ"}},` +
		`{"videoRenderer":{"videoId":"dQw4w9WgXcQ"}},` +
		`{"videoRenderer":{"videoId":"aaaaaaaaaaa"}}` +
		`]};</script></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("search_query"); q != "never gonna" {
			t.Errorf("search_query = %q", q)
		}
		_, _ = io.WriteString(w, page)
	}))
	defer srv.Close()

	c := New(newTestClient()).WithBaseURL(srv.URL)
	ids, err := c.Search(context.Background(), "never gonna")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want 2 distinct", ids)
	}
	if ids[0] != "dQw4w9WgXcQ" || ids[1] != "aaaaaaaaaaa" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestSearch_MissingMarkerIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>nothing here</html>")
	}))
	defer srv.Close()

	c := New(newTestClient()).WithBaseURL(srv.URL)
	_, err := c.Search(context.Background(), "q")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := errs.ClassOf(err); got != errs.ClassTransport {
		t.Fatalf("class = %v, want transport", got)
	}
}

func TestTopVideoID_EmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<script>var ytInitialData = {"contents": []};</script>`)
	}))
	defer srv.Close()

	c := New(newTestClient()).WithBaseURL(srv.URL)
	id, err := c.TopVideoID(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("TopVideoID: %v", err)
	}
	if id != "" {
		t.Fatalf("id = %q, want empty", id)
	}
}
