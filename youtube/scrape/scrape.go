// Package scrape extracts video identifiers from YouTube search result
// pages. It is the fallback path when structured APIs are blocked and
// the backing store for the search endpoint.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/nathanplyles/oblivion/client"
	"github.com/nathanplyles/oblivion/errs"
)

const (
	searchURLFormat = "https://www.youtube.com/results?search_query=%s"
	fetchTimeout    = 8 * time.Second

	// initialDataMarker precedes the embedded JSON blob that carries
	// the result entries. Its absence means the page layout changed.
	initialDataMarker = "ytInitialData"

	maxResults = 20
)

var videoIDRe = regexp.MustCompile(`"videoId":"([A-Za-z0-9_-]{11})"`)

// Client fetches and parses search result pages.
type Client struct {
	httpc *client.Client

	// baseURL overrides the search URL for tests. Empty means live.
	baseURL string
}

// New creates a scrape client backed by httpc. A nil httpc gets a
// default retrying client.
func New(httpc *client.Client) *Client {
	if httpc == nil {
		httpc = client.New()
	}
	return &Client{httpc: httpc}
}

// WithBaseURL overrides the search endpoint (tests only).
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// Search returns up to maxResults distinct video ids for query, in page
// order. A missing ytInitialData marker is a transport-class failure:
// the page layout changed and nothing can be parsed.
func (c *Client) Search(ctx context.Context, query string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	target := c.baseURL
	if target == "" {
		target = fmt.Sprintf(searchURLFormat, url.QueryEscape(query))
	} else {
		target += "?search_query=" + url.QueryEscape(query)
	}

	resp, err := c.httpc.Get(ctx, target)
	if err != nil {
		return nil, errs.Newf(errs.ClassTransport, "search fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != 200 {
		return nil, errs.Newf(errs.ClassTransport, "search fetch: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Newf(errs.ClassTransport, "search read: %w", err)
	}

	_, blob, found := strings.Cut(string(body), initialDataMarker)
	if !found {
		return nil, errs.Newf(errs.ClassTransport, "search parse: %s marker not found", initialDataMarker)
	}

	var ids []string
	seen := make(map[string]bool)
	for _, m := range videoIDRe.FindAllStringSubmatch(blob, -1) {
		id := m[1]
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
		if len(ids) >= maxResults {
			break
		}
	}
	return ids, nil
}

// TopVideoID returns the first result for query, or "" when the page
// parsed but carried no entries.
func (c *Client) TopVideoID(ctx context.Context, query string) (string, error) {
	ids, err := c.Search(ctx, query)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", nil
	}
	return ids[0], nil
}
