// Package cipher materializes direct URLs for formats that only carry
// a signatureCipher, by evaluating the upstream player.js in otto.
package cipher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/robertkrimen/otto"

	"github.com/nathanplyles/oblivion/client"
)

const (
	ytBase       = "https://www.youtube.com"
	watchURL     = ytBase + "/watch?v="
	playerJSTTL  = 10 * time.Minute
	fetchTimeout = 15 * time.Second

	decipherFuncName = "decipher"
	ncodeFuncName    = "ncode"
)

var playerJSURLRe = regexp.MustCompile(`"jsUrl":"([^"]+)"`)

type jsEntry struct {
	body  []byte
	expAt time.Time
}

// Decoder fetches and caches player.js and runs its transform
// functions over signatures and n-parameters.
type Decoder struct {
	httpc *client.Client

	mu    sync.Mutex
	cache map[string]jsEntry

	// watchBase overrides the watch-page URL prefix for tests.
	watchBase string
}

// New creates a Decoder. A nil httpc gets a default retrying client.
func New(httpc *client.Client) *Decoder {
	if httpc == nil {
		httpc = client.New()
	}
	return &Decoder{httpc: httpc, cache: make(map[string]jsEntry)}
}

// WithWatchBase overrides the watch-page prefix (tests only).
func (d *Decoder) WithWatchBase(base string) *Decoder {
	d.watchBase = base
	return d
}

// PlayerJSURL scrapes the player.js location from the watch page for
// videoID.
func (d *Decoder) PlayerJSURL(ctx context.Context, videoID string) (string, error) {
	base := d.watchBase
	if base == "" {
		base = watchURL
	}
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	resp, err := d.httpc.Get(ctx, base+videoID)
	if err != nil {
		return "", fmt.Errorf("fetch watch page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read watch page: %w", err)
	}

	m := playerJSURLRe.FindSubmatch(body)
	if len(m) < 2 || len(m[1]) == 0 {
		return "", fmt.Errorf("player.js url not found in watch page")
	}
	jsPath := strings.ReplaceAll(string(m[1]), `\/`, `/`)
	if strings.HasPrefix(jsPath, "http") {
		return jsPath, nil
	}
	return ytBase + jsPath, nil
}

func (d *Decoder) playerJS(ctx context.Context, jsURL string) ([]byte, error) {
	d.mu.Lock()
	entry, ok := d.cache[jsURL]
	if ok && time.Now().Before(entry.expAt) {
		body := entry.body
		d.mu.Unlock()
		return body, nil
	}
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	resp, err := d.httpc.Get(ctx, jsURL)
	if err != nil {
		return nil, fmt.Errorf("download player.js: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download player.js: HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read player.js: %w", err)
	}

	d.mu.Lock()
	d.cache[jsURL] = jsEntry{body: body, expAt: time.Now().Add(playerJSTTL)}
	d.mu.Unlock()
	return body, nil
}

func (d *Decoder) call(ctx context.Context, jsURL, fn, arg string) (string, error) {
	js, err := d.playerJS(ctx, jsURL)
	if err != nil {
		return "", err
	}
	vm := otto.New()
	if _, err := vm.Run(string(js)); err != nil {
		return "", fmt.Errorf("run player.js: %w", err)
	}
	v, err := vm.Get(fn)
	if err != nil || !v.IsFunction() {
		return "", fmt.Errorf("player.js has no %s function", fn)
	}
	out, err := vm.Call(fn, nil, arg)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", fn, err)
	}
	s, err := out.ToString()
	if err != nil {
		return "", fmt.Errorf("%s result not a string: %w", fn, err)
	}
	return s, nil
}

// Decipher transforms the scrambled signature.
func (d *Decoder) Decipher(ctx context.Context, jsURL, signature string) (string, error) {
	return d.call(ctx, jsURL, decipherFuncName, signature)
}

// DecipherN decodes the throttling n-parameter. When player.js has no
// ncode function the original value is returned unchanged.
func (d *Decoder) DecipherN(ctx context.Context, jsURL, nval string) (string, error) {
	out, err := d.call(ctx, jsURL, ncodeFuncName, nval)
	if err != nil {
		if strings.Contains(err.Error(), "has no "+ncodeFuncName) {
			return nval, nil
		}
		return "", err
	}
	return out, nil
}

// ResolveURL builds a playable URL from a signatureCipher blob:
// decipher the s parameter, attach it under sp (default "signature"),
// decode n, and set ratebypass/alr.
func (d *Decoder) ResolveURL(ctx context.Context, jsURL, signatureCipher string) (string, error) {
	parsed, err := url.ParseQuery(signatureCipher)
	if err != nil {
		return "", fmt.Errorf("parse signatureCipher: %w", err)
	}
	sig := parsed.Get("s")
	rawURL := parsed.Get("url")
	if sig == "" || rawURL == "" {
		return "", fmt.Errorf("signatureCipher missing s or url")
	}
	sp := parsed.Get("sp")
	if sp == "" {
		sp = "signature"
	}

	deciphered, err := d.Decipher(ctx, jsURL, sig)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse cipher url: %w", err)
	}
	q := u.Query()
	q.Set(sp, deciphered)
	if nval := q.Get("n"); nval != "" {
		if nout, err := d.DecipherN(ctx, jsURL, nval); err == nil && nout != "" {
			q.Set("n", nout)
		}
	}
	if q.Get("ratebypass") == "" {
		q.Set("ratebypass", "yes")
	}
	if q.Get("alr") == "" {
		q.Set("alr", "yes")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
