package types

// Format describes one candidate media format parsed from an upstream
// metadata response. The URL, when present, is time-limited and signed
// by the upstream; expiry is opaque to us.
type Format struct {
	Itag            int
	URL             string
	MimeType        string
	Quality         string
	Bitrate         int
	Size            int64
	SignatureCipher string
}

// Resolution is the outcome of a successful strategy attempt.
type Resolution struct {
	VideoID  string
	URL      string
	MimeType string
	Strategy string
	// RedirectOnly marks URLs whose signature is bound to the resolving
	// client's network identity. Relaying such URLs from the gateway IP
	// fails, so the caller must be redirected to them instead.
	RedirectOnly bool
}
