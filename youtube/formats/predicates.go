package formats

import (
	"strings"

	"github.com/nathanplyles/oblivion/types"
)

// isAudioOnly reports whether the format carries audio without a video
// track, judged from the MIME type.
func isAudioOnly(f types.Format) bool {
	mime := strings.ToLower(f.MimeType)
	return strings.HasPrefix(mime, "audio/") && !strings.Contains(mime, "video/")
}

// hasDirectURL reports whether the format already carries a resolvable
// URL. Formats without one need signature deciphering first.
func hasDirectURL(f types.Format) bool {
	return strings.TrimSpace(f.URL) != ""
}

// HasUsableSource reports whether the format can yield a playable URL,
// either directly or through deciphering.
func HasUsableSource(f types.Format) bool {
	return hasDirectURL(f) || strings.TrimSpace(f.SignatureCipher) != ""
}
