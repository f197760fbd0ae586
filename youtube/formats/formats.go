// Package formats parses candidate media formats out of an InnerTube
// player response and picks the best audio stream.
package formats

import (
	"strconv"

	"github.com/nathanplyles/oblivion/types"
	"github.com/nathanplyles/oblivion/youtube/innertube"
)

// Audio itag preference, best first: 140 = AAC 128k, 251 = Opus 160k,
// 250 = Opus 70k, 249 = Opus 50k.
var preferredAudioItags = []int{140, 251, 250, 249}

// Parse flattens streamingData formats and adaptiveFormats into a list
// of candidates with minimal fields. Adaptive formats come first so the
// audio-only streams take precedence downstream.
func Parse(pr *innertube.PlayerResponse) []types.Format {
	all := make([]any, 0, len(pr.StreamingData.AdaptiveFormats)+len(pr.StreamingData.Formats))
	all = append(all, pr.StreamingData.AdaptiveFormats...)
	all = append(all, pr.StreamingData.Formats...)

	var out []types.Format
	for _, raw := range all {
		f, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		var format types.Format
		if v, ok := f["itag"].(float64); ok {
			format.Itag = int(v)
		}
		if v, ok := f["bitrate"].(float64); ok {
			format.Bitrate = int(v)
		}
		if v, ok := f["contentLength"].(string); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				format.Size = n
			}
		}
		format.MimeType, _ = f["mimeType"].(string)
		format.Quality, _ = f["qualityLabel"].(string)
		if u, ok := f["url"].(string); ok {
			format.URL = u
		} else if sc, ok := f["signatureCipher"].(string); ok {
			format.SignatureCipher = sc
		}
		out = append(out, format)
	}
	return out
}

// SelectAudio picks the preferred audio format: exact itag preference
// first, then the highest-bitrate audio-only stream, then the first
// combined stream as a last resort. Returns nil when the list is empty.
func SelectAudio(list []types.Format) *types.Format {
	if len(list) == 0 {
		return nil
	}

	var audioOnly []types.Format
	for _, f := range list {
		if isAudioOnly(f) {
			audioOnly = append(audioOnly, f)
		}
	}

	for _, itag := range preferredAudioItags {
		for i := range audioOnly {
			if audioOnly[i].Itag == itag {
				return &audioOnly[i]
			}
		}
	}
	if best := highestBitrate(audioOnly); best != nil {
		return best
	}
	return &list[0]
}

func highestBitrate(list []types.Format) *types.Format {
	if len(list) == 0 {
		return nil
	}
	best := 0
	for i := range list {
		if list[i].Bitrate > list[best].Bitrate {
			best = i
		}
	}
	return &list[best]
}
