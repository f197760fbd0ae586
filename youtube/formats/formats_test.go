package formats

import (
	"encoding/json"
	"testing"

	"github.com/nathanplyles/oblivion/types"
	"github.com/nathanplyles/oblivion/youtube/innertube"
)

func playerResponse(t *testing.T, body string) *innertube.PlayerResponse {
	t.Helper()
	var pr innertube.PlayerResponse
	if err := json.Unmarshal([]byte(body), &pr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &pr
}

func TestParse(t *testing.T) {
	pr := playerResponse(t, `{
		"streamingData": {
			"adaptiveFormats": [
				{"itag": 140, "mimeType": "audio/mp4; codecs=\"mp4a.40.2\"", "bitrate": 129000, "contentLength": "3000000", "url": "https://cdn/a"},
				{"itag": 251, "mimeType": "audio/webm; codecs=\"opus\"", "bitrate": 160000, "signatureCipher": "s=abc&url=https%3A%2F%2Fcdn%2Fb"}
			],
			"formats": [
				{"itag": 18, "mimeType": "video/mp4", "qualityLabel": "360p", "bitrate": 500000, "url": "https://cdn/c"}
			]
		}
	}`)
	got := Parse(pr)
	if len(got) != 3 {
		t.Fatalf("parsed %d formats, want 3", len(got))
	}
	if got[0].Itag != 140 || got[0].Size != 3000000 || got[0].URL == "" {
		t.Fatalf("format[0] = %+v", got[0])
	}
	if got[1].SignatureCipher == "" || got[1].URL != "" {
		t.Fatalf("format[1] = %+v", got[1])
	}
	if got[2].Quality != "360p" {
		t.Fatalf("format[2] = %+v", got[2])
	}
}

func TestSelectAudio_ItagPreference(t *testing.T) {
	list := []types.Format{
		{Itag: 249, MimeType: "audio/webm", Bitrate: 50000, URL: "u249"},
		{Itag: 251, MimeType: "audio/webm", Bitrate: 160000, URL: "u251"},
		{Itag: 140, MimeType: "audio/mp4", Bitrate: 129000, URL: "u140"},
		{Itag: 18, MimeType: "video/mp4", Bitrate: 500000, URL: "u18"},
	}
	if f := SelectAudio(list); f == nil || f.URL != "u140" {
		t.Fatalf("want itag 140, got %+v", f)
	}
}

func TestSelectAudio_BitrateFallback(t *testing.T) {
	list := []types.Format{
		{Itag: 599, MimeType: "audio/mp4", Bitrate: 31000, URL: "ulow"},
		{Itag: 600, MimeType: "audio/webm", Bitrate: 70000, URL: "uhigh"},
	}
	if f := SelectAudio(list); f == nil || f.URL != "uhigh" {
		t.Fatalf("want highest-bitrate audio, got %+v", f)
	}
}

func TestSelectAudio_CombinedFallback(t *testing.T) {
	list := []types.Format{
		{Itag: 18, MimeType: "video/mp4", Bitrate: 500000, URL: "u18"},
		{Itag: 22, MimeType: "video/mp4", Bitrate: 2000000, URL: "u22"},
	}
	if f := SelectAudio(list); f == nil || f.URL != "u18" {
		t.Fatalf("want first combined format, got %+v", f)
	}
}

func TestSelectAudio_Empty(t *testing.T) {
	if f := SelectAudio(nil); f != nil {
		t.Fatalf("want nil, got %+v", f)
	}
}

func TestHasUsableSource(t *testing.T) {
	if HasUsableSource(types.Format{}) {
		t.Fatal("empty format should not be usable")
	}
	if !HasUsableSource(types.Format{URL: "https://cdn/a"}) {
		t.Fatal("direct url should be usable")
	}
	if !HasUsableSource(types.Format{SignatureCipher: "s=x&url=y"}) {
		t.Fatal("signature cipher should be usable")
	}
}
