package urlutil

import (
	"encoding/base64"
	"net/url"
	"testing"
)

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		baseURL string
		want    string
	}{
		{
			name:    "absolute URL unchanged",
			ref:     "https://video-edge.example.net/v1/segment/abc.ts",
			baseURL: "https://usher.ttvnw.net/api/channel/hls/x.m3u8",
			want:    "https://video-edge.example.net/v1/segment/abc.ts",
		},
		{
			name:    "relative path",
			ref:     "index-dvr.m3u8",
			baseURL: "https://cdn.example.com/abc/chunked/index.m3u8",
			want:    "https://cdn.example.com/abc/chunked/index-dvr.m3u8",
		},
		{
			name:    "dot slash",
			ref:     "./12.ts",
			baseURL: "https://cdn.example.com/abc/chunked/index.m3u8",
			want:    "https://cdn.example.com/abc/chunked/12.ts",
		},
		{
			name:    "absolute path",
			ref:     "/v1/segment/1.ts",
			baseURL: "https://cdn.example.com/abc/index.m3u8?token=x",
			want:    "https://cdn.example.com/v1/segment/1.ts",
		},
		{
			name:    "parent references",
			ref:     "../../other/segment.ts",
			baseURL: "https://cdn.example.com/a/b/c/index.m3u8",
			want:    "https://cdn.example.com/a/other/segment.ts",
		},
		{
			name:    "parent reference stops at host",
			ref:     "../../x.ts",
			baseURL: "https://cdn.example.com/a/index.m3u8",
			want:    "https://cdn.example.com/x.ts",
		},
		{
			name:    "preserves special characters",
			ref:     "segment(1).ts",
			baseURL: "https://cdn.example.com/stream(1)/index.m3u8",
			want:    "https://cdn.example.com/stream(1)/segment(1).ts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveURL(tt.ref, tt.baseURL); got != tt.want {
				t.Errorf("ResolveURL(%q, %q) = %q, want %q", tt.ref, tt.baseURL, got, tt.want)
			}
		})
	}
}

func TestOriginAndBaseDirectory(t *testing.T) {
	if got := Origin("https://api.ttv.lol/playlist/x.m3u8"); got != "https://api.ttv.lol" {
		t.Errorf("Origin = %q", got)
	}
	if got := Origin("not a url"); got != "" {
		t.Errorf("Origin of garbage = %q", got)
	}
	if got := BaseDirectory("https://cdn.example.com/a/b.m3u8?x=/y"); got != "https://cdn.example.com/a/" {
		t.Errorf("BaseDirectory = %q", got)
	}
}

func TestIsManifestURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://usher.ttvnw.net/api/channel/hls/x.m3u8?sig=1", true},
		{"https://api.ttv.lol/playlist/x.m3u8%3Fallow_source%3Dtrue", true},
		{"https://cdn.example.com/INDEX.M3U8", true},
		{"https://cdn.example.com/segment/1.ts", false},
	}
	for _, tt := range tests {
		if got := IsManifestURL(tt.url); got != tt.want {
			t.Errorf("IsManifestURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestProxyURL(t *testing.T) {
	headers := map[string]string{
		"Referer":     "https://player.twitch.tv",
		"X-Donate-To": "https://ttv.lol/donate",
	}

	got := ProxyURL("http://localhost:7860/", "https://cdn.example.com/x.m3u8", headers)
	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Path != ManifestPath {
		t.Errorf("path = %q, want %q", u.Path, ManifestPath)
	}
	q := u.Query()
	if q.Get("url") != "https://cdn.example.com/x.m3u8" {
		t.Errorf("url = %q", q.Get("url"))
	}
	if q.Get("h_X_Donate_To") != "https://ttv.lol/donate" {
		t.Errorf("h_X_Donate_To = %q", q.Get("h_X_Donate_To"))
	}
	if q.Get("h_Referer") != "https://player.twitch.tv" {
		t.Errorf("h_Referer = %q", q.Get("h_Referer"))
	}

	seg := ProxyURL("http://localhost:7860", "https://cdn.example.com/1.ts", nil)
	if u, _ := url.Parse(seg); u.Path != StreamPath {
		t.Errorf("segment path = %q, want %q", u.Path, StreamPath)
	}
	if ProxyURL("http://h", "https://a/x.ts", headers) != ProxyURL("http://h", "https://a/x.ts", headers) {
		t.Error("ProxyURL should be deterministic")
	}
}

func TestDecodeTargetURL(t *testing.T) {
	target := "https://usher.ttvnw.net/api/channel/hls/x.m3u8?sig=a&token=b"

	tests := []struct {
		name string
		in   string
	}{
		{"plain", target},
		{"percent encoded", url.QueryEscape(target)},
		{"base64", base64.StdEncoding.EncodeToString([]byte(target))},
		{"base64 url no padding", base64.RawURLEncoding.EncodeToString([]byte(target))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeTargetURL(tt.in); got != target {
				t.Errorf("DecodeTargetURL(%q) = %q", tt.in, got)
			}
		})
	}

	if got := DecodeTargetURL("garbage"); got != "garbage" {
		t.Errorf("garbage should pass through, got %q", got)
	}
}

func TestDecodeTargetURL_KeepsEscapesInAbsoluteURLs(t *testing.T) {
	tests := []string{
		"https://api.ttv.lol/playlist/x.m3u8%3Fallow_source%3Dtrue%26token%3D%7B%22c%22%3A%22x%22%7D",
		"http://usher.twitch.tv/api/channel/hls/x.m3u8?player=twitchweb&token=%7B%22ua%22%3A%22a%2Bb%22%7D&sig=s",
	}
	for _, target := range tests {
		if got := DecodeTargetURL(target); got != target {
			t.Errorf("DecodeTargetURL(%q) = %q", target, got)
		}
	}
}
