package streams

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/types"
)

const mediaPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:2
#EXT-X-MAP:URI="init.mp4"
#EXTINF:2.000,live
segment/1.ts
#EXTINF:2.000,live
https://video-edge.example.net/v1/segment/2.ts
#EXT-X-TWITCH-PREFETCH:https://video-edge.example.net/v1/segment/3.ts
`

func targetOf(t *testing.T, proxied string) string {
	t.Helper()
	u, err := url.Parse(proxied)
	if err != nil {
		t.Fatalf("parse %q: %v", proxied, err)
	}
	return u.Query().Get("url")
}

func TestRewriteManifest(t *testing.T) {
	headers := map[string]string{"Referer": "https://player.twitch.tv"}
	out, err := RewriteManifest([]byte(mediaPlaylist), "https://cdn.example.com/abc/chunked/index.m3u8", "http://proxy:7860", headers)
	if err != nil {
		t.Fatalf("RewriteManifest() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 9 {
		t.Fatalf("got %d lines, want 9:\n%s", len(lines), out)
	}

	if lines[0] != "#EXTM3U" || lines[4] != "#EXTINF:2.000,live" {
		t.Errorf("tags should pass through unchanged: %q %q", lines[0], lines[4])
	}

	mapLine := lines[3]
	start := strings.Index(mapLine, `URI="`) + len(`URI="`)
	uri := mapLine[start : len(mapLine)-1]
	if got := targetOf(t, uri); got != "https://cdn.example.com/abc/chunked/init.mp4" {
		t.Errorf("map target = %q", got)
	}

	if got := targetOf(t, lines[5]); got != "https://cdn.example.com/abc/chunked/segment/1.ts" {
		t.Errorf("relative segment target = %q", got)
	}
	if !strings.HasPrefix(lines[5], "http://proxy:7860/proxy/stream?") {
		t.Errorf("segment should use stream endpoint: %q", lines[5])
	}
	if got := targetOf(t, lines[7]); got != "https://video-edge.example.net/v1/segment/2.ts" {
		t.Errorf("absolute segment target = %q", got)
	}

	prefetch := strings.TrimPrefix(lines[8], "#EXT-X-TWITCH-PREFETCH:")
	if got := targetOf(t, prefetch); got != "https://video-edge.example.net/v1/segment/3.ts" {
		t.Errorf("prefetch target = %q", got)
	}

	u, _ := url.Parse(lines[5])
	if u.Query().Get("h_Referer") != "https://player.twitch.tv" {
		t.Error("headers should be forwarded as h_ params")
	}
}

func TestRewriteManifest_MasterUsesManifestEndpoint(t *testing.T) {
	master := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\nhttps://cdn.example.com/720.m3u8\n"
	out, err := RewriteManifest([]byte(master), "https://usher.example.com/x.m3u8", "http://proxy", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "http://proxy/proxy/manifest.m3u8?url=") {
		t.Errorf("variant playlist should use manifest endpoint:\n%s", out)
	}
}

func TestHLSHandler_HandleManifest(t *testing.T) {
	var gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		if r.URL.Path == "/missing.m3u8" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(mediaPlaylist))
	}))
	defer server.Close()

	h := NewHLSHandler(http.DefaultClient, logging.New("error", false, nil))

	resp, err := h.HandleManifest(context.Background(), &types.StreamRequest{
		URL:     server.URL + "/index.m3u8",
		Headers: map[string]string{"Referer": "https://player.twitch.tv"},
	}, "http://proxy")
	if err != nil {
		t.Fatalf("HandleManifest() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp.ContentType != "application/vnd.apple.mpegurl" {
		t.Errorf("content type = %q", resp.ContentType)
	}
	if gotReferer != "https://player.twitch.tv" {
		t.Errorf("upstream Referer = %q", gotReferer)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "/proxy/stream?") {
		t.Errorf("body not rewritten:\n%s", body)
	}

	resp, err = h.HandleManifest(context.Background(), &types.StreamRequest{URL: server.URL + "/missing.m3u8"}, "http://proxy")
	if err != nil {
		t.Fatalf("HandleManifest() error = %v", err)
	}
	if resp.StatusCode != http.StatusNotFound || resp.Body != nil {
		t.Errorf("upstream status should pass through without body, got %d", resp.StatusCode)
	}
}

func TestHLSHandler_HandleSegment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tsdata"))
	}))
	defer server.Close()

	h := NewHLSHandler(http.DefaultClient, logging.New("error", false, nil))
	resp, err := h.HandleSegment(context.Background(), &types.StreamRequest{URL: server.URL + "/1.ts"})
	if err != nil {
		t.Fatalf("HandleSegment() error = %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "tsdata" {
		t.Errorf("body = %q", body)
	}
	if resp.Headers["Content-Length"] != "6" {
		t.Errorf("Content-Length = %q", resp.Headers["Content-Length"])
	}
}
