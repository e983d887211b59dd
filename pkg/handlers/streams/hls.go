// Package streams proxies HLS playlists and segments for players that cannot
// send the headers the CDN expects.
package streams

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"stream-resolver-go/pkg/httpclient"
	"stream-resolver-go/pkg/interfaces"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/types"
	"stream-resolver-go/pkg/urlutil"
)

// Tags whose value is a bare URL rather than an attribute list.
var urlValueTags = []string{
	"#EXT-X-TWITCH-PREFETCH:",
}

// HLSHandler fetches playlists, rewrites every URL to point back at the
// proxy, and passes segments through.
type HLSHandler struct {
	client interfaces.HTTPClient
	log    *logging.Logger
}

// NewHLSHandler creates a new HLS stream handler.
func NewHLSHandler(client interfaces.HTTPClient, log *logging.Logger) *HLSHandler {
	return &HLSHandler{
		client: client,
		log:    log.WithComponent("hls-handler"),
	}
}

// HandleManifest fetches and rewrites an HLS manifest.
func (h *HLSHandler) HandleManifest(ctx context.Context, req *types.StreamRequest, proxyBaseURL string) (*types.StreamResponse, error) {
	resp, err := h.fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest: %w", err)
	}
	defer resp.Body.Close()

	h.log.Debug("manifest fetch response", "url", req.URL, "status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		h.log.Warn("manifest fetch failed", "url", req.URL, "status", resp.StatusCode)
		return &types.StreamResponse{StatusCode: resp.StatusCode}, nil
	}

	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	rewritten, err := RewriteManifest(body, req.URL, proxyBaseURL, req.Headers)
	if err != nil {
		return nil, fmt.Errorf("failed to rewrite manifest: %w", err)
	}

	return &types.StreamResponse{
		ContentType: "application/vnd.apple.mpegurl",
		Body:        io.NopCloser(bytes.NewReader(rewritten)),
		StatusCode:  http.StatusOK,
		Headers: map[string]string{
			"Cache-Control": "no-cache, no-store, must-revalidate",
		},
	}, nil
}

// HandleSegment proxies an HLS segment. The caller closes the body.
func (h *HLSHandler) HandleSegment(ctx context.Context, req *types.StreamRequest) (*types.StreamResponse, error) {
	resp, err := h.fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch segment: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/MP2T"
	}

	headers := make(map[string]string)
	for _, key := range []string{"Content-Length", "Content-Range", "Accept-Ranges"} {
		if v := resp.Header.Get(key); v != "" {
			headers[key] = v
		}
	}

	return &types.StreamResponse{
		ContentType: contentType,
		Headers:     headers,
		Body:        resp.Body,
		StatusCode:  resp.StatusCode,
	}, nil
}

func (h *HLSHandler) fetch(ctx context.Context, req *types.StreamRequest) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	return h.client.Do(httpReq)
}

// RewriteManifest points every URI in manifest at the proxy. Relative URIs
// are resolved against manifestURL first.
func RewriteManifest(manifest []byte, manifestURL, proxyBaseURL string, headers map[string]string) ([]byte, error) {
	var out bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(manifest))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	proxied := func(ref string) string {
		return urlutil.ProxyURL(proxyBaseURL, urlutil.ResolveURL(ref, manifestURL), headers)
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		switch {
		case strings.TrimSpace(line) == "":
		case strings.HasPrefix(line, "#"):
			line = rewriteTag(line, proxied)
		default:
			line = proxied(strings.TrimSpace(line))
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.Bytes(), scanner.Err()
}

func rewriteTag(line string, proxied func(string) string) string {
	for _, tag := range urlValueTags {
		if strings.HasPrefix(line, tag) {
			return tag + proxied(strings.TrimSpace(line[len(tag):]))
		}
	}

	start := strings.Index(line, `URI="`)
	if start < 0 {
		return line
	}
	start += len(`URI="`)
	end := strings.IndexByte(line[start:], '"')
	if end < 0 {
		return line
	}
	return line[:start] + proxied(line[start:start+end]) + line[start+end:]
}

var _ interfaces.StreamHandler = (*HLSHandler)(nil)
