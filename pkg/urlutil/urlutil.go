// Package urlutil holds URL helpers for manifest rewriting. They work on
// strings so CDN-specific encoding survives untouched.
package urlutil

import (
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// Proxy endpoints served by the HTTP API.
const (
	ManifestPath = "/proxy/manifest.m3u8"
	StreamPath   = "/proxy/stream"
)

// IsAbsolute reports whether s starts with an http(s) scheme.
func IsAbsolute(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ResolveURL resolves ref against baseURL. url.ResolveReference is avoided
// because it re-encodes characters some CDNs sign verbatim.
func ResolveURL(ref, baseURL string) string {
	if IsAbsolute(ref) {
		return ref
	}
	if strings.HasPrefix(ref, "/") {
		if origin := Origin(baseURL); origin != "" {
			return origin + ref
		}
		return BaseDirectory(baseURL) + ref
	}

	dir := BaseDirectory(baseURL)
	for strings.HasPrefix(ref, "../") {
		ref = ref[3:]
		trimmed := strings.TrimSuffix(dir, "/")
		if i := strings.LastIndex(trimmed, "/"); i >= len(Origin(baseURL)) {
			dir = trimmed[:i+1]
		}
	}
	return dir + strings.TrimPrefix(ref, "./")
}

// BaseDirectory returns u up to and including the last '/' before any query.
func BaseDirectory(u string) string {
	if i := strings.IndexByte(u, '?'); i > 0 {
		u = u[:i]
	}
	if i := strings.LastIndex(u, "/"); i > 0 {
		return u[:i+1]
	}
	return u
}

// Origin returns scheme://host of u, or "" if u does not parse.
func Origin(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

// IsManifestURL reports whether u names an HLS playlist. The alternate CDN
// encodes its query into the path, so the check looks at the whole string.
func IsManifestURL(u string) bool {
	return strings.Contains(strings.ToLower(u), ".m3u8")
}

// ProxyURL builds a link back into this service for target. Headers travel
// as h_<Name> query parameters in sorted order.
func ProxyURL(proxyBase, target string, headers map[string]string) string {
	path := StreamPath
	if IsManifestURL(target) {
		path = ManifestPath
	}

	query := url.Values{}
	query.Set("url", target)
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		query.Set("h_"+strings.ReplaceAll(k, "-", "_"), headers[k])
	}

	return strings.TrimRight(proxyBase, "/") + path + "?" + query.Encode()
}

// DecodeTargetURL accepts a target passed either percent-encoded or as
// base64 (standard or URL-safe, padding optional). An absolute URL is
// returned untouched: its escapes belong to the upstream URL.
func DecodeTargetURL(s string) string {
	if s == "" || IsAbsolute(s) {
		return s
	}
	if decoded, err := url.QueryUnescape(s); err == nil && IsAbsolute(decoded) {
		return decoded
	}

	padded := s
	if rem := len(s) % 4; rem != 0 {
		padded += strings.Repeat("=", 4-rem)
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding} {
		if decoded, err := enc.DecodeString(padded); err == nil && IsAbsolute(string(decoded)) {
			return string(decoded)
		}
	}
	return s
}
