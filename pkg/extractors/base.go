// Package extractors turns page URLs into playable streams.
//
// To add a new extractor:
// 1. Create a new file (e.g., myplatform.go)
// 2. Implement the Extractor interface
// 3. Register it in the registry (see internal/app)
package extractors

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"stream-resolver-go/pkg/interfaces"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/types"
)

// BaseExtractor provides common functionality for extractors.
type BaseExtractor struct {
	headers playerHeaders
	log     *logging.Logger
}

// playerHeaders supplies the headers a CDN expects for a strategy.
type playerHeaders interface {
	Headers(strategy types.DeliveryStrategy) map[string]string
}

// NewBaseExtractor creates a new base extractor.
func NewBaseExtractor(headers playerHeaders, log *logging.Logger) *BaseExtractor {
	return &BaseExtractor{headers: headers, log: log}
}

// Close releases resources.
func (b *BaseExtractor) Close() error {
	return nil
}

// RequestHeaders returns the strategy headers merged with extra, extra winning.
func (b *BaseExtractor) RequestHeaders(strategy types.DeliveryStrategy, extra map[string]string) map[string]string {
	out := make(map[string]string)
	if b.headers != nil {
		for k, v := range b.headers.Headers(strategy) {
			out[k] = v
		}
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// GetDomain extracts the lower-cased host from a URL.
func GetDomain(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// DirectExtractor is the fallback for URLs that already point at a manifest.
// It returns the URL as-is with the player headers attached.
type DirectExtractor struct {
	*BaseExtractor
}

// NewDirectExtractor creates a new direct extractor.
func NewDirectExtractor(headers playerHeaders, log *logging.Logger) *DirectExtractor {
	return &DirectExtractor{
		BaseExtractor: NewBaseExtractor(headers, log.WithComponent("direct-extractor")),
	}
}

// Name returns the extractor name.
func (e *DirectExtractor) Name() string {
	return "direct"
}

// CanExtract always returns false as this is the fallback.
func (e *DirectExtractor) CanExtract(string) bool {
	return false
}

// Extract returns the URL unchanged.
func (e *DirectExtractor) Extract(ctx context.Context, urlStr string, opts interfaces.ExtractOptions) (*types.ExtractResult, error) {
	u, err := url.Parse(urlStr)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("not an absolute http(s) URL: %q", urlStr)
	}

	strategy := types.StrategyDefault
	if strings.HasSuffix(GetDomain(urlStr), "ttv.lol") {
		strategy = types.StrategyAlternate
	}

	return &types.ExtractResult{
		DestinationURL: urlStr,
		RequestHeaders: e.RequestHeaders(strategy, opts.Headers),
		Strategy:       strategy,
	}, nil
}

var _ interfaces.Extractor = (*DirectExtractor)(nil)
