// Package interfaces defines the seams between resolution stages and the
// service around them. Each stage depends only on these contracts, so tests
// can substitute any of them.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"stream-resolver-go/pkg/types"
)

// HTTPClient abstracts HTTP operations for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenNegotiator exchanges an identifier for a playback token.
// It never fails: problems degrade to the empty token.
type TokenNegotiator interface {
	Negotiate(ctx context.Context, id types.StreamIdentifier) (types.PlaybackToken, types.TokenOutcome)
}

// StrategySelector decides which CDN front-end serves a resolution.
type StrategySelector interface {
	Select(ctx context.Context) (types.DeliveryStrategy, ProbeResult)
}

// ProbeResult describes the health probe behind a strategy decision.
type ProbeResult struct {
	StatusCode int
	Err        error
	Reason     string
	Latency    time.Duration
}

// ManifestURLBuilder builds the manifest fetch URL for a strategy.
type ManifestURLBuilder interface {
	BuildManifestURL(id types.StreamIdentifier, token types.PlaybackToken, strategy types.DeliveryStrategy) string
	Headers(strategy types.DeliveryStrategy) map[string]string
}

// PlaylistFetcher fetches a manifest and turns it into a quality map.
type PlaylistFetcher interface {
	FetchAndParse(ctx context.Context, manifestURL string, strategy types.DeliveryStrategy) (*types.QualityMap, FetchReport)
}

// FetchReport describes how a manifest fetch went.
type FetchReport struct {
	StatusCode int
	Err        error
}

// Resolver runs the full pipeline for one identifier.
type Resolver interface {
	Resolve(ctx context.Context, id types.StreamIdentifier) types.Result
}

// Extractor turns a page URL into a playable stream.
//
// To add a new extractor:
// 1. Create a new file in pkg/extractors/
// 2. Implement this interface
// 3. Register it in the ExtractorRegistry
type Extractor interface {
	// Name returns a unique identifier for this extractor.
	Name() string

	// CanExtract returns true if this extractor can handle the given URL.
	CanExtract(url string) bool

	// Extract resolves the given URL to a direct stream URL.
	Extract(ctx context.Context, url string, opts ExtractOptions) (*types.ExtractResult, error)

	// Close releases any resources held by the extractor.
	Close() error
}

// ExtractOptions contains optional parameters for extraction.
type ExtractOptions struct {
	Headers map[string]string
	Quality string
	// Host forces an extractor by name instead of matching the URL.
	Host    string
}

// StreamHandler fetches a manifest or segment on behalf of a player.
type StreamHandler interface {
	HandleManifest(ctx context.Context, req *types.StreamRequest, proxyBaseURL string) (*types.StreamResponse, error)
	HandleSegment(ctx context.Context, req *types.StreamRequest) (*types.StreamResponse, error)
}

