// Package services glues extraction, resolution and stream proxying together
// for the HTTP API and the CLI.
package services

import (
	"context"
	"fmt"

	"stream-resolver-go/pkg/interfaces"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/registry"
	"stream-resolver-go/pkg/types"
	"stream-resolver-go/pkg/urlutil"
)

// ProxyService handles resolution, extraction and stream proxying.
type ProxyService struct {
	log        *logging.Logger
	resolver   interfaces.Resolver
	extractors *registry.ExtractorRegistry
	streams    interfaces.StreamHandler
	baseURL    string
}

// NewProxyService creates a new proxy service.
func NewProxyService(
	log *logging.Logger,
	resolver interfaces.Resolver,
	extractors *registry.ExtractorRegistry,
	streams interfaces.StreamHandler,
	baseURL string,
) *ProxyService {
	return &ProxyService{
		log:        log.WithComponent("proxy-service"),
		resolver:   resolver,
		extractors: extractors,
		streams:    streams,
		baseURL:    baseURL,
	}
}

// Resolve runs the resolver for id.
func (s *ProxyService) Resolve(ctx context.Context, id types.StreamIdentifier) types.Result {
	return s.resolver.Resolve(ctx, id)
}

// HandleExtract resolves a page or manifest URL and attaches a proxy link.
func (s *ProxyService) HandleExtract(ctx context.Context, urlStr string, opts interfaces.ExtractOptions) (*types.ExtractResult, error) {
	urlStr = urlutil.DecodeTargetURL(urlStr)

	var extractor interfaces.Extractor
	if opts.Host != "" {
		extractor = s.extractors.GetByName(opts.Host)
	} else {
		extractor = s.extractors.Get(urlStr)
	}
	if extractor == nil {
		return nil, fmt.Errorf("no extractor for URL: %s", urlStr)
	}

	s.log.Debug("using extractor", "name", extractor.Name(), "url", urlStr)

	result, err := extractor.Extract(ctx, urlStr, opts)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	result.ProxyURL = urlutil.ProxyURL(s.baseURL, result.DestinationURL, result.RequestHeaders)
	return result, nil
}

// HandleManifest proxies a manifest. Page URLs are extracted first so a
// player can be pointed straight at a channel.
func (s *ProxyService) HandleManifest(ctx context.Context, req *types.StreamRequest) (*types.StreamResponse, error) {
	req.URL = urlutil.DecodeTargetURL(req.URL)

	if extractor := s.extractors.Get(req.URL); extractor != nil && !urlutil.IsManifestURL(req.URL) {
		result, err := extractor.Extract(ctx, req.URL, interfaces.ExtractOptions{Headers: req.Headers})
		if err != nil {
			return nil, fmt.Errorf("extraction failed: %w", err)
		}
		s.log.Debug("extracted manifest", "original", req.URL, "destination", result.DestinationURL)

		req.URL = result.DestinationURL
		if req.Headers == nil {
			req.Headers = make(map[string]string)
		}
		for k, v := range result.RequestHeaders {
			req.Headers[k] = v
		}
	}

	return s.streams.HandleManifest(ctx, req, s.baseURL)
}

// HandleSegment proxies a segment or any other non-playlist resource.
func (s *ProxyService) HandleSegment(ctx context.Context, req *types.StreamRequest) (*types.StreamResponse, error) {
	req.URL = urlutil.DecodeTargetURL(req.URL)
	return s.streams.HandleSegment(ctx, req)
}
