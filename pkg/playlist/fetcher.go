package playlist

import (
	"context"
	"fmt"
	"net/http"

	"stream-resolver-go/pkg/httpclient"
	"stream-resolver-go/pkg/interfaces"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/types"
)

// HeaderSource supplies the request headers for a strategy.
type HeaderSource interface {
	Headers(strategy types.DeliveryStrategy) map[string]string
}

// Fetcher downloads a manifest and parses it.
type Fetcher struct {
	client  interfaces.HTTPClient
	headers HeaderSource
	log     *logging.Logger
}

var _ interfaces.PlaylistFetcher = (*Fetcher)(nil)

// NewFetcher creates a Fetcher.
func NewFetcher(client interfaces.HTTPClient, headers HeaderSource, log *logging.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		headers: headers,
		log:     log.WithComponent("playlist"),
	}
}

// FetchAndParse issues one GET for manifestURL. The returned map always holds
// the auto entry; any failure leaves it as the only one. Non-200 bodies are
// still scanned.
func (f *Fetcher) FetchAndParse(ctx context.Context, manifestURL string, strategy types.DeliveryStrategy) (*types.QualityMap, interfaces.FetchReport) {
	if err := ctx.Err(); err != nil {
		return types.NewAutoQualityMap(manifestURL), interfaces.FetchReport{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return types.NewAutoQualityMap(manifestURL), interfaces.FetchReport{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	if f.headers != nil {
		for key, value := range f.headers.Headers(strategy) {
			req.Header.Set(key, value)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Warn("failed to fetch manifest", "strategy", strategy.String(), "error", err)
		return types.NewAutoQualityMap(manifestURL), interfaces.FetchReport{Err: fmt.Errorf("failed to fetch manifest: %w", err)}
	}
	defer resp.Body.Close()

	report := interfaces.FetchReport{StatusCode: resp.StatusCode}
	if resp.StatusCode != http.StatusOK {
		f.log.Debug("manifest fetch returned non-200", "status", resp.StatusCode, "strategy", strategy.String())
	}

	body, err := httpclient.ReadBody(resp)
	if err != nil {
		report.Err = fmt.Errorf("failed to read manifest: %w", err)
		return types.NewAutoQualityMap(manifestURL), report
	}

	qualities := Parse(manifestURL, body)
	f.log.Debug("manifest parsed",
		"status", resp.StatusCode,
		"strategy", strategy.String(),
		"variants", qualities.Len()-1,
		"bytes", len(body),
	)
	return qualities, report
}
