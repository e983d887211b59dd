// Package delivery picks the CDN front-end for a resolution and builds the
// manifest URL for it.
package delivery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stream-resolver-go/pkg/config"
	"stream-resolver-go/pkg/interfaces"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/types"
)

// Probe reasons recorded in diagnostics.
const (
	ReasonOK             = "ok"
	ReasonNon200         = "non_200"
	ReasonTransportError = "transport_error"
	ReasonDisabled       = "disabled"
	ReasonCancelled      = "cancelled"
)

// Selector probes the alternate CDN and chooses a strategy.
// It holds no state between calls.
type Selector struct {
	client   interfaces.HTTPClient
	probeURL string
	enabled  bool
	log      *logging.Logger
}

var _ interfaces.StrategySelector = (*Selector)(nil)

// NewSelector creates a Selector probing cfg.AlternateCDNURL + "/ping".
func NewSelector(client interfaces.HTTPClient, cfg *config.Config, log *logging.Logger) *Selector {
	base := cfg.AlternateCDNURL
	if base == "" {
		base = config.DefaultAlternateCDNURL
	}
	return &Selector{
		client:   client,
		probeURL: strings.TrimRight(base, "/") + "/ping",
		enabled:  cfg.AlternateCDNEnabled,
		log:      log.WithComponent("delivery"),
	}
}

// Select issues one probe. Exactly 200 selects the alternate CDN; any other
// status or a transport failure selects the default one.
func (s *Selector) Select(ctx context.Context) (types.DeliveryStrategy, interfaces.ProbeResult) {
	if !s.enabled {
		return types.StrategyDefault, interfaces.ProbeResult{Reason: ReasonDisabled}
	}
	if err := ctx.Err(); err != nil {
		return types.StrategyDefault, interfaces.ProbeResult{Err: err, Reason: ReasonCancelled}
	}

	start := time.Now()
	result := s.probe(ctx)
	result.Latency = time.Since(start)

	strategy := types.StrategyDefault
	if result.Reason == ReasonOK {
		strategy = types.StrategyAlternate
	}

	s.log.Debug("cdn probe finished",
		"url", s.probeURL,
		"status", result.StatusCode,
		"reason", result.Reason,
		"strategy", strategy.String(),
		"duration", result.Latency,
	)
	return strategy, result
}

func (s *Selector) probe(ctx context.Context) interfaces.ProbeResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.probeURL, nil)
	if err != nil {
		return interfaces.ProbeResult{Err: fmt.Errorf("failed to create probe request: %w", err), Reason: ReasonTransportError}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return interfaces.ProbeResult{Err: err, Reason: ReasonCancelled}
		}
		return interfaces.ProbeResult{Err: fmt.Errorf("probe failed: %w", err), Reason: ReasonTransportError}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return interfaces.ProbeResult{StatusCode: resp.StatusCode, Reason: ReasonNon200}
	}
	return interfaces.ProbeResult{StatusCode: resp.StatusCode, Reason: ReasonOK}
}
