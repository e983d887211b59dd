// Package types defines core domain types used throughout the application.
package types

import (
	"io"
	"time"
)

// StreamIdentifier names either a live channel (login) or a recorded video (VOD id).
type StreamIdentifier struct {
	Value  string
	IsLive bool
}

// LiveChannel returns an identifier for a live channel login.
func LiveChannel(login string) StreamIdentifier {
	return StreamIdentifier{Value: login, IsLive: true}
}

// VOD returns an identifier for a recorded video.
func VOD(id string) StreamIdentifier {
	return StreamIdentifier{Value: id, IsLive: false}
}

// Kind returns "live" or "vod".
func (id StreamIdentifier) Kind() string {
	if id.IsLive {
		return "live"
	}
	return "vod"
}

// PlaybackToken is the signed credential returned by the token service.
type PlaybackToken struct {
	Value     string `json:"value"`
	Signature string `json:"signature"`
}

// IsZero reports whether the token is the degraded empty token.
func (t PlaybackToken) IsZero() bool {
	return t.Value == "" && t.Signature == ""
}

// DeliveryStrategy selects the CDN front-end used for one resolution.
type DeliveryStrategy int

const (
	StrategyDefault DeliveryStrategy = iota
	StrategyAlternate
)

func (s DeliveryStrategy) String() string {
	switch s {
	case StrategyAlternate:
		return "alternate"
	default:
		return "default"
	}
}

// MarshalText encodes the strategy by name.
func (s DeliveryStrategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Quality is a named playable variant.
type Quality struct {
	Label string `json:"label"`
	URL   string `json:"url"`

	// Variant metadata, only set when the playlist carries it.
	Bandwidth  uint32  `json:"bandwidth,omitempty"`
	Resolution string  `json:"resolution,omitempty"`
	FrameRate  float64 `json:"frame_rate,omitempty"`
	Codecs     string  `json:"codecs,omitempty"`
}

// TokenOutcome classifies how token negotiation ended.
type TokenOutcome string

const (
	TokenOK             TokenOutcome = "ok"
	TokenTransportError TokenOutcome = "transport_error"
	TokenBadJSON        TokenOutcome = "bad_json"
	TokenMissing        TokenOutcome = "missing_token"
	TokenCancelled      TokenOutcome = "cancelled"
)

// Diagnostics explains how a resolution arrived at its result.
// It never changes the result itself.
type Diagnostics struct {
	Identifier     StreamIdentifier `json:"-"`
	TokenOutcome   TokenOutcome     `json:"token_outcome"`
	TokenError     string           `json:"token_error,omitempty"`
	ProbeStatus    int              `json:"probe_status"`
	ProbeError     string           `json:"probe_error,omitempty"`
	ProbeLatency   time.Duration    `json:"probe_latency"`
	Strategy       DeliveryStrategy `json:"strategy"`
	StrategyReason string           `json:"strategy_reason"`
	ManifestURL    string           `json:"manifest_url"`
	ManifestStatus int              `json:"manifest_status"`
	ManifestError  string           `json:"manifest_error,omitempty"`
	VariantsFound  int              `json:"variants_found"`
	Cancelled      bool             `json:"cancelled,omitempty"`
	Duration       time.Duration    `json:"duration"`
}

// Result is the single value delivered per resolution.
type Result struct {
	Qualities   *QualityMap `json:"qualities"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// ExtractResult contains the result of URL extraction.
type ExtractResult struct {
	DestinationURL string            `json:"destination_url"`
	RequestHeaders map[string]string `json:"request_headers"`
	ProxyURL       string            `json:"proxy_url,omitempty"`
	Identifier     string            `json:"identifier"`
	Kind           string            `json:"kind"`
	Strategy       DeliveryStrategy  `json:"strategy"`
	Qualities      *QualityMap       `json:"qualities"`
}

// StreamRequest represents an incoming stream proxy request.
type StreamRequest struct {
	URL     string
	Headers map[string]string
}

// StreamResponse represents the result of stream processing.
type StreamResponse struct {
	ContentType string
	Headers     map[string]string
	Body        io.ReadCloser
	StatusCode  int
}
