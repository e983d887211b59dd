// Package token negotiates playback access tokens with the GQL service.
package token

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"stream-resolver-go/pkg/config"
	"stream-resolver-go/pkg/httpclient"
	"stream-resolver-go/pkg/interfaces"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/types"
)

// Persisted query contract. The upstream rejects any other hash.
const (
	OperationName = "PlaybackAccessToken"
	QueryHash     = "0828119ded1c13477966434e15800ff57ddacf13ba1911c129dc2200705b0712"
	QueryVersion  = 1
	PlayerType    = "embed"
)

type persistedQuery struct {
	Version    int    `json:"version"`
	Sha256Hash string `json:"sha256Hash"`
}

type extensions struct {
	PersistedQuery persistedQuery `json:"persistedQuery"`
}

type variables struct {
	IsLive     bool   `json:"isLive"`
	Login      string `json:"login"`
	IsVod      bool   `json:"isVod"`
	VodID      string `json:"vodID"`
	PlayerType string `json:"playerType"`
}

type requestBody struct {
	OperationName string     `json:"operationName"`
	Extensions    extensions `json:"extensions"`
	Variables     variables  `json:"variables"`
}

type responseBody struct {
	Data *struct {
		StreamPlaybackAccessToken *types.PlaybackToken `json:"streamPlaybackAccessToken"`
	} `json:"data"`
}

// ErrMissingToken is reported when the response lacks the token path.
var ErrMissingToken = errors.New("response has no streamPlaybackAccessToken")

// Negotiator obtains a PlaybackToken for a stream identifier.
type Negotiator struct {
	client   interfaces.HTTPClient
	clientID string
	gqlURL   string
	log      *logging.Logger
}

var _ interfaces.TokenNegotiator = (*Negotiator)(nil)

// New creates a Negotiator using cfg's client id and GQL endpoint.
func New(client interfaces.HTTPClient, cfg *config.Config, log *logging.Logger) *Negotiator {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = config.DefaultClientID
	}
	gqlURL := cfg.GQLURL
	if gqlURL == "" {
		gqlURL = config.DefaultGQLURL
	}
	return &Negotiator{
		client:   client,
		clientID: clientID,
		gqlURL:   gqlURL,
		log:      log.WithComponent("token"),
	}
}

// NewRequestBody returns the JSON body sent for id.
func NewRequestBody(id types.StreamIdentifier) ([]byte, error) {
	vars := variables{
		IsLive:     id.IsLive,
		IsVod:      !id.IsLive,
		PlayerType: PlayerType,
	}
	if id.IsLive {
		vars.Login = id.Value
	} else {
		vars.VodID = id.Value
	}
	return json.Marshal(requestBody{
		OperationName: OperationName,
		Extensions: extensions{
			PersistedQuery: persistedQuery{Version: QueryVersion, Sha256Hash: QueryHash},
		},
		Variables: vars,
	})
}

// Negotiate performs one token request. Every failure degrades to the empty
// token; the outcome says which failure it was.
func (n *Negotiator) Negotiate(ctx context.Context, id types.StreamIdentifier) (types.PlaybackToken, types.TokenOutcome) {
	tok, outcome, err := n.negotiate(ctx, id)
	if err != nil {
		n.log.Warn("token negotiation degraded",
			"stream", id.Value,
			"kind", id.Kind(),
			"outcome", string(outcome),
			"error", err,
		)
		return types.PlaybackToken{}, outcome
	}
	n.log.Debug("token negotiated",
		"stream", id.Value,
		"kind", id.Kind(),
		"token", logging.Redact(tok.Value),
		"signature", logging.Redact(tok.Signature),
	)
	return tok, types.TokenOK
}

// NegotiateErr is Negotiate without the logging, returning the underlying
// error alongside the outcome.
func (n *Negotiator) NegotiateErr(ctx context.Context, id types.StreamIdentifier) (types.PlaybackToken, types.TokenOutcome, error) {
	tok, outcome, err := n.negotiate(ctx, id)
	if err != nil {
		return types.PlaybackToken{}, outcome, err
	}
	return tok, outcome, nil
}

func (n *Negotiator) negotiate(ctx context.Context, id types.StreamIdentifier) (types.PlaybackToken, types.TokenOutcome, error) {
	if err := ctx.Err(); err != nil {
		return types.PlaybackToken{}, types.TokenCancelled, err
	}

	payload, err := NewRequestBody(id)
	if err != nil {
		return types.PlaybackToken{}, types.TokenBadJSON, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.gqlURL, bytes.NewReader(payload))
	if err != nil {
		return types.PlaybackToken{}, types.TokenTransportError, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Client-ID", n.clientID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return types.PlaybackToken{}, types.TokenCancelled, err
		}
		return types.PlaybackToken{}, types.TokenTransportError, fmt.Errorf("failed to fetch token: %w", err)
	}
	defer resp.Body.Close()

	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return types.PlaybackToken{}, types.TokenTransportError, err
	}

	return parseResponse(body)
}

func parseResponse(body []byte) (types.PlaybackToken, types.TokenOutcome, error) {
	var parsed responseBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return types.PlaybackToken{}, types.TokenBadJSON, fmt.Errorf("failed to decode token response: %w", err)
	}
	if parsed.Data == nil || parsed.Data.StreamPlaybackAccessToken == nil {
		return types.PlaybackToken{}, types.TokenMissing, ErrMissingToken
	}
	tok := *parsed.Data.StreamPlaybackAccessToken
	if tok.IsZero() {
		return types.PlaybackToken{}, types.TokenMissing, ErrMissingToken
	}
	return tok, types.TokenOK, nil
}
