package delivery

import (
	"net/url"
	"strconv"
	"strings"

	"stream-resolver-go/pkg/config"
	"stream-resolver-go/pkg/interfaces"
	"stream-resolver-go/pkg/randgen"
	"stream-resolver-go/pkg/types"
)

const (
	sessionIDLength = 32
	altSigLength    = 32
	// usher picks one of six edge pools from p.
	usherPoolCount = 6
)

// EncodeFunc percent-encodes a query component.
type EncodeFunc func(string) (string, error)

// formEscaper moves url.QueryEscape output onto the form-urlencoded alphabet:
// '*' stays literal and '~' is escaped.
var formEscaper = strings.NewReplacer("%2A", "*", "~", "%7E")

func queryEscape(s string) (string, error) {
	return formEscaper.Replace(url.QueryEscape(s)), nil
}

// URLBuilder assembles manifest URLs for either CDN front-end.
type URLBuilder struct {
	alternateBase string
	usherBase     string
	origin        string
	donateTo      string
	rnd           *randgen.Generator
	encode        EncodeFunc
}

var _ interfaces.ManifestURLBuilder = (*URLBuilder)(nil)

// NewURLBuilder creates a URLBuilder from cfg. A nil rnd uses the shared source.
func NewURLBuilder(cfg *config.Config, rnd *randgen.Generator) *URLBuilder {
	if rnd == nil {
		rnd = randgen.New()
	}
	return &URLBuilder{
		alternateBase: strings.TrimRight(orDefault(cfg.AlternateCDNURL, config.DefaultAlternateCDNURL), "/"),
		usherBase:     strings.TrimRight(orDefault(cfg.UsherURL, config.DefaultUsherURL), "/"),
		origin:        orDefault(cfg.PlayerOrigin, config.DefaultPlayerOrigin),
		donateTo:      orDefault(cfg.DonateTo, config.DefaultDonateTo),
		rnd:           rnd,
		encode:        queryEscape,
	}
}

// WithEncoder replaces the query encoder.
func (b *URLBuilder) WithEncoder(fn EncodeFunc) *URLBuilder {
	if fn != nil {
		b.encode = fn
	}
	return b
}

// SafeEncode percent-encodes s and falls back to s unchanged if the encoder fails.
func (b *URLBuilder) SafeEncode(s string) string {
	encoded, err := b.encode(s)
	if err != nil {
		return s
	}
	return encoded
}

// BuildManifestURL returns the multivariant manifest URL for id under strategy.
func (b *URLBuilder) BuildManifestURL(id types.StreamIdentifier, token types.PlaybackToken, strategy types.DeliveryStrategy) string {
	if strategy == types.StrategyAlternate {
		return b.alternateURL(id, token)
	}
	return b.defaultURL(id, token)
}

// The whole query block, leading '?' included, is encoded as one component.
// play_session_id uses ':' rather than '=' and sig is a fresh random value;
// the alternate front-end accepts both as sent.
func (b *URLBuilder) alternateURL(id types.StreamIdentifier, token types.PlaybackToken) string {
	var q strings.Builder
	q.WriteString("?allow_source=true")
	q.WriteString("&fast_bread=true")
	q.WriteString("&play_session_id:")
	q.WriteString(b.rnd.AlphaNumeric(sessionIDLength))
	q.WriteString("&player_backend=mediaplayer")
	q.WriteString("&playlist_include_framerate=true")
	q.WriteString("&reassignments_supported=true")
	q.WriteString("&sig=")
	q.WriteString(b.rnd.AlphaNumeric(altSigLength))
	q.WriteString("&token=")
	q.WriteString(token.Value)
	q.WriteString("&cdm=wv")
	q.WriteString("&player_version=1.4.0")

	return b.alternateBase + "/playlist/" + id.Value + ".m3u8" + b.SafeEncode(q.String())
}

func (b *URLBuilder) defaultURL(id types.StreamIdentifier, token types.PlaybackToken) string {
	var u strings.Builder
	u.WriteString(b.usherBase)
	u.WriteString("/api/channel/hls/")
	u.WriteString(id.Value)
	u.WriteString(".m3u8?player=twitchweb")
	u.WriteString("&token=")
	u.WriteString(b.SafeEncode(token.Value))
	u.WriteString("&sig=")
	u.WriteString(token.Signature)
	u.WriteString("&allow_audio_only=true")
	u.WriteString("&allow_source=true")
	u.WriteString("&type=any")
	u.WriteString("&p=")
	u.WriteString(strconv.Itoa(b.rnd.IntN(usherPoolCount)))
	return u.String()
}

// Headers returns the request headers the manifest fetch needs under strategy.
func (b *URLBuilder) Headers(strategy types.DeliveryStrategy) map[string]string {
	h := map[string]string{
		"Referer": b.origin,
		"Origin":  b.origin,
	}
	if strategy == types.StrategyAlternate {
		h["X-Donate-To"] = b.donateTo
	}
	return h
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
