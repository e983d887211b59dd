package extractors

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"stream-resolver-go/pkg/interfaces"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/types"
)

var (
	twitchHosts = map[string]bool{
		"twitch.tv":        true,
		"www.twitch.tv":    true,
		"m.twitch.tv":      true,
		"go.twitch.tv":     true,
		"player.twitch.tv": true,
	}

	loginPattern = regexp.MustCompile(`^[A-Za-z0-9_]{2,25}$`)
	vodPattern   = regexp.MustCompile(`^v?([0-9]+)$`)

	// First path segments that are site pages, not channels.
	reservedPaths = map[string]bool{
		"directory": true, "downloads": true, "drops": true, "friends": true,
		"inventory": true, "jobs": true, "login": true, "messages": true,
		"p": true, "prime": true, "search": true, "settings": true,
		"signup": true, "store": true, "subscriptions": true, "turbo": true,
		"videos": true, "wallet": true,
	}
)

// ErrNotTwitchURL is returned for URLs that do not name a channel or video.
var ErrNotTwitchURL = errors.New("not a twitch channel or video URL")

// TwitchExtractor resolves twitch.tv channel and video pages.
type TwitchExtractor struct {
	*BaseExtractor
	resolver interfaces.Resolver
}

// NewTwitchExtractor creates a new Twitch extractor.
func NewTwitchExtractor(resolver interfaces.Resolver, headers playerHeaders, log *logging.Logger) *TwitchExtractor {
	return &TwitchExtractor{
		BaseExtractor: NewBaseExtractor(headers, log.WithComponent("twitch-extractor")),
		resolver:      resolver,
	}
}

// Name returns the extractor name.
func (e *TwitchExtractor) Name() string {
	return "twitch"
}

// CanExtract returns true for URLs that name a channel or a video.
func (e *TwitchExtractor) CanExtract(urlStr string) bool {
	_, err := ParseIdentifier(urlStr)
	return err == nil
}

// ChannelIdentifier validates a bare channel login. The result is lowercased.
func ChannelIdentifier(login string) (types.StreamIdentifier, error) {
	login = strings.TrimSpace(login)
	if !loginPattern.MatchString(login) {
		return types.StreamIdentifier{}, fmt.Errorf("invalid channel login %q", login)
	}
	return types.LiveChannel(strings.ToLower(login)), nil
}

// VODIdentifier validates a bare video id, with or without the leading v.
func VODIdentifier(id string) (types.StreamIdentifier, error) {
	m := vodPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(id)))
	if m == nil {
		return types.StreamIdentifier{}, fmt.Errorf("invalid video id %q", id)
	}
	return types.VOD(m[1]), nil
}

// ParseIdentifier converts a Twitch page URL into a stream identifier.
//
// Recognised forms:
//
//	https://www.twitch.tv/<login>
//	https://www.twitch.tv/videos/<id>
//	https://m.twitch.tv/<login>
//	https://player.twitch.tv/?channel=<login>
//	https://player.twitch.tv/?video=v<id>
func ParseIdentifier(urlStr string) (types.StreamIdentifier, error) {
	u, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil || u.Host == "" {
		return types.StreamIdentifier{}, ErrNotTwitchURL
	}
	host := strings.ToLower(u.Hostname())
	if !twitchHosts[host] {
		return types.StreamIdentifier{}, ErrNotTwitchURL
	}

	if host == "player.twitch.tv" {
		q := u.Query()
		if ch := q.Get("channel"); loginPattern.MatchString(ch) {
			return types.LiveChannel(strings.ToLower(ch)), nil
		}
		if m := vodPattern.FindStringSubmatch(q.Get("video")); m != nil {
			return types.VOD(m[1]), nil
		}
		return types.StreamIdentifier{}, ErrNotTwitchURL
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return types.StreamIdentifier{}, ErrNotTwitchURL
	}

	if segments[0] == "videos" {
		if len(segments) > 1 {
			if m := vodPattern.FindStringSubmatch(segments[1]); m != nil {
				return types.VOD(m[1]), nil
			}
		}
		return types.StreamIdentifier{}, ErrNotTwitchURL
	}

	login := strings.ToLower(segments[0])
	if reservedPaths[login] || !loginPattern.MatchString(login) {
		return types.StreamIdentifier{}, ErrNotTwitchURL
	}
	// /<login>/video/<id> is the channel-scoped video path.
	if len(segments) > 2 && (segments[1] == "video" || segments[1] == "v") {
		if m := vodPattern.FindStringSubmatch(segments[2]); m != nil {
			return types.VOD(m[1]), nil
		}
	}
	return types.LiveChannel(login), nil
}

// Extract resolves the page and picks a variant. opts.Quality selects by key
// or label; otherwise the first non-auto variant wins, then the auto entry.
func (e *TwitchExtractor) Extract(ctx context.Context, urlStr string, opts interfaces.ExtractOptions) (*types.ExtractResult, error) {
	id, err := ParseIdentifier(urlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", urlStr, err)
	}

	res := e.resolver.Resolve(ctx, id)
	entry, ok := pickQuality(res.Qualities, opts.Quality)
	if !ok {
		return nil, fmt.Errorf("no playable quality for %s", id.Value)
	}

	e.log.Debug("extracted twitch stream",
		"stream", id.Value,
		"kind", id.Kind(),
		"quality", entry.Key,
		"variants", res.Diagnostics.VariantsFound,
	)

	return &types.ExtractResult{
		DestinationURL: entry.Quality.URL,
		RequestHeaders: e.RequestHeaders(res.Diagnostics.Strategy, opts.Headers),
		Identifier:     id.Value,
		Kind:           id.Kind(),
		Strategy:       res.Diagnostics.Strategy,
		Qualities:      res.Qualities,
	}, nil
}

func pickQuality(qualities *types.QualityMap, want string) (types.QualityEntry, bool) {
	if want = strings.TrimSpace(want); want != "" {
		for _, e := range qualities.Entries() {
			if strings.EqualFold(e.Key, want) || strings.EqualFold(e.Quality.Label, want) {
				return e, true
			}
		}
	}
	if best, ok := qualities.Best(); ok {
		return best, true
	}
	return qualities.First()
}

var _ interfaces.Extractor = (*TwitchExtractor)(nil)
