package stremio

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"stream-resolver-go/pkg/appctx"
	"stream-resolver-go/pkg/extractors"
	"stream-resolver-go/pkg/interfaces"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/types"
	"stream-resolver-go/pkg/urlutil"
)

// Handlers contains all Stremio addon handlers.
type Handlers struct {
	ctx *appctx.Context
	log *logging.Logger
}

// NewHandlers creates a new Stremio Handlers instance.
func NewHandlers(ctx *appctx.Context) *Handlers {
	return &Handlers{
		ctx: ctx,
		log: ctx.Log.WithComponent("stremio"),
	}
}

// RegisterRoutes registers all Stremio addon routes.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /stremio", h.handleHome)
	mux.HandleFunc("GET /stremio/{$}", h.handleHome)
	mux.HandleFunc("GET /stremio/manifest.json", h.handleManifest)
	mux.HandleFunc("GET /stremio/catalog/{type}/{id}", h.handleCatalog)
	mux.HandleFunc("GET /stremio/catalog/{type}/{id}/{extra}", h.handleCatalog)
	mux.HandleFunc("GET /stremio/meta/{type}/{id}", h.handleMeta)
	mux.HandleFunc("GET /stremio/stream/{type}/{id}", h.handleStream)
}

func (h *Handlers) handleHome(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	manifestURL := fmt.Sprintf("%s://%s/stremio/manifest.json", scheme, r.Host)
	stremioURL := fmt.Sprintf("stremio://%s/stremio/manifest.json", r.Host)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Twitch - Stremio Addon</title></head>
<body>
<h1>Twitch for Stremio</h1>
<p><a href="%s">Install addon</a></p>
<p>Manifest: <code>%s</code></p>
</body>
</html>`, stremioURL, manifestURL)
}

func (h *Handlers) handleManifest(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, manifest(h.ctx.Version))
}

// handleCatalog answers search=<login> with a single channel item. Stremio
// sends extras as a path segment: /catalog/tv/twitch-channels/search=foo.json.
func (h *Handlers) handleCatalog(w http.ResponseWriter, r *http.Request) {
	empty := map[string][]Meta{"metas": {}}
	if r.PathValue("type") != "tv" || r.PathValue("id") != catalogID {
		h.jsonResponse(w, empty)
		return
	}

	extra := strings.TrimSuffix(r.PathValue("extra"), ".json")
	search, ok := strings.CutPrefix(extra, "search=")
	if !ok {
		h.jsonResponse(w, empty)
		return
	}
	if decoded, err := url.QueryUnescape(search); err == nil {
		search = decoded
	}

	id, err := extractors.ParseIdentifier("https://www.twitch.tv/" + url.PathEscape(strings.TrimSpace(search)))
	if err != nil || !id.IsLive {
		h.jsonResponse(w, empty)
		return
	}
	h.jsonResponse(w, map[string][]Meta{"metas": {metaFor(id)}})
}

func (h *Handlers) handleMeta(w http.ResponseWriter, r *http.Request) {
	id, err := identifierFromItem(r.PathValue("type"), r.PathValue("id"))
	if err != nil {
		h.jsonResponse(w, map[string]any{"meta": nil})
		return
	}
	h.jsonResponse(w, map[string]Meta{"meta": metaFor(id)})
}

// handleStream resolves the item once and offers every quality through the
// local HLS proxy, auto first.
func (h *Handlers) handleStream(w http.ResponseWriter, r *http.Request) {
	id, err := identifierFromItem(r.PathValue("type"), r.PathValue("id"))
	if err != nil {
		h.jsonResponse(w, map[string][]Stream{"streams": {}})
		return
	}

	result, err := h.ctx.ProxyService.HandleExtract(r.Context(), pageURL(id), interfaces.ExtractOptions{})
	if err != nil {
		h.log.Warn("stream resolution failed", "stream", id.Value, "error", err)
		h.jsonResponse(w, map[string][]Stream{"streams": {}})
		return
	}

	entries := result.Qualities.Entries()
	streams := make([]Stream, 0, len(entries))
	for _, e := range entries {
		streams = append(streams, Stream{
			URL:   urlutil.ProxyURL(h.ctx.BaseURL, e.Quality.URL, result.RequestHeaders),
			Name:  "Twitch",
			Title: e.Quality.Label,
			BehaviorHints: map[string]any{
				"notWebReady": false,
				"bingeGroup":  "twitch-" + e.Key,
			},
		})
	}

	h.log.Debug("stremio streams", "stream", id.Value, "count", len(streams))
	h.jsonResponseNoCache(w, map[string][]Stream{"streams": streams})
}

// identifierFromItem maps twitch:<login> and twitch:v<id> item ids.
func identifierFromItem(itemType, itemID string) (types.StreamIdentifier, error) {
	itemID = strings.TrimSuffix(itemID, ".json")
	rest, ok := strings.CutPrefix(itemID, IDPrefix)
	if itemType != "tv" || !ok || rest == "" {
		return types.StreamIdentifier{}, fmt.Errorf("unsupported item %s/%s", itemType, itemID)
	}
	if len(rest) > 1 && rest[0] == 'v' && isDigits(rest[1:]) {
		return extractors.ParseIdentifier("https://www.twitch.tv/videos/" + rest)
	}
	return extractors.ParseIdentifier("https://www.twitch.tv/" + url.PathEscape(rest))
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

func pageURL(id types.StreamIdentifier) string {
	if id.IsLive {
		return "https://www.twitch.tv/" + id.Value
	}
	return "https://www.twitch.tv/videos/" + id.Value
}

func metaFor(id types.StreamIdentifier) Meta {
	if id.IsLive {
		return Meta{ID: IDPrefix + id.Value, Type: "tv", Name: id.Value, Description: "Live channel"}
	}
	return Meta{ID: IDPrefix + "v" + id.Value, Type: "tv", Name: "VOD " + id.Value, Description: "Past broadcast"}
}

func (h *Handlers) jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "max-age=3600")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Warn("failed to encode stremio response", "error", err)
	}
}

func (h *Handlers) jsonResponseNoCache(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Warn("failed to encode stremio response", "error", err)
	}
}
