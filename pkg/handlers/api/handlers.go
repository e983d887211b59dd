// Package api provides HTTP handlers for the resolver API.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stream-resolver-go/pkg/appctx"
	"stream-resolver-go/pkg/extractors"
	"stream-resolver-go/pkg/httpclient"
	"stream-resolver-go/pkg/interfaces"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/types"
)

// Handlers contains all API handlers.
type Handlers struct {
	ctx *appctx.Context
	log *logging.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(ctx *appctx.Context) *Handlers {
	return &Handlers{
		ctx: ctx,
		log: ctx.Log.WithComponent("api"),
	}
}

// RegisterRoutes registers all API routes.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	// Public routes
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /api/info", h.handleAPIInfo)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Resolution
	mux.HandleFunc("GET /api/resolve", h.handleResolve)
	mux.HandleFunc("GET /extractor", h.handleExtractor)

	// Proxy routes
	mux.HandleFunc("GET /proxy/manifest.m3u8", h.handleProxyManifest)
	mux.HandleFunc("GET /proxy/stream", h.handleProxyStream)
}

func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>stream-resolver</title></head>
<body>
<h1>stream-resolver %s</h1>
<ul>
<li><code>GET /api/resolve?channel=&lt;login&gt;</code> or <code>?vod=&lt;id&gt;</code></li>
<li><code>GET /extractor?url=&lt;twitch url&gt;&amp;quality=&lt;key&gt;</code></li>
<li><code>GET /proxy/manifest.m3u8?url=&lt;manifest or page url&gt;</code></li>
<li><code>GET /health</code>, <code>GET /api/info</code>, <code>GET /metrics</code></li>
</ul>
</body>
</html>`, h.ctx.Version)
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) handleAPIInfo(w http.ResponseWriter, r *http.Request) {
	var names []string
	if h.ctx.Extractors != nil {
		names = h.ctx.Extractors.Names()
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":                "running",
		"version":               h.ctx.Version,
		"extractors":            names,
		"alternate_cdn_enabled": h.ctx.Config.AlternateCDNEnabled,
		"alternate_cdn_url":     h.ctx.Config.AlternateCDNURL,
		"usher_url":             h.ctx.Config.UsherURL,
	})
}

// handleResolve runs the pipeline for ?channel=, ?vod= or a Twitch ?url=.
func (h *Handlers) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, err := identifierFromQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.log.Debug("resolve request", "stream", id.Value, "kind", id.Kind())

	result := h.ctx.ProxyService.Resolve(r.Context(), id)
	h.writeJSON(w, http.StatusOK, resolveResponse{
		Identifier:  id.Value,
		Kind:        id.Kind(),
		Qualities:   result.Qualities,
		Diagnostics: result.Diagnostics,
	})
}

type resolveResponse struct {
	Identifier  string            `json:"identifier"`
	Kind        string            `json:"kind"`
	Qualities   *types.QualityMap `json:"qualities"`
	Diagnostics types.Diagnostics `json:"diagnostics"`
}

func identifierFromQuery(r *http.Request) (types.StreamIdentifier, error) {
	q := r.URL.Query()
	channel := strings.TrimSpace(q.Get("channel"))
	vod := strings.TrimSpace(q.Get("vod"))
	page := strings.TrimSpace(q.Get("url"))

	switch {
	case channel != "" && vod != "":
		return types.StreamIdentifier{}, fmt.Errorf("channel and vod are mutually exclusive")
	case channel != "":
		return extractors.ChannelIdentifier(channel)
	case vod != "":
		return extractors.VODIdentifier(vod)
	case page != "":
		return extractors.ParseIdentifier(page)
	default:
		return types.StreamIdentifier{}, fmt.Errorf("channel, vod or url parameter required")
	}
}

func (h *Handlers) handleExtractor(w http.ResponseWriter, r *http.Request) {
	urlStr := r.URL.Query().Get("url")
	if urlStr == "" {
		urlStr = r.URL.Query().Get("d")
	}
	if urlStr == "" {
		h.writeError(w, http.StatusBadRequest, "url parameter required")
		return
	}

	h.log.Debug("extract request", "url", urlStr)

	opts := interfaces.ExtractOptions{
		Headers: httpclient.ParseHeaderParams(r.URL.Query()),
		Quality: r.URL.Query().Get("quality"),
		Host:    r.URL.Query().Get("host"),
	}

	result, err := h.ctx.ProxyService.HandleExtract(r.Context(), urlStr, opts)
	if err != nil {
		h.log.Error("extraction failed", "url", urlStr, "error", err)
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if r.URL.Query().Get("redirect_stream") == "true" {
		http.Redirect(w, r, result.ProxyURL, http.StatusFound)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) handleProxyManifest(w http.ResponseWriter, r *http.Request) {
	req := h.parseStreamRequest(r)
	if req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "url parameter required")
		return
	}

	resp, err := h.ctx.ProxyService.HandleManifest(r.Context(), req)
	if err != nil {
		h.log.Error("proxy manifest failed", "url", req.URL, "error", err)
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.writeStreamResponse(w, resp)
}

func (h *Handlers) handleProxyStream(w http.ResponseWriter, r *http.Request) {
	req := h.parseStreamRequest(r)
	if req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "url parameter required")
		return
	}

	resp, err := h.ctx.ProxyService.HandleSegment(r.Context(), req)
	if err != nil {
		h.log.Error("proxy stream failed", "url", req.URL, "error", err)
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.writeStreamResponse(w, resp)
}

// Helper methods

func (h *Handlers) parseStreamRequest(r *http.Request) *types.StreamRequest {
	urlStr := r.URL.Query().Get("url")
	if urlStr == "" {
		urlStr = r.URL.Query().Get("d")
	}
	return &types.StreamRequest{
		URL:     urlStr,
		Headers: httpclient.ParseHeaderParams(r.URL.Query()),
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Warn("failed to encode response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handlers) writeStreamResponse(w http.ResponseWriter, resp *types.StreamResponse) {
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	w.WriteHeader(resp.StatusCode)

	if resp.Body != nil {
		defer resp.Body.Close()
		io.Copy(w, resp.Body)
	}
}
