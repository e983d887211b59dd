// Package appctx provides the application context that holds all runtime dependencies.
package appctx

import (
	"strings"

	"stream-resolver-go/pkg/config"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/registry"
	"stream-resolver-go/pkg/services"
)

// Context holds all application runtime dependencies.
// Pass this single struct to components instead of individual parameters.
type Context struct {
	Config       *config.Config
	Log          *logging.Logger
	ProxyService *services.ProxyService
	Extractors   *registry.ExtractorRegistry
	BaseURL      string
	Version      string
}

// New creates a new application context.
func New(cfg *config.Config, log *logging.Logger) *Context {
	return &Context{
		Config:  cfg,
		Log:     log,
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Version: "dev",
	}
}

// WithProxyService sets the proxy service.
func (c *Context) WithProxyService(ps *services.ProxyService) *Context {
	c.ProxyService = ps
	return c
}

// WithExtractors sets the extractor registry.
func (c *Context) WithExtractors(r *registry.ExtractorRegistry) *Context {
	c.Extractors = r
	return c
}

// WithVersion sets the build version reported by the API.
func (c *Context) WithVersion(v string) *Context {
	if v != "" {
		c.Version = v
	}
	return c
}
