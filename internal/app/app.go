// Package app provides the main application setup and dependency injection.
package app

import (
	"context"

	"stream-resolver-go/pkg/appctx"
	"stream-resolver-go/pkg/config"
	"stream-resolver-go/pkg/delivery"
	"stream-resolver-go/pkg/extractors"
	"stream-resolver-go/pkg/handlers/api"
	"stream-resolver-go/pkg/handlers/streams"
	"stream-resolver-go/pkg/httpclient"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/randgen"
	"stream-resolver-go/pkg/registry"
	"stream-resolver-go/pkg/resolver"
	"stream-resolver-go/pkg/server"
	"stream-resolver-go/pkg/services"
	"stream-resolver-go/pkg/stremio"
)

// App is the main application container.
type App struct {
	Ctx          *appctx.Context
	Server       *server.Server
	HTTPClient   *httpclient.Client
	Resolver     *resolver.Resolver
	ExtractorReg *registry.ExtractorRegistry
}

// New wires every component around cfg.
func New(cfg *config.Config, log *logging.Logger, version string) (*App, error) {
	log.Info("initializing stream-resolver",
		"port", cfg.Port,
		"log_level", cfg.LogLevel,
		"alternate_cdn", cfg.AlternateCDNEnabled,
	)

	ctx := appctx.New(cfg, log).WithVersion(version)

	httpClient := httpclient.New(cfg, log)
	res := resolver.NewFromConfig(cfg, httpClient, log)

	// Player headers for proxied fetches. Only the header set is used, so a
	// separate builder is fine.
	playerHeaders := delivery.NewURLBuilder(cfg, randgen.New())

	extractorReg := registry.NewExtractorRegistry()
	registerExtractors(extractorReg, res, playerHeaders, log)
	ctx.WithExtractors(extractorReg)

	hls := streams.NewHLSHandler(httpClient, log)
	ctx.WithProxyService(services.NewProxyService(log, res, extractorReg, hls, ctx.BaseURL))

	srv := server.New(cfg, log)
	api.NewHandlers(ctx).RegisterRoutes(srv.Router())

	if cfg.StremioEnabled {
		stremio.NewHandlers(ctx).RegisterRoutes(srv.Router())
		log.Info("stremio addon enabled", "path", "/stremio")
	}

	return &App{
		Ctx:          ctx,
		Server:       srv,
		HTTPClient:   httpClient,
		Resolver:     res,
		ExtractorReg: extractorReg,
	}, nil
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.Ctx.Log.Info("starting stream-resolver server", "port", a.Ctx.Config.Port, "version", a.Ctx.Version)
	return a.Server.Start(ctx)
}

// Shutdown releases extractor resources.
func (a *App) Shutdown() {
	a.Ctx.Log.Info("shutting down application")
	if err := a.ExtractorReg.Close(); err != nil {
		a.Ctx.Log.Warn("extractor close failed", "error", err)
	}
}

// registerExtractors registers all URL extractors.
func registerExtractors(
	reg *registry.ExtractorRegistry,
	res *resolver.Resolver,
	headers *delivery.URLBuilder,
	log *logging.Logger,
) {
	reg.Register(extractors.NewTwitchExtractor(res, headers, log))
	reg.SetFallback(extractors.NewDirectExtractor(headers, log))

	log.Info("registered extractors", "count", len(reg.All())+1) // +1 for fallback
}
