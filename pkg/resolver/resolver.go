// Package resolver runs the three-stage pipeline that turns a stream
// identifier into an ordered map of playable qualities.
package resolver

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stream-resolver-go/pkg/config"
	"stream-resolver-go/pkg/delivery"
	"stream-resolver-go/pkg/interfaces"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/metrics"
	"stream-resolver-go/pkg/playlist"
	"stream-resolver-go/pkg/randgen"
	"stream-resolver-go/pkg/token"
	"stream-resolver-go/pkg/types"
)

const tracerName = "stream-resolver-go/pkg/resolver"

// errNegotiator is implemented by negotiators that can report the cause of a
// degraded token.
type errNegotiator interface {
	NegotiateErr(ctx context.Context, id types.StreamIdentifier) (types.PlaybackToken, types.TokenOutcome, error)
}

// Resolver negotiates a token, picks a CDN, then fetches and parses the
// manifest. Every failure degrades to a map holding only the auto entry.
type Resolver struct {
	negotiator interfaces.TokenNegotiator
	selector   interfaces.StrategySelector
	builder    interfaces.ManifestURLBuilder
	fetcher    interfaces.PlaylistFetcher
	log        *logging.Logger
	tracer     trace.Tracer
}

var _ interfaces.Resolver = (*Resolver)(nil)

// New creates a Resolver from explicit stages.
func New(
	negotiator interfaces.TokenNegotiator,
	selector interfaces.StrategySelector,
	builder interfaces.ManifestURLBuilder,
	fetcher interfaces.PlaylistFetcher,
	log *logging.Logger,
) *Resolver {
	return &Resolver{
		negotiator: negotiator,
		selector:   selector,
		builder:    builder,
		fetcher:    fetcher,
		log:        log.WithComponent("resolver"),
		tracer:     otel.Tracer(tracerName),
	}
}

// NewFromConfig wires the production stages around client.
func NewFromConfig(cfg *config.Config, client interfaces.HTTPClient, log *logging.Logger) *Resolver {
	builder := delivery.NewURLBuilder(cfg, randgen.New())
	return New(
		token.New(client, cfg, log),
		delivery.NewSelector(client, cfg, log),
		builder,
		playlist.NewFetcher(client, builder, log),
		log,
	)
}

// Resolve blocks until the pipeline finishes or is cut short by ctx.
// It never returns an error; Diagnostics records what went wrong.
func (r *Resolver) Resolve(ctx context.Context, id types.StreamIdentifier) types.Result {
	start := time.Now()
	log := r.log.WithStream(id.Value, id.IsLive)

	ctx, span := r.tracer.Start(ctx, "resolver.Resolve", trace.WithAttributes(
		attribute.String("stream.id", id.Value),
		attribute.String("stream.kind", id.Kind()),
	))
	defer span.End()

	diag := types.Diagnostics{Identifier: id}

	tok := r.negotiate(ctx, id, &diag)
	strategy := r.selectStrategy(ctx, &diag)

	manifestURL := r.builder.BuildManifestURL(id, tok, strategy)
	diag.ManifestURL = manifestURL

	qualities := r.fetch(ctx, manifestURL, strategy, &diag)

	diag.VariantsFound = qualities.Len() - 1
	diag.Cancelled = ctx.Err() != nil
	diag.Duration = time.Since(start)

	metrics.RecordResolution(id.Kind(), strategy.String(), diag.VariantsFound)
	metrics.ObserveStage("total", diag.Duration)

	span.SetAttributes(
		attribute.String("resolver.strategy", strategy.String()),
		attribute.String("resolver.token_outcome", string(diag.TokenOutcome)),
		attribute.Int("resolver.variants", diag.VariantsFound),
		attribute.Bool("resolver.cancelled", diag.Cancelled),
	)

	log.Info("stream resolved",
		"strategy", strategy.String(),
		"strategy_reason", diag.StrategyReason,
		"token_outcome", string(diag.TokenOutcome),
		"manifest_status", diag.ManifestStatus,
		"variants", diag.VariantsFound,
		"cancelled", diag.Cancelled,
		"duration", diag.Duration,
	)

	return types.Result{Qualities: qualities, Diagnostics: diag}
}

func (r *Resolver) negotiate(ctx context.Context, id types.StreamIdentifier, diag *types.Diagnostics) types.PlaybackToken {
	ctx, span := r.tracer.Start(ctx, "resolver.token")
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveStage("token", time.Since(start)) }()

	if err := ctx.Err(); err != nil {
		diag.TokenOutcome = types.TokenCancelled
		diag.TokenError = err.Error()
		metrics.RecordTokenOutcome(string(types.TokenCancelled))
		return types.PlaybackToken{}
	}

	var (
		tok     types.PlaybackToken
		outcome types.TokenOutcome
	)
	if en, ok := r.negotiator.(errNegotiator); ok {
		var err error
		tok, outcome, err = en.NegotiateErr(ctx, id)
		if err != nil {
			diag.TokenError = err.Error()
			r.log.Warn("token negotiation degraded", "stream", id.Value, "outcome", string(outcome), "error", err)
		}
	} else {
		tok, outcome = r.negotiator.Negotiate(ctx, id)
	}

	diag.TokenOutcome = outcome
	span.SetAttributes(attribute.String("token.outcome", string(outcome)))
	if outcome != types.TokenOK {
		span.SetStatus(codes.Error, string(outcome))
	}
	metrics.RecordTokenOutcome(string(outcome))
	return tok
}

func (r *Resolver) selectStrategy(ctx context.Context, diag *types.Diagnostics) types.DeliveryStrategy {
	ctx, span := r.tracer.Start(ctx, "resolver.probe")
	defer span.End()

	if err := ctx.Err(); err != nil {
		diag.Strategy = types.StrategyDefault
		diag.StrategyReason = delivery.ReasonCancelled
		diag.ProbeError = err.Error()
		metrics.RecordProbe(delivery.ReasonCancelled)
		return types.StrategyDefault
	}

	strategy, probe := r.selector.Select(ctx)
	diag.Strategy = strategy
	diag.StrategyReason = probe.Reason
	diag.ProbeStatus = probe.StatusCode
	diag.ProbeLatency = probe.Latency
	if probe.Err != nil {
		diag.ProbeError = probe.Err.Error()
	}

	span.SetAttributes(
		attribute.Int("probe.status", probe.StatusCode),
		attribute.String("probe.reason", probe.Reason),
	)
	metrics.RecordProbe(probe.Reason)
	metrics.ObserveStage("probe", probe.Latency)
	return strategy
}

func (r *Resolver) fetch(ctx context.Context, manifestURL string, strategy types.DeliveryStrategy, diag *types.Diagnostics) *types.QualityMap {
	ctx, span := r.tracer.Start(ctx, "resolver.manifest")
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveStage("manifest", time.Since(start)) }()

	if err := ctx.Err(); err != nil {
		diag.ManifestError = err.Error()
		return types.NewAutoQualityMap(manifestURL)
	}

	qualities, report := r.fetcher.FetchAndParse(ctx, manifestURL, strategy)
	diag.ManifestStatus = report.StatusCode
	if report.Err != nil {
		diag.ManifestError = report.Err.Error()
		span.RecordError(report.Err)
		span.SetStatus(codes.Error, "manifest fetch failed")
	}
	if qualities == nil {
		qualities = types.NewAutoQualityMap(manifestURL)
	}

	span.SetAttributes(
		attribute.Int("manifest.status", report.StatusCode),
		attribute.Int("manifest.variants", qualities.Len()-1),
	)
	return qualities
}

// ResolveAsync starts a resolution on its own goroutine. The returned channel
// yields exactly one Result and is then closed.
func (r *Resolver) ResolveAsync(ctx context.Context, id types.StreamIdentifier) <-chan types.Result {
	ch := make(chan types.Result, 1)
	go func() {
		defer close(ch)
		ch <- r.Resolve(ctx, id)
	}()
	return ch
}

// ResolveWithCallback starts a resolution and calls fn exactly once, from the
// resolution goroutine, with the final map. A nil fn starts nothing.
func (r *Resolver) ResolveWithCallback(ctx context.Context, id types.StreamIdentifier, fn func(*types.QualityMap)) {
	if fn == nil {
		return
	}
	go func() {
		fn(r.Resolve(ctx, id).Qualities)
	}()
}
