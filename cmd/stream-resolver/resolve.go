package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"stream-resolver-go/pkg/extractors"
	"stream-resolver-go/pkg/httpclient"
	"stream-resolver-go/pkg/interfaces"
	"stream-resolver-go/pkg/resolver"
	"stream-resolver-go/pkg/types"
)

type resolveOptions struct {
	vod      bool
	asJSON   bool
	quality  string
	parallel int
	timeout  time.Duration
}

func newResolveCmd(load loaderFunc) *cobra.Command {
	opts := resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve <channel|vod id|twitch url>...",
		Short: "Resolve streams and print their qualities",
		Example: `  stream-resolver resolve somechannel
  stream-resolver resolve --vod v123456789
  stream-resolver resolve --quality 720p60 https://www.twitch.tv/somechannel`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]types.StreamIdentifier, 0, len(args))
			for _, arg := range args {
				id, err := identifierFromArg(arg, opts.vod)
				if err != nil {
					return fmt.Errorf("%s: %w", arg, err)
				}
				ids = append(ids, id)
			}

			cfg, log, err := load()
			if err != nil {
				return err
			}
			res := resolver.NewFromConfig(cfg, httpclient.New(cfg, log), log)

			ctx := cmd.Context()
			if opts.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.timeout)
				defer cancel()
			}

			results := resolveAll(ctx, res, ids, opts.parallel)
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), ids, results)
			}
			return writeText(cmd.OutOrStdout(), ids, results, opts.quality)
		},
	}

	cmd.Flags().BoolVar(&opts.vod, "vod", false, "treat bare arguments as VOD ids")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print results as JSON")
	cmd.Flags().StringVarP(&opts.quality, "quality", "q", "", "print only the URL of this quality key or label")
	cmd.Flags().IntVarP(&opts.parallel, "parallel", "p", 4, "maximum concurrent resolutions")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall deadline, 0 disables it")
	return cmd
}

// identifierFromArg accepts a login, a VOD id or any Twitch page URL.
func identifierFromArg(arg string, vod bool) (types.StreamIdentifier, error) {
	arg = strings.TrimSpace(arg)
	switch {
	case arg == "":
		return types.StreamIdentifier{}, fmt.Errorf("empty identifier")
	case strings.Contains(arg, "://") || strings.Contains(arg, "twitch.tv/"):
		if !strings.Contains(arg, "://") {
			arg = "https://" + arg
		}
		return extractors.ParseIdentifier(arg)
	case vod:
		return extractors.VODIdentifier(arg)
	default:
		return extractors.ChannelIdentifier(arg)
	}
}

// resolveAll runs up to parallel resolutions at once. results[i] belongs to ids[i].
func resolveAll(ctx context.Context, res interfaces.Resolver, ids []types.StreamIdentifier, parallel int) []types.Result {
	results := make([]types.Result, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, id := range ids {
		g.Go(func() error {
			results[i] = res.Resolve(gctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func writeText(w io.Writer, ids []types.StreamIdentifier, results []types.Result, quality string) error {
	if quality != "" {
		for i, r := range results {
			q, ok := lookupQuality(r.Qualities, quality)
			if !ok {
				return fmt.Errorf("%s: quality %q not available", ids[i].Value, quality)
			}
			fmt.Fprintln(w, q.URL)
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, r := range results {
		d := r.Diagnostics
		fmt.Fprintf(tw, "%s (%s, %s cdn, token %s)\n", ids[i].Value, ids[i].Kind(), d.Strategy, d.TokenOutcome)
		for _, e := range r.Qualities.Entries() {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", e.Key, e.Quality.Label, e.Quality.URL)
		}
	}
	return tw.Flush()
}

func lookupQuality(q *types.QualityMap, want string) (types.Quality, bool) {
	if v, ok := q.Get(want); ok {
		return v, true
	}
	for _, e := range q.Entries() {
		if strings.EqualFold(e.Quality.Label, want) {
			return e.Quality, true
		}
	}
	return types.Quality{}, false
}

type resolvedOutput struct {
	Identifier  string            `json:"identifier"`
	Kind        string            `json:"kind"`
	Qualities   *types.QualityMap `json:"qualities"`
	Diagnostics types.Diagnostics `json:"diagnostics"`
}

func writeJSON(w io.Writer, ids []types.StreamIdentifier, results []types.Result) error {
	out := make([]resolvedOutput, len(results))
	for i, r := range results {
		out[i] = resolvedOutput{
			Identifier:  ids[i].Value,
			Kind:        ids[i].Kind(),
			Qualities:   r.Qualities,
			Diagnostics: r.Diagnostics,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
