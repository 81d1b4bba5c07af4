// Package seo builds a unified SEO report for one URL from the command line.
package seo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/seoscan/infrastructure/sse"
	"github.com/jonesrussell/seoscan/internal/bootstrap"
	"github.com/jonesrussell/seoscan/internal/observability"
	internalseo "github.com/jonesrussell/seoscan/internal/seo"
)

// Command returns the seo command.
func Command(opts func() bootstrap.Options) *cobra.Command {
	var (
		req      internalseo.Request
		asJSON   bool
		progress bool
	)

	cmd := &cobra.Command{
		Use:   "seo <url>",
		Short: "Aggregate SEO data for a URL from the configured providers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := bootstrap.NewCommandDeps(opts())
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}
			log := deps.Logger
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			pipeline := bootstrap.SetupPipeline(deps.Config, log)
			aggregator, cache, err := bootstrap.SetupSEO(ctx, deps.Config, pipeline.Fetcher,
				observability.NewMetrics(prometheus.NewRegistry()), observability.NewTracer(), log)
			if err != nil {
				return err
			}
			defer func() { _ = cache.Close() }()

			req.URL = args[0]
			out := cmd.OutOrStdout()
			var emit internalseo.Emit
			if progress {
				emit = ProgressPrinter(cmd.ErrOrStderr())
			}
			return run(ctx, out, aggregator, req, emit, asJSON)
		},
	}

	cmd.Flags().StringVar(&req.Keyword, "keyword", "", "target keyword")
	cmd.Flags().StringVar(&req.CountryCode, "country", "", "search country code")
	cmd.Flags().StringVar(&req.LanguageCode, "language", "", "search language code")
	cmd.Flags().IntVar(&req.Depth, "depth", 0, "search result depth")
	cmd.Flags().StringSliceVar(&req.Providers, "provider", nil, "providers to query (default all configured)")
	cmd.Flags().BoolVar(&req.KeywordsOnly, "keywords-only", false, "only run keyword research")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	cmd.Flags().BoolVar(&progress, "progress", false, "print provider progress to stderr")

	return cmd
}

func run(ctx context.Context, out io.Writer, agg *internalseo.Aggregator, req internalseo.Request, emit internalseo.Emit, asJSON bool) error {
	resp, err := agg.Aggregate(ctx, req, emit)
	if err != nil {
		return fmt.Errorf("seo report: %w", err)
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	RenderSummary(out, resp)
	return nil
}

// ProgressPrinter returns an Emit that writes one line per provider event.
func ProgressPrinter(w io.Writer) internalseo.Emit {
	return func(ev sse.Event) {
		pe, ok := ev.Data.(internalseo.ProviderEvent)
		if !ok {
			fmt.Fprintln(w, ev.Type)
			return
		}
		switch ev.Type {
		case internalseo.EventProviderError:
			fmt.Fprintf(w, "%s %s: %s\n", ev.Type, pe.Provider, pe.Error)
		case internalseo.EventProviderDone:
			fmt.Fprintf(w, "%s %s (%dms)\n", ev.Type, pe.Provider, pe.DurationMs)
		default:
			fmt.Fprintf(w, "%s %s\n", ev.Type, pe.Provider)
		}
	}
}

// RenderSummary writes provider timings and failures as a table.
func RenderSummary(out io.Writer, resp *internalseo.Response) {
	fmt.Fprintf(out, "%s (%s) in %dms\n", resp.URL, resp.Domain, resp.Meta.DurationMs)

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Provider", "Status", "Time (ms)", "Cached"})

	names := make([]string, 0, len(resp.Meta.Timings)+len(resp.Errors))
	for name := range resp.Meta.Timings {
		names = append(names, name)
	}
	for name := range resp.Errors {
		if _, ok := resp.Meta.Timings[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	for _, name := range names {
		status := "ok"
		if msg, failed := resp.Errors[name]; failed {
			status = msg
		}
		cached := ""
		if slices.Contains(resp.Meta.CacheHits, name) {
			cached = "yes"
		}
		t.AppendRow(table.Row{name, status, resp.Meta.Timings[name], cached})
	}
	t.Render()
}
