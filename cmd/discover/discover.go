// Package discover lists the ranked blog and page candidates for a website
// without extracting or storing anything.
package discover

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/seoscan/internal/bootstrap"
	"github.com/jonesrussell/seoscan/internal/discovery"
)

// Command returns the discover command.
func Command(opts func() bootstrap.Options) *cobra.Command {
	var (
		allowSubdomains bool
		limit           int
	)

	cmd := &cobra.Command{
		Use:   "discover <website-url>",
		Short: "List candidate URLs found via sitemaps, feeds or crawling",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := bootstrap.NewCommandDeps(opts())
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}
			defer func() { _ = deps.Logger.Sync() }()

			pipeline := bootstrap.SetupPipeline(deps.Config, deps.Logger)
			return run(cmd.Context(), cmd.OutOrStdout(), pipeline.Discoverer, args[0], allowSubdomains, limit)
		},
	}

	cmd.Flags().BoolVar(&allowSubdomains, "allow-subdomains", false, "include URLs on subdomains of the site")
	cmd.Flags().IntVar(&limit, "limit", 0, "candidates per type (0 uses the configured limit)")

	return cmd
}

func run(ctx context.Context, out io.Writer, d *discovery.Discoverer, websiteURL string, allowSub bool, limit int) error {
	var (
		res *discovery.Result
		err error
	)
	if limit > 0 {
		res, err = d.DiscoverWithLimit(ctx, websiteURL, allowSub, limit)
	} else {
		res, err = d.Discover(ctx, websiteURL, allowSub)
	}
	if err != nil {
		return fmt.Errorf("discover %s: %w", websiteURL, err)
	}
	RenderResult(out, res)
	return nil
}

// RenderResult writes the candidates and a diagnostics summary.
func RenderResult(out io.Writer, res *discovery.Result) {
	fmt.Fprintf(out, "%s (%s)\n", res.Hostname, res.SiteURL)

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Type", "URL"})
	for i, u := range res.BlogURLs {
		t.AppendRow(table.Row{i + 1, "blog", u})
	}
	for i, u := range res.PageURLs {
		t.AppendRow(table.Row{i + 1, "page", u})
	}
	t.Render()

	diag := res.Diagnostics
	source := "sitemap"
	if diag.UsedFallback {
		source = "crawl"
	}
	fmt.Fprintf(out, "source: %s, sitemaps tried: %d, child sitemaps: %d, sitemap urls: %d, crawl visited: %d\n",
		source, len(diag.SitemapsTried), diag.ChildSitemaps, diag.SitemapURLCount, diag.CrawlVisited)
	if diag.SitemapFound != "" {
		fmt.Fprintf(out, "sitemap: %s\n", diag.SitemapFound)
	}
	if diag.CrawlError != "" {
		fmt.Fprintf(out, "crawl error: %s\n", diag.CrawlError)
	}
}
