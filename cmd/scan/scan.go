// Package scan runs a single opportunity scan from the command line and
// prints the selected blogs and pages.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/internal/bootstrap"
	internalscan "github.com/jonesrussell/seoscan/internal/scan"
	"github.com/jonesrussell/seoscan/internal/store"
)

const (
	defaultPollInterval = time.Second
	waitGrace           = 30 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// ErrScanFailed is returned when the scan ends in the failed state.
var ErrScanFailed = errors.New("scan failed")

// StatusReader reports a scan's current record.
type StatusReader interface {
	Status(ctx context.Context, scanID string) (*store.Scan, error)
}

// Command returns the scan command.
func Command(opts func() bootstrap.Options) *cobra.Command {
	var (
		allowSubdomains bool
		force           bool
		poll            time.Duration
	)

	cmd := &cobra.Command{
		Use:   "scan <website-url>",
		Short: "Scan a website and list its top SEO opportunities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), opts(), args[0], allowSubdomains, force, poll)
		},
	}

	cmd.Flags().BoolVar(&allowSubdomains, "allow-subdomains", false, "include URLs on subdomains of the site")
	cmd.Flags().BoolVar(&force, "force", false, "ignore a fresh snapshot and scan again")
	cmd.Flags().DurationVar(&poll, "poll", defaultPollInterval, "status poll interval")

	return cmd
}

func run(ctx context.Context, out io.Writer, opts bootstrap.Options, websiteURL string, allowSub, force bool, poll time.Duration) error {
	deps, err := bootstrap.NewCommandDeps(opts)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	log := deps.Logger
	defer func() { _ = log.Sync() }()

	storage, err := bootstrap.SetupStorage(ctx, deps.Config, log)
	if err != nil {
		return fmt.Errorf("failed to setup storage: %w", err)
	}
	defer storage.Close()

	// No HTTP clients attach in one-shot mode.
	deps.Config.SSE.Enabled = false
	ev, err := bootstrap.SetupEvents(ctx, deps.Config, storage.Redis, log)
	if err != nil {
		return fmt.Errorf("failed to setup events: %w", err)
	}
	defer ev.Close(log)

	pipeline := bootstrap.SetupPipeline(deps.Config, log)
	orchestrator := internalscan.New(internalscan.Deps{
		Store:      storage.Store,
		Discoverer: pipeline.Discoverer,
		Crawler:    pipeline.Crawler,
		Fetcher:    pipeline.Fetcher,
		Checker:    pipeline.Checker,
		Locker:     storage.Locker,
		Events:     ev.Publisher,
		Logger:     log,
	}, deps.Config.Scan)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := orchestrator.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Warn("Scan shutdown incomplete", infralogger.Error(shutdownErr))
		}
	}()

	if !force {
		resp, fresh, lookupErr := orchestrator.GetOpportunities(ctx, websiteURL, allowSub)
		if lookupErr != nil {
			return fmt.Errorf("lookup opportunities: %w", lookupErr)
		}
		if fresh {
			return RenderOpportunities(out, resp)
		}
	}

	scan, _, err := orchestrator.Enqueue(ctx, websiteURL, allowSub)
	if err != nil {
		return fmt.Errorf("enqueue scan: %w", err)
	}
	log.Info("Scan started",
		infralogger.ScanID(scan.ID),
		infralogger.Hostname(scan.Hostname),
	)

	waitCtx, cancel := context.WithTimeout(ctx, deps.Config.Scan.ScanTimeout+waitGrace)
	defer cancel()

	if _, err = Wait(waitCtx, orchestrator, scan.ID, poll); err != nil {
		return err
	}

	resp, _, err := orchestrator.GetOpportunities(ctx, websiteURL, allowSub)
	if err != nil {
		return fmt.Errorf("lookup opportunities: %w", err)
	}
	return RenderOpportunities(out, resp)
}

// Wait polls reader until the scan reaches a terminal status. A failed scan
// returns ErrScanFailed wrapped with the recorded error.
func Wait(ctx context.Context, reader StatusReader, scanID string, interval time.Duration) (*store.Scan, error) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		scan, err := reader.Status(ctx, scanID)
		if err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		if scan.Status.IsTerminal() {
			if scan.Status == store.StatusFailed {
				msg := "unknown error"
				if scan.Error != nil {
					msg = *scan.Error
				}
				return scan, fmt.Errorf("%w: %s", ErrScanFailed, msg)
			}
			return scan, nil
		}

		select {
		case <-ctx.Done():
			return scan, fmt.Errorf("waiting for scan %s: %w", scanID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// RenderOpportunities writes the response as a table.
func RenderOpportunities(out io.Writer, resp *internalscan.Response) error {
	fmt.Fprintf(out, "%s (scan %s, %s)\n", resp.Hostname, resp.Source.ScanID, resp.Source.Status)
	if len(resp.Blogs)+len(resp.Pages) == 0 {
		fmt.Fprintln(out, "No opportunities found.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Type", "URL", "Title", "Words", "Plagiarism"})

	appendItems(t, "blog", resp.Blogs)
	appendItems(t, "page", resp.Pages)
	t.Render()
	return nil
}

func appendItems(t table.Writer, kind string, items []store.ContentItem) {
	for i := range items {
		item := &items[i]
		t.AppendRow(table.Row{kind, item.URL, item.Title, item.WordCount, plagiarismCell(item.Plagiarism)})
	}
}

func plagiarismCell(score *int) string {
	if score == nil {
		return "-"
	}
	return strconv.Itoa(*score) + "%"
}
