// Package httpd runs the seoscan HTTP service.
package httpd

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/seoscan/internal/bootstrap"
)

// Command returns the httpd command. opts is read when the command runs,
// after flags are parsed.
func Command(opts func() bootstrap.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API serving opportunity lookups, scan status, scan events
and unified SEO reports. Runs until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return bootstrap.Start(opts())
		},
	}
}
