// Package cmd implements the seoscan command-line interface: the HTTP
// service plus one-shot scan, discover and seo commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/seoscan/cmd/discover"
	"github.com/jonesrussell/seoscan/cmd/httpd"
	cmdscan "github.com/jonesrussell/seoscan/cmd/scan"
	cmdseo "github.com/jonesrussell/seoscan/cmd/seo"
	"github.com/jonesrussell/seoscan/internal/bootstrap"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// Debug enables debug logging for all commands.
	Debug bool

	rootCmd = &cobra.Command{
		Use:   "seoscan",
		Short: "SEO opportunity discovery service",
		Long: `seoscan discovers blog posts and pages worth optimizing on a website,
extracts their content and aggregates SEO data from third-party providers.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	_ = godotenv.Load()

	// Parse flags early so --config and --debug are known before any command runs.
	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $CONFIG_PATH or ./config.yml)")
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "seoscan version %s\n", bootstrap.Version)
		},
	})

	rootCmd.AddCommand(httpd.Command(Options))
	rootCmd.AddCommand(cmdscan.Command(Options))
	rootCmd.AddCommand(discover.Command(Options))
	rootCmd.AddCommand(cmdseo.Command(Options))
}

// initConfig resolves the flags that select and tune configuration loading.
// The service configuration itself is read by internal/config.
func initConfig() error {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.BindPFlag("app.debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("failed to bind debug flag: %w", err)
	}
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		return fmt.Errorf("failed to bind config flag: %w", err)
	}
	if err := viper.BindEnv("app.debug", "APP_DEBUG"); err != nil {
		return fmt.Errorf("failed to bind APP_DEBUG: %w", err)
	}
	if err := viper.BindEnv("config", "CONFIG_PATH"); err != nil {
		return fmt.Errorf("failed to bind CONFIG_PATH: %w", err)
	}
	return nil
}

// Options returns the bootstrap options selected by flags and environment.
func Options() bootstrap.Options {
	return bootstrap.Options{
		ConfigPath: viper.GetString("config"),
		Debug:      Debug || viper.GetBool("app.debug"),
	}
}
