package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/funnyzak/pagemock/internal/config"
	"github.com/funnyzak/pagemock/internal/logger"
	"github.com/funnyzak/pagemock/internal/server"
	"github.com/funnyzak/pagemock/pkg/matcher"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "pagemock",
	Short: "Answer a browser page's network requests with declared mocks",
	Long: `PageMock launches a browser, routes every request of the page through a
registry of mocks and answers fetch/xhr calls with synthetic responses.

Unmatched fetch/xhr requests get a 404 so missing mocks are visible in tests;
documents, scripts, images and other resources reach the network untouched.
`,
	SilenceUsage: true,
	RunE:         runSession,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch the browser and serve mocks (default)",
	RunE:  runSession,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the configuration and compile every mock",
	RunE:  validateConfig,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run:   showVersion,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Configuration file path")
	flags.StringSlice("env-file", []string{".env"}, "Env files loaded before configuration")
	flags.StringP("engine", "e", "", "Browser engine (chromium, firefox, webkit)")
	flags.Bool("headless", true, "Run the browser without a window")
	flags.StringP("url", "u", "", "Start URL opened once interception is active")
	flags.String("route-pattern", "", "Glob of URLs routed through the interceptor")
	flags.StringP("mocks-file", "m", "", "YAML file with additional mocks")
	flags.StringSlice("category", []string{}, "Resource types answered with 404 when unmatched")
	flags.StringP("log-level", "l", "", "Log level (trace, debug, info, warn, error, fatal, panic)")
	flags.Bool("log-file-enable", false, "Enable file logging")
	flags.String("log-file-path", "", "Log file path")
	flags.StringP("output", "o", "", "Output mode (console, json)")
	flags.Bool("silence", false, "Do not print intercepted requests")
	flags.Bool("journal-enable", true, "Persist interception events")
	flags.String("journal-path", "", "Journal database path")
	flags.Bool("web-enable", false, "Enable/disable web console")
	flags.String("web-listen", "", "Web console listen address")
	flags.String("web-admin-path", "", "Web admin API path")

	bindFlags(rootCmd)

	rootCmd.AddCommand(runCmd, validateCmd, versionCmd)
}

func bindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	viper.BindPFlag("browser.engine", flags.Lookup("engine"))
	viper.BindPFlag("browser.headless", flags.Lookup("headless"))
	viper.BindPFlag("browser.start_url", flags.Lookup("url"))
	viper.BindPFlag("browser.route_pattern", flags.Lookup("route-pattern"))
	viper.BindPFlag("mocks_file", flags.Lookup("mocks-file"))
	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("log.file_logging.enable", flags.Lookup("log-file-enable"))
	viper.BindPFlag("log.file_logging.path", flags.Lookup("log-file-path"))
	viper.BindPFlag("output.mode", flags.Lookup("output"))
	viper.BindPFlag("output.silence", flags.Lookup("silence"))
	viper.BindPFlag("journal.enable", flags.Lookup("journal-enable"))
	viper.BindPFlag("journal.path", flags.Lookup("journal-path"))
	viper.BindPFlag("web.enable", flags.Lookup("web-enable"))
	viper.BindPFlag("web.listen", flags.Lookup("web-listen"))
	viper.BindPFlag("web.admin_path", flags.Lookup("web-admin-path"))
}

// loadConfig reads env files, the config file and flags, then validates the result
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFiles, _ := cmd.Flags().GetStringSlice("env-file")
	if err := config.LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(configPath, viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Slice flags are applied after viper; an empty slice keeps the file value
	if categories, err := cmd.Flags().GetStringSlice("category"); err == nil && len(categories) > 0 {
		cfg.Intercept.Categories = categories
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log := logger.NewLogger(&cfg.Log, cfg.Output.Mode)

	srv, err := server.New(cfg, log)
	if err != nil {
		return err
	}

	if cfg.Output.Mode != "json" {
		printStartupBanner(os.Stdout, cfg)
	}
	log.Info("PageMock starting",
		"version", version,
		"engine", cfg.Browser.Engine,
		"headless", cfg.Browser.Headless,
		"start_url", cfg.Browser.StartURL,
		"categories", cfg.Intercept.Categories,
		"journal", cfg.Journal.Enable,
		"web_enable", cfg.Web.Enable,
	)

	return srv.Run(context.Background())
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	mocks, err := cfg.AllMocks()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i := range mocks {
		if err := mocks[i].Validate(); err != nil {
			return fmt.Errorf("mock %d (%s): %w", i+1, mocks[i].Pattern, err)
		}
		method := mocks[i].Method
		if method == matcher.AnyMethod {
			method = "ANY"
		}
		fmt.Fprintf(out, "ok  %-7s %s\n", method, mocks[i].Pattern)
	}
	fmt.Fprintf(out, "%d mock(s) valid\n", len(mocks))
	return nil
}

func showVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("PageMock version %s\n", version)
	fmt.Printf("Commit: %s\n", commit)
	fmt.Printf("Built: %s\n", buildDate)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
