package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "lemmasearch",
	Short: "Crawl configured sites and search them by lemma",
	Long: `Crawls the sites listed in the config file, stores the normal form of
every word on every page in SQLite and answers ranked queries with
highlighted snippets.

Environment variables:
  LEMMASEARCH_CONFIG     config file used when --config is not given
  LEMMASEARCH_DB         SQLite database path
  LEMMASEARCH_ADDR       HTTP listen address
  LEMMASEARCH_LOG_LEVEL  trace, debug, info, warn or error`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	rootCmd.AddCommand(serveCmd, crawlCmd, indexPageCmd, searchCmd, statsCmd)
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
