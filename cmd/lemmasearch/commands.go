package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/deidaraiorek/lemmasearch/internal/api"
	"github.com/deidaraiorek/lemmasearch/internal/search"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Re-index every configured site and wait for it to finish",
	Long: `Wipes the stored data of every configured site and crawls all of them
again. Interrupting the command stops the crawl and marks unfinished sites
as FAILED.`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

var indexPageCmd = &cobra.Command{
	Use:   "index-page <url>",
	Short: "Fetch and index a single page of a configured site",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexPage,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print index statistics as JSON",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var searchFlags struct {
	site   string
	offset int
	limit  int
}

func init() {
	searchCmd.Flags().StringVar(&searchFlags.site, "site", "", "restrict results to one configured site url")
	searchCmd.Flags().IntVar(&searchFlags.offset, "offset", 0, "number of results to skip")
	searchCmd.Flags().IntVar(&searchFlags.limit, "limit", 0, "maximum number of results (0 uses the configured default)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	srv := api.NewServer(a.cfg.Server.Addr, a.service, a.logger.With().Str("component", "api").Logger())

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-cmd.Context().Done():
	}

	a.logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.service.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("failed to stop indexing")
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func runCrawl(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if len(a.cfg.Sites) == 0 {
		return errors.New("no sites configured")
	}

	run, err := a.service.StartCrawl(cmd.Context())
	if err != nil {
		return err
	}

	select {
	case <-run.Done():
	case <-cmd.Context().Done():
		a.logger.Info().Str("run", run.ID).Msg("interrupted, stopping crawl")
		if err := a.service.StopCrawl(context.Background()); err != nil {
			return err
		}
	}

	// cmd.Context() may already be cancelled here.
	return printStats(context.Background(), cmd, a)
}

func runIndexPage(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.service.IndexSinglePage(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "indexed %s\n", args[0])
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.service.Search(cmd.Context(), search.Query{
		Text:   strings.Join(args, " "),
		Site:   searchFlags.site,
		Offset: searchFlags.offset,
		Limit:  searchFlags.limit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d results\n", result.Total)
	for i, item := range result.Items {
		fmt.Fprintf(out, "\n%d. %s (%.3f)\n   %s%s\n   %s\n",
			searchFlags.offset+i+1, item.Title, item.Relevance, item.Site, item.URI, item.Snippet)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	return printStats(cmd.Context(), cmd, a)
}

func printStats(ctx context.Context, cmd *cobra.Command, a *app) error {
	stats, err := a.service.Statistics(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
