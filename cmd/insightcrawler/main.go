package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/InsightCrawler/internal/collect"
	"github.com/TobiSchelling/InsightCrawler/internal/config"
	"github.com/TobiSchelling/InsightCrawler/internal/database"
	"github.com/TobiSchelling/InsightCrawler/internal/logging"
	"github.com/TobiSchelling/InsightCrawler/internal/pipeline"
	"github.com/TobiSchelling/InsightCrawler/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "insightcrawler",
	Short:   "Weekly science & AI insight reports",
	Long:    "insightcrawler collects posts from blogs and newspaper columns, classifies and summarizes them, and writes a weekly Markdown insight report.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			logger = newLogger("info")
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger = newLogger(cfg.Logging.Level)
		logger.Debug("config loaded", "path", path)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cacheCmd)
}

func newLogger(level string) *slog.Logger {
	if verbose {
		level = "debug"
	}
	return logging.New(level)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("insightcrawler", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/insightcrawler/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set the blog RSS URL and report directories.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run history and report status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if statusRun != "" {
			return printRun(db, statusRun, statusCategory)
		}

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Sources:")
		for _, id := range config.SourceIDs {
			s, _ := cfg.Settings(id)
			state := "disabled"
			if s.Enabled {
				state = "enabled"
			}
			fmt.Printf("  %s (%s): %s, max %d posts\n", s.Name, id, state, s.MaxPosts)
		}
		if entry, err := collect.LoadURLCache(cfg.CachePath()); err == nil && entry != nil {
			fresh := "stale"
			if entry.Fresh(time.Now()) {
				fresh = "fresh"
			}
			fmt.Printf("  URL cache: %d urls, updated %s (%s)\n", len(entry.URLs), entry.Updated, fresh)
		}

		fmt.Println("\nHistory:")
		fmt.Printf("  Runs: %d\n", stats.Runs)
		fmt.Printf("  Posts collected: %d\n", stats.Posts)
		fmt.Printf("  Reports: %d\n", stats.Reports)
		if stats.LastRunAt != nil {
			fmt.Printf("  Last run: %s\n", *stats.LastRunAt)
		}
		if stats.LastReport != nil {
			fmt.Printf("  Last report: %s\n", *stats.LastReport)
		}

		if len(stats.PerCategory) > 0 {
			fmt.Println("\nPosts by category:")
			cats := make([]string, 0, len(stats.PerCategory))
			for c := range stats.PerCategory {
				cats = append(cats, c)
			}
			sort.Strings(cats)
			for _, c := range cats {
				fmt.Printf("  %s: %d\n", c, stats.PerCategory[c])
			}
		}

		runs, err := db.ListRuns(5)
		if err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}
		if len(runs) > 0 {
			fmt.Println("\nRecent runs:")
			for _, r := range runs {
				fmt.Printf("  %s  %s  %d posts\n", r.CollectedAt, r.RunID, r.TotalCount)
			}
		}

		reports, err := db.ListReports(5)
		if err != nil {
			return fmt.Errorf("listing reports: %w", err)
		}
		if len(reports) > 0 {
			fmt.Println("\nRecent reports:")
			for _, rep := range reports {
				fmt.Printf("  %s  %d posts in %d categories  %s\n", rep.ReportDate, rep.PostCount, rep.CategoryCount, rep.Path)
			}
		}
		return nil
	},
}

var (
	statusRun      string
	statusCategory string
)

func init() {
	statusCmd.Flags().StringVar(&statusRun, "run", "", "Show the posts of one run")
	statusCmd.Flags().StringVar(&statusCategory, "category", "", "With --run, only show posts in this category")
}

func printRun(db *database.DB, runID, category string) error {
	run, err := db.GetRun(runID)
	if err != nil {
		return fmt.Errorf("getting run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}

	fmt.Printf("Run %s\n", run.RunID)
	fmt.Printf("  Collected: %s\n", run.CollectedAt)
	if run.ReferenceDate != nil {
		fmt.Printf("  Reference date: %s\n", *run.ReferenceDate)
	}
	for _, id := range config.SourceIDs {
		if n, ok := run.SourceStats[id]; ok {
			fmt.Printf("  %s: %d\n", id, n)
		}
	}

	posts, err := db.GetRunPosts(runID, category)
	if err != nil {
		return fmt.Errorf("getting run posts: %w", err)
	}
	fmt.Printf("\nPosts (%d):\n", len(posts))
	for _, p := range posts {
		fmt.Printf("  [%s] %s\n    %s\n", p.Category, p.Title, p.URL)
	}
	return nil
}

// --- collect command ---

var (
	collectSource string
	refDate       string
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect posts from configured sources without writing a report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := parseRefDate(refDate)
		if err != nil {
			return err
		}

		pipe, err := pipeline.New(cfg, nil, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		res, err := pipe.Collect(ctx, collectSource, ref)
		if err != nil {
			return err
		}

		fmt.Println("\nCollection complete:")
		fmt.Printf("  Total posts: %d\n", res.TotalCount())
		for _, s := range res.Stats {
			if s.Err != nil {
				fmt.Printf("  %s: failed (%v)\n", s.Name, s.Err)
				continue
			}
			fmt.Printf("  %s: %d\n", s.Name, s.Count)
		}
		if res.ArtifactPath != "" {
			fmt.Printf("  Saved: %s\n", res.ArtifactPath)
		}
		return nil
	},
}

func init() {
	collectCmd.Flags().StringVarP(&collectSource, "source", "s", "", "Collect only this source ("+strings.Join(config.SourceIDs, ", ")+")")
	collectCmd.Flags().StringVar(&refDate, "date", "", "Reference date (YYYY-MM-DD), defaults to now")
}

// --- run command ---

var (
	dryRun       bool
	fromArtifact string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: collect -> analyze -> render -> record",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := parseRefDate(refDate)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe, err := pipeline.New(cfg, db, logger)
		if err != nil {
			return err
		}

		if dryRun {
			printSteps(pipe.DryRun(ref).Steps)
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		var result *pipeline.Result
		if fromArtifact != "" {
			result, err = pipe.Rerender(ctx, fromArtifact)
		} else {
			result, err = pipe.Run(ctx, ref)
		}
		printSteps(result.Steps)
		if errors.Is(err, pipeline.ErrNoPosts) {
			fmt.Println("\nNo posts were collected; no report was generated.")
			return err
		}
		if err != nil {
			return err
		}

		fmt.Printf("\nReport: %s\n", result.ReportPath)
		fmt.Println("Run 'insightcrawler serve' to view it.")
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
	runCmd.Flags().StringVar(&refDate, "date", "", "Reference date (YYYY-MM-DD), defaults to now")
	runCmd.Flags().StringVar(&fromArtifact, "from-artifact", "", "Re-render the report from a combined_sources_*.json file instead of collecting")
	runCmd.MarkFlagsMutuallyExclusive("from-artifact", "date")
}

func printSteps(steps []pipeline.StepResult) {
	for i, step := range steps {
		fmt.Printf("\nStep %d/%d: %s\n", i+1, len(steps), step.Name)
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		} else {
			fmt.Printf("  %s\n", step.Summary)
		}
	}
}

// parseRefDate parses a YYYY-MM-DD reference date in local time and returns
// the last second of that day, so posts from the day itself are in range.
// An empty value returns the zero time, meaning "now".
func parseRefDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, want YYYY-MM-DD", s)
	}
	return t.AddDate(0, 0, 1).Add(-time.Second), nil
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local report viewer",
	RunE: func(cmd *cobra.Command, args []string) error {
		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(cfg.Report.ViewerDir, port, logger.With("component", "server"))
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- cache command ---

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the column URL cache",
}

var cacheFile string

var cacheRefreshCmd = &cobra.Command{
	Use:   "refresh [url...]",
	Short: "Replace the cached column URL list",
	Long:  "Writes the URL cache used by the column collector. URLs come from the arguments or from --file (one per line, # starts a comment).",
	RunE: func(cmd *cobra.Command, args []string) error {
		urls := args
		if cacheFile != "" {
			f, err := os.Open(cacheFile)
			if err != nil {
				return fmt.Errorf("opening url list: %w", err)
			}
			defer f.Close()
			fromFile, err := readURLList(f)
			if err != nil {
				return err
			}
			urls = append(urls, fromFile...)
		}
		if len(urls) == 0 {
			return errors.New("no urls given; pass them as arguments or with --file")
		}

		path := cfg.CachePath()
		if err := collect.SaveURLCache(path, urls, time.Now()); err != nil {
			return err
		}
		fmt.Printf("Cached %d urls in %s\n", len(urls), path)
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the cached column URL list",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.CachePath()
		entry, err := collect.LoadURLCache(path)
		if err != nil {
			return err
		}
		if entry == nil {
			fmt.Printf("No URL cache at %s; the configured fallback list is used.\n", path)
			return nil
		}
		state := "stale, fallback list is used"
		if entry.Fresh(time.Now()) {
			state = "fresh"
		}
		fmt.Printf("%s: updated %s (%s)\n", path, entry.Updated, state)
		for _, u := range entry.URLs {
			fmt.Printf("  %s\n", u)
		}
		return nil
	},
}

func init() {
	cacheRefreshCmd.Flags().StringVarP(&cacheFile, "file", "f", "", "File with one URL per line")
	cacheCmd.AddCommand(cacheRefreshCmd)
	cacheCmd.AddCommand(cacheShowCmd)
}

// readURLList reads one URL per line, skipping blank lines, comments and
// duplicates.
func readURLList(r io.Reader) ([]string, error) {
	var urls []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading url list: %w", err)
	}
	return urls, nil
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(filepath.Join(dataDir, database.FileName), logger.With("component", "database"))
}
