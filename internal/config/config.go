package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Source identifiers. The order of SourceIDs is the order in which sources
// are collected and reported.
const (
	NaverBlogID     = "naver_blog"
	AjunewsColumnID = "ajunews_column"
)

// SourceIDs lists every known source in collection order.
var SourceIDs = []string{NaverBlogID, AjunewsColumnID}

type Config struct {
	DataSources DataSources `yaml:"data_sources"`
	Collection  Collection  `yaml:"collection"`
	Storage     Storage     `yaml:"storage"`
	Report      Report      `yaml:"report"`
	Server      Server      `yaml:"server"`
	Logging     Logging     `yaml:"logging"`
}

type DataSources struct {
	NaverBlog     FeedSource   `yaml:"naver_blog"`
	AjunewsColumn ColumnSource `yaml:"ajunews_column"`
}

// FeedSource configures a source that publishes an RSS/Atom listing.
type FeedSource struct {
	Enabled      bool          `yaml:"enabled"`
	Name         string        `yaml:"name"`
	RSSURL       string        `yaml:"rss_url"`
	MaxPosts     int           `yaml:"max_posts"`
	DaysLookback *int          `yaml:"days_lookback"`
	Delay        time.Duration `yaml:"delay"`
}

// ColumnSource configures a scrape-only source with a cached URL list.
type ColumnSource struct {
	Enabled      bool          `yaml:"enabled"`
	Name         string        `yaml:"name"`
	BaseURL      string        `yaml:"base_url"`
	MaxPosts     int           `yaml:"max_posts"`
	DaysLookback *int          `yaml:"days_lookback"`
	Delay        time.Duration `yaml:"delay"`
	YearFilter   int           `yaml:"year_filter"`
	Author       string        `yaml:"author"`
	TitlePattern string        `yaml:"title_pattern"`
	CacheFile    string        `yaml:"cache_file"`
	FallbackURLs []string      `yaml:"fallback_urls"`
}

// Collection holds defaults shared by every source.
type Collection struct {
	MaxPostsPerSource int           `yaml:"max_posts_per_source"`
	DaysLookback      int           `yaml:"days_lookback"`
	Delay             time.Duration `yaml:"delay"`
	Timeout           time.Duration `yaml:"timeout"`
	UserAgent         string        `yaml:"user_agent"`
}

type Storage struct {
	FeedsDir string `yaml:"feeds_dir"`
	DataDir  string `yaml:"data_dir"`
}

type Report struct {
	Title      string `yaml:"title"`
	OutputDir  string `yaml:"output_dir"`
	ViewerDir  string `yaml:"viewer_dir"`
	DateFormat string `yaml:"date_format"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// SourceSettings is the resolved, read-only view of one source after
// collection-wide defaults have been applied.
type SourceSettings struct {
	ID           string
	Name         string
	Enabled      bool
	Endpoint     string
	MaxPosts     int
	DaysLookback int // 0 disables recency filtering
	Delay        time.Duration
}

// ConfigDir returns the XDG config directory for insightcrawler.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "insightcrawler")
}

// DataDir returns the XDG data directory for insightcrawler.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "insightcrawler")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/insightcrawler/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'insightcrawler init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the configuration produced by an empty config file.
func Default() *Config {
	return defaults()
}

func defaults() *Config {
	return &Config{
		DataSources: DataSources{
			NaverBlog: FeedSource{
				Name: "네이버 블로그",
			},
			AjunewsColumn: ColumnSource{
				Name:         "곽재원의 Now&Future (아주경제)",
				BaseURL:      "https://www.ajunews.com",
				MaxPosts:     10,
				DaysLookback: intPtr(0),
				YearFilter:   2025,
				Author:       "곽재원",
				TitlePattern: `(?i)곽재원의\s*Now\s*[&＆]\s*Future`,
				CacheFile:    "ajunews_url_cache.json",
			},
		},
		Collection: Collection{
			MaxPostsPerSource: 20,
			DaysLookback:      7,
			Delay:             time.Second,
			Timeout:           10 * time.Second,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		},
		Storage: Storage{
			FeedsDir: "feeds",
		},
		Report: Report{
			Title:      "과학기술 & AI 주간 인사이트 리포트",
			OutputDir:  "output",
			ViewerDir:  "reports",
			DateFormat: "2006-01-02",
		},
		Server:  Server{Port: 5000},
		Logging: Logging{Level: "info"},
	}
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := defaults()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Report.DateFormat == "" {
		errs = append(errs, errors.New("report.date_format must not be empty"))
	}
	if c.Collection.MaxPostsPerSource < 0 {
		errs = append(errs, errors.New("collection.max_posts_per_source must not be negative"))
	}
	if c.Collection.DaysLookback < 0 {
		errs = append(errs, errors.New("collection.days_lookback must not be negative"))
	}
	if c.Collection.Delay < 0 {
		errs = append(errs, errors.New("collection.delay must not be negative"))
	}
	if c.DataSources.NaverBlog.MaxPosts < 0 || c.DataSources.AjunewsColumn.MaxPosts < 0 {
		errs = append(errs, errors.New("data_sources max_posts must not be negative"))
	}
	if c.DataSources.NaverBlog.Enabled && c.DataSources.NaverBlog.RSSURL == "" {
		errs = append(errs, errors.New("data_sources.naver_blog.rss_url is required when enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Settings resolves the settings for a source ID. The second return value
// is false for unknown IDs.
func (c *Config) Settings(id string) (SourceSettings, bool) {
	switch id {
	case NaverBlogID:
		s := c.DataSources.NaverBlog
		return SourceSettings{
			ID:           id,
			Name:         orDefault(s.Name, id),
			Enabled:      s.Enabled,
			Endpoint:     s.RSSURL,
			MaxPosts:     c.maxPosts(s.MaxPosts),
			DaysLookback: c.daysLookback(s.DaysLookback),
			Delay:        c.delay(s.Delay),
		}, true
	case AjunewsColumnID:
		s := c.DataSources.AjunewsColumn
		return SourceSettings{
			ID:           id,
			Name:         orDefault(s.Name, id),
			Enabled:      s.Enabled,
			Endpoint:     s.BaseURL,
			MaxPosts:     c.maxPosts(s.MaxPosts),
			DaysLookback: c.daysLookback(s.DaysLookback),
			Delay:        c.delay(s.Delay),
		}, true
	}
	return SourceSettings{}, false
}

// EnabledSources returns resolved settings for every enabled source in
// collection order.
func (c *Config) EnabledSources() []SourceSettings {
	var out []SourceSettings
	for _, id := range SourceIDs {
		if s, ok := c.Settings(id); ok && s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir
	}
	return DataDir()
}

// CachePath returns the URL cache location for the column source. Relative
// cache file names live in the feeds directory.
func (c *Config) CachePath() string {
	name := c.DataSources.AjunewsColumn.CacheFile
	if name == "" {
		name = "ajunews_url_cache.json"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Storage.FeedsDir, name)
}

func (c *Config) maxPosts(v int) int {
	if v > 0 {
		return v
	}
	return c.Collection.MaxPostsPerSource
}

func (c *Config) daysLookback(v *int) int {
	if v != nil {
		return *v
	}
	return c.Collection.DaysLookback
}

func (c *Config) delay(v time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return c.Collection.Delay
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intPtr(v int) *int { return &v }

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
