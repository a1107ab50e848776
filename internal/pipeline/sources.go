package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/TobiSchelling/InsightCrawler/internal/collect"
	"github.com/TobiSchelling/InsightCrawler/internal/config"
	"github.com/TobiSchelling/InsightCrawler/internal/fetch"
)

// BuildSources creates a collector for every enabled source, in collection
// order.
func BuildSources(cfg *config.Config, fetcher *fetch.Fetcher, logger *slog.Logger) ([]collect.Source, error) {
	var sources []collect.Source
	for _, s := range cfg.EnabledSources() {
		log := logger.With("component", "collector", "source", s.ID)

		var c collect.Collector
		switch s.ID {
		case config.NaverBlogID:
			c = collect.NewFeedCollector(s, fetcher, log)
		case config.AjunewsColumnID:
			col, err := collect.NewColumnCollector(s, cfg.DataSources.AjunewsColumn, cfg.CachePath(), fetcher, log)
			if err != nil {
				return nil, fmt.Errorf("source %s: %w", s.ID, err)
			}
			c = col
		default:
			return nil, fmt.Errorf("no collector for source %s", s.ID)
		}
		sources = append(sources, collect.Source{Settings: s, Collector: c})
	}
	return sources, nil
}

// selectSource returns the source with the given id.
func selectSource(sources []collect.Source, id string) (collect.Source, error) {
	for _, s := range sources {
		if s.Settings.ID == id {
			return s, nil
		}
	}
	return collect.Source{}, fmt.Errorf("source %q is unknown or disabled", id)
}
