package collect

import (
	"log/slog"
	"time"

	"github.com/TobiSchelling/InsightCrawler/internal/logging"
	"github.com/TobiSchelling/InsightCrawler/internal/post"
)

// RecencyFilter restricts posts to the inclusive window
// [ref - lookbackDays, ref]. Posts whose publication date cannot be parsed
// are kept.
type RecencyFilter struct {
	logger *slog.Logger
}

// NewRecencyFilter creates a filter that logs unparseable dates at warn.
func NewRecencyFilter(logger *slog.Logger) *RecencyFilter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RecencyFilter{logger: logger}
}

// Filter returns the posts inside the window, preserving order. Dates are
// compared in ref's location. lookbackDays <= 0 disables filtering.
func (f *RecencyFilter) Filter(posts []post.Post, ref time.Time, lookbackDays int) []post.Post {
	if lookbackDays <= 0 {
		return posts
	}
	cutoff := ref.AddDate(0, 0, -lookbackDays)

	f.logger.Debug("recency window",
		"from", cutoff.Format("2006-01-02"), "to", ref.Format("2006-01-02"), "days", lookbackDays)

	kept := make([]post.Post, 0, len(posts))
	for _, p := range posts {
		published, ok := p.PublishedTime(ref.Location())
		if !ok {
			f.logger.Warn("unparseable publish date, keeping post", "title", p.Title, "published", p.Published)
			kept = append(kept, p)
			continue
		}
		if published.Before(cutoff) || published.After(ref) {
			continue
		}
		kept = append(kept, p)
	}

	f.logger.Debug("recency filter applied", "in", len(posts), "kept", len(kept))
	return kept
}
