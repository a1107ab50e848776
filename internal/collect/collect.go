package collect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/TobiSchelling/InsightCrawler/internal/config"
	"github.com/TobiSchelling/InsightCrawler/internal/logging"
	"github.com/TobiSchelling/InsightCrawler/internal/post"
)

// Source pairs a collector with its resolved settings.
type Source struct {
	Settings  config.SourceSettings
	Collector Collector
}

// SourceStat is the outcome of collecting one source.
type SourceStat struct {
	Source string
	Name   string
	Count  int // posts kept after the recency window
	Err    error
}

// Result holds the results of a multi-source collection run.
type Result struct {
	RunID         string
	ReferenceDate time.Time // zero when the run used the current time
	Effective     time.Time // reference date actually used
	CollectedAt   time.Time
	Posts         []post.Post
	Stats         []SourceStat
	ArtifactPath  string
}

// TotalCount returns the number of aggregated posts.
func (r *Result) TotalCount() int {
	return len(r.Posts)
}

// Orchestrator runs every configured source in order. A failing source is
// recorded with zero posts and never affects the others.
type Orchestrator struct {
	sources []Source
	filter  *RecencyFilter
	store   *ArtifactStore
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// NewOrchestrator creates an orchestrator. A nil store skips persisting the
// combined artifact.
func NewOrchestrator(sources []Source, store *ArtifactStore, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Orchestrator{
		sources: sources,
		filter:  NewRecencyFilter(logger),
		store:   store,
		logger:  logger,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// CollectAll collects from all sources relative to ref (the current time
// when ref is zero), stamps each post with its source and persists the
// combined artifact. Only a persistence failure is returned as an error.
func (o *Orchestrator) CollectAll(ctx context.Context, ref time.Time) (*Result, error) {
	r := &Result{
		RunID:         o.newID(),
		ReferenceDate: ref,
		Effective:     ref,
	}
	if r.Effective.IsZero() {
		r.Effective = o.now()
	}

	o.logger.Info("multi-source collection started",
		"sources", len(o.sources), "reference", r.Effective.Format("2006-01-02"))

	for _, src := range o.sources {
		id := src.Settings.ID
		o.logger.Info("collecting source", "source", id)

		posts, err := o.runSource(ctx, src, r.Effective)
		if err != nil {
			o.logger.Error("source failed", "source", id, "error", err)
			r.Stats = append(r.Stats, SourceStat{Source: id, Name: src.Settings.Name, Err: err})
			continue
		}

		posts = o.filter.Filter(posts, r.Effective, src.Settings.DaysLookback)
		for i := range posts {
			posts[i].Stamp(id, src.Settings.Name)
		}

		r.Posts = append(r.Posts, posts...)
		r.Stats = append(r.Stats, SourceStat{Source: id, Name: src.Settings.Name, Count: len(posts)})
		o.logger.Info("source collected", "source", id, "posts", len(posts))
	}
	r.CollectedAt = o.now()

	o.logger.Info("multi-source collection complete", "total", len(r.Posts))
	for _, s := range r.Stats {
		o.logger.Info("source total", "source", s.Source, "posts", s.Count)
	}

	if o.store != nil {
		path, err := o.store.SaveCombined(r)
		if err != nil {
			return r, fmt.Errorf("saving combined results: %w", err)
		}
		r.ArtifactPath = path
		o.logger.Info("combined results saved", "path", path)
	}

	return r, nil
}

// runSource calls the collector, converting a panic into an error so one
// broken source cannot abort the run.
func (o *Orchestrator) runSource(ctx context.Context, src Source, ref time.Time) (posts []post.Post, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("collector panic: %v", rec)
		}
	}()
	return src.Collector.Collect(ctx, ref)
}
