package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/TobiSchelling/InsightCrawler/internal/classify"
	"github.com/TobiSchelling/InsightCrawler/internal/collect"
	"github.com/TobiSchelling/InsightCrawler/internal/config"
	"github.com/TobiSchelling/InsightCrawler/internal/database"
	"github.com/TobiSchelling/InsightCrawler/internal/fetch"
	"github.com/TobiSchelling/InsightCrawler/internal/logging"
	"github.com/TobiSchelling/InsightCrawler/internal/post"
	"github.com/TobiSchelling/InsightCrawler/internal/report"
	"github.com/TobiSchelling/InsightCrawler/internal/summarize"
)

// ErrNoPosts is returned when no source produced a post. No report is
// written in that case.
var ErrNoPosts = errors.New("no posts collected from any source")

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	RunID         string
	ReferenceDate time.Time
	ArtifactPath  string
	ReportPath    string
	Posts         []post.Post
	Steps         []StepResult
}

// Pipeline runs collect, analyze, render and record.
type Pipeline struct {
	cfg        *config.Config
	db         *database.DB
	sources    []collect.Source
	store      *collect.ArtifactStore
	classifier *classify.Classifier
	summarizer summarize.Summarizer
	renderer   *report.Renderer
	logger     *slog.Logger
}

// New creates a pipeline with collectors for every enabled source. db may
// be nil, in which case the Record step is skipped.
func New(cfg *config.Config, db *database.DB, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	fetcher := fetch.New(cfg.Collection.Timeout, cfg.Collection.UserAgent)
	sources, err := BuildSources(cfg, fetcher, logger)
	if err != nil {
		return nil, err
	}
	return NewWithSources(cfg, db, sources, logger), nil
}

// NewWithSources creates a pipeline over the given sources.
func NewWithSources(cfg *config.Config, db *database.DB, sources []collect.Source, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pipeline{
		cfg:        cfg,
		db:         db,
		sources:    sources,
		store:      collect.NewArtifactStore(cfg.Storage.FeedsDir),
		classifier: classify.New(logger.With("component", "classifier")),
		summarizer: summarize.Extractive{},
		renderer:   report.NewRenderer(cfg.Report, reportLookback(cfg), logger.With("component", "report")),
		logger:     logger,
	}
}

// reportLookback is the window shown in the report summary: the blog
// feed's resolved lookback, including a per-source override.
func reportLookback(cfg *config.Config) int {
	s, _ := cfg.Settings(config.NaverBlogID)
	return s.DaysLookback
}

// Run executes the full pipeline relative to ref (now when zero). It
// returns ErrNoPosts when nothing was collected.
func (p *Pipeline) Run(ctx context.Context, ref time.Time) (*Result, error) {
	r := &Result{ReferenceDate: ref}

	// Step 1: Collect
	p.logger.Info("step 1/4: collecting posts")
	collected, err := collect.NewOrchestrator(p.sources, p.store, p.logger.With("component", "orchestrator")).
		CollectAll(ctx, ref)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Collect", Err: err})
		return r, err
	}
	r.RunID = collected.RunID
	r.ReferenceDate = collected.Effective
	r.ArtifactPath = collected.ArtifactPath
	r.Steps = append(r.Steps, StepResult{Name: "Collect", Summary: collectSummary(collected)})

	if collected.TotalCount() == 0 {
		p.logger.Warn("no posts collected, skipping report")
		r.Steps = append(r.Steps, StepResult{Name: "Analyze", Err: ErrNoPosts})
		p.record(r, collected, nil)
		return r, ErrNoPosts
	}

	// Steps 2 and 3: Analyze, Render
	cat, err := p.analyzeAndRender(ctx, r, collected.Posts)
	if err != nil {
		return r, err
	}

	// Step 4: Record
	p.record(r, collected, cat)

	return r, nil
}

// Rerender rebuilds the report from the combined artifact of an earlier
// run without collecting again. The report is linked to that run in the
// history database when the run was recorded there.
func (p *Pipeline) Rerender(ctx context.Context, artifactPath string) (*Result, error) {
	r := &Result{ArtifactPath: artifactPath}

	art, err := collect.LoadCombined(artifactPath)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Load", Err: err})
		return r, err
	}
	r.RunID = art.RunID
	r.ReferenceDate = art.Effective()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Load",
		Summary: fmt.Sprintf("Loaded %d posts from run %s", len(art.Posts), art.RunID),
	})

	if len(art.Posts) == 0 {
		r.Steps = append(r.Steps, StepResult{Name: "Analyze", Err: ErrNoPosts})
		return r, ErrNoPosts
	}

	cat, err := p.analyzeAndRender(ctx, r, art.Posts)
	if err != nil {
		return r, err
	}

	if p.db == nil {
		return r, nil
	}
	var runID *string
	if run, err := p.db.GetRun(art.RunID); err != nil {
		p.logger.Warn("looking up run failed", "run_id", art.RunID, "error", err)
	} else if run != nil {
		runID = &run.RunID
	}
	if err := p.insertReport(r, runID, cat); err != nil {
		p.logger.Warn("recording report failed", "path", r.ReportPath, "error", err)
		r.Steps = append(r.Steps, StepResult{Name: "Record", Err: err})
		return r, nil
	}
	r.Steps = append(r.Steps, StepResult{Name: "Record", Summary: "Report " + r.ReportPath + " recorded"})
	return r, nil
}

// analyzeAndRender classifies and summarizes posts, then writes the report
// for r.ReferenceDate.
func (p *Pipeline) analyzeAndRender(ctx context.Context, r *Result, posts []post.Post) (*report.Categorized, error) {
	p.logger.Info("step 2/4: classifying and summarizing", "posts", len(posts))
	r.Posts = p.analyze(ctx, posts)
	cat := report.Group(r.Posts)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Analyze",
		Summary: fmt.Sprintf("Analyzed %d posts into %d categories", len(r.Posts), len(cat.Buckets())),
	})

	p.logger.Info("step 3/4: rendering report")
	path, err := p.renderer.Write(p.renderer.Render(cat, r.ReferenceDate), r.ReferenceDate)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Render", Err: err})
		return nil, err
	}
	r.ReportPath = path
	r.Steps = append(r.Steps, StepResult{Name: "Render", Summary: "Report written to " + path})
	return cat, nil
}

// analyze classifies and summarizes each post. Posts that already carry a
// category or summary keep it.
func (p *Pipeline) analyze(ctx context.Context, posts []post.Post) []post.Post {
	explain := p.logger.Enabled(ctx, slog.LevelDebug)
	out := make([]post.Post, len(posts))
	for i, item := range posts {
		if !item.AssignCategory(p.classifier.Classify(item)) {
			p.logger.Debug("keeping existing category", "title", item.Title, "category", string(item.Category))
		}
		if explain {
			p.logger.Debug("category scores", "title", item.Title, "scores", p.classifier.Explain(item))
		}
		item.AssignSummary(p.summarizer.Summarize(item.Content))
		out[i] = item
	}
	return out
}

// record stores the run and its report in the history database. Failures
// are logged and reported in the step result only.
func (p *Pipeline) record(r *Result, collected *collect.Result, cat *report.Categorized) {
	if p.db == nil {
		return
	}
	p.logger.Info("step 4/4: recording run history")

	run := database.Run{
		RunID:       collected.RunID,
		CollectedAt: collected.CollectedAt.Format(time.RFC3339),
		TotalCount:  collected.TotalCount(),
		SourceStats: make(map[string]int, len(collected.Stats)),
	}
	if !collected.ReferenceDate.IsZero() {
		ref := collected.ReferenceDate.Format(time.RFC3339)
		run.ReferenceDate = &ref
	}
	if collected.ArtifactPath != "" {
		run.ArtifactPath = &collected.ArtifactPath
	}
	for _, s := range collected.Stats {
		run.SourceStats[s.Source] = s.Count
	}

	posts := r.Posts
	if posts == nil {
		posts = collected.Posts
	}
	runPosts := make([]database.RunPost, len(posts))
	for i, item := range posts {
		runPosts[i] = database.RunPost{
			URL:       item.URL,
			Title:     item.Title,
			Source:    item.Source,
			Published: item.Published,
			Category:  string(item.Category),
		}
	}

	if _, err := p.db.RecordRun(run, runPosts); err != nil {
		p.logger.Warn("recording run failed", "run_id", run.RunID, "error", err)
		r.Steps = append(r.Steps, StepResult{Name: "Record", Err: err})
		return
	}

	if r.ReportPath != "" && cat != nil {
		if err := p.insertReport(r, &run.RunID, cat); err != nil {
			p.logger.Warn("recording report failed", "path", r.ReportPath, "error", err)
			r.Steps = append(r.Steps, StepResult{Name: "Record", Err: err})
			return
		}
	}
	r.Steps = append(r.Steps, StepResult{Name: "Record", Summary: "Run " + run.RunID + " recorded"})
}

func (p *Pipeline) insertReport(r *Result, runID *string, cat *report.Categorized) error {
	_, err := p.db.InsertReport(database.Report{
		RunID:         runID,
		Path:          r.ReportPath,
		ReportDate:    r.ReferenceDate.Format("2006-01-02"),
		PostCount:     cat.Total(),
		CategoryCount: len(cat.Buckets()),
	})
	return err
}

// Collect runs only the collection step. With a source id, only that
// source is collected and a single-source artifact is written.
func (p *Pipeline) Collect(ctx context.Context, sourceID string, ref time.Time) (*collect.Result, error) {
	if sourceID == "" {
		return collect.NewOrchestrator(p.sources, p.store, p.logger.With("component", "orchestrator")).
			CollectAll(ctx, ref)
	}

	src, err := selectSource(p.sources, sourceID)
	if err != nil {
		return nil, err
	}
	res, err := collect.NewOrchestrator([]collect.Source{src}, nil, p.logger.With("component", "orchestrator")).
		CollectAll(ctx, ref)
	if err != nil {
		return nil, err
	}
	path, err := p.store.SaveSource(sourceID, res.Posts, res.CollectedAt, res.Effective)
	if err != nil {
		return res, fmt.Errorf("saving %s results: %w", sourceID, err)
	}
	res.ArtifactPath = path
	p.logger.Info("source results saved", "path", path)
	return res, nil
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun(ref time.Time) *Result {
	if ref.IsZero() {
		ref = time.Now()
	}
	r := &Result{ReferenceDate: ref}

	if len(p.sources) == 0 {
		r.Steps = append(r.Steps, StepResult{Name: "Collect", Summary: "[dry-run] no sources enabled"})
	}
	for _, s := range p.sources {
		lookback := "no recency window"
		if s.Settings.DaysLookback > 0 {
			lookback = fmt.Sprintf("last %d days", s.Settings.DaysLookback)
		}
		r.Steps = append(r.Steps, StepResult{
			Name: "Collect",
			Summary: fmt.Sprintf("[dry-run] %s (%s): up to %d posts from %s, %s",
				s.Settings.Name, s.Settings.ID, s.Settings.MaxPosts, s.Settings.Endpoint, lookback),
		})
	}

	r.Steps = append(r.Steps, StepResult{
		Name:    "Render",
		Summary: "[dry-run] Would write " + p.renderer.OutputPath(ref),
	})
	if p.cfg.Report.ViewerDir != "" {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Render",
			Summary: "[dry-run] Would mirror to " + filepath.Join(p.cfg.Report.ViewerDir, p.renderer.FileName(ref)),
		})
	}
	return r
}

func collectSummary(res *collect.Result) string {
	s := fmt.Sprintf("Collected %d posts", res.TotalCount())
	for _, st := range res.Stats {
		if st.Err != nil {
			s += fmt.Sprintf(", %s failed", st.Source)
			continue
		}
		s += fmt.Sprintf(", %s: %d", st.Source, st.Count)
	}
	return s
}
