package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/InsightCrawler/internal/collect"
	"github.com/TobiSchelling/InsightCrawler/internal/config"
	"github.com/TobiSchelling/InsightCrawler/internal/database"
	"github.com/TobiSchelling/InsightCrawler/internal/logging"
	"github.com/TobiSchelling/InsightCrawler/internal/post"
)

type stubCollector struct {
	name  string
	posts []post.Post
	err   error
}

func (s *stubCollector) Name() string { return s.name }

func (s *stubCollector) Collect(context.Context, time.Time) ([]post.Post, error) {
	return s.posts, s.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.FeedsDir = filepath.Join(dir, "feeds")
	cfg.Report.OutputDir = filepath.Join(dir, "output")
	cfg.Report.ViewerDir = filepath.Join(dir, "reports")
	return cfg
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func stubSource(id string, lookback int, c collect.Collector) collect.Source {
	return collect.Source{
		Settings:  config.SourceSettings{ID: id, Name: id + " 이름", Enabled: true, DaysLookback: lookback},
		Collector: c,
	}
}

var ref = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	db := openTestDB(t)
	sources := []collect.Source{
		stubSource("blog", 7, &stubCollector{name: "blog", posts: []post.Post{
			{Title: "ChatGPT 새 모델 공개", URL: "https://a.com", Published: "2025-03-12",
				Content: "오픈AI가 새로운 언어모델을 공개했습니다. 성능이 크게 향상되었다고 합니다."},
			{Title: "양자 물리 실험", URL: "https://b.com", Published: "2025-03-10",
				Content: "양자 얽힘을 이용한 새로운 실험 결과가 발표되었습니다."},
			{Title: "오래된 글", URL: "https://c.com", Published: "2025-01-01", Content: "old"},
		}}),
		stubSource("column", 0, &stubCollector{name: "column", err: errors.New("down")}),
	}

	p := NewWithSources(cfg, db, sources, nil)
	res, err := p.Run(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(res.Posts))
	}
	for _, p := range res.Posts {
		if p.Category == "" || p.Summary == "" {
			t.Errorf("post %q not analyzed: %+v", p.Title, p)
		}
	}
	if res.Posts[0].Category != post.CategoryAI {
		t.Errorf("first post category = %q", res.Posts[0].Category)
	}

	wantPath := filepath.Join(cfg.Report.OutputDir, "2025-03-14_weekly_insight_report.md")
	if res.ReportPath != wantPath {
		t.Errorf("report path = %q, want %q", res.ReportPath, wantPath)
	}
	doc, err := os.ReadFile(res.ReportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(doc), "- **총 포스트 수**: 2개") {
		t.Error("report missing total count")
	}
	if _, err := os.Stat(filepath.Join(cfg.Report.ViewerDir, filepath.Base(wantPath))); err != nil {
		t.Errorf("expected mirrored report: %v", err)
	}

	art, err := collect.LoadCombined(res.ArtifactPath)
	if err != nil {
		t.Fatalf("load artifact: %v", err)
	}
	if art.TotalCount != 2 || art.SourceStats["blog"] != 2 || art.SourceStats["column"] != 0 {
		t.Errorf("unexpected artifact stats: total=%d stats=%v", art.TotalCount, art.SourceStats)
	}

	run, err := db.GetRun(res.RunID)
	if err != nil || run == nil {
		t.Fatalf("run not recorded: %v", err)
	}
	if run.TotalCount != 2 {
		t.Errorf("recorded total = %d", run.TotalCount)
	}
	reports, _ := db.ListReports(0)
	if len(reports) != 1 || reports[0].Path != wantPath {
		t.Errorf("unexpected recorded reports: %+v", reports)
	}

	var names []string
	for _, s := range res.Steps {
		names = append(names, s.Name)
		if s.Err != nil {
			t.Errorf("step %s failed: %v", s.Name, s.Err)
		}
	}
	if strings.Join(names, ",") != "Collect,Analyze,Render,Record" {
		t.Errorf("steps = %v", names)
	}
}

func TestRunNoPosts(t *testing.T) {
	cfg := testConfig(t)
	sources := []collect.Source{
		stubSource("a", 7, &stubCollector{name: "a", err: errors.New("down")}),
		stubSource("b", 7, &stubCollector{name: "b"}),
	}

	res, err := NewWithSources(cfg, openTestDB(t), sources, nil).Run(context.Background(), ref)
	if !errors.Is(err, ErrNoPosts) {
		t.Fatalf("expected ErrNoPosts, got %v", err)
	}
	if res.ReportPath != "" {
		t.Errorf("expected no report, got %q", res.ReportPath)
	}
	if _, err := os.Stat(cfg.Report.OutputDir); !os.IsNotExist(err) {
		t.Errorf("output directory should not exist, stat err = %v", err)
	}
}

func TestRunWithoutDatabase(t *testing.T) {
	cfg := testConfig(t)
	sources := []collect.Source{
		stubSource("a", 0, &stubCollector{name: "a", posts: []post.Post{{Title: "t", URL: "https://t", Content: ""}}}),
	}

	res, err := NewWithSources(cfg, nil, sources, nil).Run(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Posts[0].Summary != "내용을 확인할 수 없습니다." {
		t.Errorf("summary = %q", res.Posts[0].Summary)
	}
	for _, s := range res.Steps {
		if s.Name == "Record" {
			t.Error("record step should be skipped without a database")
		}
	}
}

func TestAnalyzeKeepsAssignedFields(t *testing.T) {
	p := NewWithSources(testConfig(t), nil, nil, nil)
	in := []post.Post{{Title: "ChatGPT", Category: post.CategoryPolicy, Summary: "기존 요약"}}

	out := p.analyze(context.Background(), in)
	if out[0].Category != post.CategoryPolicy || out[0].Summary != "기존 요약" {
		t.Errorf("analyze overwrote assigned fields: %+v", out[0])
	}
}

func TestAnalyzeLogsScoresOnlyAtDebug(t *testing.T) {
	in := []post.Post{{Title: "ChatGPT 소식", Content: "AI 모델"}}

	tests := []struct {
		level string
		want  bool
	}{
		{"info", false},
		{"debug", true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			p := NewWithSources(testConfig(t), nil, nil, logging.NewWithWriter(&buf, tt.level))

			p.analyze(context.Background(), in)
			if got := strings.Contains(buf.String(), "category scores"); got != tt.want {
				t.Errorf("scores logged = %v, want %v:\n%s", got, tt.want, buf.String())
			}
		})
	}
}

func TestReportShowsFeedLookbackOverride(t *testing.T) {
	cfg := testConfig(t)
	days := 14
	cfg.DataSources.NaverBlog.DaysLookback = &days
	sources := []collect.Source{
		stubSource("a", 0, &stubCollector{name: "a", posts: []post.Post{{Title: "t", URL: "https://t", Content: "본문"}}}),
	}

	res, err := NewWithSources(cfg, nil, sources, nil).Run(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc, err := os.ReadFile(res.ReportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(doc), "- **분석 기간**: 최근 14일") {
		t.Errorf("report does not show the feed lookback:\n%s", doc)
	}
}

func TestRerenderFromArtifact(t *testing.T) {
	cfg := testConfig(t)
	db := openTestDB(t)
	sources := []collect.Source{
		stubSource("a", 0, &stubCollector{name: "a", posts: []post.Post{
			{Title: "ChatGPT 새 모델", URL: "https://a.com", Published: "2025-03-12", Content: "언어모델 소식입니다."},
		}}),
	}
	p := NewWithSources(cfg, db, sources, nil)

	first, err := p.Run(context.Background(), ref)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := os.Remove(first.ReportPath); err != nil {
		t.Fatal(err)
	}

	res, err := p.Rerender(context.Background(), first.ArtifactPath)
	if err != nil {
		t.Fatalf("rerender: %v", err)
	}
	if res.RunID != first.RunID || res.ReportPath != first.ReportPath {
		t.Errorf("rerender = run %q path %q, want run %q path %q", res.RunID, res.ReportPath, first.RunID, first.ReportPath)
	}
	if len(res.Posts) != 1 || res.Posts[0].Category != post.CategoryAI {
		t.Errorf("unexpected posts: %+v", res.Posts)
	}
	if _, err := os.Stat(res.ReportPath); err != nil {
		t.Errorf("report not rewritten: %v", err)
	}

	reports, err := db.ListReports(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 2 || reports[0].RunID == nil || *reports[0].RunID != first.RunID {
		t.Errorf("unexpected recorded reports: %+v", reports)
	}
}

func TestRerenderUnrecordedRun(t *testing.T) {
	cfg := testConfig(t)
	sources := []collect.Source{
		stubSource("a", 0, &stubCollector{name: "a", posts: []post.Post{{Title: "t", URL: "https://t", Content: "본문"}}}),
	}
	first, err := NewWithSources(cfg, nil, sources, nil).Run(context.Background(), ref)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	db := openTestDB(t)
	if _, err := NewWithSources(cfg, db, nil, nil).Rerender(context.Background(), first.ArtifactPath); err != nil {
		t.Fatalf("rerender: %v", err)
	}
	reports, _ := db.ListReports(0)
	if len(reports) != 1 || reports[0].RunID != nil {
		t.Errorf("expected one report without a run, got %+v", reports)
	}
}

func TestRerenderErrors(t *testing.T) {
	cfg := testConfig(t)
	p := NewWithSources(cfg, nil, nil, nil)

	if _, err := p.Rerender(context.Background(), filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing artifact")
	}

	empty, err := p.Run(context.Background(), ref)
	if !errors.Is(err, ErrNoPosts) {
		t.Fatalf("expected ErrNoPosts from run, got %v", err)
	}
	if _, err := p.Rerender(context.Background(), empty.ArtifactPath); !errors.Is(err, ErrNoPosts) {
		t.Errorf("expected ErrNoPosts from rerender, got %v", err)
	}
}

func TestCollectSingleSource(t *testing.T) {
	cfg := testConfig(t)
	sources := []collect.Source{
		stubSource("a", 0, &stubCollector{name: "a", posts: []post.Post{{Title: "t", URL: "https://t"}}}),
		stubSource("b", 0, &stubCollector{name: "b", posts: []post.Post{{Title: "u", URL: "https://u"}}}),
	}
	p := NewWithSources(cfg, nil, sources, nil)

	res, err := p.Collect(context.Background(), "b", ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalCount() != 1 || res.Posts[0].Source != "b" {
		t.Errorf("unexpected posts: %+v", res.Posts)
	}
	if filepath.Base(res.ArtifactPath) != "b_20250314_000000.json" {
		t.Errorf("artifact = %q", res.ArtifactPath)
	}

	if _, err := p.Collect(context.Background(), "missing", ref); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestDryRun(t *testing.T) {
	cfg := testConfig(t)
	sources := []collect.Source{stubSource("a", 7, &stubCollector{name: "a"})}

	res := NewWithSources(cfg, nil, sources, nil).DryRun(ref)

	var lines []string
	for _, s := range res.Steps {
		lines = append(lines, s.Summary)
	}
	joined := strings.Join(lines, "\n")
	for _, want := range []string{"a 이름 (a)", "last 7 days", "2025-03-14_weekly_insight_report.md", "Would mirror"} {
		if !strings.Contains(joined, want) {
			t.Errorf("dry run output missing %q:\n%s", want, joined)
		}
	}
}

func TestBuildSources(t *testing.T) {
	cfg := config.Default()
	cfg.DataSources.NaverBlog.Enabled = true
	cfg.DataSources.NaverBlog.RSSURL = "https://rss.example.com/blog.xml"
	cfg.DataSources.AjunewsColumn.Enabled = true

	p, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(p.sources))
	}
	if p.sources[0].Collector.Name() != config.NaverBlogID || p.sources[1].Collector.Name() != config.AjunewsColumnID {
		t.Errorf("unexpected source order: %s, %s", p.sources[0].Collector.Name(), p.sources[1].Collector.Name())
	}

	cfg.DataSources.AjunewsColumn.TitlePattern = "(broken"
	if _, err := New(cfg, nil, nil); err == nil {
		t.Error("expected error for invalid title pattern")
	}
}
