// Package report renders categorized posts as a Markdown insight report and
// writes it to the output and viewer directories.
package report

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/TobiSchelling/InsightCrawler/internal/config"
	"github.com/TobiSchelling/InsightCrawler/internal/logging"
	"github.com/TobiSchelling/InsightCrawler/internal/post"
)

// FileSuffix ends every report file name.
const FileSuffix = "_weekly_insight_report.md"

// TotalPostsLabel prefixes the total count line in the summary section.
const TotalPostsLabel = "- **총 포스트 수**: "

const generatedAtLayout = "2006-01-02 15:04:05"

// Renderer renders and stores reports.
type Renderer struct {
	cfg          config.Report
	lookbackDays int
	logger       *slog.Logger
	now          func() time.Time
}

// NewRenderer creates a renderer. lookbackDays is shown as the analysis
// window in the summary section.
func NewRenderer(cfg config.Report, lookbackDays int, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.DateFormat == "" {
		cfg.DateFormat = "2006-01-02"
	}
	return &Renderer{cfg: cfg, lookbackDays: lookbackDays, logger: logger, now: time.Now}
}

// FileName returns the report file name for ref.
func (r *Renderer) FileName(ref time.Time) string {
	return ref.Format(r.cfg.DateFormat) + FileSuffix
}

// OutputPath returns where Write stores the report for ref.
func (r *Renderer) OutputPath(ref time.Time) string {
	return filepath.Join(r.cfg.OutputDir, r.FileName(ref))
}

// Render produces the Markdown document. Every line except the final
// generation timestamp depends only on cat and ref.
func (r *Renderer) Render(cat *Categorized, ref time.Time) []byte {
	var b bytes.Buffer

	title := r.cfg.Title
	if title == "" {
		title = config.Default().Report.Title
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "**생성 날짜**: %s\n\n", ref.Format(r.cfg.DateFormat))

	r.writeSummary(&b, cat)

	loc := ref.Location()
	for _, bucket := range cat.Ordered() {
		if len(bucket.Posts) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s %s\n\n", bucket.Category.Icon(), bucket.Category)
		for i, p := range sortByPublished(bucket.Posts, loc) {
			writePost(&b, i+1, p, loc)
		}
	}

	b.WriteString("\n---\n\n")
	b.WriteString("*이 리포트는 키워드 분석을 통해 자동 생성되었습니다.*\n\n")
	fmt.Fprintf(&b, "*생성 시각: %s*\n", r.now().Format(generatedAtLayout))

	return b.Bytes()
}

func (r *Renderer) writeSummary(b *bytes.Buffer, cat *Categorized) {
	buckets := cat.Buckets()

	b.WriteString("## 📊 요약\n\n")
	fmt.Fprintf(b, "%s%d개\n", TotalPostsLabel, cat.Total())
	if r.lookbackDays > 0 {
		fmt.Fprintf(b, "- **분석 기간**: 최근 %d일\n", r.lookbackDays)
	} else {
		b.WriteString("- **분석 기간**: 전체\n")
	}
	fmt.Fprintf(b, "- **카테고리 수**: %d개\n\n", len(buckets))

	b.WriteString("### 카테고리별 분포\n\n")
	byName := slices.Clone(buckets)
	sort.Slice(byName, func(i, j int) bool { return byName[i].Category < byName[j].Category })
	for _, bucket := range byName {
		fmt.Fprintf(b, "- **%s**: %d개\n", bucket.Category, len(bucket.Posts))
	}
	b.WriteString("\n---\n\n")
}

func writePost(b *bytes.Buffer, n int, p post.Post, loc *time.Location) {
	fmt.Fprintf(b, "### %d. %s\n\n", n, p.Title)
	fmt.Fprintf(b, "**발행일**: %s\n\n", formatPublished(p, loc))
	if p.SourceName != "" {
		fmt.Fprintf(b, "**출처**: %s\n\n", p.SourceName)
	}
	b.WriteString("**요약**:\n")
	fmt.Fprintf(b, "> %s\n\n", p.Summary)
	fmt.Fprintf(b, "🔗 [원문 보기](%s)\n\n", p.URL)
	b.WriteString("---\n\n")
}

// formatPublished renders a parseable date as "YYYY년 MM월 DD일" and
// anything else as given.
func formatPublished(p post.Post, loc *time.Location) string {
	if t, ok := p.PublishedTime(loc); ok {
		return post.FormatKoreanDate(t)
	}
	if p.Published == "" {
		return "알 수 없음"
	}
	return p.Published
}

// sortByPublished orders posts newest first. Unparseable dates sort last;
// ties keep their input order.
func sortByPublished(posts []post.Post, loc *time.Location) []post.Post {
	type dated struct {
		p  post.Post
		at time.Time
	}
	items := make([]dated, len(posts))
	for i, p := range posts {
		at, _ := p.PublishedTime(loc)
		items[i] = dated{p: p, at: at}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].at.After(items[j].at)
	})

	out := make([]post.Post, len(items))
	for i, d := range items {
		out[i] = d.p
	}
	return out
}

// Write stores doc in the output directory and mirrors it into the viewer
// directory. A failed mirror is logged and does not fail the write.
func (r *Renderer) Write(doc []byte, ref time.Time) (string, error) {
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := r.OutputPath(ref)
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	r.logger.Info("report written", "path", path)

	if mirrored, err := r.Mirror(path); err != nil {
		r.logger.Warn("report mirror failed", "viewer_dir", r.cfg.ViewerDir, "error", err)
	} else if mirrored != "" {
		r.logger.Info("report mirrored", "path", mirrored)
	}
	return path, nil
}

// Mirror copies the report at path into the viewer directory under the
// same name, keeping its modification time. It returns "" without error
// when no viewer directory is configured.
func (r *Renderer) Mirror(path string) (string, error) {
	if r.cfg.ViewerDir == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading report: %w", err)
	}
	if err := os.MkdirAll(r.cfg.ViewerDir, 0o755); err != nil {
		return "", fmt.Errorf("creating viewer directory: %w", err)
	}
	dst := filepath.Join(r.cfg.ViewerDir, filepath.Base(path))
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("writing mirror: %w", err)
	}
	if info, err := os.Stat(path); err == nil {
		_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	}
	return dst, nil
}
