package collect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TobiSchelling/InsightCrawler/internal/post"
)

// StatsBasisPostFilter marks source_stats as counting posts kept after the
// recency window, so total_count always equals their sum.
const StatsBasisPostFilter = "post_filter"

const artifactTimestamp = "20060102_150405"

// CombinedArtifact is the persisted record of a multi-source run.
type CombinedArtifact struct {
	RunID         string         `json:"run_id"`
	CollectedAt   time.Time      `json:"collected_at"`
	ReferenceDate *time.Time     `json:"reference_date"`
	TotalCount    int            `json:"total_count"`
	SourceStats   map[string]int `json:"source_stats"`
	StatsBasis    string         `json:"stats_basis"`
	Sources       []string       `json:"sources"`
	Posts         []post.Post    `json:"posts"`
}

// SourceArtifact is the persisted record of a single-source run.
type SourceArtifact struct {
	Source      string      `json:"source"`
	CollectedAt time.Time   `json:"collected_at"`
	Count       int         `json:"count"`
	Posts       []post.Post `json:"posts"`
}

// ArtifactStore writes run artifacts as JSON files in one directory.
type ArtifactStore struct {
	dir string
}

// NewArtifactStore creates a store rooted at dir.
func NewArtifactStore(dir string) *ArtifactStore {
	return &ArtifactStore{dir: dir}
}

// Combined converts a run result into its persisted form.
func Combined(r *Result) CombinedArtifact {
	a := CombinedArtifact{
		RunID:       r.RunID,
		CollectedAt: r.CollectedAt,
		TotalCount:  len(r.Posts),
		SourceStats: make(map[string]int, len(r.Stats)),
		StatsBasis:  StatsBasisPostFilter,
		Sources:     make([]string, 0, len(r.Stats)),
		Posts:       r.Posts,
	}
	if !r.ReferenceDate.IsZero() {
		ref := r.ReferenceDate
		a.ReferenceDate = &ref
	}
	if a.Posts == nil {
		a.Posts = []post.Post{}
	}
	for _, s := range r.Stats {
		a.SourceStats[s.Source] = s.Count
		a.Sources = append(a.Sources, s.Source)
	}
	return a
}

// SaveCombined writes combined_sources_<timestamp>.json, the timestamp
// taken from the effective reference date.
func (s *ArtifactStore) SaveCombined(r *Result) (string, error) {
	name := fmt.Sprintf("combined_sources_%s.json", r.Effective.Format(artifactTimestamp))
	return s.write(name, Combined(r))
}

// SaveSource writes <source>_<timestamp>.json for a single-source run.
func (s *ArtifactStore) SaveSource(source string, posts []post.Post, collectedAt, ref time.Time) (string, error) {
	if posts == nil {
		posts = []post.Post{}
	}
	name := fmt.Sprintf("%s_%s.json", source, ref.Format(artifactTimestamp))
	return s.write(name, SourceArtifact{
		Source:      source,
		CollectedAt: collectedAt,
		Count:       len(posts),
		Posts:       posts,
	})
}

func (s *ArtifactStore) write(name string, v any) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating feeds directory: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encoding %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return path, nil
}

// Effective returns the reference date the run used: the recorded one, or
// the collection time for runs relative to now.
func (a *CombinedArtifact) Effective() time.Time {
	if a.ReferenceDate != nil {
		return *a.ReferenceDate
	}
	return a.CollectedAt
}

// LoadCombined reads a combined artifact written by SaveCombined.
func LoadCombined(path string) (*CombinedArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	var a CombinedArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing artifact %s: %w", path, err)
	}
	return &a, nil
}
