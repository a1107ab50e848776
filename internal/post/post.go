package post

import (
	"time"
	"unicode/utf8"
)

// MaxContentRunes caps the stored content of a post.
const MaxContentRunes = 5000

// Post is a single content item collected from a source. Fields set by the
// collector are not modified afterwards; Category and Summary are filled in
// once by the analysis step.
type Post struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Author      string    `json:"author,omitempty"`
	Published   string    `json:"published"`
	Content     string    `json:"content"`
	Tags        []string  `json:"tags,omitempty"`
	Source      string    `json:"data_source,omitempty"`
	SourceName  string    `json:"source_display_name,omitempty"`
	Category    Category  `json:"category,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	CollectedAt time.Time `json:"collected_at"`
}

// Stamp records the originating source. It only fills empty fields so a
// collector that already set its identity keeps it.
func (p *Post) Stamp(source, displayName string) {
	if p.Source == "" {
		p.Source = source
	}
	if p.SourceName == "" {
		p.SourceName = displayName
	}
}

// AssignCategory sets the category once. It reports false if a category was
// already assigned.
func (p *Post) AssignCategory(c Category) bool {
	if p.Category != "" {
		return false
	}
	p.Category = c
	return true
}

// AssignSummary sets the summary once. It reports false if a summary was
// already assigned.
func (p *Post) AssignSummary(s string) bool {
	if p.Summary != "" {
		return false
	}
	p.Summary = s
	return true
}

// PublishedTime parses Published in loc. See ParsePublished.
func (p Post) PublishedTime(loc *time.Location) (time.Time, bool) {
	return ParsePublished(p.Published, loc)
}

// AddTag appends tag unless it is empty or already present.
func (p *Post) AddTag(tag string) {
	if tag == "" {
		return
	}
	for _, t := range p.Tags {
		if t == tag {
			return
		}
	}
	p.Tags = append(p.Tags, tag)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
