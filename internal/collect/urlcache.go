package collect

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TobiSchelling/InsightCrawler/internal/post"
)

// URLCacheMaxAge is how long a cached URL list stays usable.
const URLCacheMaxAge = 24 * time.Hour

// URLCacheEntry is the persisted list of known article URLs for a source
// without a listing feed.
type URLCacheEntry struct {
	Updated string   `json:"updated"`
	URLs    []string `json:"urls"`
}

// UpdatedTime parses Updated. Offsets are honoured when present; naive
// timestamps are read in loc.
func (e URLCacheEntry) UpdatedTime(loc *time.Location) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, e.Updated); err == nil {
		return t, true
	}
	return post.ParsePublished(e.Updated, loc)
}

// Fresh reports whether the entry was updated less than URLCacheMaxAge
// before now.
func (e URLCacheEntry) Fresh(now time.Time) bool {
	updated, ok := e.UpdatedTime(now.Location())
	if !ok {
		return false
	}
	return now.Sub(updated) < URLCacheMaxAge
}

// LoadURLCache reads the cache at path. A missing file returns (nil, nil).
func LoadURLCache(path string) (*URLCacheEntry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading url cache: %w", err)
	}

	var entry URLCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parsing url cache %s: %w", path, err)
	}
	return &entry, nil
}

// SaveURLCache writes urls with an updated timestamp of now.
func SaveURLCache(path string, urls []string, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	entry := URLCacheEntry{Updated: now.Format(time.RFC3339), URLs: urls}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing url cache: %w", err)
	}
	return nil
}
