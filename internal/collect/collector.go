package collect

import (
	"context"
	"time"

	"github.com/TobiSchelling/InsightCrawler/internal/post"
)

// Collector retrieves and normalizes posts from one external source.
type Collector interface {
	// Name returns the source identifier (e.g. "naver_blog").
	Name() string

	// Collect returns the posts available relative to ref. Per-item
	// failures are logged and skipped; an error means the whole source
	// failed.
	Collect(ctx context.Context, ref time.Time) ([]post.Post, error)
}

// sleepFunc pauses between fetches. Collectors hold one so tests can
// record delays instead of waiting.
type sleepFunc func(ctx context.Context, d time.Duration)

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
