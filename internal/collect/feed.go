package collect

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/InsightCrawler/internal/config"
	"github.com/TobiSchelling/InsightCrawler/internal/fetch"
	"github.com/TobiSchelling/InsightCrawler/internal/logging"
	"github.com/TobiSchelling/InsightCrawler/internal/post"
)

// FeedCollector reads a blog's RSS listing, keeps the recent entries and
// scrapes each entry's page for its full text.
type FeedCollector struct {
	settings config.SourceSettings
	fetcher  *fetch.Fetcher
	filter   *RecencyFilter
	logger   *slog.Logger
	sleep    sleepFunc
	now      func() time.Time
}

// NewFeedCollector creates a collector for a feed-based source.
func NewFeedCollector(settings config.SourceSettings, fetcher *fetch.Fetcher, logger *slog.Logger) *FeedCollector {
	if logger == nil {
		logger = logging.Discard()
	}
	return &FeedCollector{
		settings: settings,
		fetcher:  fetcher,
		filter:   NewRecencyFilter(logger),
		logger:   logger,
		sleep:    sleepContext,
		now:      time.Now,
	}
}

func (c *FeedCollector) Name() string {
	return c.settings.ID
}

// Collect fetches the listing, filters it to the recency window and scrapes
// up to MaxPosts detail pages. A failing listing fails the source; a
// failing detail page only drops that entry.
func (c *FeedCollector) Collect(ctx context.Context, ref time.Time) ([]post.Post, error) {
	if ref.IsZero() {
		ref = c.now()
	}

	c.logger.Info("fetching feed", "url", c.settings.Endpoint)
	candidates, err := c.fetchFeed(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Info("feed entries found", "count", len(candidates))

	recent := c.filter.Filter(candidates, ref, c.settings.DaysLookback)
	c.logger.Info("recent entries", "days", c.settings.DaysLookback, "count", len(recent))

	limit := len(recent)
	if c.settings.MaxPosts > 0 && limit > c.settings.MaxPosts {
		limit = c.settings.MaxPosts
	}

	posts := make([]post.Post, 0, limit)
	for i, candidate := range recent[:limit] {
		if ctx.Err() != nil {
			return posts, ctx.Err()
		}
		c.logger.Info("collecting post", "n", i+1, "of", limit, "title", candidate.Title)

		p, err := c.scrapeDetail(ctx, candidate)
		if err != nil {
			c.logger.Warn("post skipped", "url", candidate.URL, "error", err)
		} else {
			posts = append(posts, p)
		}
		c.sleep(ctx, c.settings.Delay)
	}

	c.logger.Info("feed collection complete", "source", c.settings.ID, "posts", len(posts))
	return posts, nil
}

// fetchFeed returns one candidate per listing entry. Content holds the
// entry's own summary until the detail page is scraped.
func (c *FeedCollector) fetchFeed(ctx context.Context) ([]post.Post, error) {
	parser := gofeed.NewParser()
	parser.Client = c.fetcher.Client()
	parser.UserAgent = c.fetcher.UserAgent()

	feed, err := parser.ParseURLWithContext(c.settings.Endpoint, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", c.settings.Endpoint, err)
	}

	var candidates []post.Post
	for _, item := range feed.Items {
		candidate, ok := candidateFromItem(item)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

func candidateFromItem(item *gofeed.Item) (post.Post, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		link = strings.TrimSpace(item.GUID)
	}
	if link == "" {
		return post.Post{}, false
	}

	published := item.Published
	if published == "" && item.PublishedParsed != nil {
		published = item.PublishedParsed.Format(time.RFC3339)
	}
	if published == "" {
		published = item.Updated
	}

	summary := item.Description
	if summary == "" {
		summary = item.Content
	}

	p := post.Post{
		Title:     strings.TrimSpace(item.Title),
		URL:       link,
		Published: published,
		Content:   fetch.StripHTML(summary),
	}
	if item.Author != nil {
		p.Author = item.Author.Name
	} else if len(item.Authors) > 0 && item.Authors[0] != nil {
		p.Author = item.Authors[0].Name
	}
	for _, cat := range item.Categories {
		p.AddTag(strings.TrimSpace(cat))
	}
	return p, true
}

// scrapeDetail fetches the entry page and extracts its body text.
func (c *FeedCollector) scrapeDetail(ctx context.Context, candidate post.Post) (post.Post, error) {
	page, err := c.fetcher.Page(ctx, candidate.URL)
	if err != nil {
		return post.Post{}, err
	}

	content := blogContent(page.Doc)
	if content == "" {
		if frame := mainFrameURL(page); frame != "" {
			if inner, err := c.fetcher.Page(ctx, frame); err == nil {
				content = blogContent(inner.Doc)
			} else {
				c.logger.Debug("main frame fetch failed", "url", frame, "error", err)
			}
		}
	}
	if content == "" {
		content = candidate.Content
	}

	p := candidate
	p.Content = post.Truncate(content, post.MaxContentRunes)
	p.CollectedAt = c.now()
	return p, nil
}

// blogContent tries the editor container first, then the legacy post view.
func blogContent(doc *goquery.Document) string {
	if text := fetch.Text(doc.Find("div.se-main-container").First()); text != "" {
		return text
	}
	view := doc.Find("div#postViewArea").First()
	if view.Length() == 0 {
		view = doc.Find("div.post-view").First()
	}
	return fetch.Text(view)
}

// mainFrameURL returns the absolute URL of the blog's content iframe, if
// the page wraps its post in one.
func mainFrameURL(page *fetch.Page) string {
	src, ok := page.Doc.Find("iframe#mainFrame").First().Attr("src")
	if !ok || src == "" {
		return ""
	}
	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	return page.URL.ResolveReference(ref).String()
}
