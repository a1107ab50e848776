package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/TobiSchelling/InsightCrawler/internal/config"
	"github.com/TobiSchelling/InsightCrawler/internal/fetch"
	"github.com/TobiSchelling/InsightCrawler/internal/logging"
	"github.com/TobiSchelling/InsightCrawler/internal/post"
)

// ColumnCollector scrapes a newspaper column that has no listing feed. It
// works from a cached list of article URLs and accepts only pages whose
// title carries the column marker and whose date falls in the filter year.
type ColumnCollector struct {
	settings     config.SourceSettings
	yearFilter   int
	author       string
	titleRe      *regexp.Regexp
	cachePath    string
	fallbackURLs []string
	fetcher      *fetch.Fetcher
	logger       *slog.Logger
	sleep        sleepFunc
	now          func() time.Time
}

// NewColumnCollector creates a collector for a cached-URL column source.
// It fails only if the configured title pattern does not compile.
func NewColumnCollector(settings config.SourceSettings, col config.ColumnSource, cachePath string, fetcher *fetch.Fetcher, logger *slog.Logger) (*ColumnCollector, error) {
	pattern := col.TitlePattern
	if pattern == "" {
		pattern = config.Default().DataSources.AjunewsColumn.TitlePattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling title pattern: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &ColumnCollector{
		settings:     settings,
		yearFilter:   col.YearFilter,
		author:       col.Author,
		titleRe:      re,
		cachePath:    cachePath,
		fallbackURLs: col.FallbackURLs,
		fetcher:      fetcher,
		logger:       logger,
		sleep:        sleepContext,
		now:          time.Now,
	}, nil
}

func (c *ColumnCollector) Name() string {
	return c.settings.ID
}

// Collect scrapes candidate URLs in order until MaxPosts posts are accepted
// or 2*MaxPosts candidates have been tried.
func (c *ColumnCollector) Collect(ctx context.Context, ref time.Time) ([]post.Post, error) {
	urls := c.urlList()

	limit := len(urls)
	if c.settings.MaxPosts > 0 && limit > c.settings.MaxPosts*2 {
		limit = c.settings.MaxPosts * 2
	}

	var posts []post.Post
	for _, u := range urls[:limit] {
		if ctx.Err() != nil {
			return posts, ctx.Err()
		}

		p, err := c.scrape(ctx, u)
		switch {
		case err != nil:
			c.logger.Warn("article scrape failed", "url", u, "error", err)
		case p == nil:
			// not part of the column
		case !c.inFilterYear(*p):
			c.logger.Debug("article outside filter year", "url", u, "published", p.Published)
		default:
			posts = append(posts, *p)
			c.logger.Info("collected column", "title", p.Title)
		}

		if c.settings.MaxPosts > 0 && len(posts) >= c.settings.MaxPosts {
			break
		}
		c.sleep(ctx, c.settings.Delay)
	}

	c.logger.Info("column collection complete", "source", c.settings.ID, "posts", len(posts))
	return posts, nil
}

// urlList returns the cached URLs when the cache is fresh, otherwise the
// configured fallback list. The cache is never written here.
func (c *ColumnCollector) urlList() []string {
	entry, err := LoadURLCache(c.cachePath)
	if err != nil {
		c.logger.Warn("url cache unreadable", "path", c.cachePath, "error", err)
	}
	if entry != nil && len(entry.URLs) > 0 && entry.Fresh(c.now()) {
		c.logger.Info("using cached url list", "count", len(entry.URLs))
		return entry.URLs
	}
	c.logger.Info("using fallback url list", "count", len(c.fallbackURLs))
	return c.fallbackURLs
}

// inFilterYear accepts posts from the filter year. Posts whose date does
// not parse are accepted.
func (c *ColumnCollector) inFilterYear(p post.Post) bool {
	if c.yearFilter <= 0 {
		return true
	}
	published, ok := p.PublishedTime(c.now().Location())
	if !ok {
		c.logger.Warn("unparseable publish date, keeping column", "url", p.URL, "published", p.Published)
		return true
	}
	return published.Year() == c.yearFilter
}

// matchesColumn reports whether title carries the column marker.
func (c *ColumnCollector) matchesColumn(title string) bool {
	return c.titleRe.MatchString(title)
}

// scrape fetches one article. It returns (nil, nil) for pages that are not
// part of the column.
func (c *ColumnCollector) scrape(ctx context.Context, articleURL string) (*post.Post, error) {
	page, err := c.fetcher.Page(ctx, articleURL)
	if err != nil {
		return nil, err
	}
	doc := page.Doc
	meta := extractLinkedData(doc)

	title := strings.TrimSpace(meta.Headline)
	if title == "" {
		title = metaContent(doc, `meta[property="og:title"]`)
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		return nil, fmt.Errorf("no title found")
	}
	if !c.matchesColumn(title) {
		c.logger.Debug("not a column article", "title", title)
		return nil, nil
	}

	published := meta.DatePublished
	if published == "" {
		published = metaContent(doc, `meta[property="article:published_time"]`)
	}

	author := meta.Author
	if author == "" {
		author = metaContent(doc, `meta[name="author"]`)
	}
	if author == "" {
		author = c.author
	}

	content := articleContent(doc)
	if content == "" {
		content = page.Readable()
	}

	p := &post.Post{
		Title:       title,
		URL:         articleURL,
		Author:      author,
		Published:   published,
		Content:     post.Truncate(content, post.MaxContentRunes),
		SourceName:  c.settings.Name,
		CollectedAt: c.now(),
	}
	doc.Find("a.tag-link").Each(func(_ int, s *goquery.Selection) {
		p.AddTag(strings.TrimPrefix(strings.TrimSpace(s.Text()), "#"))
	})
	return p, nil
}

// articleContent reads #articleBody without embedded scripts and ads,
// falling back to the first <article>.
func articleContent(doc *goquery.Document) string {
	body := doc.Find("#articleBody").First()
	if body.Length() > 0 {
		body.Find("script, style, iframe, ins").Remove()
		return fetch.Text(body)
	}
	return fetch.Text(doc.Find("article").First())
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}

// linkedData holds the schema.org fields read from JSON-LD blocks.
type linkedData struct {
	Headline      string
	DatePublished string
	Author        string
}

// extractLinkedData returns the first JSON-LD object on the page that
// carries a headline. Arrays and @graph containers are searched too.
func extractLinkedData(doc *goquery.Document) linkedData {
	var found linkedData
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return true
		}
		if ld, ok := findArticleObject(raw); ok {
			found = ld
			return false
		}
		return true
	})
	return found
}

func findArticleObject(v any) (linkedData, bool) {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if ld, ok := findArticleObject(item); ok {
				return ld, true
			}
		}
	case map[string]any:
		if headline, _ := t["headline"].(string); headline != "" {
			date, _ := t["datePublished"].(string)
			return linkedData{
				Headline:      headline,
				DatePublished: date,
				Author:        authorName(t["author"]),
			}, true
		}
		if graph, ok := t["@graph"]; ok {
			return findArticleObject(graph)
		}
	}
	return linkedData{}, false
}

func authorName(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		name, _ := t["name"].(string)
		return name
	case []any:
		if len(t) > 0 {
			return authorName(t[0])
		}
	}
	return ""
}
