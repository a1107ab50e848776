package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; InsightCrawler/1.0)"

// maxBodyBytes bounds how much of a page is read.
const maxBodyBytes = 8 << 20

// Page is a fetched and parsed HTML document.
type Page struct {
	URL  *url.URL
	Doc  *goquery.Document
	Body []byte
}

// Fetcher retrieves pages over HTTP and parses them for selector-based
// text extraction.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// New creates a Fetcher with its own client. A zero timeout defaults to 10s.
func New(timeout time.Duration, userAgent string) *Fetcher {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return NewWithClient(&http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, userAgent)
}

// NewWithClient wraps an existing client. A nil client uses a 10s default.
func NewWithClient(client *http.Client, userAgent string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Fetcher{client: client, userAgent: userAgent}
}

// Client returns the underlying HTTP client so feed parsers share its
// timeout and redirect policy.
func (f *Fetcher) Client() *http.Client {
	return f.client
}

// UserAgent returns the User-Agent sent with every request.
func (f *Fetcher) UserAgent() string {
	return f.userAgent
}

// Page fetches pageURL and parses the response as HTML. Responses outside
// the 2xx range are reported as *StatusError.
func (f *Fetcher) Page(ctx context.Context, pageURL string) (*Page, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %s: %w", pageURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, URL: pageURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document %s: %w", pageURL, err)
	}

	return &Page{URL: parsed, Doc: doc, Body: body}, nil
}

// Readable runs readability extraction over the raw page body and returns
// its text content, or "" when nothing usable was found.
func (p *Page) Readable() string {
	article, err := readability.FromReader(bytes.NewReader(p.Body), p.URL)
	if err != nil {
		return ""
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > 100 {
		return text
	}
	return ""
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Text returns the text of every node in sel, one trimmed text run per
// line, skipping blank runs and script/style bodies.
func Text(sel *goquery.Selection) string {
	var parts []string
	for _, n := range sel.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(parts, "\n")
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		if s := strings.TrimSpace(n.Data); s != "" {
			*parts = append(*parts, s)
		}
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// StripHTML converts an HTML fragment (e.g. a feed summary) to plain text
// using the same line rules as Text.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.TrimSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return Text(doc.Selection)
}
