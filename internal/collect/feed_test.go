package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/InsightCrawler/internal/config"
	"github.com/TobiSchelling/InsightCrawler/internal/fetch"
)

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>과학 블로그</title>
  <link>%[1]s</link>
  <item>
    <title>AI 반도체 동향</title>
    <link>%[1]s/post/1</link>
    <pubDate>Mon, 10 Mar 2025 09:00:00 +0900</pubDate>
    <category>AI</category>
    <description><![CDATA[<p>피드 요약 하나</p>]]></description>
  </item>
  <item>
    <title>양자 컴퓨팅 연구</title>
    <link>%[1]s/post/2</link>
    <pubDate>Wed, 12 Mar 2025 10:00:00 +0900</pubDate>
    <description>피드 요약 둘</description>
  </item>
  <item>
    <title>깨진 글</title>
    <link>%[1]s/post/3</link>
    <pubDate>Thu, 13 Mar 2025 10:00:00 +0900</pubDate>
    <description>피드 요약 셋</description>
  </item>
  <item>
    <title>프레임 글</title>
    <link>%[1]s/post/4</link>
    <pubDate>Thu, 13 Mar 2025 11:00:00 +0900</pubDate>
    <description>피드 요약 넷</description>
  </item>
  <item>
    <title>오래된 글</title>
    <link>%[1]s/post/old</link>
    <pubDate>Sat, 01 Feb 2025 09:00:00 +0900</pubDate>
    <description>오래됨</description>
  </item>
</channel>
</rss>`

func newBlogServer(t *testing.T, rssStatus int) (*httptest.Server, *[]string) {
	t.Helper()
	var requested []string
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/rss", func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		if rssStatus != http.StatusOK {
			w.WriteHeader(rssStatus)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, rssTemplate, srv.URL)
	})
	mux.HandleFunc("/post/1", func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		fmt.Fprint(w, `<html><body><div class="se-main-container"><p>에디터 본문 첫 문단입니다.</p><p>둘째 문단.</p></div></body></html>`)
	})
	mux.HandleFunc("/post/2", func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		fmt.Fprint(w, `<html><body><div id="postViewArea">구형 에디터 본문</div></body></html>`)
	})
	mux.HandleFunc("/post/3", func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/post/4", func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		fmt.Fprint(w, `<html><body><iframe id="mainFrame" src="/frame/4"></iframe></body></html>`)
	})
	mux.HandleFunc("/frame/4", func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		fmt.Fprint(w, `<html><body><div class="se-main-container">프레임 안 본문</div></body></html>`)
	})
	return srv, &requested
}

func newTestFeedCollector(srv *httptest.Server, maxPosts int) (*FeedCollector, *[]time.Duration) {
	settings := config.SourceSettings{
		ID:           config.NaverBlogID,
		Name:         "네이버 블로그",
		Enabled:      true,
		Endpoint:     srv.URL + "/rss",
		MaxPosts:     maxPosts,
		DaysLookback: 7,
		Delay:        time.Second,
	}
	c := NewFeedCollector(settings, fetch.New(5*time.Second, "test-agent"), nil)
	var slept []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) { slept = append(slept, d) }
	c.now = func() time.Time { return time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC) }
	return c, &slept
}

func TestFeedCollectorCollect(t *testing.T) {
	srv, requested := newBlogServer(t, http.StatusOK)
	c, slept := newTestFeedCollector(srv, 10)

	ref := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	posts, err := c.Collect(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := titles(posts)
	want := []string{"AI 반도체 동향", "양자 컴퓨팅 연구", "프레임 글"}
	if !equalStrings(got, want) {
		t.Fatalf("titles = %v, want %v", got, want)
	}

	if !strings.Contains(posts[0].Content, "에디터 본문 첫 문단입니다.") {
		t.Errorf("expected editor content, got %q", posts[0].Content)
	}
	if posts[1].Content != "구형 에디터 본문" {
		t.Errorf("expected legacy content, got %q", posts[1].Content)
	}
	if posts[2].Content != "프레임 안 본문" {
		t.Errorf("expected main frame content, got %q", posts[2].Content)
	}
	if len(posts[0].Tags) != 1 || posts[0].Tags[0] != "AI" {
		t.Errorf("expected tag AI, got %v", posts[0].Tags)
	}
	if posts[0].CollectedAt.IsZero() {
		t.Error("expected collected_at to be stamped")
	}

	// One sleep per detail attempt, the failed one included.
	if len(*slept) != 4 {
		t.Errorf("expected 4 sleeps, got %d", len(*slept))
	}
	for _, path := range *requested {
		if path == "/post/old" {
			t.Error("old post outside the window was fetched")
		}
	}
}

func TestFeedCollectorMaxPosts(t *testing.T) {
	srv, _ := newBlogServer(t, http.StatusOK)
	c, slept := newTestFeedCollector(srv, 1)

	posts, err := c.Collect(context.Background(), time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
	if len(*slept) != 1 {
		t.Errorf("expected 1 sleep, got %d", len(*slept))
	}
}

func TestFeedCollectorFeedFailure(t *testing.T) {
	srv, _ := newBlogServer(t, http.StatusBadGateway)
	c, _ := newTestFeedCollector(srv, 10)

	if _, err := c.Collect(context.Background(), time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)); err == nil {
		t.Fatal("expected error when the feed cannot be fetched")
	}
}

func TestBlogContentFallsBackToFeedSummary(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>no known container</p></body></html>`)
	})

	c, _ := newTestFeedCollector(srv, 10)
	candidate := titledPost("plain", srv.URL+"/plain")
	candidate.Content = "피드 요약"

	p, err := c.scrapeDetail(context.Background(), candidate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Content != "피드 요약" {
		t.Errorf("expected feed summary fallback, got %q", p.Content)
	}
}
