// Package server serves the generated reports over HTTP.
package server

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/InsightCrawler/internal/logging"
	"github.com/TobiSchelling/InsightCrawler/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// headerBytes bounds how much of a report is scanned for its post count.
const headerBytes = 2048

// ReportInfo describes a report file in the viewer directory.
type ReportInfo struct {
	Filename  string
	Title     string
	Modified  time.Time
	Size      int64
	PostCount int
}

// SizeDisplay returns the file size in kilobytes.
func (r ReportInfo) SizeDisplay() string {
	return fmt.Sprintf("%.1f KB", float64(r.Size)/1024)
}

// ModifiedDisplay returns the modification time in Korean date format.
func (r ReportInfo) ModifiedDisplay() string {
	return r.Modified.Format("2006년 01월 02일 15:04")
}

// Server is the HTTP server for browsing reports.
type Server struct {
	dir    string
	pages  map[string]*template.Template
	mux    *http.ServeMux
	logger *slog.Logger
}

// New creates a server over the reports in dir.
func New(dir string, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	base, err := template.New("base.html").ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so their {{define}} blocks do
	// not collide.
	pageNames := []string{"index.html", "report.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{dir: dir, pages: pages, mux: http.NewServeMux(), logger: logger}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/report/", s.handleReport)
	s.mux.HandleFunc("/download/", s.handleDownload)
	s.mux.HandleFunc("/feed.atom", s.handleFeed)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	reports, err := ListReports(s.dir)
	if err != nil {
		s.logger.Error("listing reports failed", "dir", s.dir, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Reports": reports,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/report/")
	data, ok := s.readReport(name)
	if !ok {
		http.NotFound(w, r)
		return
	}

	s.render(w, "report.html", map[string]any{
		"Filename": name,
		"Title":    reportTitle(name),
		"Content":  renderMarkdown(data),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/download/")
	data, ok := s.readReport(name)
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(data)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	reports, err := ListReports(s.dir)
	if err != nil {
		s.logger.Error("listing reports failed", "dir", s.dir, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	base := "http://" + r.Host
	feed := &feeds.Feed{
		Title:       "과학기술 & AI 주간 인사이트 리포트",
		Link:        &feeds.Link{Href: base + "/"},
		Description: "주간 인사이트 리포트 목록",
		Created:     time.Now(),
	}
	if len(reports) > 0 {
		feed.Updated = reports[0].Modified
	}
	for _, rep := range reports {
		link := base + "/report/" + rep.Filename
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          link,
			Title:       rep.Title + " 리포트",
			Link:        &feeds.Link{Href: link},
			Description: fmt.Sprintf("총 %d개 포스트", rep.PostCount),
			Created:     rep.Modified,
		})
	}

	atom, err := feed.ToAtom()
	if err != nil {
		s.logger.Error("building atom feed failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	fmt.Fprint(w, atom)
}

// readReport reads a report by file name. Names that could leave the
// viewer directory are rejected.
func (s *Server) readReport(name string) ([]byte, bool) {
	if !validName(name) {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("reading report failed", "name", name, "error", err)
		}
		return nil, false
	}
	return data, true
}

func validName(name string) bool {
	return name != "" && !strings.Contains(name, "..") && !strings.ContainsAny(name, `/\`)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.logger.Error("template not found", "name", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		s.logger.Error("rendering template failed", "name", name, "error", err)
	}
}

func renderMarkdown(text []byte) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert(text, &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(string(text)))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// ListReports returns the reports in dir, newest file name first. A
// missing directory yields no reports.
func ListReports(dir string) ([]ReportInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var reports []ReportInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), report.FileSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		reports = append(reports, ReportInfo{
			Filename:  e.Name(),
			Title:     reportTitle(e.Name()),
			Modified:  info.ModTime(),
			Size:      info.Size(),
			PostCount: readPostCount(filepath.Join(dir, e.Name())),
		})
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].Filename > reports[j].Filename })
	return reports, nil
}

func reportTitle(name string) string {
	return strings.ReplaceAll(strings.TrimSuffix(name, report.FileSuffix), "_", " ")
}

// readPostCount reads the total from the summary line near the top of a
// report, or 0 if it cannot be found.
func readPostCount(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	buf := make([]byte, headerBytes)
	n, _ := f.Read(buf)
	for _, line := range strings.Split(string(buf[:n]), "\n") {
		rest, ok := strings.CutPrefix(line, report.TotalPostsLabel)
		if !ok {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(rest), "개"))
		if err != nil {
			return 0
		}
		return count
	}
	return 0
}

// Serve starts the HTTP server on the given port.
func Serve(dir string, port int, logger *slog.Logger) error {
	srv, err := New(dir, logger)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	srv.logger.Info("server listening", "url", "http://"+addr, "reports", dir)
	return http.ListenAndServe(addr, srv.Handler())
}
