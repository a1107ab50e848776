// Package classify assigns posts to topic categories by weighted keyword
// matching.
package classify

import (
	"log/slog"
	"strings"

	"github.com/TobiSchelling/InsightCrawler/internal/logging"
	"github.com/TobiSchelling/InsightCrawler/internal/post"
)

const (
	titleWeight   = 2
	contentWeight = 1
)

// Keywords lists the matching terms of one category.
type Keywords struct {
	Category post.Category
	Terms    []string
}

// DefaultKeywords is the built-in table in canonical category order, which
// is also the tie-break order.
var DefaultKeywords = []Keywords{
	{post.CategoryAI, []string{
		"AI", "인공지능", "머신러닝", "딥러닝", "LLM", "GPT", "ChatGPT",
		"생성형", "신경망", "학습", "알고리즘", "데이터", "모델",
		"transformer", "neural", "machine learning", "deep learning",
		"언어모델", "AGI", "자연어처리", "NLP", "컴퓨터비전", "CV",
	}},
	{post.CategoryScience, []string{
		"과학", "물리", "화학", "생물", "우주", "천문", "양자",
		"나노", "신소재", "바이오", "유전", "DNA", "RNA", "단백질",
		"입자", "분자", "원자", "실험", "연구소", "발견",
		"의학", "치료", "질병", "백신", "암", "세포",
	}},
	{post.CategoryResearch, []string{
		"연구", "개발", "논문", "저널", "학회", "발표", "특허",
		"실험", "테스트", "프로토타입", "R&D", "연구원", "박사",
		"대학", "연구소", "랩", "laboratory", "혁신", "기술개발",
	}},
	{post.CategoryIndustry, []string{
		"기업", "시장", "투자", "매출", "수익", "주가", "상장",
		"IPO", "M&A", "인수", "합병", "스타트업", "벤처",
		"산업", "업계", "비즈니스", "경영", "전략", "CEO",
		"제품", "출시", "서비스", "플랫폼",
	}},
	{post.CategoryPolicy, []string{
		"정책", "규제", "법", "법률", "정부", "국회", "의회",
		"가이드라인", "지침", "규정", "제도", "법안", "개정",
		"허가", "승인", "인증", "표준", "안전", "보안",
	}},
}

// Score is one category's total for a post.
type Score struct {
	Category post.Category
	Points   int
}

// Classifier scores posts against an ordered keyword table.
type Classifier struct {
	table  []Keywords
	logger *slog.Logger
}

// New creates a classifier over the built-in keyword table.
func New(logger *slog.Logger) *Classifier {
	return NewWithKeywords(DefaultKeywords, logger)
}

// NewWithKeywords creates a classifier over a custom table.
func NewWithKeywords(table []Keywords, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = logging.Discard()
	}
	lowered := make([]Keywords, len(table))
	for i, k := range table {
		terms := make([]string, len(k.Terms))
		for j, term := range k.Terms {
			terms[j] = strings.ToLower(term)
		}
		lowered[i] = Keywords{Category: k.Category, Terms: terms}
	}
	return &Classifier{table: lowered, logger: logger}
}

// Explain returns every category's score in table order. Each term adds
// titleWeight when found in the title and contentWeight when found in the
// content, case-insensitively.
func (c *Classifier) Explain(p post.Post) []Score {
	title := strings.ToLower(p.Title)
	content := strings.ToLower(p.Content)

	scores := make([]Score, len(c.table))
	for i, k := range c.table {
		points := 0
		for _, term := range k.Terms {
			if strings.Contains(title, term) {
				points += titleWeight
			}
			if strings.Contains(content, term) {
				points += contentWeight
			}
		}
		scores[i] = Score{Category: k.Category, Points: points}
	}
	return scores
}

// Classify returns the highest scoring category. Ties go to the category
// listed first; a post with no matches is CategoryOther.
func (c *Classifier) Classify(p post.Post) post.Category {
	best := Score{Category: post.CategoryOther}
	for _, s := range c.Explain(p) {
		if s.Points > best.Points {
			best = s
		}
	}
	c.logger.Debug("classified post", "title", p.Title, "category", string(best.Category), "score", best.Points)
	return best.Category
}
