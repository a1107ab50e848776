// Package summarize builds short extractive summaries of post content.
package summarize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// EmptyContent is the summary used for posts without content.
const EmptyContent = "내용을 확인할 수 없습니다."

const (
	minSentenceRunes = 10  // shorter sentences are dropped
	scanSentences    = 5   // sentences considered
	maxSentences     = 2   // sentences kept
	maxSummaryRunes  = 300 // total length of kept sentences
	fallbackRunes    = 200
)

var sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)

// Summarizer produces a summary from post content.
type Summarizer interface {
	Summarize(content string) string
}

// Extractive picks the leading sentences of the content. It is
// deterministic and needs no external service.
type Extractive struct{}

// Summarize returns up to two leading sentences of more than ten runes,
// joined with ". " and closed with ".", as long as they total at most 300
// runes. When no sentence qualifies it returns the first 200 runes
// followed by "...".
func (Extractive) Summarize(content string) string {
	if content == "" {
		return EmptyContent
	}

	var sentences []string
	for _, s := range sentenceBoundary.Split(content, -1) {
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) > minSentenceRunes {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) > scanSentences {
		sentences = sentences[:scanSentences]
	}

	var (
		selected []string
		total    int
	)
	for _, s := range sentences {
		n := utf8.RuneCountInString(s)
		if total+n > maxSummaryRunes {
			break
		}
		selected = append(selected, s)
		total += n
		if len(selected) >= maxSentences {
			break
		}
	}

	if len(selected) == 0 {
		return leading(content, fallbackRunes) + "..."
	}
	return strings.Join(selected, ". ") + "."
}

// leading returns the first n runes of s, trimmed.
func leading(s string, n int) string {
	if utf8.RuneCountInString(s) > n {
		s = string([]rune(s)[:n])
	}
	return strings.TrimSpace(s)
}
