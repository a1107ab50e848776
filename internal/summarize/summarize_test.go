package summarize

import (
	"strings"
	"testing"
)

func TestSummarize(t *testing.T) {
	long := strings.Repeat("가", 250)
	huge := strings.Repeat("나", 301)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "empty",
			content: "",
			want:    EmptyContent,
		},
		{
			name:    "first two sentences",
			content: "인공지능 기술이 빠르게 발전하고 있습니다. 새로운 언어모델이 공개되었습니다! 세 번째 문장은 포함되지 않습니다.",
			want:    "인공지능 기술이 빠르게 발전하고 있습니다. 새로운 언어모델이 공개되었습니다.",
		},
		{
			name:    "short sentences dropped",
			content: "짧다. 이 문장은 충분히 길어서 남습니다. 또 짧다. 두 번째로 긴 문장도 남게 됩니다",
			want:    "이 문장은 충분히 길어서 남습니다. 두 번째로 긴 문장도 남게 됩니다.",
		},
		{
			name:    "ten runes is too short",
			content: "0123456789. 01234567890",
			want:    "01234567890.",
		},
		{
			name:    "stops before exceeding the length cap",
			content: long + ". " + long + ". 끝",
			want:    long + ".",
		},
		{
			name:    "only short sentences",
			content: "짧다. 짧다. 짧다.",
			want:    "짧다. 짧다. 짧다....",
		},
		{
			name:    "oversized first sentence falls back",
			content: huge,
			want:    strings.Repeat("나", 200) + "...",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Extractive{}).Summarize(tt.content); got != tt.want {
				t.Errorf("Summarize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummarizeKeepsTrailingPunctuation(t *testing.T) {
	// The last fragment keeps its own period because no whitespace follows it.
	got := (Extractive{}).Summarize("첫 번째 문장은 충분히 깁니다. 마지막 문장도 충분히 깁니다.")
	want := "첫 번째 문장은 충분히 깁니다. 마지막 문장도 충분히 깁니다.."
	if got != want {
		t.Errorf("Summarize() = %q, want %q", got, want)
	}
}

func TestSummarizeIsDeterministic(t *testing.T) {
	content := "양자 컴퓨터 연구가 새로운 단계에 들어섰습니다. 연구진은 오류 보정 기법을 개선했습니다."
	first := (Extractive{}).Summarize(content)
	for i := 0; i < 10; i++ {
		if got := (Extractive{}).Summarize(content); got != first {
			t.Fatalf("run %d: %q != %q", i, got, first)
		}
	}
}
