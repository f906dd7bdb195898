package generation

import (
	"strings"
	"testing"
)

func TestSplitChunks_CoversTextExactly(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		maxChars int
		want     int
	}{
		{"even split", strings.Repeat("a", 12), 4, 3},
		{"short tail", strings.Repeat("b", 10), 4, 3},
		{"single chunk", "abc", 100, 1},
		{"size one", "abcd", 1, 4},
	}

	for _, tc := range cases {
		chunks := SplitChunks(tc.text, tc.maxChars)
		if len(chunks) != tc.want {
			t.Errorf("%s: expected %d chunks, got %d", tc.name, tc.want, len(chunks))
		}
		for i, c := range chunks {
			if len([]rune(c)) > tc.maxChars {
				t.Errorf("%s: chunk %d longer than %d", tc.name, i, tc.maxChars)
			}
		}
		if got := strings.Join(chunks, ""); got != tc.text {
			t.Errorf("%s: chunks do not concatenate back to input", tc.name)
		}
	}
}

func TestSplitChunks_EmptyInput(t *testing.T) {
	if chunks := SplitChunks("", 100); len(chunks) != 0 {
		t.Errorf("expected no chunks for empty text, got %d", len(chunks))
	}
}

func TestSplitChunks_MultibyteRunes(t *testing.T) {
	text := "日本語のテキスト"
	chunks := SplitChunks(text, 3)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if strings.Join(chunks, "") != text {
		t.Error("multibyte text not reassembled exactly")
	}
}
