package generation

import (
	"strings"
	"testing"
)

func TestExtractCandidateArray_ToleratesSurroundingProse(t *testing.T) {
	payload := `Here are your questions:
[
  {"question": "Q1", "options": ["a","b","c","d"], "correct_answer": "a",
   "type": "theory", "difficulty": "easy", "relevance_score": 0.9}
]
Let me know if you need more!`

	raws, err := extractCandidateArray(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raws) != 1 {
		t.Fatalf("expected 1 record, got %d", len(raws))
	}
	if raws[0].Question == nil || *raws[0].Question != "Q1" {
		t.Errorf("question not decoded: %+v", raws[0])
	}
}

func TestExtractCandidateArray_NoDelimitersFailsFast(t *testing.T) {
	if _, err := extractCandidateArray("I could not generate any questions."); err == nil {
		t.Error("expected error for payload without array delimiters")
	}
	if _, err := extractCandidateArray("] backwards ["); err == nil {
		t.Error("expected error for reversed delimiters")
	}
}

func TestExtractCandidateArray_MalformedArray(t *testing.T) {
	if _, err := extractCandidateArray(`[{"question": }]`); err == nil {
		t.Error("expected error for malformed JSON inside delimiters")
	}
}

func TestBuildPrompt_CarriesDifficultyAndChunk(t *testing.T) {
	prompt := buildPrompt("the water cycle", DifficultyHard, 2)
	for _, want := range []string{"2 multiple-choice questions", "'hard'", "the water cycle", "relevance_score"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPrompt_UnknownDifficultyFallsBackToMedium(t *testing.T) {
	prompt := buildPrompt("text", Difficulty("brutal"), 1)
	if !strings.Contains(prompt, difficultyInstructions[DifficultyMedium]) {
		t.Error("expected medium instruction for unknown difficulty")
	}
}
