package generation

import (
	"errors"
	"testing"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func wellFormed(score float64) RawCandidate {
	return RawCandidate{
		Question:       strPtr("What is 2+2?"),
		Options:        []string{"1", "2", "3", "4"},
		CorrectAnswer:  strPtr("4"),
		Type:           strPtr(TypeNumerical),
		Difficulty:     strPtr(string(DifficultyEasy)),
		RelevanceScore: floatPtr(score),
	}
}

func TestValidateCandidates_DropsMalformed(t *testing.T) {
	missingAnswer := wellFormed(0.8)
	missingAnswer.CorrectAnswer = nil

	threeOptions := wellFormed(0.8)
	threeOptions.Options = []string{"1", "2", "3"}

	outOfRange := wellFormed(1.5)

	valid, err := ValidateCandidates([]RawCandidate{missingAnswer, threeOptions, outOfRange, wellFormed(0.7)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(valid) != 1 {
		t.Fatalf("expected 1 valid candidate, got %d", len(valid))
	}
	if valid[0].RelevanceScore != 0.7 {
		t.Errorf("wrong candidate survived: %+v", valid[0])
	}
}

func TestValidateCandidates_ZeroRelevanceIsValid(t *testing.T) {
	valid, err := ValidateCandidates([]RawCandidate{wellFormed(0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(valid) != 1 {
		t.Fatalf("expected candidate with relevance 0 to be accepted")
	}
}

func TestValidateCandidates_AllInvalidIsError(t *testing.T) {
	broken := wellFormed(0.5)
	broken.Question = nil

	_, err := ValidateCandidates([]RawCandidate{broken})
	if !errors.Is(err, ErrNoValidCandidates) {
		t.Errorf("expected ErrNoValidCandidates, got %v", err)
	}
}

func TestValidateCandidates_EmptyInputIsError(t *testing.T) {
	if _, err := ValidateCandidates(nil); !errors.Is(err, ErrNoValidCandidates) {
		t.Errorf("expected ErrNoValidCandidates for empty input, got %v", err)
	}
}
