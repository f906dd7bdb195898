// backend/internal/generation/candidate.go
package generation

import (
	"errors"
	"fmt"
	"log"
)

// Difficulty is one quota bucket of a generation request.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists the buckets in the order the sampler walks them.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

const (
	TypeTheory    = "theory"
	TypeNumerical = "numerical"
)

// Candidate is a structurally valid MCQ produced by the generator.
// Options always holds exactly four entries and RelevanceScore is in [0,1].
type Candidate struct {
	Question       string     `json:"question"`
	Options        []string   `json:"options"`
	CorrectAnswer  string     `json:"correct_answer"`
	Type           string     `json:"type"`
	Difficulty     Difficulty `json:"difficulty"`
	RelevanceScore float64    `json:"relevance_score"`
}

// RawCandidate mirrors Candidate with optional fields so a decoded record
// can be checked for missing keys before it is accepted.
type RawCandidate struct {
	Question       *string  `json:"question"`
	Options        []string `json:"options"`
	CorrectAnswer  *string  `json:"correct_answer"`
	Type           *string  `json:"type"`
	Difficulty     *string  `json:"difficulty"`
	RelevanceScore *float64 `json:"relevance_score"`
}

// ErrNoValidCandidates marks a generator response whose records were all
// structurally invalid. The sampler treats it like any other failed call.
var ErrNoValidCandidates = errors.New("no valid candidates in response")

// checkCandidate returns the reason a raw record is unusable, or "" if it
// is valid.
func checkCandidate(raw RawCandidate) string {
	switch {
	case raw.Question == nil || *raw.Question == "":
		return "missing question"
	case raw.Options == nil:
		return "missing options"
	case len(raw.Options) != 4:
		return fmt.Sprintf("expected 4 options, got %d", len(raw.Options))
	case raw.CorrectAnswer == nil:
		return "missing correct_answer"
	case raw.Type == nil:
		return "missing type"
	case raw.Difficulty == nil:
		return "missing difficulty"
	case raw.RelevanceScore == nil:
		return "missing relevance_score"
	case *raw.RelevanceScore < 0 || *raw.RelevanceScore > 1:
		return fmt.Sprintf("relevance_score %v out of range", *raw.RelevanceScore)
	}
	return ""
}

// ValidateCandidates filters raw generator records down to well-formed
// candidates. Invalid records are dropped and logged, never repaired. If
// nothing survives, ErrNoValidCandidates is returned so the caller can
// distinguish a useless response from an empty one.
func ValidateCandidates(raws []RawCandidate) ([]Candidate, error) {
	valid := make([]Candidate, 0, len(raws))
	for _, raw := range raws {
		if reason := checkCandidate(raw); reason != "" {
			log.Printf("Dropping invalid candidate: %s", reason)
			continue
		}
		valid = append(valid, Candidate{
			Question:       *raw.Question,
			Options:        raw.Options,
			CorrectAnswer:  *raw.CorrectAnswer,
			Type:           *raw.Type,
			Difficulty:     Difficulty(*raw.Difficulty),
			RelevanceScore: *raw.RelevanceScore,
		})
	}
	if len(valid) == 0 {
		return nil, ErrNoValidCandidates
	}
	return valid, nil
}
