package generation

import (
	"context"
	"errors"
	"math/rand"
	"testing"
)

// generatorFunc adapts a function to the Generator interface for tests.
type generatorFunc func(ctx context.Context, chunk string, difficulty Difficulty, count int) ([]RawCandidate, error)

func (f generatorFunc) Generate(ctx context.Context, chunk string, difficulty Difficulty, count int) ([]RawCandidate, error) {
	return f(ctx, chunk, difficulty, count)
}

func rawBatch(difficulty Difficulty, scores ...float64) []RawCandidate {
	raws := make([]RawCandidate, len(scores))
	for i, score := range scores {
		raw := wellFormed(score)
		raw.Difficulty = strPtr(string(difficulty))
		raws[i] = raw
	}
	return raws
}

func testSampler(gen Generator) *Sampler {
	return NewSampler(gen, DefaultRetryPolicy(), rand.New(rand.NewSource(1)))
}

func manyChunks(n int) []string {
	chunks := make([]string, n)
	for i := range chunks {
		chunks[i] = "chunk"
	}
	return chunks
}

func TestSampler_FillsExactQuota(t *testing.T) {
	score := 0.5
	gen := generatorFunc(func(_ context.Context, _ string, difficulty Difficulty, count int) ([]RawCandidate, error) {
		scores := make([]float64, count)
		for i := range scores {
			score += 0.01
			scores[i] = score
		}
		return rawBatch(difficulty, scores...), nil
	})

	req := Request{
		Quota:        map[Difficulty]int{DifficultyEasy: 3, DifficultyMedium: 4, DifficultyHard: 2},
		MinRelevance: 0.5,
	}
	result, err := testSampler(gen).Generate(context.Background(), manyChunks(20), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Candidates) != 9 {
		t.Fatalf("expected exactly 9 candidates, got %d", len(result.Candidates))
	}
	if result.Shortfall() != 0 {
		t.Errorf("expected no shortfall, got %d", result.Shortfall())
	}
	for i := 1; i < len(result.Candidates); i++ {
		if result.Candidates[i].RelevanceScore > result.Candidates[i-1].RelevanceScore {
			t.Fatalf("candidates not sorted by descending relevance at %d", i)
		}
	}
}

func TestSampler_AllBelowThresholdIsTerminalFailure(t *testing.T) {
	gen := generatorFunc(func(_ context.Context, _ string, difficulty Difficulty, count int) ([]RawCandidate, error) {
		return rawBatch(difficulty, 0.1, 0.2), nil
	})

	req := Request{Quota: map[Difficulty]int{DifficultyMedium: 2}, MinRelevance: 0.5}
	_, err := testSampler(gen).Generate(context.Background(), manyChunks(3), req)
	if !errors.Is(err, ErrNoQuestions) {
		t.Errorf("expected ErrNoQuestions, got %v", err)
	}
}

func TestSampler_ShortfallWhenOneBucketStarves(t *testing.T) {
	gen := generatorFunc(func(_ context.Context, _ string, difficulty Difficulty, count int) ([]RawCandidate, error) {
		if difficulty == DifficultyHard {
			return rawBatch(difficulty, 0.1), nil // Below threshold, bucket stays empty
		}
		scores := make([]float64, count)
		for i := range scores {
			scores[i] = 0.8
		}
		return rawBatch(difficulty, scores...), nil
	})

	req := Request{
		Quota:        map[Difficulty]int{DifficultyEasy: 2, DifficultyHard: 2},
		MinRelevance: 0.5,
	}
	result, err := testSampler(gen).Generate(context.Background(), manyChunks(5), req)
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("expected 2 candidates from the easy bucket, got %d", len(result.Candidates))
	}
	if result.Shortfall() != 2 {
		t.Errorf("expected shortfall of 2, got %d", result.Shortfall())
	}
}

func TestSampler_SingleProductiveChunk(t *testing.T) {
	chunks := []string{"chunk one", "chunk two", "chunk three"}
	gen := generatorFunc(func(_ context.Context, chunk string, difficulty Difficulty, count int) ([]RawCandidate, error) {
		if chunk != "chunk two" {
			return rawBatch(difficulty, 0.2), nil
		}
		return rawBatch(difficulty, 0.6, 0.9), nil
	})

	req := Request{Quota: map[Difficulty]int{DifficultyMedium: 2}, MinRelevance: 0.5}
	result, err := testSampler(gen).Generate(context.Background(), chunks, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(result.Candidates))
	}
	if result.Candidates[0].RelevanceScore != 0.9 || result.Candidates[1].RelevanceScore != 0.6 {
		t.Errorf("expected [0.9, 0.6], got [%v, %v]",
			result.Candidates[0].RelevanceScore, result.Candidates[1].RelevanceScore)
	}
}

func TestSampler_RetriesFailedCallsOnSameChunk(t *testing.T) {
	calls := 0
	gen := generatorFunc(func(_ context.Context, _ string, difficulty Difficulty, count int) ([]RawCandidate, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("transport error")
		}
		return rawBatch(difficulty, 0.9), nil
	})

	req := Request{Quota: map[Difficulty]int{DifficultyEasy: 1}, MinRelevance: 0.5}
	result, err := testSampler(gen).Generate(context.Background(), []string{"only chunk"}, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls (2 failures then success), got %d", calls)
	}
	if len(result.Candidates) != 1 {
		t.Errorf("expected 1 candidate, got %d", len(result.Candidates))
	}
}

func TestSampler_NeverRequestsMoreThanBatchCap(t *testing.T) {
	gen := generatorFunc(func(_ context.Context, _ string, difficulty Difficulty, count int) ([]RawCandidate, error) {
		if count > 2 {
			t.Errorf("batch size %d exceeds cap", count)
		}
		scores := make([]float64, count)
		for i := range scores {
			scores[i] = 0.7
		}
		return rawBatch(difficulty, scores...), nil
	})

	req := Request{Quota: map[Difficulty]int{DifficultyMedium: 7}, MinRelevance: 0.5}
	result, err := testSampler(gen).Generate(context.Background(), manyChunks(10), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Candidates) != 7 {
		t.Errorf("expected 7 candidates, got %d", len(result.Candidates))
	}
}

func TestSampler_CancelledContextReturnsPartialWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := generatorFunc(func(_ context.Context, _ string, difficulty Difficulty, count int) ([]RawCandidate, error) {
		defer cancel() // Deadline passes after the first successful call
		return rawBatch(difficulty, 0.8, 0.8), nil
	})

	req := Request{Quota: map[Difficulty]int{DifficultyEasy: 6}, MinRelevance: 0.5}
	result, err := testSampler(gen).Generate(ctx, manyChunks(10), req)
	if err != nil {
		t.Fatalf("expected best-effort partial result, got %v", err)
	}
	if len(result.Candidates) != 2 {
		t.Errorf("expected the 2 candidates collected before cancellation, got %d", len(result.Candidates))
	}
}

func TestRequest_Validate(t *testing.T) {
	cases := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"valid", Request{Quota: map[Difficulty]int{DifficultyEasy: 0, DifficultyMedium: 5, DifficultyHard: 0}, MinRelevance: 0.5}, false},
		{"total zero", Request{Quota: map[Difficulty]int{DifficultyEasy: 0}, MinRelevance: 0.5}, true},
		{"total too high", Request{Quota: map[Difficulty]int{DifficultyMedium: 21}, MinRelevance: 0.5}, true},
		{"negative count", Request{Quota: map[Difficulty]int{DifficultyEasy: 2, DifficultyMedium: -1}, MinRelevance: 0.5}, true},
		{"unknown bucket", Request{Quota: map[Difficulty]int{Difficulty("extreme"): 2}, MinRelevance: 0.5}, true},
		{"relevance out of range", Request{Quota: map[Difficulty]int{DifficultyEasy: 1}, MinRelevance: 1.5}, true},
	}

	for _, tc := range cases {
		err := tc.req.Validate()
		if tc.wantErr && err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
	}
}
