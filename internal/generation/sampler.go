// backend/internal/generation/sampler.go
package generation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
)

// RetryPolicy bounds the sampler's external calls against a slow or
// misbehaving generator.
type RetryPolicy struct {
	// MaxAttemptsPerBucket caps how many distinct chunks are drawn for one
	// difficulty bucket.
	MaxAttemptsPerBucket int
	// MaxRetriesPerChunk caps generator calls for one drawn chunk.
	MaxRetriesPerChunk int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttemptsPerBucket: 100,
		MaxRetriesPerChunk:   3,
	}
}

// maxBatchPerCall is the most candidates requested from a single chunk in
// one generator call. Small batches keep per-chunk yield honest: a chunk
// rarely supports more than a couple of grounded questions.
const maxBatchPerCall = 2

// Request is one quota-driven generation request.
type Request struct {
	Quota        map[Difficulty]int
	MinRelevance float64
}

func (r Request) Total() int {
	total := 0
	for _, n := range r.Quota {
		total += n
	}
	return total
}

// Validate rejects malformed requests before any external call is made.
func (r Request) Validate() error {
	for difficulty, n := range r.Quota {
		if difficulty != DifficultyEasy && difficulty != DifficultyMedium && difficulty != DifficultyHard {
			return fmt.Errorf("unknown difficulty %q", difficulty)
		}
		if n < 0 {
			return fmt.Errorf("difficulty %s count must be non-negative", difficulty)
		}
	}
	if total := r.Total(); total < 1 || total > 20 {
		return fmt.Errorf("total number of questions must be 1-20, got %d", total)
	}
	if r.MinRelevance < 0 || r.MinRelevance > 1 {
		return fmt.Errorf("min relevance must be in [0,1], got %v", r.MinRelevance)
	}
	return nil
}

// Result carries the accumulated candidates of a request. Candidates may be
// fewer than requested; a shortfall is advisory, not an error.
type Result struct {
	Candidates []Candidate
	Requested  int
}

func (r Result) Shortfall() int {
	return r.Requested - len(r.Candidates)
}

var (
	// ErrNoQuestions is the terminal user-facing failure of a generation
	// request: every bucket came back empty.
	ErrNoQuestions = errors.New("no MCQs could be generated due to relevance filtering or text content")
	// ErrNoChunks means the document produced no text to sample from.
	ErrNoChunks = errors.New("no text chunks available")
)

// Sampler fills per-difficulty quotas by drawing random chunks and asking
// the generator for small batches until each quota is met, the chunk space
// is exhausted, or the retry budget is spent.
type Sampler struct {
	gen    Generator
	policy RetryPolicy
	rng    *rand.Rand
}

// NewSampler builds a sampler around a generator. The rng is injected so
// chunk selection is reproducible under test.
func NewSampler(gen Generator, policy RetryPolicy, rng *rand.Rand) *Sampler {
	return &Sampler{gen: gen, policy: policy, rng: rng}
}

// Generate runs the whole request. Buckets never borrow from each other.
// The final list is sorted by descending relevance and truncated to the
// requested total. A cancelled context stops the walk and returns whatever
// has been collected so far.
func (s *Sampler) Generate(ctx context.Context, chunks []string, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	if len(chunks) == 0 {
		return Result{}, ErrNoChunks
	}

	all := make([]Candidate, 0, req.Total())
	for _, difficulty := range Difficulties {
		count := req.Quota[difficulty]
		if count == 0 {
			continue
		}
		all = append(all, s.fillBucket(ctx, chunks, difficulty, count, req.MinRelevance)...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].RelevanceScore > all[j].RelevanceScore
	})
	requested := req.Total()
	if len(all) > requested {
		all = all[:requested]
	}

	if len(all) == 0 {
		return Result{}, ErrNoQuestions
	}
	result := Result{Candidates: all, Requested: requested}
	if short := result.Shortfall(); short > 0 {
		log.Printf("Final MCQs generated: %d/%d (shortfall %d)", len(all), requested, short)
	}
	return result, nil
}

// fillBucket collects up to count candidates for one difficulty. Each loop
// iteration draws one not-yet-attempted chunk and spends at most
// MaxRetriesPerChunk generator calls on it.
func (s *Sampler) fillBucket(ctx context.Context, chunks []string, difficulty Difficulty, count int, minRelevance float64) []Candidate {
	collected := make([]Candidate, 0, count)
	attempted := make(map[int]bool)
	attempts := 0

	for len(collected) < count && attempts < s.policy.MaxAttemptsPerBucket && len(attempted) < len(chunks) {
		if ctx.Err() != nil {
			log.Printf("Generation deadline reached for %s bucket, keeping %d/%d", difficulty, len(collected), count)
			break
		}

		idx := s.pickChunk(len(chunks), attempted)
		attempted[idx] = true

		accepted := s.attemptChunk(ctx, chunks[idx], idx, difficulty, count-len(collected), minRelevance)
		collected = append(collected, accepted...)
		attempts++

		if len(accepted) > 0 {
			log.Printf("Generated %d relevant %s MCQs from chunk %d, total collected: %d/%d",
				len(accepted), difficulty, idx, len(collected), count)
		}
	}

	if len(collected) < count {
		log.Printf("Only collected %d/%d %s MCQs after %d attempts", len(collected), count, difficulty, attempts)
	}
	return collected
}

// pickChunk draws uniformly among chunk indices not yet attempted.
func (s *Sampler) pickChunk(n int, attempted map[int]bool) int {
	remaining := make([]int, 0, n-len(attempted))
	for i := 0; i < n; i++ {
		if !attempted[i] {
			remaining = append(remaining, i)
		}
	}
	return remaining[s.rng.Intn(len(remaining))]
}

// attemptChunk is the per-chunk retry step. Failed calls and invalid-only
// responses burn a retry; a response whose candidates all fall below the
// relevance floor is retried too, since another sample may land higher.
// Returns at most need candidates.
func (s *Sampler) attemptChunk(ctx context.Context, chunk string, idx int, difficulty Difficulty, need int, minRelevance float64) []Candidate {
	batch := need
	if batch > maxBatchPerCall {
		batch = maxBatchPerCall
	}

	for retries := 0; retries < s.policy.MaxRetriesPerChunk; retries++ {
		raws, err := s.gen.Generate(ctx, chunk, difficulty, batch)
		if err != nil {
			log.Printf("Skipping chunk %d for %s due to error: %v", idx, difficulty, err)
			continue
		}

		valid, err := ValidateCandidates(raws)
		if err != nil {
			log.Printf("Chunk %d yielded no valid %s candidates: %v", idx, difficulty, err)
			continue
		}

		relevant := make([]Candidate, 0, len(valid))
		for _, c := range valid {
			if c.RelevanceScore >= minRelevance {
				relevant = append(relevant, c)
			}
		}
		if len(relevant) == 0 && retries < s.policy.MaxRetriesPerChunk-1 {
			log.Printf("No relevant %s MCQs for chunk %d, retrying (%d/%d)",
				difficulty, idx, retries+1, s.policy.MaxRetriesPerChunk)
			continue
		}

		if len(relevant) > need {
			relevant = relevant[:need]
		}
		return relevant
	}
	return nil
}
