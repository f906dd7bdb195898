// backend/internal/generation/generator.go
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Generator produces raw MCQ candidates from one chunk of document text.
// A call is a single external round-trip; retry policy belongs to the
// sampler, never to implementations.
type Generator interface {
	Generate(ctx context.Context, chunk string, difficulty Difficulty, count int) ([]RawCandidate, error)
}

const (
	groqBaseURL      = "https://api.groq.com/openai/v1"
	defaultModel     = "meta-llama/llama-4-scout-17b-16e-instruct"
	defaultCallLimit = 30 * time.Second
)

// GroqGenerator calls Groq's OpenAI-compatible chat completions API.
type GroqGenerator struct {
	client    *openai.Client
	model     string
	callLimit time.Duration
}

func NewGroqGenerator(apiKey string) *GroqGenerator {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = groqBaseURL
	return &GroqGenerator{
		client:    openai.NewClientWithConfig(config),
		model:     defaultModel,
		callLimit: defaultCallLimit,
	}
}

var difficultyInstructions = map[Difficulty]string{
	DifficultyEasy:   "Generate straightforward questions testing basic recall or understanding of key terms or concepts. Use clear, simple language and include obviously incorrect distractors.",
	DifficultyMedium: "Generate questions requiring analysis or application of concepts. Include plausible distractors that reflect common misconceptions.",
	DifficultyHard:   "Generate complex questions demanding deep understanding, synthesis of multiple concepts, or problem-solving. Use highly plausible distractors requiring careful consideration.",
}

func (g *GroqGenerator) Generate(ctx context.Context, chunk string, difficulty Difficulty, count int) ([]RawCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, g.callLimit)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an AI expert in question generation.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(chunk, difficulty, count),
			},
		},
		Temperature: 0.7,
		MaxTokens:   2048,
		TopP:        1,
	})
	if err != nil {
		return nil, fmt.Errorf("generation call failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, errors.New("no content in model response")
	}

	return extractCandidateArray(resp.Choices[0].Message.Content)
}

func buildPrompt(chunk string, difficulty Difficulty, count int) string {
	instruction, ok := difficultyInstructions[difficulty]
	if !ok {
		instruction = difficultyInstructions[DifficultyMedium]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate %d multiple-choice questions from the provided text. %s ", count, instruction)
	sb.WriteString("Ensure questions are relevant to the subject and suitable for an examination. ")
	sb.WriteString("Determine the type ('theory' or 'numerical') based on content: use 'numerical' for questions involving calculations or mathematical concepts, and 'theory' otherwise. ")
	fmt.Fprintf(&sb, "Set the 'difficulty' field to '%s'. ", difficulty)
	sb.WriteString("Each question should be a JSON object with: question (string), options (array of 4 strings), correct_answer (string), type (string: theory/numerical), difficulty (string), relevance_score (float between 0 and 1, where 1 is highly relevant). ")
	sb.WriteString("Return a JSON array only.\n\nText:\n")
	sb.WriteString(chunk)
	return sb.String()
}

// extractCandidateArray locates the outermost [...] in the payload and
// decodes the records between the delimiters. Models often wrap the array
// in explanatory prose; that must still parse. A payload with no array
// delimiters fails without a decode attempt.
func extractCandidateArray(raw string) ([]RawCandidate, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end < start {
		return nil, errors.New("no JSON array delimiters in response")
	}

	var raws []RawCandidate
	if err := json.Unmarshal([]byte(raw[start:end+1]), &raws); err != nil {
		return nil, fmt.Errorf("response is not a parseable candidate array: %w", err)
	}
	return raws, nil
}
