// backend/internal/generation/chunker.go
package generation

// DefaultChunkSize is the slice length used when chunking extracted
// document text for generation.
const DefaultChunkSize = 4000

// SplitChunks splits text into contiguous chunks of at most maxChars runes.
// Chunks preserve order, never overlap, and concatenate back to the input;
// the final chunk may be shorter. Empty input yields no chunks.
func SplitChunks(text string, maxChars int) []string {
	if text == "" || maxChars <= 0 {
		return nil
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+maxChars-1)/maxChars)
	for i := 0; i < len(runes); i += maxChars {
		end := i + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
