package ingest

import "strings"

// TokensPerChar approximates token count from character count, grounded on
// the teacher's internal/chunk.TokensPerChar heuristic (4 chars ~= 1
// token). No tokenizer library is grounded anywhere in the retrieval pack
// for prose text, so this approximation stands in for spec.md section
// 4.3's "1000 tokens, 200 overlap" sliding window (see DESIGN.md).
const TokensPerChar = 4

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return len(text) / TokensPerChar
}

// ChunkWindow is one sliding-window slice of a document's text before
// persistence, carrying its ordinal position for Chunk.Loc derivation.
type ChunkWindow struct {
	Text   string
	Offset int // ordinal index of this window within the document
}

// SlidingWindow splits text into overlapping windows, defaulting to
// spec.md section 4.3 step 4's 1000 tokens / 200 overlap via
// TokensPerChar. A chunkTokens <= 0 falls back to 1000; an overlapTokens
// that is negative or not smaller than chunkTokens falls back to 200, and
// an overlapTokens of 0 means no overlap.
func SlidingWindow(text string, chunkTokens, overlapTokens int) []ChunkWindow {
	if chunkTokens <= 0 {
		chunkTokens = 1000
	}
	if overlapTokens < 0 || overlapTokens >= chunkTokens {
		overlapTokens = 200
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	chunkChars := chunkTokens * TokensPerChar
	overlapChars := overlapTokens * TokensPerChar
	stride := chunkChars - overlapChars
	if stride <= 0 {
		stride = chunkChars
	}

	var windows []ChunkWindow
	offset := 0
	for start := 0; start < len(text); start += stride {
		end := start + chunkChars
		if end > len(text) {
			end = len(text)
		}

		window := strings.TrimSpace(text[start:end])
		if window != "" {
			windows = append(windows, ChunkWindow{Text: window, Offset: offset})
			offset++
		}

		if end == len(text) {
			break
		}
	}

	return windows
}
