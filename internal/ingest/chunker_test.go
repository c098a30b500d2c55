package ingest

import "testing"

func TestSlidingWindow_EmptyText(t *testing.T) {
	if got := SlidingWindow("   ", 1000, 200); got != nil {
		t.Fatalf("expected nil windows for empty text, got %v", got)
	}
}

func TestSlidingWindow_SingleWindowForShortText(t *testing.T) {
	text := "a short document that fits in one window"
	windows := SlidingWindow(text, 1000, 200)
	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	if windows[0].Text != text {
		t.Fatalf("expected window text to equal input, got %q", windows[0].Text)
	}
	if windows[0].Offset != 0 {
		t.Fatalf("expected first window offset 0, got %d", windows[0].Offset)
	}
}

func TestSlidingWindow_OverlapsBetweenConsecutiveWindows(t *testing.T) {
	chunkChars := 1000 * TokensPerChar
	text := make([]byte, chunkChars*3)
	for i := range text {
		text[i] = byte('a' + i%26)
	}

	windows := SlidingWindow(string(text), 1000, 200)
	if len(windows) < 2 {
		t.Fatalf("expected multiple windows for long text, got %d", len(windows))
	}
	for i, w := range windows {
		if w.Offset != i {
			t.Fatalf("window %d: expected sequential offset %d, got %d", i, i, w.Offset)
		}
	}

	overlapChars := 200 * TokensPerChar
	first := windows[0].Text
	second := windows[1].Text
	tail := first[len(first)-overlapChars:]
	if second[:len(tail)] != tail {
		t.Fatalf("expected second window to start with first window's overlap tail")
	}
}

func TestSlidingWindow_InvalidOverlapFallsBackToDefault(t *testing.T) {
	chunkChars := 1000 * TokensPerChar
	text := make([]byte, chunkChars*2)
	for i := range text {
		text[i] = 'x'
	}

	// overlapTokens >= chunkTokens must fall back to the 200-token default
	// rather than producing a zero or negative stride.
	windows := SlidingWindow(string(text), 1000, 1000)
	if len(windows) < 2 {
		t.Fatalf("expected multiple windows, got %d", len(windows))
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens("abcd"); got != 1 {
		t.Fatalf("expected 1 token for 4 chars, got %d", got)
	}
	if got := EstimateTokens(""); got != 0 {
		t.Fatalf("expected 0 tokens for empty text, got %d", got)
	}
}
