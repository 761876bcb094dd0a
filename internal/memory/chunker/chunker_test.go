package chunker

import (
	"strings"
	"testing"
)

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	pieces := Split("a short sentence.", false, Params{Min: 100, Target: 800, Max: 2000})
	if len(pieces) != 1 {
		t.Fatalf("expected 1 piece, got %d: %v", len(pieces), pieces)
	}
}

func TestSplit_EmptyContentYieldsNoPieces(t *testing.T) {
	pieces := Split("   ", false, Params{Min: 100, Target: 800, Max: 2000})
	if len(pieces) != 0 {
		t.Fatalf("expected no pieces for empty content, got %d", len(pieces))
	}
}

func TestSplit_RespectsMaxBound(t *testing.T) {
	paragraph := strings.Repeat("word ", 20) + "\n\n"
	content := strings.Repeat(paragraph, 50)
	pieces := Split(content, false, Params{Min: 20, Target: 100, Max: 200})
	for _, p := range pieces {
		if len(p.Text) > 400 {
			t.Fatalf("piece exceeds reasonable bound given max=200: len=%d", len(p.Text))
		}
	}
}

func TestSplit_MergesShortTrailingFragments(t *testing.T) {
	content := strings.Repeat("x", 150) + "\n\n" + "ok"
	pieces := Split(content, false, Params{Min: 50, Target: 800, Max: 2000})
	for _, p := range pieces {
		if len(strings.TrimSpace(p.Text)) < 50 && len(pieces) > 1 {
			t.Fatalf("found under-min trailing piece that should have merged: %q", p.Text)
		}
	}
}

func TestSplit_HardSplitBoundary(t *testing.T) {
	params := Params{Min: 100, Target: 800, Max: 2000}

	under := strings.Repeat("a", 1999)
	pieces := Split(under, false, params)
	if len(pieces) != 1 {
		t.Fatalf("expected 1999-char blob to stay a single chunk, got %d: %v", len(pieces), lens(pieces))
	}

	over := strings.Repeat("a", 2001)
	pieces = Split(over, false, params)
	if len(pieces) != 2 {
		t.Fatalf("expected 2001-char blob to split into exactly 2 chunks, got %d: %v", len(pieces), lens(pieces))
	}
	for _, p := range pieces {
		if len(p.Text) > params.Max {
			t.Fatalf("hard-split piece exceeds max: len=%d", len(p.Text))
		}
	}
}

func lens(pieces []Piece) []int {
	out := make([]int, len(pieces))
	for i, p := range pieces {
		out[i] = len(p.Text)
	}
	return out
}

func TestSplit_PropagatesForceImportant(t *testing.T) {
	pieces := Split("some content here", true, Params{Min: 10, Target: 800, Max: 2000})
	for _, p := range pieces {
		if !p.ForceImportant {
			t.Fatalf("expected ForceImportant to propagate to all pieces")
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Fatalf("expected 0 tokens for empty string, got %d", got)
	}
	if got := EstimateTokens("ab"); got != 1 {
		t.Fatalf("expected floor of 1 token for short string, got %d", got)
	}
	if got := EstimateTokens(strings.Repeat("a", 40)); got != 10 {
		t.Fatalf("expected 10 tokens for 40 chars, got %d", got)
	}
}
