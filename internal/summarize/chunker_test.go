package summarize

import (
	"strings"
	"testing"
)

// TestChunkSentenceScenario checks the reference scenario boundary-by-boundary.
func TestChunkSentenceScenario(t *testing.T) {
	chunks := Chunk("Hello world. This is a test. Short.", 15)

	want := []string{"Hello world.", "This is a test.", "Short."}
	if len(chunks) != len(want) {
		t.Fatalf("chunk count = %d, want %d (%+v)", len(chunks), len(want), chunks)
	}
	for i, w := range want {
		if chunks[i].Text != w {
			t.Fatalf("chunk %d = %q, want %q", i, chunks[i].Text, w)
		}
		if chunks[i].Index != i {
			t.Fatalf("chunk %d index = %d", i, chunks[i].Index)
		}
	}
}

// TestChunkRoundTrip verifies concatenation reproduces the input modulo
// whitespace normalization at join points.
func TestChunkRoundTrip(t *testing.T) {
	inputs := []string{
		"One sentence only.",
		"First. Second! Third? Fourth.",
		"Multi  spaced.   And newlines.\nAnother line. Done!",
		"No terminator at the end",
		"Tail text after last period. trailing",
	}

	for _, input := range inputs {
		chunks := Chunk(input, 20)
		if len(chunks) == 0 {
			t.Fatalf("no chunks for %q", input)
		}

		parts := make([]string, 0, len(chunks))
		for i, c := range chunks {
			if c.Text == "" {
				t.Fatalf("empty chunk %d for %q", i, input)
			}
			parts = append(parts, c.Text)
		}
		got := normalizeWhitespace(strings.Join(parts, " "))
		want := normalizeWhitespace(input)
		if got != want {
			t.Fatalf("round trip = %q, want %q", got, want)
		}
	}
}

// TestChunkSizeBound verifies the budget holds unless a lone sentence exceeds it.
func TestChunkSizeBound(t *testing.T) {
	input := "Short one. Another short. This particular sentence is far too long for the budget. Tail."
	maxLen := 30

	chunks := Chunk(input, maxLen)
	for i, c := range chunks {
		if len(c.Text) <= maxLen {
			continue
		}
		if strings.Count(c.Text, ".") > 1 {
			t.Fatalf("oversized chunk %d holds more than one sentence: %q", i, c.Text)
		}
	}
}

// TestChunkOffsets verifies monotone, non-overlapping offsets that index
// back into the original text.
func TestChunkOffsets(t *testing.T) {
	input := "Alpha beta. Gamma delta. Epsilon zeta. Eta theta."
	chunks := Chunk(input, 25)

	prevEnd := 0
	for i, c := range chunks {
		if c.StartOffset < prevEnd {
			t.Fatalf("chunk %d overlaps previous: start=%d prevEnd=%d", i, c.StartOffset, prevEnd)
		}
		if c.EndOffset <= c.StartOffset {
			t.Fatalf("chunk %d has empty span: %d..%d", i, c.StartOffset, c.EndOffset)
		}
		span := input[c.StartOffset:c.EndOffset]
		if normalizeWhitespace(span) != normalizeWhitespace(c.Text) {
			t.Fatalf("chunk %d span = %q, text = %q", i, span, c.Text)
		}
		prevEnd = c.EndOffset
	}
}

// TestChunkDegenerateInputs checks single-chunk and empty-input behavior.
func TestChunkDegenerateInputs(t *testing.T) {
	if chunks := Chunk("", 100); chunks != nil {
		t.Fatalf("expected nil for empty input, got %+v", chunks)
	}
	if chunks := Chunk("   \n\t ", 100); chunks != nil {
		t.Fatalf("expected nil for whitespace input, got %+v", chunks)
	}

	chunks := Chunk("no sentence boundaries here just words", 10)
	if len(chunks) != 1 {
		t.Fatalf("chunk count = %d, want 1", len(chunks))
	}
	if chunks[0].Text != "no sentence boundaries here just words" {
		t.Fatalf("chunk text = %q", chunks[0].Text)
	}
}

// TestChunkShortInputSingleChunk checks text under the budget stays whole.
func TestChunkShortInputSingleChunk(t *testing.T) {
	chunks := Chunk("First. Second. Third.", 1000)
	if len(chunks) != 1 {
		t.Fatalf("chunk count = %d, want 1", len(chunks))
	}
	if chunks[0].Text != "First. Second. Third." {
		t.Fatalf("chunk text = %q", chunks[0].Text)
	}
}

// TestChunkUnicodeWhitespace checks boundaries and offsets stay exact around
// non-ASCII whitespace and multibyte sentence starts.
func TestChunkUnicodeWhitespace(t *testing.T) {
	input := "Hola.\u00a0¡Vamos ya!" // no-break space before a multibyte rune
	chunks := Chunk(input, 10)

	want := []string{"Hola.", "¡Vamos ya!"}
	if len(chunks) != len(want) {
		t.Fatalf("chunk count = %d, want %d (%+v)", len(chunks), len(want), chunks)
	}
	for i, w := range want {
		if chunks[i].Text != w {
			t.Fatalf("chunk %d = %q, want %q", i, chunks[i].Text, w)
		}
		if got := input[chunks[i].StartOffset:chunks[i].EndOffset]; got != w {
			t.Fatalf("chunk %d span = %q, want %q", i, got, w)
		}
	}
}

// TestChunkSkipsDecimalPoints checks punctuation inside tokens is not a boundary.
func TestChunkSkipsDecimalPoints(t *testing.T) {
	chunks := Chunk("Pi is 3.14159 approximately. Second sentence.", 1000)
	if len(chunks) != 1 {
		t.Fatalf("chunk count = %d, want 1 (%+v)", len(chunks), chunks)
	}
}

// normalizeWhitespace collapses whitespace runs to single spaces.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
