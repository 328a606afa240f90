package summarize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ehis6k/transcriber/internal/domain"
)

// defaultMaxChunkChars keeps chunks comfortably under the summarization
// engine's input window.
const defaultMaxChunkChars = 2000

// sentence is one sentence with its offsets into the original text.
// The terminating punctuation stays attached to the sentence.
type sentence struct {
	text  string
	start int
	end   int
}

// Chunk splits text into ordered, bounded, sentence-respecting chunks.
// It never fails: input without sentence boundaries degenerates to a single
// chunk holding the whole text. A single sentence longer than maxChunkLen
// occupies its own chunk, unsplit. Concatenating chunk texts in index order
// reproduces the input up to whitespace normalization at join points.
func Chunk(text string, maxChunkLen int) []domain.TextChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if maxChunkLen <= 0 {
		maxChunkLen = defaultMaxChunkChars
	}

	sentences := splitSentences(text)

	var chunks []domain.TextChunk
	var cur sentence
	flush := func() {
		if cur.text == "" {
			return
		}
		chunks = append(chunks, domain.TextChunk{
			Index:       len(chunks),
			Text:        cur.text,
			StartOffset: cur.start,
			EndOffset:   cur.end,
		})
		cur = sentence{}
	}

	for _, s := range sentences {
		if cur.text == "" {
			cur = s
			continue
		}
		if len(cur.text)+1+len(s.text) > maxChunkLen {
			flush()
			cur = s
			continue
		}
		cur.text += " " + s.text
		cur.end = s.end
	}
	flush()

	return chunks
}

// splitSentences cuts text on runs of '.', '!', '?' followed by whitespace
// or end of input. Whitespace-only segments are skipped.
func splitSentences(text string) []sentence {
	var out []sentence
	start := 0
	i := 0
	for i < len(text) {
		if !isTerminator(text[i]) {
			i++
			continue
		}

		j := i
		for j < len(text) && isTerminator(text[j]) {
			j++
		}
		if j < len(text) && !isSpaceAt(text, j) {
			// punctuation inside a token, e.g. "3.14" or "e.g.x"
			i = j
			continue
		}

		out = appendSentence(out, text, start, j)
		for j < len(text) {
			r, size := utf8.DecodeRuneInString(text[j:])
			if !unicode.IsSpace(r) {
				break
			}
			j += size
		}
		start = j
		i = j
	}
	if start < len(text) {
		out = appendSentence(out, text, start, len(text))
	}
	return out
}

// appendSentence trims the segment and records its offsets, skipping blanks.
// The leading-whitespace width is measured rune-wise so offsets stay exact
// when the whitespace or the first sentence rune is multibyte.
func appendSentence(out []sentence, text string, start, end int) []sentence {
	seg := text[start:end]
	trimmed := strings.TrimSpace(seg)
	if trimmed == "" {
		return out
	}
	lead := len(seg) - len(strings.TrimLeftFunc(seg, unicode.IsSpace))
	s := start + lead
	return append(out, sentence{text: trimmed, start: s, end: s + len(trimmed)})
}

func isTerminator(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

// isSpaceAt reports whether the rune starting at byte i is Unicode whitespace.
func isSpaceAt(text string, i int) bool {
	r, _ := utf8.DecodeRuneInString(text[i:])
	return unicode.IsSpace(r)
}
