package chunker

import (
	"log/slog"
	"strings"
)

// Strategy selects how source text is segmented into chunks.
type Strategy string

const (
	StrategySemantic  Strategy = "semantic"
	StrategyRecursive Strategy = "recursive"
	StrategySentence  Strategy = "sentence"
	StrategySimple    Strategy = "simple"
)

// ValidStrategy reports whether s names a known chunking strategy.
func ValidStrategy(s string) bool {
	switch Strategy(s) {
	case StrategySemantic, StrategyRecursive, StrategySentence, StrategySimple:
		return true
	}
	return false
}

// recursiveSeparators is the priority ladder for the recursive strategy:
// paragraphs, lines, sentence-ending punctuation, clause punctuation, spaces.
var recursiveSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " "}

// TextChunker splits document text into chunks of at most size runes with
// up to overlap runes shared between consecutive chunks. The size limit is
// soft: joining a carried overlap onto a segment may exceed it slightly.
type TextChunker struct {
	size     int
	overlap  int
	strategy Strategy
	logger   *slog.Logger
}

func New(size, overlap int, strategy Strategy, logger *slog.Logger) *TextChunker {
	if size <= 0 {
		size = 512
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TextChunker{
		size:     size,
		overlap:  overlap,
		strategy: strategy,
		logger:   logger,
	}
}

// Chunk splits text according to the configured strategy. Empty or
// whitespace-only input yields no chunks; returned chunks are never empty.
func (c *TextChunker) Chunk(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var chunks []string
	switch c.strategy {
	case StrategySemantic:
		chunks = c.semanticChunk(text)
	case StrategyRecursive:
		chunks = c.recursiveSplit(text, recursiveSeparators)
	case StrategySentence:
		chunks = c.sentenceChunk(text)
	default:
		chunks = c.simpleChunk(text)
	}

	out := make([]string, 0, len(chunks))
	totalLen := 0
	for _, ch := range chunks {
		if strings.TrimSpace(ch) == "" {
			continue
		}
		out = append(out, ch)
		totalLen += runeLen(ch)
	}

	avg := 0.0
	if len(out) > 0 {
		avg = float64(totalLen) / float64(len(out))
	}
	c.logger.Debug("chunking_complete",
		"strategy", string(c.strategy),
		"total_chunks", len(out),
		"avg_chunk_size", avg,
	)

	return out, nil
}

// semanticChunk packs whole paragraphs up to the size limit. A paragraph
// that exceeds the limit on its own is split down to sentences; when a new
// chunk starts, the tail of the previous chunk carries over as overlap.
func (c *TextChunker) semanticChunk(text string) []string {
	paragraphs := splitParagraphs(text)

	var chunks []string
	current := ""

	for _, para := range paragraphs {
		sep := 0
		if current != "" {
			sep = 2 // "\n\n"
		}
		if runeLen(current)+runeLen(para)+sep <= c.size {
			if current != "" {
				current += "\n\n" + para
			} else {
				current = para
			}
			continue
		}

		if current != "" {
			chunks = append(chunks, current)
		}

		if runeLen(para) > c.size {
			sub := c.packSentences(splitSentences(para))
			if len(sub) > 0 {
				chunks = append(chunks, sub[:len(sub)-1]...)
				current = sub[len(sub)-1]
			} else {
				current = ""
			}
		} else if len(chunks) > 0 {
			current = c.overlapTail(chunks[len(chunks)-1]) + "\n\n" + para
		} else {
			current = para
		}
	}

	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// recursiveSplit tries each separator in order, recursing into the next one
// only for segments that still exceed the size limit.
func (c *TextChunker) recursiveSplit(text string, separators []string) []string {
	if len(separators) == 0 {
		return c.splitByChars(text)
	}

	sep := separators[0]
	splits := strings.Split(text, sep)

	var chunks []string
	current := ""

	for _, split := range splits {
		test := current
		if current != "" {
			test += sep
		}
		test += split

		if runeLen(test) <= c.size {
			current = test
			continue
		}

		if current != "" {
			chunks = append(chunks, current)
		}

		if runeLen(split) > c.size {
			sub := c.recursiveSplit(split, separators[1:])
			if len(sub) > 0 {
				chunks = append(chunks, sub[:len(sub)-1]...)
				current = sub[len(sub)-1]
			} else {
				current = ""
			}
		} else if len(chunks) > 0 {
			overlap := c.overlapTail(chunks[len(chunks)-1])
			if overlap != "" {
				current = overlap + sep + split
			} else {
				current = split
			}
		} else {
			current = split
		}
	}

	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// sentenceChunk greedily packs sentences up to the size limit; a single
// sentence longer than the limit is cut into raw character windows.
func (c *TextChunker) sentenceChunk(text string) []string {
	return c.packSentences(splitSentences(text))
}

func (c *TextChunker) packSentences(sentences []string) []string {
	var chunks []string
	current := ""

	for _, sentence := range sentences {
		test := current
		if current != "" {
			test += " "
		}
		test += sentence

		if runeLen(test) <= c.size {
			current = test
			continue
		}

		if current != "" {
			chunks = append(chunks, current)
		}

		if runeLen(sentence) > c.size {
			sub := c.splitByChars(sentence)
			if len(sub) > 0 {
				chunks = append(chunks, sub[:len(sub)-1]...)
				current = sub[len(sub)-1]
			} else {
				current = ""
			}
		} else {
			current = sentence
		}
	}

	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// simpleChunk is a fixed-size sliding window with stride size-overlap.
func (c *TextChunker) simpleChunk(text string) []string {
	r := []rune(text)
	stride := c.size - c.overlap
	if stride < 1 {
		stride = 1
	}

	var chunks []string
	for start := 0; start < len(r); start += stride {
		end := start + c.size
		if end > len(r) {
			end = len(r)
		}
		chunks = append(chunks, string(r[start:end]))
	}
	return chunks
}

// splitByChars cuts text into windows of at most size runes, preferring a
// word boundary in the second half of the window, with overlap carried into
// the next window.
func (c *TextChunker) splitByChars(text string) []string {
	r := []rune(text)

	var chunks []string
	start := 0
	for start < len(r) {
		end := start + c.size
		if end > len(r) {
			end = len(r)
		}
		window := r[start:end]

		if end < len(r) {
			if cut := lastSpace(window); cut > c.size/2 {
				window = window[:cut]
				end = start + cut
			}
		}

		chunks = append(chunks, string(window))
		if end == len(r) {
			break
		}

		next := end - c.overlap
		if next <= start {
			// Window shorter than the overlap; advance without it.
			next = end
		}
		start = next
	}
	return chunks
}

// overlapTail extracts up to overlap runes from the end of a chunk, aligned
// to a sentence boundary when one falls inside the window, else to a word
// boundary, else raw runes.
func (c *TextChunker) overlapTail(text string) string {
	r := []rune(text)
	if len(r) <= c.overlap {
		return text
	}
	overlap := string(r[len(r)-c.overlap:])

	sentences := splitSentences(overlap)
	if len(sentences) > 1 {
		return strings.Join(sentences[1:], " ")
	}

	if i := strings.IndexByte(overlap, ' '); i >= 0 {
		return overlap[i+1:]
	}
	return overlap
}
