package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// sentenceBoundary matches the gap between two sentences: terminal
// punctuation, whitespace, then an uppercase letter starting the next one.
var sentenceBoundary = regexp.MustCompile(`[.!?]\s+\p{Lu}`)

// headingLine matches markdown heading markers, which start a new paragraph
// even without a preceding blank line.
var headingLine = regexp.MustCompile(`^#{1,6}\s`)

// splitSentences segments text into sentences on punctuation followed by
// whitespace and a capital letter. Text without such boundaries comes back
// as a single sentence.
func splitSentences(text string) []string {
	var sentences []string
	prev := 0
	for _, loc := range sentenceBoundary.FindAllStringIndex(text, -1) {
		// The match consumes the capital that opens the next sentence;
		// cut just before it.
		_, size := utf8.DecodeLastRuneInString(text[loc[0]:loc[1]])
		cut := loc[1] - size
		if s := strings.TrimSpace(text[prev:cut]); s != "" {
			sentences = append(sentences, s)
		}
		prev = cut
	}
	if s := strings.TrimSpace(text[prev:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// splitParagraphs splits on blank lines, additionally starting a new
// paragraph at markdown headings.
func splitParagraphs(text string) []string {
	var paragraphs []string
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		if p := strings.TrimSpace(strings.Join(current, "\n")); p != "" {
			paragraphs = append(paragraphs, p)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if headingLine.MatchString(line) {
			flush()
		}
		current = append(current, line)
	}
	flush()

	return paragraphs
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == ' ' {
			return i
		}
	}
	return -1
}
