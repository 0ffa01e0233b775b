package tts

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	ansiCodes  = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)
	bracketTag = regexp.MustCompile(`\[[^\]]{0,40}\]`)
	markdown   = regexp.MustCompile("[*_`#~>]+")
	whitespace = regexp.MustCompile(`\s+`)
)

// cleanForSpeech removes terminal colour codes, markdown emphasis and
// bracketed stage directions that a model may emit but a voice should not
// read out.
func cleanForSpeech(s string) string {
	s = ansiCodes.ReplaceAllString(s, "")
	s = bracketTag.ReplaceAllString(s, " ")
	s = markdown.ReplaceAllString(s, "")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// splitChunks breaks text into sentence-boundary chunks of roughly size
// characters. size <= 0 or short text yields a single chunk.
func splitChunks(text string, size int) []string {
	if size <= 0 || len(text) <= size {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, s := range splitSentences(text) {
		if current.Len() > 0 && current.Len()+len(s) > size {
			if c := strings.TrimSpace(current.String()); c != "" {
				chunks = append(chunks, c)
			}
			current.Reset()
		}
		current.WriteString(s)
	}
	if c := strings.TrimSpace(current.String()); c != "" {
		chunks = append(chunks, c)
	}
	return chunks
}

// splitSentences splits at . ! ? keeping the punctuation and trailing
// whitespace with the sentence it ends.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			i++
			current.WriteRune(runes[i])
		}
		sentences = append(sentences, current.String())
		current.Reset()
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
