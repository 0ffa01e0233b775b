package transcribe

import (
	"regexp"
	"strings"
)

var (
	// "[00:00:00.000 --> 00:00:05.000]" prefixes when timestamps leak through.
	timestampTag = regexp.MustCompile(`\[\d{2}:\d{2}:\d{2}[.,]\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}[.,]\d{3}\]`)
	// "[BLANK_AUDIO]", "(keyboard clicking)", "[Music]", "(speaking French)" ...
	annotation = regexp.MustCompile(`[\(\[\*][a-zA-Z][a-zA-Z_\s]*[\)\]\*]`)
	spaces     = regexp.MustCompile(`\s+`)
)

// hallucinations are stock phrases whisper emits for silence or noise.
// A transcript made only of one of these is treated as no speech.
var hallucinations = map[string]bool{
	"...":                     true,
	"you":                     true,
	"thank you.":              true,
	"thank you":               true,
	"thanks for watching!":    true,
	"thank you for watching.": true,
	"bye.":                    true,
	"bye!":                    true,
	"the end.":                true,
	"sous-titres réalisés para la communauté d'amara.org": true,
}

// Clean normalises raw whisper output into a single line of speech, or ""
// when nothing but markers and filler remains.
func Clean(s string) string {
	s = timestampTag.ReplaceAllString(s, " ")
	s = annotation.ReplaceAllString(s, " ")
	s = strings.TrimSpace(spaces.ReplaceAllString(s, " "))

	if hallucinations[strings.ToLower(s)] {
		return ""
	}
	if strings.Trim(s, " .,!?-") == "" {
		return ""
	}
	return s
}
