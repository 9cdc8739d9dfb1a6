package speech

import (
	"strings"
	"unicode"
)

var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "sr": {}, "jr": {},
	"st": {}, "vs": {}, "etc": {}, "inc": {}, "ltd": {}, "co": {}, "corp": {},
	"e.g": {}, "i.e": {}, "no": {}, "approx": {}, "dept": {},
}

const (
	terminators = ".!?…"
	closers     = `"')]”’`
)

// SplitSentences breaks text into speakable units. It keeps abbreviations,
// decimals, URLs, emails and mid-sentence ellipses inside their sentence.
func SplitSentences(text string) []string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) == 0 {
		return nil
	}

	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !strings.ContainsRune(terminators, runes[i]) {
			continue
		}

		end := i + 1
		for end < len(runes) && strings.ContainsRune(terminators, runes[end]) {
			end++
		}
		for end < len(runes) && strings.ContainsRune(closers, runes[end]) {
			end++
		}

		if end < len(runes) && runes[end] != ' ' {
			i = end - 1
			continue
		}
		if end < len(runes) && !endsSentence(runes, start, i, end) {
			i = end - 1
			continue
		}

		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = end
		i = end - 1
	}

	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

// endsSentence decides whether the terminator run runes[i:end], followed by a
// space, closes the sentence that began at start.
func endsSentence(runes []rune, start, i, end int) bool {
	run := string(runes[i:end])
	if strings.HasPrefix(run, "...") || strings.HasPrefix(run, "…") {
		next := nextLetter(runes, end)
		return next != 0 && unicode.IsUpper(next)
	}
	if runes[i] != '.' || strings.ContainsAny(run[1:], "!?") {
		return true
	}

	word := lastWord(runes[start:i])
	if _, ok := abbreviations[strings.ToLower(word)]; ok {
		return false
	}
	if len([]rune(word)) == 1 && unicode.IsUpper([]rune(word)[0]) {
		return false
	}
	return true
}

func lastWord(runes []rune) string {
	s := string(runes)
	if i := strings.LastIndexByte(s, ' '); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimLeft(s, `"'([“‘`)
}

func nextLetter(runes []rune, from int) rune {
	for _, r := range runes[from:] {
		if unicode.IsLetter(r) {
			return r
		}
		if !unicode.IsSpace(r) && !strings.ContainsRune(`"'(“‘`, r) {
			return r
		}
	}
	return 0
}
