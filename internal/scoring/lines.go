package scoring

import (
	"regexp"
	"strings"
)

var (
	affirmativeWords = regexp.MustCompile(`(?i)\b(ja|yes|true)\b`)
	negativeWords    = regexp.MustCompile(`(?i)\b(nein|no|false)\b`)
	standaloneInt    = regexp.MustCompile(`\b\d+\b`)
	leadingNumber    = regexp.MustCompile(`^-?\d+(?:[.,]\d+)?`)
)

// polarity classifies a yes/no style token.
type polarity int

const (
	polarityUnknown polarity = iota
	polarityYes
	polarityNo
)

func classifyToken(tok string) polarity {
	switch strings.ToUpper(tok) {
	case "JA", "YES", "TRUE":
		return polarityYes
	case "NEIN", "NO", "FALSE":
		return polarityNo
	default:
		return polarityUnknown
	}
}

// splitLines splits an answer into lines with markdown decoration removed.
func splitLines(answer string) []string {
	raw := strings.Split(strings.ReplaceAll(answer, "\r\n", "\n"), "\n")
	out := make([]string, len(raw))
	for i, l := range raw {
		out[i] = cleanLine(l)
	}
	return out
}

// cleanLine strips list bullets, heading marks and bold markers around a line.
func cleanLine(l string) string {
	l = strings.TrimSpace(l)
	l = strings.TrimLeft(l, "-*#> \t")
	l = strings.ReplaceAll(l, "**", "")
	return strings.TrimSpace(l)
}

// field returns the text after "key:" when the line starts with key,
// compared case-insensitively.
func field(line, key string) (string, bool) {
	prefix := key + ":"
	if len(line) < len(prefix) || !strings.EqualFold(line[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(line[len(prefix):]), true
}

// splitVerdict separates "<token> - <reasoning>" into its parts.
func splitVerdict(part string) (token, reasoning string) {
	head, tail, found := strings.Cut(part, " - ")
	if !found {
		head, tail, _ = strings.Cut(part, " – ")
	}
	return firstWord(head), strings.TrimSpace(tail)
}

// firstWord returns the first whitespace-delimited word stripped of brackets
// and trailing punctuation.
func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], "[]().,:;!\"'")
}

// leadSentences returns up to n leading sentences of s on one line.
func leadSentences(s string, n int) string {
	flat := strings.Join(strings.Fields(s), " ")
	if flat == "" {
		return ""
	}
	parts := strings.SplitN(flat, ". ", n+1)
	if len(parts) > n {
		parts = parts[:n]
	}
	out := strings.Join(parts, ". ")
	if !strings.HasSuffix(out, ".") {
		out += "."
	}
	return out
}

// countPolarity counts whole-word affirmative and negative keywords.
func countPolarity(s string) (yes, no int) {
	return len(affirmativeWords.FindAllStringIndex(s, -1)), len(negativeWords.FindAllStringIndex(s, -1))
}
