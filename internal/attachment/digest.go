package attachment

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"
)

var (
	paragraphSplit = regexp.MustCompile(`\n{2,}`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
	pageMarker     = regexp.MustCompile(`^(page\s*)?\d+(\s*(of|/)\s*\d+)?$`)
)

// Digest is the document text condensed for the assistant's context.
type Digest struct {
	Text       string
	Paragraphs int
	Dropped    int
	Truncated  bool
}

// BuildDigest removes page furniture and paragraphs repeated on every page,
// such as court headers and footers, then clips the rest to budget runes.
func BuildDigest(text string, budget int) Digest {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	seen := map[string]bool{}
	var kept []string
	dropped := 0
	for _, paragraph := range paragraphSplit.Split(text, -1) {
		trimmed := strings.TrimSpace(paragraph)
		if trimmed == "" {
			continue
		}
		if isFurniture(trimmed) {
			dropped++
			continue
		}
		key := paragraphKey(trimmed)
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true
		kept = append(kept, trimmed)
	}

	out, truncated := clipParagraphs(kept, budget)
	return Digest{Text: out, Paragraphs: len(kept), Dropped: dropped, Truncated: truncated}
}

func isFurniture(paragraph string) bool {
	lower := strings.ToLower(paragraph)
	switch {
	case pageMarker.MatchString(lower):
		return true
	case strings.HasPrefix(lower, "digitally signed by"):
		return true
	case strings.HasPrefix(lower, "signature not verified"):
		return true
	}
	letters := 0
	for _, r := range lower {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	// Stamps, rules and table borders.
	return letters*5 < len([]rune(lower))
}

func paragraphKey(text string) string {
	canonical := whitespaceRun.ReplaceAllString(strings.ToLower(text), " ")
	sum := sha1.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func clipParagraphs(paragraphs []string, budget int) (string, bool) {
	if budget <= 0 {
		return strings.Join(paragraphs, "\n\n"), false
	}
	var b strings.Builder
	remaining := budget
	for idx, paragraph := range paragraphs {
		if idx > 0 {
			if remaining <= 2 {
				return b.String(), true
			}
			b.WriteString("\n\n")
			remaining -= 2
		}
		runes := []rune(paragraph)
		if len(runes) > remaining {
			b.WriteString(string(runes[:remaining]))
			return b.String(), true
		}
		b.WriteString(paragraph)
		remaining -= len(runes)
	}
	return b.String(), false
}
