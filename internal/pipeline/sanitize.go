package pipeline

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldAccents strips combining diacritics so queries and fingerprints
// match marketplace text regardless of accenting.
func foldAccents(s string) string {
	out, _, err := transform.String(accentFolder, s)
	if err != nil {
		return s
	}
	return out
}

// SanitizeQuery bounds a free-text query to maxLen characters. A known
// short marketplace term is substituted when it fits; otherwise whole
// words are accumulated greedily, with hard truncation as the last
// resort. Non-empty input never sanitizes to an empty string.
func SanitizeQuery(query, shortTerm string, maxLen int) string {
	query = strings.Join(strings.Fields(foldAccents(query)), " ")
	if query == "" || len(query) <= maxLen {
		return query
	}

	if shortTerm != "" {
		shortTerm = strings.Join(strings.Fields(foldAccents(shortTerm)), " ")
		if shortTerm != "" && len(shortTerm) <= maxLen {
			zap.L().Debug("sanitize: substituted short term",
				zap.String("query", query),
				zap.String("short_term", shortTerm),
			)
			return shortTerm
		}
	}

	var b strings.Builder
	for _, word := range strings.Fields(query) {
		need := len(word)
		if b.Len() > 0 {
			need++
		}
		if b.Len()+need > maxLen {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
	}
	if b.Len() > 0 {
		return b.String()
	}

	// First word alone exceeds the budget.
	zap.L().Debug("sanitize: hard truncation", zap.String("query", query))
	return query[:maxLen]
}
