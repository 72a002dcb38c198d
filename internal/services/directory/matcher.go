package directory

import (
	"regexp"
	"strings"

	"github.com/providerlens/providerlens/internal/domain"
)

var (
	honorificPattern  = regexp.MustCompile(`\bdr\b\.?`)
	punctuationStrip  = regexp.MustCompile(`[.,]`)
	degreePattern     = regexp.MustCompile(`\b(md|do|phd|dds)\b`)
	whitespaceCollaps = regexp.MustCompile(`\s+`)
)

// nameAliases collapses common first-name spelling variants to one canonical
// form before matching.
var nameAliases = map[string]string{
	"sarah": "sara",
}

// NormalizeName lowercases a provider name, strips the honorific and degree
// tokens, strips periods and commas, collapses whitespace, and applies the
// alias table. Idempotent: normalizing a normalized name is a no-op.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = honorificPattern.ReplaceAllString(name, "")
	name = punctuationStrip.ReplaceAllString(name, "")
	name = degreePattern.ReplaceAllString(name, "")
	name = whitespaceCollaps.ReplaceAllString(name, " ")
	for variant, canonical := range nameAliases {
		name = strings.ReplaceAll(name, variant, canonical)
	}
	return strings.TrimSpace(name)
}

// MatchCandidate selects the first entry, in crawl order, whose normalized
// name contains every whitespace-separated token of the normalized target as
// a substring. Substring rather than exact token equality, so "johnson"
// matches inside "johnsons". The second return is false when no candidate
// passes, which is terminal for verification.
func MatchCandidate(target string, candidates []domain.ListingEntry) (domain.ListingEntry, bool) {
	targetNorm := NormalizeName(target)
	tokens := strings.Fields(targetNorm)
	if len(tokens) == 0 {
		return domain.ListingEntry{}, false
	}

	for _, candidate := range candidates {
		candidateNorm := NormalizeName(candidate.Name)
		matched := true
		for _, token := range tokens {
			if !strings.Contains(candidateNorm, token) {
				matched = false
				break
			}
		}
		if matched {
			return candidate, true
		}
	}

	return domain.ListingEntry{}, false
}
