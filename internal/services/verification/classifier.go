package verification

import (
	"regexp"
	"strings"
)

// Verdict is the outcome of classifying a verification result page.
type Verdict int

const (
	// VerdictUnknown means neither an acceptance nor a rejection signal
	// matched. Callers treat it as not-accepted.
	VerdictUnknown Verdict = iota
	VerdictAccepted
	VerdictRejected
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccepted:
		return "accepted"
	case VerdictRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Acceptance is decided per sentence: a sentence must match an acceptance
// pattern AND carry no negation token, so "we cannot verify this provider
// accepts Aetna" never counts as acceptance. Rejection patterns run against
// the full text, strictly after acceptance: a page carrying both signals in
// different sentences is accepted.
var (
	negationPattern = regexp.MustCompile(`\b(cannot|can't|not|unable|no longer)\b`)

	rejectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`we cannot verify`),
		regexp.MustCompile(`cannot verify`),
		regexp.MustCompile(`not verified`),
		regexp.MustCompile(`contact.*provider.*to confirm`),
		regexp.MustCompile(`you should contact the provider`),
	}

	sentenceSplit = regexp.MustCompile(`[.!?\n]`)
)

// acceptancePatterns builds the ordered acceptance rules for one plan name.
func acceptancePatterns(plan string) []*regexp.Regexp {
	q := regexp.QuoteMeta(strings.ToLower(plan))
	return []*regexp.Regexp{
		regexp.MustCompile(`dr.*accepts.*` + q),
		regexp.MustCompile(`accepts.*` + q),
		regexp.MustCompile(q + `.*accepted`),
		regexp.MustCompile(q + `.*participating`),
	}
}

// Classify decides whether a result page shows the plan as accepted.
// verifyTexts are the texts of dedicated verification UI elements, checked
// first; pageText is the page's full text content, checked per sentence.
func Classify(pageText string, verifyTexts []string, plan string) (Verdict, string) {
	planLower := strings.ToLower(plan)

	// Rule 1: a dedicated verification element naming the plan with an
	// acceptance verb and no negation.
	for _, text := range verifyTexts {
		lower := strings.ToLower(text)
		if strings.Contains(lower, "accepts") &&
			strings.Contains(lower, planLower) &&
			!negationPattern.MatchString(lower) {
			return VerdictAccepted, strings.TrimSpace(text)
		}
	}

	textLower := strings.ToLower(pageText)

	// Rule 2: an acceptance pattern matching inside a non-negated sentence.
	accepts := acceptancePatterns(plan)
	for _, sentence := range sentenceSplit.Split(textLower, -1) {
		if negationPattern.MatchString(sentence) {
			continue
		}
		for _, pattern := range accepts {
			if pattern.MatchString(sentence) {
				return VerdictAccepted, strings.TrimSpace(sentence)
			}
		}
	}

	// Rule 3: a rejection pattern anywhere in the text.
	for _, pattern := range rejectionPatterns {
		if loc := pattern.FindString(textLower); loc != "" {
			return VerdictRejected, loc
		}
	}

	return VerdictUnknown, ""
}
