// services/solution_analysis.go
package services

import (
	"regexp"
	"strings"

	"github.com/AI-Template-SDK/senso-insights/internal/models"
)

const recommendationRadius = 100

var (
	recommendationRe = regexp.MustCompile(`(?i)\b(recommend(?:ed|s|ation)?|best (?:choice|option|fit|pick)|top (?:choice|pick)|go[- ]to|should (?:consider|choose|use)|worth considering|ideal (?:choice|for)|we suggest|suggested)\b`)

	featureQueryRe = regexp.MustCompile(`(?i)^\s*(?:does|do|can|is|are|will)\b.*\b(support|supports|offer|offers|have|has|provide|provides|include|includes|integrate|integrates|allow|allows|work with|handle|handles)\b`)

	uncertaintyRe   = regexp.MustCompile(`(?i)\b(not (?:sure|certain|clear)|unclear|unknown|no (?:public |specific |available )?information|could not (?:find|verify|confirm)|couldn't (?:find|verify|confirm)|unable to (?:find|verify|confirm|determine)|not (?:publicly )?documented|may or may not|cannot confirm|can't confirm|doesn't specify|does not specify)\b`)
	affirmationRe   = regexp.MustCompile(`(?i)\b(supports?|offers?|provides?|includes?|integrates? with|comes with|features?|enables?|allows?|has built[- ]in|native(?:ly)? support|yes)\b`)
	negationRe      = regexp.MustCompile(`(?i)\b(does not|doesn't|do not|don't|cannot|can't|lacks?|no support|not support(?:ed)?|not (?:offer|provide|include)|unsupported|not available|missing)\b`)
	negatedPrefixRe = regexp.MustCompile(`(?i)(\bnot|n't|\bno)\s+(?:\w+\s+)?$`)
)

// IsRecommended reports whether subject appears within ~100 characters of recommendation language
func IsRecommended(text, subject string) bool {
	matcher := newCompanyMatcher(subject, true)
	if matcher == nil {
		return false
	}
	for _, span := range matcher.AllIndexes(text) {
		start, end := mentionWindow(text, span[0], span[1], recommendationRadius)
		if recommendationRe.MatchString(text[start:end]) {
			return true
		}
	}
	return false
}

// IsFeatureQuery reports whether the query asks if a product has a capability
func IsFeatureQuery(queryType, queryText string) bool {
	if strings.EqualFold(strings.TrimSpace(queryType), "feature") {
		return true
	}
	return featureQueryRe.MatchString(queryText)
}

// AnalyzeSolution judges feature presence for the subject: uncertainty first, then direct
// affirmation, then direct negation. Ambiguous text is NO.
func AnalyzeSolution(text, subject string) models.SolutionAnalysis {
	windows := subjectWindows(text, subject, sentimentWindowRadius)

	for _, w := range windows {
		if uncertaintyRe.MatchString(w) {
			return models.SolutionNotAvailable
		}
	}
	for _, w := range windows {
		if hasUnnegatedAffirmation(w) {
			return models.SolutionYes
		}
	}
	for _, w := range windows {
		if negationRe.MatchString(w) {
			return models.SolutionNo
		}
	}
	return models.SolutionNo
}

// subjectWindows returns the mention windows of subject, or the whole text when it is never named
func subjectWindows(text, subject string, radius int) []string {
	matcher := newCompanyMatcher(subject, true)
	if matcher != nil {
		spans := matcher.AllIndexes(text)
		if len(spans) > 0 {
			windows := make([]string, len(spans))
			for i, span := range spans {
				start, end := mentionWindow(text, span[0], span[1], radius)
				windows[i] = text[start:end]
			}
			return windows
		}
	}
	return []string{text}
}

func hasUnnegatedAffirmation(window string) bool {
	for _, loc := range affirmationRe.FindAllStringIndex(window, -1) {
		if !negatedPrefixRe.MatchString(window[:loc[0]]) {
			return true
		}
	}
	return false
}
