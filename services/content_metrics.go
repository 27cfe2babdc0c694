// services/content_metrics.go
package services

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	wordRe          = regexp.MustCompile(`[\p{L}][\p{L}\p{N}'’-]*|\p{N}[\p{N}.,]*%?`)
	sentenceEndRe   = regexp.MustCompile(`[.!?]+(\s+|$)|\n+`)
	statisticRe     = regexp.MustCompile(`\d+(\.\d+)?\s?%|[$€£]\s?\d|\b\d{1,3}(,\d{3})+\b|\b\d+(\.\d+)?\s?(million|billion|thousand|percent|x)\b|\b(19|20)\d{2}\b`)
	inlineQuoteRe   = regexp.MustCompile(`["“][^"”\n]{12,}["”]`)
	authorityRe     = regexp.MustCompile(`(?i)\b(according to|research|study|studies|survey|report(ed)?|analysts?|experts?|published|peer[- ]reviewed|certified|official|data from|findings|benchmark)\b`)
	acronymRe       = regexp.MustCompile(`^[A-Z]{2,6}s?$`)
	camelCaseRe     = regexp.MustCompile(`^[a-z]+[A-Z][A-Za-z]*$|^[A-Z][a-z]+[A-Z][A-Za-z]*$`)
	alphanumericRe  = regexp.MustCompile(`^(\p{L}+\d+|\d+\p{L}+)[\p{L}\d]*$`)
	vowelGroupRe    = regexp.MustCompile(`[aeiouy]+`)
	nonLetterRe     = regexp.MustCompile(`[^a-z]`)
)

var technicalVocabulary = map[string]bool{
	"api": true, "sdk": true, "integration": true, "integrations": true, "encryption": true,
	"latency": true, "throughput": true, "scalability": true, "deployment": true, "infrastructure": true,
	"algorithm": true, "database": true, "analytics": true, "compliance": true, "authentication": true,
	"workflow": true, "workflows": true, "automation": true, "architecture": true, "protocol": true,
	"configuration": true, "dashboard": true, "endpoint": true, "platform": true, "cloud": true,
}

var keywordStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "what": true, "which": true, "are": true,
	"best": true, "how": true, "does": true, "can": true, "you": true, "your": true, "that": true,
	"this": true, "from": true, "into": true, "about": true, "who": true, "why": true, "when": true,
	"top": true, "most": true, "should": true, "there": true, "their": true, "have": true, "has": true,
	"any": true, "some": true, "more": true, "than": true, "use": true, "using": true, "between": true,
}

// markdownDocument is the flattened view of a page used by the metrics
type markdownDocument struct {
	text        string
	links       int
	blockquotes int
}

var markdownParser = goldmark.New()

// flattenMarkdown walks the goldmark AST collecting visible text, link and blockquote counts
func flattenMarkdown(markdown string) markdownDocument {
	source := []byte(markdown)
	root := markdownParser.Parser().Parse(text.NewReader(source))

	var doc markdownDocument
	var b strings.Builder
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && b.Len() > 0 {
				b.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link, *ast.AutoLink:
			doc.links++
		case *ast.Blockquote:
			doc.blockquotes++
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	doc.text = b.String()
	return doc
}

// ContentKeywords derives the keyword set of a citation from its query and company
func ContentKeywords(queryText, companyName string) []string {
	seen := make(map[string]bool)
	var keywords []string
	add := func(w string) {
		w = strings.ToLower(strings.Trim(w, "'’-"))
		if len([]rune(w)) < 3 || keywordStopwords[w] || seen[w] {
			return
		}
		seen[w] = true
		keywords = append(keywords, w)
	}
	for _, w := range wordRe.FindAllString(queryText, -1) {
		add(w)
	}
	for _, w := range wordRe.FindAllString(NormalizeCompanyName(companyName), -1) {
		add(w)
	}
	return keywords
}

// AnalyzeContent computes the content-quality metrics of one markdown page
func AnalyzeContent(markdown string, keywords []string) models.ContentAnalysis {
	doc := flattenMarkdown(markdown)
	analysis := models.ContentAnalysis{Version: models.ContentAnalysisVersion}

	var sentences []string
	for _, s := range sentenceEndRe.Split(doc.text, -1) {
		if wordRe.MatchString(s) {
			sentences = append(sentences, s)
		}
	}
	words := wordRe.FindAllString(doc.text, -1)
	if len(words) == 0 || len(sentences) == 0 {
		return analysis
	}

	total := float64(len(words))
	sentenceCount := float64(len(sentences))
	analysis.TotalWords = len(words)
	analysis.AvgSentenceLength = total / sentenceCount

	unique := make(map[string]bool, len(words))
	keywordSet := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		keywordSet[k] = true
	}
	found := make(map[string]bool)
	var keywordHits, technical, syllables int
	for _, w := range words {
		lower := strings.ToLower(w)
		unique[lower] = true
		if keywordSet[lower] {
			keywordHits++
			found[lower] = true
		}
		if isTechnicalTerm(w) {
			technical++
		}
		syllables += countSyllables(lower)
	}

	var withStats, withAuthority, fluent int
	for _, s := range sentences {
		if statisticRe.MatchString(s) {
			withStats++
		}
		if authorityRe.MatchString(s) {
			withAuthority++
		}
		if n := len(wordRe.FindAllString(s, -1)); n >= 5 && n <= 35 {
			fluent++
		}
	}
	quotes := doc.blockquotes + len(inlineQuoteRe.FindAllString(doc.text, -1))

	if len(keywords) > 0 {
		analysis.KeywordUsage = float64(len(found)) / float64(len(keywords))
	}
	analysis.KeywordDensity = ratio(float64(keywordHits), total)
	analysis.StatisticsDensity = ratio(float64(withStats), sentenceCount)
	analysis.QuotationDensity = ratio(float64(quotes), sentenceCount)
	analysis.CitationDensity = ratio(float64(doc.links), sentenceCount)
	analysis.TechnicalTermDensity = ratio(float64(technical), total)
	analysis.Fluency = ratio(float64(fluent), sentenceCount)
	analysis.AuthoritySignal = ratio(float64(withAuthority), sentenceCount)
	analysis.UniqueWordRatio = ratio(float64(len(unique)), total)
	analysis.Readability = round2(206.835 - 1.015*(total/sentenceCount) - 84.6*(float64(syllables)/total))
	return analysis
}

// ratio is part/whole capped to [0,1] and rounded to 4 places
func ratio(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(math.Min(1, part/whole)*10000) / 10000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func isTechnicalTerm(w string) bool {
	if technicalVocabulary[strings.ToLower(w)] {
		return true
	}
	if acronymRe.MatchString(w) || camelCaseRe.MatchString(w) || alphanumericRe.MatchString(w) {
		return true
	}
	return strings.Contains(w, "-") && len(w) > 6 && !unicode.IsDigit(rune(w[0]))
}

// countSyllables approximates English syllables by vowel groups
func countSyllables(word string) int {
	w := nonLetterRe.ReplaceAllString(word, "")
	if w == "" {
		return 1
	}
	n := len(vowelGroupRe.FindAllString(w, -1))
	if strings.HasSuffix(w, "e") && !strings.HasSuffix(w, "le") && n > 1 {
		n--
	}
	if n == 0 {
		return 1
	}
	return n
}
