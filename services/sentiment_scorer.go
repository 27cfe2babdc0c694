// services/sentiment_scorer.go
package services

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	sentimentWindowRadius = 200
	conclusionMultiplier  = 1.3
	comparisonMultiplier  = 1.2
	tailMultiplier        = 1.2
	tailStart             = 0.7
)

type sentimentFamily struct {
	name    string
	weight  float64
	pattern *regexp.Regexp
}

var sentimentFamilies = []sentimentFamily{
	{"strong_positive", 1.0, regexp.MustCompile(`(?i)\b(excellent|outstanding|exceptional|best[- ]in[- ]class|industry[- ]leading|top choice|highly recommended|standout|impressive|superb|the best)\b`)},
	{"technical_praise", 0.8, regexp.MustCompile(`(?i)\b(robust|scalable|reliable|powerful|comprehensive|intuitive|seamless|secure|efficient|flexible|advanced|innovative|user[- ]friendly|feature[- ]rich)\b`)},
	{"market_position", 0.6, regexp.MustCompile(`(?i)\b(market leader|leading|popular|widely used|trusted|well[- ]established|well[- ]known|dominant|top[- ]rated|pioneer|award[- ]winning)\b`)},
	{"comparative", 0.7, regexp.MustCompile(`(?i)\b(better than|outperforms?|ahead of|stronger than|edge over|superior to|surpass(?:es)?|stands out)\b`)},
	{"strong_negative", -1.0, regexp.MustCompile(`(?i)\b(terrible|awful|poor|worst|unreliable|avoid|scam|disappointing|buggy|insecure|outdated|unusable)\b`)},
	{"negative", -0.7, regexp.MustCompile(`(?i)\b(expensive|limited|lacks?|lacking|difficult|slow|issues?|concerns?|drawbacks?|downsides?|weaker|worse than|falls short|clunky|steep learning curve)\b`)},
}

var (
	conclusionPhraseRe  = regexp.MustCompile(`(?i)\b(in conclusion|to conclude|overall|in summary|to summarize|bottom line|final thoughts|ultimately|verdict)\b`)
	conclusionHeadingRe = regexp.MustCompile(`(?im)^\s*(?:#{1,6}\s*|\*\*)\s*(conclusion|summary|verdict|bottom line|final thoughts|recommendation)`)
	numberedLineRe      = regexp.MustCompile(`^\s*(\d+)\s*[.)]\s`)
)

// SentimentScorer computes a bounded sentiment for the subject company from lexical patterns
type SentimentScorer struct{}

func NewSentimentScorer() *SentimentScorer {
	return &SentimentScorer{}
}

// Score returns a value in [-1,1], or nil when subject is never mentioned
func (s *SentimentScorer) Score(text, subject string) *float64 {
	matcher := newCompanyMatcher(subject, true)
	if matcher == nil || text == "" {
		return nil
	}
	mentions := matcher.AllIndexes(text)
	if len(mentions) == 0 {
		return nil
	}

	conclusionStart := -1
	if loc := conclusionHeadingRe.FindStringIndex(text); loc != nil {
		conclusionStart = loc[0]
	}

	total := 0.0
	for _, span := range mentions {
		start, end := mentionWindow(text, span[0], span[1], sentimentWindowRadius)
		window := text[start:end]

		score := 0.0
		for _, family := range sentimentFamilies {
			score += float64(len(family.pattern.FindAllStringIndex(window, -1))) * family.weight
		}

		if (conclusionStart >= 0 && span[0] >= conclusionStart) || conclusionPhraseRe.MatchString(window) {
			score *= conclusionMultiplier
		}
		if comparisonRe.MatchString(window) {
			score *= comparisonMultiplier
		}
		if float64(span[0]) >= tailStart*float64(len(text)) {
			score *= tailMultiplier
		}

		score += rankAdjustment(text, span[0])
		total += score
	}

	result := clamp(total/float64(len(mentions)), -1, 1)
	return &result
}

// rankAdjustment rewards or penalises a mention that sits on a numbered list line
func rankAdjustment(text string, pos int) float64 {
	lineStart := strings.LastIndex(text[:pos], "\n") + 1
	m := numberedLineRe.FindStringSubmatch(text[lineStart:])
	if m == nil {
		return 0
	}
	rank, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	switch rank {
	case 1:
		return 0.3
	case 2:
		return 0.1
	case 3:
		return -0.1
	default:
		return -0.2
	}
}

// mentionWindow returns byte bounds of a window centered on [start,end), snapped to rune starts
func mentionWindow(text string, start, end, radius int) (int, int) {
	from := start - radius
	if from < 0 {
		from = 0
	}
	to := end + radius
	if to > len(text) {
		to = len(text)
	}
	for from > 0 && !isRuneStart(text[from]) {
		from--
	}
	for to < len(text) && !isRuneStart(text[to]) {
		to++
	}
	return from, to
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
