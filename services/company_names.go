// services/company_names.go
package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var legalSuffixes = map[string]bool{
	"inc":          true,
	"incorporated": true,
	"ltd":          true,
	"llc":          true,
	"corp":         true,
	"corporation":  true,
	"limited":      true,
	"co":           true,
	"plc":          true,
	"gmbh":         true,
}

// NormalizeCompanyName lowercases, drops punctuation, strips trailing legal suffixes and
// collapses whitespace. "Acme, Inc." and "ACME inc" both normalize to "acme".
func NormalizeCompanyName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, name)

	tokens := strings.Fields(cleaned)
	end := len(tokens)
	for end > 1 && legalSuffixes[tokens[end-1]] {
		end--
	}
	return strings.Join(tokens[:end], " ")
}

// compactName is the normalized name without spaces, used against domain labels
func compactName(name string) string {
	return strings.ReplaceAll(NormalizeCompanyName(name), " ", "")
}

// companyMatcher finds one canonical company name inside free text
type companyMatcher struct {
	Canonical  string
	Normalized string
	IsSubject  bool
	pattern    *regexp.Regexp
}

func newCompanyMatcher(name string, isSubject bool) *companyMatcher {
	normalized := NormalizeCompanyName(name)
	if normalized == "" {
		return nil
	}
	tokens := strings.Fields(normalized)
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	expr := `(?i)` + strings.Join(quoted, `[^\p{L}\p{N}]*`)
	return &companyMatcher{
		Canonical:  strings.TrimSpace(name),
		Normalized: normalized,
		IsSubject:  isSubject,
		pattern:    regexp.MustCompile(expr),
	}
}

// FirstIndex returns the byte offset of the first mention in text, or -1
func (m *companyMatcher) FirstIndex(text string) int {
	spans := m.mentions(text, 1)
	if len(spans) == 0 {
		return -1
	}
	return spans[0][0]
}

// AllIndexes returns every [start,end) mention span in text
func (m *companyMatcher) AllIndexes(text string) [][]int {
	return m.mentions(text, -1)
}

// mentions returns up to limit spans (all when limit < 0) that are not glued to a letter or
// digit on either side. regexp's \b is ASCII-only, so the boundary is checked on runes.
func (m *companyMatcher) mentions(text string, limit int) [][]int {
	var spans [][]int
	for offset := 0; offset < len(text) && (limit < 0 || len(spans) < limit); {
		loc := m.pattern.FindStringIndex(text[offset:])
		if loc == nil {
			break
		}
		start, end := offset+loc[0], offset+loc[1]
		if end > start && isNameBoundary(text, start, end) {
			spans = append(spans, []int{start, end})
			offset = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return spans
}

func isNameBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// companySet is the closed list of subject plus competitors, subject first, deduplicated
type companySet struct {
	matchers []*companyMatcher
}

func newCompanySet(subject string, competitors []string) *companySet {
	set := &companySet{}
	seen := make(map[string]bool)
	add := func(name string, isSubject bool) {
		m := newCompanyMatcher(name, isSubject)
		if m == nil || seen[m.Normalized] {
			return
		}
		seen[m.Normalized] = true
		set.matchers = append(set.matchers, m)
	}
	add(subject, true)
	for _, c := range competitors {
		add(c, false)
	}
	return set
}

// Names returns the canonical names in list order
func (s *companySet) Names() []string {
	names := make([]string, len(s.matchers))
	for i, m := range s.matchers {
		names[i] = m.Canonical
	}
	return names
}

// Resolve maps a free-form candidate name to a canonical name. Exact normalized equality wins,
// then whole-word containment in either direction.
func (s *companySet) Resolve(candidate string) (string, bool) {
	norm := NormalizeCompanyName(candidate)
	if norm == "" {
		return "", false
	}
	for _, m := range s.matchers {
		if m.Normalized == norm {
			return m.Canonical, true
		}
	}
	padded := " " + norm + " "
	for _, m := range s.matchers {
		if strings.Contains(padded, " "+m.Normalized+" ") || strings.Contains(" "+m.Normalized+" ", padded) {
			return m.Canonical, true
		}
	}
	return "", false
}

// OrderOfAppearance returns the canonical names found in text, ordered by first mention
func (s *companySet) OrderOfAppearance(text string) []string {
	type hit struct {
		name string
		pos  int
	}
	var hits []hit
	for _, m := range s.matchers {
		if pos := m.FirstIndex(text); pos >= 0 {
			hits = append(hits, hit{m.Canonical, pos})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	names := make([]string, len(hits))
	for i, h := range hits {
		names[i] = h.name
	}
	return names
}

var rankLineRe = regexp.MustCompile(`^\s*\d+\s*[.)]\s*(.+?)\s*$`)

// RenderRankList renders names as "1. A\n2. B"
func RenderRankList(names []string) string {
	lines := make([]string, len(names))
	for i, n := range names {
		lines[i] = fmt.Sprintf("%d. %s", i+1, n)
	}
	return strings.Join(lines, "\n")
}

// ParseRankList reads a numbered list back into names, ignoring unnumbered lines
func ParseRankList(rankList string) []string {
	var names []string
	for _, line := range strings.Split(rankList, "\n") {
		m := rankLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.Trim(m[1], "*_` ")
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// RankingPosition is the 1-based index of subject within names, compared on normalized form
func RankingPosition(names []string, subject string) *int {
	target := NormalizeCompanyName(subject)
	if target == "" {
		return nil
	}
	for i, n := range names {
		if NormalizeCompanyName(n) == target {
			pos := i + 1
			return &pos
		}
	}
	return nil
}

// uniqueNames drops repeated names (by normalized form), keeping the first occurrence
func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		key := NormalizeCompanyName(n)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}
