// services/citation_urls.go
package services

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"

	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"golang.org/x/net/publicsuffix"
	"mvdan.cc/xurls/v2"
)

// Image links are never citations
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".svg": true, ".webp": true, ".ico": true,
}

// Documents the scraper cannot turn into markdown
var nonHTMLExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".ppt": true, ".pptx": true,
	".csv": true, ".zip": true, ".gz": true, ".tar": true, ".rar": true, ".7z": true, ".mp3": true,
	".mp4": true, ".mov": true, ".avi": true, ".wav": true, ".exe": true, ".dmg": true, ".json": true, ".xml": true,
}

// Registrable domains of community, review, social and wiki sites
var ugcDomains = map[string]bool{
	"reddit.com":        true,
	"quora.com":         true,
	"youtube.com":       true,
	"youtu.be":          true,
	"medium.com":        true,
	"substack.com":      true,
	"stackoverflow.com": true,
	"stackexchange.com": true,
	"github.com":        true,
	"wikipedia.org":     true,
	"g2.com":            true,
	"capterra.com":      true,
	"trustradius.com":   true,
	"trustpilot.com":    true,
	"getapp.com":        true,
	"producthunt.com":   true,
	"ycombinator.com":   true,
	"twitter.com":       true,
	"x.com":             true,
	"facebook.com":      true,
	"linkedin.com":      true,
	"instagram.com":     true,
	"tiktok.com":        true,
	"pinterest.com":     true,
	"tumblr.com":        true,
	"dev.to":            true,
}

const (
	leadingArtifacts  = "<(\"'`*"
	trailingArtifacts = "])}.,;:*>\"'`!?"
)

// CleanCitationURL strips markdown and punctuation artifacts around a raw URL.
// Closing brackets are kept when they balance an opening one inside the URL.
func CleanCitationURL(raw string) string {
	s := strings.TrimLeft(strings.TrimSpace(raw), leadingArtifacts)
	for len(s) > 0 {
		last := s[len(s)-1]
		if !strings.ContainsRune(trailingArtifacts, rune(last)) {
			break
		}
		if last == ')' && strings.Count(s, "(") >= strings.Count(s, ")") {
			break
		}
		if last == ']' && strings.Count(s, "[") >= strings.Count(s, "]") {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}

// CanonicalizeURL cleans and validates a citation URL and returns its stored form:
// lowercase host without "www.", no utm_ parameters, no fragment, no trailing slash.
func CanonicalizeURL(raw string) (string, error) {
	cleaned := CleanCitationURL(raw)
	u, err := url.Parse(cleaned)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %q: %w", cleaned, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("no hostname found in URL: %s", cleaned)
	}
	if net.ParseIP(host) != nil {
		return "", fmt.Errorf("IP address hosts are not citations: %s", host)
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(host); err != nil {
		return "", fmt.Errorf("failed to get base domain for %s: %w", host, err)
	}

	port := u.Port()
	u.Scheme = scheme
	u.Host = strings.TrimPrefix(host, "www.")
	if port != "" {
		u.Host = net.JoinHostPort(u.Host, port)
	}
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	if u.RawQuery != "" {
		q := u.Query()
		for param := range q {
			if strings.HasPrefix(strings.ToLower(param), "utm_") {
				q.Del(param)
			}
		}
		u.RawQuery = q.Encode()
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// NormalizeURLKey is the comparison key used to match URLs across systems:
// case, scheme, "www." and trailing slash insensitive
func NormalizeURLKey(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimRight(s, "/")
}

// ExtractCitationURLs collects the response's citation URLs, then inline URLs from its text,
// in order of first appearance. Invalid URLs and images are dropped; duplicates collapse.
func ExtractCitationURLs(citations []string, text string) []string {
	var urls []string
	seen := make(map[string]bool)
	add := func(raw string) {
		canonical, err := CanonicalizeURL(raw)
		if err != nil {
			return
		}
		if imageExtensions[urlExtension(canonical)] {
			return
		}
		key := NormalizeURLKey(canonical)
		if seen[key] {
			return
		}
		seen[key] = true
		urls = append(urls, canonical)
	}

	for _, c := range citations {
		add(c)
	}
	for _, match := range xurls.Strict().FindAllString(text, -1) {
		add(match)
	}
	return urls
}

// IsNonHTMLDocument reports whether the URL points at a file type the scraper skips
func IsNonHTMLDocument(rawURL string) bool {
	return nonHTMLExtensions[urlExtension(rawURL)]
}

func urlExtension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}

// getBaseDomain extracts the base domain (eTLD+1) from a URL or bare host
func getBaseDomain(urlStr string) (string, error) {
	if !strings.Contains(urlStr, "://") {
		urlStr = "https://" + urlStr
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %s: %w", urlStr, err)
	}
	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return "", fmt.Errorf("no hostname found in URL: %s", urlStr)
	}
	return publicsuffix.EffectiveTLDPlusOne(hostname)
}

// domainLabel is the registrable label of a base domain, "acme" for "acme.co.uk"
func domainLabel(baseDomain string) string {
	suffix, _ := publicsuffix.PublicSuffix(baseDomain)
	label := strings.TrimSuffix(baseDomain, "."+suffix)
	return strings.ReplaceAll(label, "-", "")
}

// ClassifySource assigns OWNED, COMPETITOR, UGC or EARNED to a citation URL. OWNED wins over
// everything else, then competitor domains, then known community sites.
func ClassifySource(citationURL, subject string, websites, competitors []string) models.SourceType {
	base, err := getBaseDomain(citationURL)
	if err != nil {
		return models.SourceEarned
	}
	label := domainLabel(base)

	for _, site := range websites {
		if siteBase, err := getBaseDomain(site); err == nil && strings.EqualFold(siteBase, base) {
			return models.SourceOwned
		}
	}
	if subjectLabel := compactName(subject); subjectLabel != "" && subjectLabel == label {
		return models.SourceOwned
	}

	for _, competitor := range competitors {
		if NormalizeCompanyName(competitor) == NormalizeCompanyName(subject) {
			continue
		}
		if c := compactName(competitor); c != "" && c == label {
			return models.SourceCompetitor
		}
	}

	if ugcDomains[base] {
		return models.SourceUGC
	}
	return models.SourceEarned
}
