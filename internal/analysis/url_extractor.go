package analysis

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/lazymail/phish-analyzer/internal/core"
)

// Hosts of well-known URL shortening services.
var urlShorteners = map[string]bool{
	"bit.ly":      true,
	"tinyurl.com": true,
	"goo.gl":      true,
	"t.co":        true,
	"ow.ly":       true,
	"is.gd":       true,
	"buff.ly":     true,
	"adf.ly":      true,
	"short.to":    true,
	"tiny.cc":     true,
}

// TLDs disproportionately abused in phishing campaigns.
var suspiciousTLDs = map[string]bool{
	"tk": true, "ml": true, "ga": true, "cf": true, "gq": true,
	"xyz": true, "top": true, "club": true, "work": true, "click": true,
	"link": true, "download": true, "bid": true, "loan": true,
}

// Latin-lookalike code points (Cyrillic and accented variants) that stand
// in for ASCII a,e,i,o,p,c,y,x in IDN homograph attacks.
var homoglyphRunes = map[rune]bool{
	'а': true, 'ạ': true, 'ả': true, 'ã': true, 'ā': true, 'ă': true,
	'е': true, 'ë': true, 'é': true, 'è': true, 'ê': true, 'ē': true,
	'і': true, 'í': true, 'ì': true, 'î': true, 'ï': true, 'ī': true,
	'о': true, 'ó': true, 'ò': true, 'ô': true, 'ö': true, 'ō': true,
	'р': true, 'с': true, 'у': true, 'х': true,
}

var (
	urlPattern  = regexp.MustCompile("(?i)https?://[^\\s<>\"{}|\\\\^`\\[\\]]+")
	wwwPattern  = regexp.MustCompile("(?i)www\\.[^\\s<>\"{}|\\\\^`\\[\\]]+")
	hrefPattern = regexp.MustCompile(`(?i)href=["'](https?://[^"']+)["']`)
	ipv4Pattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
)

// ExtractURLs finds candidate URLs in the plain-text and HTML bodies,
// deduplicates them by exact string, and analyzes each for threat
// indicators. Unparseable candidates are skipped, never fatal.
func ExtractURLs(text, html string) core.URLEvidence {
	candidates := make(map[string]bool)

	if text != "" {
		for _, match := range urlPattern.FindAllString(text, -1) {
			candidates[match] = true
		}
		for _, match := range wwwPattern.FindAllString(text, -1) {
			candidates["http://"+match] = true
		}
	}
	if html != "" {
		for _, match := range hrefPattern.FindAllStringSubmatch(html, -1) {
			candidates[match[1]] = true
		}
	}

	// Candidate sets are unordered; sort so the same message always
	// produces the same record list.
	sorted := make([]string, 0, len(candidates))
	for candidate := range candidates {
		sorted = append(sorted, candidate)
	}
	sort.Strings(sorted)

	evidence := core.URLEvidence{}
	domains := make(map[string]bool)
	for _, candidate := range sorted {
		record, ok := analyzeURL(candidate)
		if !ok {
			continue
		}
		evidence.URLs = append(evidence.URLs, record)
		domains[record.Domain] = true
		if record.IsSuspicious() {
			evidence.SuspiciousURLCount++
		}
		evidence.HasShorteners = evidence.HasShorteners || record.IsShortener
		evidence.HasIPURLs = evidence.HasIPURLs || record.HasIPAddress
		evidence.HasHomographs = evidence.HasHomographs || record.HasHomograph
	}

	evidence.URLCount = len(evidence.URLs)
	evidence.UniqueDomains = len(domains)
	return evidence
}

func analyzeURL(rawURL string) (core.URLRecord, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return core.URLRecord{}, false
	}

	host := parsed.Host
	hostname := strings.ToLower(parsed.Hostname())

	record := core.URLRecord{
		URL:          rawURL,
		Scheme:       parsed.Scheme,
		Domain:       host,
		Path:         parsed.Path,
		IsShortener:  urlShorteners[strings.ToLower(host)],
		HasIPAddress: ipv4Pattern.MatchString(strings.SplitN(host, ":", 2)[0]),
		HasHomograph: hasHomograph(host),
		URLLength:    len(rawURL),
	}

	record.Subdomain, record.RegisteredDomain, record.TLD = splitHost(hostname, record.HasIPAddress)
	record.IsSuspiciousTLD = suspiciousTLDs[record.TLD]
	if record.Subdomain != "" {
		record.SubdomainCount = len(strings.Split(record.Subdomain, "."))
	}

	return record, true
}

// splitHost separates a hostname into subdomain, registered domain and
// public suffix. IP-literal hosts and hosts that are themselves a public
// suffix fall back to the bare host with an empty suffix.
func splitHost(hostname string, isIP bool) (subdomain, registered, tld string) {
	if isIP || hostname == "" {
		return "", hostname, ""
	}

	etldPlusOne, err := publicsuffix.EffectiveTLDPlusOne(hostname)
	if err != nil {
		return "", hostname, ""
	}

	suffix, _ := publicsuffix.PublicSuffix(hostname)
	if rest, found := strings.CutSuffix(hostname, "."+etldPlusOne); found {
		subdomain = rest
	}
	return subdomain, etldPlusOne, suffix
}

func hasHomograph(host string) bool {
	for _, r := range host {
		if homoglyphRunes[r] {
			return true
		}
	}
	return false
}
