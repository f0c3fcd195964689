package analysis

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/lazymail/phish-analyzer/internal/core"
)

// Elements removed wholesale (with their content) before text extraction.
var dangerousElements = map[string]bool{
	"script": true,
	"iframe": true,
	"form":   true,
	"object": true,
	"embed":  true,
}

var (
	hiddenStylePattern = regexp.MustCompile(`(?i)display:\s*none|visibility:\s*hidden`)
	blankRunPattern    = regexp.MustCompile(`\n\s*\n`)
	spaceRunPattern    = regexp.MustCompile(` +`)
)

// safeHTMLPolicy renders a defanged copy of the HTML body for downstream
// display. Scripts, frames and forms never survive it.
var safeHTMLPolicy = newSafeHTMLPolicy()

func newSafeHTMLPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("table", "thead", "tbody", "tr", "th", "td")
	p.AllowAttrs("alt", "title", "width", "height").OnElements("img")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)
	return p
}

// NormalizeHTML computes structural risk evidence for an HTML body and
// extracts its sanitized plain text. Counts and flags describe the
// document as received; CleanText and SafeHTML describe it after the
// dangerous elements are stripped. A structural parse failure falls back
// to treating the raw HTML as plain text.
func NormalizeHTML(rawHTML string) core.HTMLEvidence {
	if rawHTML == "" {
		return core.HTMLEvidence{}
	}

	evidence := core.HTMLEvidence{HTMLLength: len(rawHTML)}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		evidence.CleanText = rawHTML
		evidence.TextLength = len(rawHTML)
		evidence.HTMLToTextRatio = 1.0
		return evidence
	}

	countElements(doc, &evidence)
	evidence.HasJavascript = evidence.ScriptCount > 0
	evidence.HasIframes = evidence.IframeCount > 0
	evidence.HasForms = evidence.FormCount > 0

	removeDangerousElements(doc)

	evidence.CleanText = extractText(doc)
	evidence.TextLength = len(evidence.CleanText)
	if evidence.HTMLLength > 0 {
		evidence.HTMLToTextRatio = float64(evidence.TextLength) / float64(evidence.HTMLLength)
	}

	evidence.SafeHTML = safeHTMLPolicy.Sanitize(rawHTML)
	evidence.RiskScore = htmlRiskScore(evidence)

	return evidence
}

func countElements(n *html.Node, evidence *core.HTMLEvidence) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "a":
			evidence.LinkCount++
		case "img":
			evidence.ImageCount++
		case "script":
			evidence.ScriptCount++
		case "iframe":
			evidence.IframeCount++
		case "form":
			evidence.FormCount++
		}
		for _, attr := range n.Attr {
			if attr.Key == "style" && hiddenStylePattern.MatchString(attr.Val) {
				evidence.HiddenElementCount++
				break
			}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		countElements(child, evidence)
	}
}

func removeDangerousElements(n *html.Node) {
	var doomed []*html.Node
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && dangerousElements[child.Data] {
			doomed = append(doomed, child)
			continue
		}
		removeDangerousElements(child)
	}
	for _, node := range doomed {
		n.RemoveChild(node)
	}
}

// extractText joins the document's text nodes with newlines, then
// collapses runs of blank lines and runs of spaces.
func extractText(doc *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	text := strings.Join(parts, "\n")
	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	text = spaceRunPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func htmlRiskScore(evidence core.HTMLEvidence) float64 {
	score := 0.0

	if evidence.HasJavascript {
		score += 20
	}
	if evidence.HasIframes {
		score += 20
	}
	if evidence.HasForms {
		score += 15
	}

	if evidence.HiddenElementCount > 0 {
		hidden := float64(evidence.HiddenElementCount) * 3
		if hidden > 15 {
			hidden = 15
		}
		score += hidden
	}

	if evidence.HTMLToTextRatio < 0.1 {
		score += 15
	} else if evidence.HTMLToTextRatio < 0.2 {
		score += 10
	}

	switch {
	case evidence.LinkCount > 20:
		score += 15
	case evidence.LinkCount > 10:
		score += 10
	case evidence.LinkCount > 5:
		score += 5
	}

	if score > 100 {
		score = 100
	}
	return score
}
