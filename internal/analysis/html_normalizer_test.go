package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lazymail/phish-analyzer/internal/core"
)

func TestNormalizeHTMLEmptyInput(t *testing.T) {
	evidence := NormalizeHTML("")

	assert.Equal(t, core.HTMLEvidence{}, evidence)
}

func TestNormalizeHTMLCountsBeforeStripping(t *testing.T) {
	// The script and iframe must be counted even though they are removed
	// before text extraction.
	rawHTML := `<html><body>
		<script>document.location='http://evil.example';</script>
		<iframe src="http://evil.example/frame"></iframe>
		<form action="http://evil.example/submit"><input name="password"></form>
		<a href="http://example.com/1">one</a>
		<img src="logo.png">
		<p>Dear customer, your account needs verification.</p>
	</body></html>`

	evidence := NormalizeHTML(rawHTML)

	assert.Equal(t, 1, evidence.ScriptCount)
	assert.Equal(t, 1, evidence.IframeCount)
	assert.Equal(t, 1, evidence.FormCount)
	assert.Equal(t, 1, evidence.LinkCount)
	assert.Equal(t, 1, evidence.ImageCount)
	assert.True(t, evidence.HasJavascript)
	assert.True(t, evidence.HasIframes)
	assert.True(t, evidence.HasForms)

	// Stripped content must not leak into the extracted text.
	assert.NotContains(t, evidence.CleanText, "document.location")
	assert.Contains(t, evidence.CleanText, "Dear customer, your account needs verification.")

	// js 20 + iframe 20 + form 15 at minimum
	assert.GreaterOrEqual(t, evidence.RiskScore, 55.0)
	assert.LessOrEqual(t, evidence.RiskScore, 100.0)
}

func TestNormalizeHTMLHiddenElements(t *testing.T) {
	rawHTML := `<html><body>
		<div style="display:none">hidden one</div>
		<div style="DISPLAY: NONE">hidden two</div>
		<span style="visibility: hidden">hidden three</span>
		<p>visible paragraph that makes up most of this tiny document body</p>
	</body></html>`

	evidence := NormalizeHTML(rawHTML)

	assert.Equal(t, 3, evidence.HiddenElementCount)
	assert.False(t, evidence.HasJavascript)
}

func TestHTMLRiskScoreComponents(t *testing.T) {
	cases := []struct {
		name     string
		evidence core.HTMLEvidence
		want     float64
	}{
		{
			name:     "clean document",
			evidence: core.HTMLEvidence{HTMLToTextRatio: 0.5},
			want:     0,
		},
		{
			name:     "javascript only",
			evidence: core.HTMLEvidence{HasJavascript: true, HTMLToTextRatio: 0.5},
			want:     20,
		},
		{
			name:     "hidden elements capped at 15",
			evidence: core.HTMLEvidence{HiddenElementCount: 10, HTMLToTextRatio: 0.5},
			want:     15,
		},
		{
			name:     "very low text ratio",
			evidence: core.HTMLEvidence{HTMLToTextRatio: 0.05},
			want:     15,
		},
		{
			name:     "moderately low text ratio",
			evidence: core.HTMLEvidence{HTMLToTextRatio: 0.15},
			want:     10,
		},
		{
			name:     "many links",
			evidence: core.HTMLEvidence{LinkCount: 25, HTMLToTextRatio: 0.5},
			want:     15,
		},
		{
			name:     "some links",
			evidence: core.HTMLEvidence{LinkCount: 7, HTMLToTextRatio: 0.5},
			want:     5,
		},
		{
			name: "everything fires, capped at 100",
			evidence: core.HTMLEvidence{
				HasJavascript:      true,
				HasIframes:         true,
				HasForms:           true,
				HiddenElementCount: 20,
				HTMLToTextRatio:    0.01,
				LinkCount:          50,
			},
			want: 100,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, htmlRiskScore(tc.evidence))
		})
	}
}

func TestNormalizeHTMLSafeHTMLStripsScripts(t *testing.T) {
	rawHTML := `<p>Hello</p><script>alert(1)</script><iframe src="x"></iframe><a href="javascript:alert(1)">x</a>`

	evidence := NormalizeHTML(rawHTML)

	assert.NotContains(t, evidence.SafeHTML, "<script")
	assert.NotContains(t, evidence.SafeHTML, "<iframe")
	assert.NotContains(t, evidence.SafeHTML, "javascript:")
	assert.Contains(t, evidence.SafeHTML, "Hello")
}

func TestNormalizeHTMLTextExtraction(t *testing.T) {
	rawHTML := `<html><body><p>line one</p>

		<p>line    two</p></body></html>`

	evidence := NormalizeHTML(rawHTML)

	assert.Contains(t, evidence.CleanText, "line one")
	assert.Contains(t, evidence.CleanText, "line two")
	assert.NotContains(t, evidence.CleanText, "    ")
	assert.Equal(t, len(evidence.CleanText), evidence.TextLength)
	assert.Equal(t, len(rawHTML), evidence.HTMLLength)
}

func TestNormalizeHTMLRatio(t *testing.T) {
	text := strings.Repeat("word ", 50)
	rawHTML := "<p>" + text + "</p>"

	evidence := NormalizeHTML(rawHTML)

	assert.Greater(t, evidence.HTMLToTextRatio, 0.9)
}
