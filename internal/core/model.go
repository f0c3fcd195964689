package core

import (
	"strings"
	"time"
)

// AuthResult is the outcome of an SPF/DKIM/DMARC check.
type AuthResult string

const (
	AuthPass     AuthResult = "pass"
	AuthFail     AuthResult = "fail"
	AuthSoftfail AuthResult = "softfail"
	AuthNeutral  AuthResult = "neutral"
	AuthNone     AuthResult = "none"
	AuthUnknown  AuthResult = "unknown"
)

// Classification buckets for the final verdict.
const (
	ClassPhishing     = "phishing"
	ClassSpam         = "spam"
	ClassSuspicious   = "suspicious"
	ClassQuestionable = "questionable"
	ClassLegitimate   = "legitimate"
)

// Recommended handling actions, keyed by classification.
const (
	ActionQuarantine = "quarantine"
	ActionFlag       = "flag"
	ActionWarn       = "warn"
	ActionDeliver    = "deliver"
	ActionReview     = "review"
)

// DecodedMessage is the structured form of one raw email message.
// It is built once per analysis and not mutated afterwards.
type DecodedMessage struct {
	MessageID  string              `json:"message_id"`
	Subject    string              `json:"subject"`
	Sender     string              `json:"sender"`
	Recipients []string            `json:"recipients"`
	Cc         []string            `json:"cc"`
	ReplyTo    string              `json:"reply_to"`
	Date       string              `json:"date"`
	BodyText   string              `json:"body_text"`
	BodyHTML   string              `json:"body_html"`
	Headers    map[string][]string `json:"headers"`

	// Attachment decoding is out of scope; these stay at their zero
	// values until a decoder extension fills them in.
	HasAttachments  bool `json:"has_attachments"`
	AttachmentCount int  `json:"attachment_count"`
}

// GetHeader returns the first value of the named header, case-insensitively,
// or def when the header is absent.
func (m *DecodedMessage) GetHeader(name string, def string) string {
	values := m.GetHeaderValues(name)
	if len(values) == 0 {
		return def
	}
	return values[0]
}

// GetHeaderValues returns every value recorded for the named header,
// case-insensitively, preserving original order.
func (m *DecodedMessage) GetHeaderValues(name string) []string {
	if values, ok := m.Headers[name]; ok {
		return values
	}
	for key, values := range m.Headers {
		if strings.EqualFold(key, name) {
			return values
		}
	}
	return nil
}

// HeaderEvidence is the authentication and sender-identity layer.
type HeaderEvidence struct {
	SPFResult           AuthResult `json:"spf"`
	DKIMResult          AuthResult `json:"dkim"`
	DMARCResult         AuthResult `json:"dmarc"`
	DisplayName         string     `json:"display_name"`
	SenderEmail         string     `json:"sender_email"`
	SenderDomain        string     `json:"sender_domain"`
	DisplayNameMismatch bool       `json:"display_name_mismatch"`
	ReplyToAddress      string     `json:"reply_to_address"`
	ReplyToMismatch     bool       `json:"reply_to_mismatch"`
	ReceivedHops        int        `json:"received_hops"`
	HasAnomalies        bool       `json:"has_anomalies"`
	RiskScore           float64    `json:"risk_score"`
}

// URLRecord is the analysis of one unique URL found in the message.
type URLRecord struct {
	URL              string `json:"url"`
	Scheme           string `json:"scheme"`
	Domain           string `json:"domain"`
	Path             string `json:"path"`
	Subdomain        string `json:"subdomain"`
	RegisteredDomain string `json:"registered_domain"`
	TLD              string `json:"tld"`
	IsShortener      bool   `json:"is_shortener"`
	IsSuspiciousTLD  bool   `json:"is_suspicious_tld"`
	HasIPAddress     bool   `json:"has_ip_address"`
	HasHomograph     bool   `json:"has_homograph"`
	URLLength        int    `json:"url_length"`
	SubdomainCount   int    `json:"subdomain_count"`
}

// IsSuspicious reports whether any threat indicator fires for this URL.
func (u URLRecord) IsSuspicious() bool {
	return u.IsShortener ||
		u.IsSuspiciousTLD ||
		u.HasIPAddress ||
		u.HasHomograph ||
		u.URLLength > 100 ||
		u.SubdomainCount > 3
}

// URLEvidence is the aggregate URL threat layer.
type URLEvidence struct {
	URLs               []URLRecord `json:"urls"`
	URLCount           int         `json:"url_count"`
	UniqueDomains      int         `json:"unique_domains"`
	SuspiciousURLCount int         `json:"suspicious_url_count"`
	HasShorteners      bool        `json:"has_url_shorteners"`
	HasIPURLs          bool        `json:"has_ip_urls"`
	HasHomographs      bool        `json:"has_homographs"`
}

// HTMLEvidence is the structural risk layer for the HTML body. Element
// counts reflect the document before dangerous elements were stripped;
// CleanText and SafeHTML reflect the document after.
type HTMLEvidence struct {
	LinkCount          int     `json:"link_count"`
	ImageCount         int     `json:"image_count"`
	ScriptCount        int     `json:"script_count"`
	IframeCount        int     `json:"iframe_count"`
	FormCount          int     `json:"form_count"`
	HasJavascript      bool    `json:"has_javascript"`
	HasIframes         bool    `json:"has_iframes"`
	HasForms           bool    `json:"has_forms"`
	HiddenElementCount int     `json:"hidden_element_count"`
	HTMLLength         int     `json:"html_length"`
	TextLength         int     `json:"text_length"`
	HTMLToTextRatio    float64 `json:"html_to_text_ratio"`
	RiskScore          float64 `json:"risk_score"`
	CleanText          string  `json:"clean_text"`
	SafeHTML           string  `json:"safe_html"`
}

// ReputationSymbol is one rule the reputation engine reported as triggered.
type ReputationSymbol struct {
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

// ReputationResult is the external engine's opinion. It is always
// populated; transport failures yield IsAvailable=false with a zeroed
// score rather than an error.
type ReputationResult struct {
	Score          float64            `json:"score"`
	RequiredScore  float64            `json:"required_score"`
	Action         string             `json:"action"`
	Classification string             `json:"classification"`
	Symbols        []ReputationSymbol `json:"symbols"`
	IsSpam         bool               `json:"is_spam"`
	IsAvailable    bool               `json:"is_available"`
	Error          string             `json:"error,omitempty"`
}

// Verdict is the combined, explainable outcome for one message.
type Verdict struct {
	Classification    string  `json:"classification"`
	CombinedRiskScore float64 `json:"combined_risk_score"`
	Confidence        float64 `json:"confidence"`
	IsPhishing        bool    `json:"is_phishing"`
	RecommendedAction string  `json:"recommended_action"`
}

// MessageSummary is the subset of DecodedMessage exposed to collaborators.
type MessageSummary struct {
	MessageID  string   `json:"message_id"`
	Subject    string   `json:"subject"`
	Sender     string   `json:"sender"`
	Recipients []string `json:"recipients"`
	Date       string   `json:"date"`
}

// AnalysisReport bundles the verdict with every intermediate evidence
// layer so storage and API collaborators can explain the outcome. URL
// details and reputation symbols are capped for transport.
type AnalysisReport struct {
	Message    MessageSummary   `json:"message"`
	Header     HeaderEvidence   `json:"header"`
	URLs       URLEvidence      `json:"urls"`
	HTML       HTMLEvidence     `json:"html"`
	Reputation ReputationResult `json:"reputation"`
	Verdict    Verdict          `json:"verdict"`
	AnalyzedAt time.Time        `json:"analyzed_at"`
}

// ReportSummary is a listing row for stored reports.
type ReportSummary struct {
	ID             string    `json:"id"`
	MessageID      string    `json:"message_id"`
	Sender         string    `json:"sender"`
	Subject        string    `json:"subject"`
	Classification string    `json:"classification"`
	RiskScore      float64   `json:"risk_score"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}
