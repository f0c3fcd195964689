package analysis

import (
	"net/mail"
	"strings"

	"github.com/lazymail/phish-analyzer/internal/core"
)

// AnalyzeHeaders evaluates authentication posture and sender-identity
// anomalies. It is total: missing headers yield unknown/none results and
// zero points, never an error.
func AnalyzeHeaders(msg *core.DecodedMessage) core.HeaderEvidence {
	evidence := core.HeaderEvidence{
		SPFResult:   checkSPF(msg),
		DKIMResult:  checkDKIM(msg),
		DMARCResult: checkDMARC(msg),
	}

	fromHeader := msg.GetHeader("From", "")
	displayName, senderEmail := splitAddress(fromHeader)
	evidence.DisplayName = displayName
	evidence.SenderEmail = senderEmail
	if at := strings.LastIndex(senderEmail, "@"); at >= 0 {
		evidence.SenderDomain = senderEmail[at+1:]
	}

	// A display name that embeds its own address is a classic spoof: the
	// visible address need not match the envelope one.
	evidence.DisplayNameMismatch = displayName != "" && strings.Contains(displayName, "@")

	_, replyToEmail := splitAddress(msg.GetHeader("Reply-To", ""))
	evidence.ReplyToAddress = replyToEmail
	evidence.ReplyToMismatch = replyToEmail != "" && replyToEmail != senderEmail

	evidence.ReceivedHops = countReceivedHops(msg)

	evidence.HasAnomalies = evidence.SPFResult == core.AuthFail ||
		evidence.DKIMResult == core.AuthFail ||
		evidence.DMARCResult == core.AuthFail ||
		evidence.DisplayNameMismatch ||
		evidence.ReplyToMismatch

	evidence.RiskScore = headerRiskScore(evidence)

	return evidence
}

// checkSPF scans the Received-SPF value for result tokens. Token order
// matters: "softfail" contains "fail", so a bare softfail header reports
// fail and earns the higher point value.
func checkSPF(msg *core.DecodedMessage) core.AuthResult {
	header := strings.ToLower(msg.GetHeader("Received-SPF", ""))
	switch {
	case strings.Contains(header, "pass"):
		return core.AuthPass
	case strings.Contains(header, "fail"):
		return core.AuthFail
	case strings.Contains(header, "softfail"):
		return core.AuthSoftfail
	case strings.Contains(header, "neutral"):
		return core.AuthNeutral
	case strings.Contains(header, "none"):
		return core.AuthNone
	default:
		return core.AuthUnknown
	}
}

func checkDKIM(msg *core.DecodedMessage) core.AuthResult {
	authResults := strings.ToLower(msg.GetHeader("Authentication-Results", ""))
	switch {
	case strings.Contains(authResults, "dkim=pass"):
		return core.AuthPass
	case strings.Contains(authResults, "dkim=fail"):
		return core.AuthFail
	case strings.Contains(authResults, "dkim=none"):
		return core.AuthNone
	case msg.GetHeader("DKIM-Signature", "") == "":
		return core.AuthNone
	default:
		return core.AuthUnknown
	}
}

func checkDMARC(msg *core.DecodedMessage) core.AuthResult {
	authResults := strings.ToLower(msg.GetHeader("Authentication-Results", ""))
	switch {
	case strings.Contains(authResults, "dmarc=pass"):
		return core.AuthPass
	case strings.Contains(authResults, "dmarc=fail"):
		return core.AuthFail
	case strings.Contains(authResults, "dmarc=none"):
		return core.AuthNone
	default:
		return core.AuthUnknown
	}
}

// splitAddress separates a From-style header into display name and bare
// address. Unparseable headers degrade to an empty name with the raw value
// trimmed of angle brackets.
func splitAddress(header string) (name, email string) {
	if header == "" {
		return "", ""
	}
	addr, err := mail.ParseAddress(header)
	if err != nil {
		// Best effort: pull whatever sits inside angle brackets, or the
		// raw value when there are none.
		if open := strings.LastIndex(header, "<"); open >= 0 {
			if end := strings.Index(header[open:], ">"); end > 0 {
				return strings.TrimSpace(header[:open]), header[open+1 : open+end]
			}
		}
		return "", strings.TrimSpace(header)
	}
	return addr.Name, addr.Address
}

// countReceivedHops counts Received header instances; a single folded
// value counts one hop per embedded newline plus one.
func countReceivedHops(msg *core.DecodedMessage) int {
	values := msg.GetHeaderValues("Received")
	switch {
	case len(values) > 1:
		return len(values)
	case len(values) == 1 && values[0] != "":
		return strings.Count(values[0], "\n") + 1
	default:
		return 0
	}
}

func headerRiskScore(evidence core.HeaderEvidence) float64 {
	score := 0.0

	switch evidence.SPFResult {
	case core.AuthFail:
		score += 25
	case core.AuthSoftfail:
		score += 15
	case core.AuthNeutral, core.AuthNone:
		score += 10
	}

	switch evidence.DKIMResult {
	case core.AuthFail:
		score += 25
	case core.AuthNone:
		score += 15
	}

	switch evidence.DMARCResult {
	case core.AuthFail:
		score += 25
	case core.AuthNone:
		score += 10
	}

	if evidence.DisplayNameMismatch {
		score += 15
	}
	if evidence.ReplyToMismatch {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}
