package analysis

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lazymail/phish-analyzer/internal/core"
)

// Combination weights and caps for merging the evidence layers.
const (
	headerWeight       = 0.4
	htmlWeight         = 0.3
	urlPointsPerHit    = 10.0
	urlComponentCap    = 30.0
	reputationScale    = 15.0
	reputationCap      = 40.0
	confidenceFull     = 95.0
	confidenceDegraded = 75.0
)

// Analyzer runs the full detection pipeline over one raw message and
// combines the evidence layers into a verdict.
type Analyzer struct {
	reputation        core.ReputationClient
	logger            *zap.Logger
	reputationTimeout time.Duration
}

// NewAnalyzer creates an analyzer. The reputation client is injected so
// tests can substitute a deterministic fake.
func NewAnalyzer(reputation core.ReputationClient, logger *zap.Logger, reputationTimeout time.Duration) *Analyzer {
	return &Analyzer{
		reputation:        reputation,
		logger:            logger,
		reputationTimeout: reputationTimeout,
	}
}

// Analyze decodes the message and gathers the header, URL and HTML layers
// concurrently with the reputation call. Only a total decode failure is
// fatal; an unreachable reputation engine degrades the verdict's
// confidence instead of failing the analysis.
func (a *Analyzer) Analyze(ctx context.Context, raw []byte) (*core.AnalysisReport, error) {
	decoded, err := DecodeMessage(raw)
	if err != nil {
		return nil, err
	}

	var (
		headerEvidence core.HeaderEvidence
		urlEvidence    core.URLEvidence
		htmlEvidence   core.HTMLEvidence
		reputation     *core.ReputationResult
	)

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		headerEvidence = AnalyzeHeaders(decoded)
	}()
	go func() {
		defer wg.Done()
		urlEvidence = ExtractURLs(decoded.BodyText, decoded.BodyHTML)
	}()
	go func() {
		defer wg.Done()
		htmlEvidence = NormalizeHTML(decoded.BodyHTML)
	}()
	go func() {
		defer wg.Done()
		repCtx, cancel := context.WithTimeout(ctx, a.reputationTimeout)
		defer cancel()
		reputation = a.reputation.CheckMessage(repCtx, raw)
	}()
	wg.Wait()

	combined := combineRisk(headerEvidence.RiskScore, htmlEvidence.RiskScore,
		urlEvidence.SuspiciousURLCount, reputation)
	classification := classify(combined, reputation)

	verdict := core.Verdict{
		Classification:    classification,
		CombinedRiskScore: combined,
		Confidence:        confidence(reputation.IsAvailable),
		IsPhishing:        classification == core.ClassPhishing || classification == core.ClassSpam,
		RecommendedAction: recommendAction(classification),
	}

	report := &core.AnalysisReport{
		Message: core.MessageSummary{
			MessageID:  decoded.MessageID,
			Subject:    decoded.Subject,
			Sender:     decoded.Sender,
			Recipients: decoded.Recipients,
			Date:       decoded.Date,
		},
		Header:     headerEvidence,
		URLs:       capURLDetails(urlEvidence),
		HTML:       htmlEvidence,
		Reputation: capSymbols(*reputation),
		Verdict:    verdict,
		AnalyzedAt: time.Now().UTC(),
	}

	a.logger.Info("Analyzed message",
		zap.String("message_id", decoded.MessageID),
		zap.String("classification", classification),
		zap.Float64("combined_risk", combined),
		zap.Bool("reputation_available", reputation.IsAvailable))

	return report, nil
}

func combineRisk(headerRisk, htmlRisk float64, suspiciousURLs int, reputation *core.ReputationResult) float64 {
	total := headerRisk*headerWeight + htmlRisk*htmlWeight

	urlComponent := float64(suspiciousURLs) * urlPointsPerHit
	if urlComponent > urlComponentCap {
		urlComponent = urlComponentCap
	}
	total += urlComponent

	if reputation.IsAvailable {
		repComponent := reputation.Score / reputationScale * reputationCap
		if repComponent > reputationCap {
			repComponent = reputationCap
		}
		total += repComponent
	}

	if total < 0 {
		return 0
	}
	if total > 100 {
		return 100
	}
	return total
}

// classify maps the combined score to a bucket. A reject action from a
// reachable reputation engine wins outright, whatever the score says.
func classify(riskScore float64, reputation *core.ReputationResult) string {
	if reputation.IsAvailable && reputation.Action == "reject" {
		return core.ClassSpam
	}
	switch {
	case riskScore >= 75:
		return core.ClassPhishing
	case riskScore >= 50:
		return core.ClassSuspicious
	case riskScore >= 30:
		return core.ClassQuestionable
	default:
		return core.ClassLegitimate
	}
}

// confidence reflects evidence completeness, not classification certainty.
func confidence(reputationAvailable bool) float64 {
	if reputationAvailable {
		return confidenceFull
	}
	return confidenceDegraded
}

func recommendAction(classification string) string {
	switch classification {
	case core.ClassPhishing, core.ClassSpam:
		return core.ActionQuarantine
	case core.ClassSuspicious:
		return core.ActionFlag
	case core.ClassQuestionable:
		return core.ActionWarn
	case core.ClassLegitimate:
		return core.ActionDeliver
	default:
		return core.ActionReview
	}
}

// capURLDetails bounds the per-URL detail list for transport; aggregate
// counts still describe every URL found.
func capURLDetails(evidence core.URLEvidence) core.URLEvidence {
	if len(evidence.URLs) > 10 {
		evidence.URLs = evidence.URLs[:10]
	}
	return evidence
}

func capSymbols(reputation core.ReputationResult) core.ReputationResult {
	if len(reputation.Symbols) > 10 {
		reputation.Symbols = reputation.Symbols[:10]
	}
	return reputation
}
