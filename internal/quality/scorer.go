package quality

import "template-pipeline/internal/domain"

// Component weights of the quality score. The five contributions sum to 100
// when every rate sits at its configured threshold.
const (
	weightDelivery = 30.0
	weightRead     = 25.0
	weightResponse = 20.0
	weightBlock    = 15.0
	weightReport   = 10.0
)

// Status tier gates, first match wins.
const (
	excellentScore    = 80.0
	excellentDelivery = 0.85
	goodScore         = 60.0
	goodDelivery      = 0.70
	warningScore      = 40.0
	warningDelivery   = 0.50
)

// Guidance text surfaced to callers per tier.
const (
	guidanceExcellent = "Template is performing well. No action needed."
	guidanceGood      = "Template is healthy. Monitor engagement to keep delivery rates up."
	guidanceWarning   = "Template quality is degrading. Review content and audience targeting."
	guidanceCritical  = "Template is at risk of being paused by the provider. Stop sends and revise the template."
)

// Thresholds are the caller-configurable reference rates of the score
// formula. Positive rates score proportionally against their target;
// block/report rates keep their full weight while at or under the limit and
// lose it linearly, reaching zero at twice the limit.
type Thresholds struct {
	DeliveryRateTarget float64
	ReadRateTarget     float64
	ResponseRateTarget float64
	BlockRateLimit     float64
	ReportRateLimit    float64
}

// DefaultThresholds returns the provider-aligned defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DeliveryRateTarget: 0.85,
		ReadRateTarget:     0.60,
		ResponseRateTarget: 0.15,
		BlockRateLimit:     0.05,
		ReportRateLimit:    0.02,
	}
}

// Scorer converts telemetry snapshots into verdicts. It is a pure function
// of its thresholds and the snapshot; safe for concurrent use.
type Scorer struct {
	thresholds Thresholds
}

// NewScorer resolves zero-valued threshold fields to their defaults once at
// construction.
func NewScorer(thresholds Thresholds) *Scorer {
	defaults := DefaultThresholds()
	if thresholds.DeliveryRateTarget <= 0 {
		thresholds.DeliveryRateTarget = defaults.DeliveryRateTarget
	}
	if thresholds.ReadRateTarget <= 0 {
		thresholds.ReadRateTarget = defaults.ReadRateTarget
	}
	if thresholds.ResponseRateTarget <= 0 {
		thresholds.ResponseRateTarget = defaults.ResponseRateTarget
	}
	if thresholds.BlockRateLimit <= 0 {
		thresholds.BlockRateLimit = defaults.BlockRateLimit
	}
	if thresholds.ReportRateLimit <= 0 {
		thresholds.ReportRateLimit = defaults.ReportRateLimit
	}

	return &Scorer{thresholds: thresholds}
}

// Score computes the 0-100 quality score and status tier for a snapshot.
// A snapshot without any sends carries no signal and scores a hard zero.
func (s *Scorer) Score(snapshot domain.QualityMetricsSnapshot) domain.QualityVerdict {
	verdict := domain.QualityVerdict{
		TemplateName: snapshot.TemplateName,
		CapturedAt:   snapshot.CapturedAt,
	}

	if snapshot.TotalSent == 0 {
		verdict.Score = 0
		verdict.Status = domain.QualityCritical
		verdict.Guidance = guidanceCritical
		return verdict
	}

	score := weightDelivery*(snapshot.DeliveryRate/s.thresholds.DeliveryRateTarget) +
		weightRead*(snapshot.ReadRate/s.thresholds.ReadRateTarget) +
		weightResponse*(snapshot.ResponseRate/s.thresholds.ResponseRateTarget) +
		weightBlock*headroom(snapshot.BlockRate, s.thresholds.BlockRateLimit) +
		weightReport*headroom(snapshot.ReportRate, s.thresholds.ReportRateLimit)

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	verdict.Score = score
	verdict.Status, verdict.Guidance = tier(score, snapshot.DeliveryRate)
	return verdict
}

// headroom is 1 while rate is at or under limit and ramps linearly to 0 at
// twice the limit.
func headroom(rate, limit float64) float64 {
	h := (2*limit - rate) / limit
	if h > 1 {
		return 1
	}
	if h < 0 {
		return 0
	}
	return h
}

func tier(score, deliveryRate float64) (domain.QualityStatus, string) {
	switch {
	case score >= excellentScore && deliveryRate >= excellentDelivery:
		return domain.QualityExcellent, guidanceExcellent
	case score >= goodScore && deliveryRate >= goodDelivery:
		return domain.QualityGood, guidanceGood
	case score >= warningScore && deliveryRate >= warningDelivery:
		return domain.QualityWarning, guidanceWarning
	default:
		return domain.QualityCritical, guidanceCritical
	}
}
