package domain

import (
	"fmt"
	"strings"
	"time"
)

// QualityStatus is the discrete health tier of a template.
type QualityStatus string

const (
	QualityExcellent QualityStatus = "EXCELLENT"
	QualityGood      QualityStatus = "GOOD"
	QualityWarning   QualityStatus = "WARNING"
	QualityCritical  QualityStatus = "CRITICAL"
)

func (s QualityStatus) String() string { return string(s) }

func (s QualityStatus) IsValid() bool {
	switch s {
	case QualityExcellent, QualityGood, QualityWarning, QualityCritical:
		return true
	}
	return false
}

func ParseQualityStatusFromString(s string) (QualityStatus, error) {
	st := QualityStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid quality status %q", ErrValidation, s)
	}
	return st, nil
}

// QualityMetricsSnapshot is one immutable reading of delivery telemetry for
// a template. Rates are fractions in [0,1]. Snapshots are superseded by
// newer ones, never mutated.
type QualityMetricsSnapshot struct {
	TemplateName string
	DeliveryRate float64
	ReadRate     float64
	ResponseRate float64
	BlockRate    float64
	ReportRate   float64
	TotalSent    int64
	CapturedAt   time.Time
}

func (s QualityMetricsSnapshot) Validate() error {
	rates := map[string]float64{
		"delivery_rate": s.DeliveryRate,
		"read_rate":     s.ReadRate,
		"response_rate": s.ResponseRate,
		"block_rate":    s.BlockRate,
		"report_rate":   s.ReportRate,
	}
	for name, rate := range rates {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("%w: %s must be within [0,1], got %v", ErrValidation, name, rate)
		}
	}
	if s.TotalSent < 0 {
		return fmt.Errorf("%w: total_sent must not be negative, got %d", ErrValidation, s.TotalSent)
	}
	return nil
}

// QualityVerdict is the scored interpretation of a snapshot.
type QualityVerdict struct {
	TemplateName string
	Score        float64
	Status       QualityStatus
	Guidance     string
	CapturedAt   time.Time
}
