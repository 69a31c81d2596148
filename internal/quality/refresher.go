package quality

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"template-pipeline/internal/domain"
)

const (
	defaultRefreshInterval = 5 * time.Minute
	defaultRefreshLimit    = 500
)

// TelemetrySource provides raw delivery telemetry for a template.
type TelemetrySource interface {
	Fetch(ctx context.Context, templateName string) (domain.QualityMetricsSnapshot, error)
}

// TemplateLister lists the template names to refresh.
type TemplateLister interface {
	ListNames(ctx context.Context, limit int) ([]string, error)
}

// VerdictStore persists snapshots and verdicts. Snapshots are insert-only;
// a newer snapshot supersedes an older one, it never mutates it.
type VerdictStore interface {
	SaveSnapshot(ctx context.Context, snapshot domain.QualityMetricsSnapshot, verdict domain.QualityVerdict) error
}

// ScoreGauge exports the latest score per template.
type ScoreGauge interface {
	SetQualityScore(templateName string, status string, score float64)
}

// Refresher periodically pulls telemetry per template, scores it and
// persists the verdict. It runs independently of the send path, which never
// blocks on a fresh score and tolerates a stale verdict.
type Refresher struct {
	templates TemplateLister
	source    TelemetrySource
	store     VerdictStore
	scorer    *Scorer
	gauge     ScoreGauge
	logger    *zap.Logger
	interval  time.Duration
	limit     int
	now       func() time.Time
}

func NewRefresher(
	templates TemplateLister,
	source TelemetrySource,
	store VerdictStore,
	scorer *Scorer,
	interval time.Duration,
	logger *zap.Logger,
) (*Refresher, error) {
	if templates == nil {
		return nil, fmt.Errorf("template lister is required")
	}
	if source == nil {
		return nil, fmt.Errorf("telemetry source is required")
	}
	if store == nil {
		return nil, fmt.Errorf("verdict store is required")
	}
	if scorer == nil {
		scorer = NewScorer(Thresholds{})
	}
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Refresher{
		templates: templates,
		source:    source,
		store:     store,
		scorer:    scorer,
		logger:    logger,
		interval:  interval,
		limit:     defaultRefreshLimit,
		now:       time.Now,
	}, nil
}

// SetGauge attaches a metrics gauge for the latest score per template.
func (r *Refresher) SetGauge(gauge ScoreGauge) {
	if r == nil {
		return
	}
	r.gauge = gauge
}

// Start refreshes once immediately, then on every ticker edge until the
// context is canceled.
func (r *Refresher) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := r.refreshAll(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("quality refresh initial pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.refreshAll(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Error("quality refresh pass failed", zap.Error(err))
			}
		}
	}
}

func (r *Refresher) refreshAll(ctx context.Context) error {
	names, err := r.templates.ListNames(ctx, r.limit)
	if err != nil {
		return fmt.Errorf("failed to list templates for quality refresh: %w", err)
	}

	for _, name := range names {
		if ctx.Err() != nil {
			return nil
		}
		if err := r.refreshOne(ctx, name); err != nil {
			r.logger.Error("quality refresh failed for template",
				zap.String("template", name),
				zap.Error(err),
			)
		}
	}

	return nil
}

func (r *Refresher) refreshOne(ctx context.Context, name string) error {
	snapshot, err := r.source.Fetch(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to fetch telemetry: %w", err)
	}

	snapshot.TemplateName = name
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = r.now().UTC()
	}
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry snapshot: %w", err)
	}

	verdict := r.scorer.Score(snapshot)
	if err := r.store.SaveSnapshot(ctx, snapshot, verdict); err != nil {
		return fmt.Errorf("failed to persist quality snapshot: %w", err)
	}

	if r.gauge != nil {
		r.gauge.SetQualityScore(name, verdict.Status.String(), verdict.Score)
	}

	r.logger.Debug("quality verdict refreshed",
		zap.String("template", name),
		zap.Float64("score", verdict.Score),
		zap.String("status", verdict.Status.String()),
	)

	return nil
}
