package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"template-pipeline/internal/domain"
)

type QualityRepository interface {
	SaveSnapshot(ctx context.Context, snapshot domain.QualityMetricsSnapshot, verdict domain.QualityVerdict) error
	GetLatestVerdict(ctx context.Context, templateName string) (*domain.QualityVerdict, error)
}

type GormQualityRepo struct {
	db *gorm.DB
}

func NewGormQualityRepo(db *gorm.DB) *GormQualityRepo {
	return &GormQualityRepo{db: db}
}

// SaveSnapshot appends a new snapshot row. Earlier rows are never updated;
// readers take the latest row per template.
func (r *GormQualityRepo) SaveSnapshot(ctx context.Context, snapshot domain.QualityMetricsSnapshot, verdict domain.QualityVerdict) error {
	model := &QualitySnapshotModel{
		ID:           uuid.NewString(),
		TemplateName: snapshot.TemplateName,
		DeliveryRate: snapshot.DeliveryRate,
		ReadRate:     snapshot.ReadRate,
		ResponseRate: snapshot.ResponseRate,
		BlockRate:    snapshot.BlockRate,
		ReportRate:   snapshot.ReportRate,
		TotalSent:    snapshot.TotalSent,
		Score:        verdict.Score,
		Status:       verdict.Status,
		Guidance:     verdict.Guidance,
		CapturedAt:   snapshot.CapturedAt,
	}

	return r.db.WithContext(ctx).Create(model).Error
}

func (r *GormQualityRepo) GetLatestVerdict(ctx context.Context, templateName string) (*domain.QualityVerdict, error) {
	var model QualitySnapshotModel
	err := r.db.WithContext(ctx).
		Where("template_name = ?", templateName).
		Order("captured_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return snapshotModelToVerdict(&model), nil
}
