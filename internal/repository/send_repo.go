package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"template-pipeline/internal/domain"
)

type SendListParams struct {
	Status       *domain.SendStatus
	TemplateName *string
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

type SendRepository interface {
	Create(ctx context.Context, s *domain.Send) error
	GetByID(ctx context.Context, id string) (*domain.Send, error)
	List(ctx context.Context, params SendListParams) ([]domain.Send, int64, error)
	UpdateStatus(ctx context.Context, id string, status domain.SendStatus) error
	GetLatestForPair(ctx context.Context, recipient, templateName string) (*domain.Send, error)
	GetLatestByRecipient(ctx context.Context, recipient string) (*domain.Send, error)
	LockForSending(ctx context.Context, id string) (*domain.Send, error)
	IncrementAttempt(ctx context.Context, id string) error
	SetProviderMessageID(ctx context.Context, id string, providerMsgID string) error
}

type GormSendRepo struct {
	db *gorm.DB
}

func NewGormSendRepo(db *gorm.DB) *GormSendRepo {
	return &GormSendRepo{db: db}
}

func (r *GormSendRepo) Create(ctx context.Context, s *domain.Send) error {
	model, err := sendModelFromDomain(s)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if s != nil {
		s.CreatedAt = model.CreatedAt
		s.UpdatedAt = model.UpdatedAt
	}
	return nil
}

func (r *GormSendRepo) GetByID(ctx context.Context, id string) (*domain.Send, error) {
	var model SendModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sendModelToDomain(&model)
}

func (r *GormSendRepo) List(ctx context.Context, params SendListParams) ([]domain.Send, int64, error) {
	query := r.db.WithContext(ctx).Model(&SendModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.TemplateName != nil {
		query = query.Where("template_name = ?", *params.TemplateName)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []SendModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	sends := make([]domain.Send, 0, len(models))
	for i := range models {
		s, err := sendModelToDomain(&models[i])
		if err != nil {
			return nil, 0, err
		}
		sends = append(sends, *s)
	}

	return sends, total, nil
}

func (r *GormSendRepo) UpdateStatus(ctx context.Context, id string, status domain.SendStatus) error {
	result := r.db.WithContext(ctx).
		Model(&SendModel{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormSendRepo) GetLatestForPair(ctx context.Context, recipient, templateName string) (*domain.Send, error) {
	var model SendModel
	err := r.db.WithContext(ctx).
		Where("recipient = ? AND template_name = ?", recipient, templateName).
		Order("created_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sendModelToDomain(&model)
}

func (r *GormSendRepo) GetLatestByRecipient(ctx context.Context, recipient string) (*domain.Send, error) {
	var model SendModel
	err := r.db.WithContext(ctx).
		Where("recipient = ?", recipient).
		Order("created_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sendModelToDomain(&model)
}

func (r *GormSendRepo) LockForSending(ctx context.Context, id string) (*domain.Send, error) {
	var model SendModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	// Skip if already in a terminal or sending state
	switch model.Status {
	case domain.SendStatusSent, domain.SendStatusFallbackSent,
		domain.SendStatusFailed, domain.SendStatusSending:
		return nil, nil
	}

	model.Status = domain.SendStatusSending
	if err := r.db.WithContext(ctx).
		Model(&model).
		Update("status", domain.SendStatusSending).Error; err != nil {
		return nil, err
	}

	return sendModelToDomain(&model)
}

func (r *GormSendRepo) IncrementAttempt(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&SendModel{}).
		Where("id = ?", id).
		Update("attempt_count", gorm.Expr("attempt_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormSendRepo) SetProviderMessageID(ctx context.Context, id string, providerMsgID string) error {
	return r.db.WithContext(ctx).
		Model(&SendModel{}).
		Where("id = ?", id).
		Update("provider_message_id", providerMsgID).Error
}
