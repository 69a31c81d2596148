package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"template-pipeline/internal/domain"
)

type TemplateRepository interface {
	Create(ctx context.Context, t *domain.Template) error
	GetByName(ctx context.Context, name string) (*domain.Template, error)
	List(ctx context.Context, page, pageSize int) ([]domain.Template, int64, error)
	ListNames(ctx context.Context, limit int) ([]string, error)
	Delete(ctx context.Context, name string) error
}

type GormTemplateRepo struct {
	db *gorm.DB
}

func NewGormTemplateRepo(db *gorm.DB) *GormTemplateRepo {
	return &GormTemplateRepo{db: db}
}

func (r *GormTemplateRepo) Create(ctx context.Context, t *domain.Template) error {
	model, err := templateModelFromDomain(t)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	if t != nil {
		t.CreatedAt = model.CreatedAt
		t.UpdatedAt = model.UpdatedAt
	}
	return nil
}

func (r *GormTemplateRepo) GetByName(ctx context.Context, name string) (*domain.Template, error) {
	var model TemplateModel
	err := r.db.WithContext(ctx).First(&model, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return templateModelToDomain(&model)
}

func (r *GormTemplateRepo) List(ctx context.Context, page, pageSize int) ([]domain.Template, int64, error) {
	query := r.db.WithContext(ctx).Model(&TemplateModel{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page = max(page, 1)
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []TemplateModel
	err := query.
		Order("name ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	templates := make([]domain.Template, 0, len(models))
	for i := range models {
		t, err := templateModelToDomain(&models[i])
		if err != nil {
			return nil, 0, err
		}
		templates = append(templates, *t)
	}

	return templates, total, nil
}

func (r *GormTemplateRepo) ListNames(ctx context.Context, limit int) ([]string, error) {
	if limit < 1 {
		limit = 500
	}

	var names []string
	err := r.db.WithContext(ctx).
		Model(&TemplateModel{}).
		Order("name ASC").
		Limit(limit).
		Pluck("name", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (r *GormTemplateRepo) Delete(ctx context.Context, name string) error {
	result := r.db.WithContext(ctx).Delete(&TemplateModel{}, "name = ?", name)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
