package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"template-pipeline/internal/domain"
	"template-pipeline/internal/observability"
	"template-pipeline/internal/repository"
	"template-pipeline/internal/template"
)

// TemplateService owns template registration, validation and preview.
// Registration only persists definitions that pass both the structural
// validator and the example validator; all violations are reported together.
type TemplateService struct {
	templates repository.TemplateRepository
	logger    *zap.Logger
	metrics   *observability.Metrics
}

func NewTemplateService(templates repository.TemplateRepository, logger *zap.Logger) (*TemplateService, error) {
	if templates == nil {
		return nil, fmt.Errorf("template repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TemplateService{
		templates: templates,
		logger:    logger,
	}, nil
}

func (s *TemplateService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Validate runs the full validation pass without persisting anything.
func (s *TemplateService) Validate(t *domain.Template) template.Violations {
	if t == nil {
		var vs template.Violations
		return vs
	}

	violations := template.ValidateStructure(t)
	violations = append(violations, template.ValidateExamples(t)...)
	return violations
}

// Register validates and persists a template definition.
func (s *TemplateService) Register(ctx context.Context, t *domain.Template) (*domain.Template, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if t == nil {
		return nil, fmt.Errorf("%w: template is required", domain.ErrValidation)
	}

	t.Name = strings.TrimSpace(t.Name)
	t.Language = strings.TrimSpace(t.Language)

	violations := s.Validate(t)
	if len(violations) > 0 {
		if s.metrics != nil {
			s.metrics.IncTemplateValidated("rejected")
		}
		s.logger.Info("template rejected",
			zap.String("template", t.Name),
			zap.Int("violations", len(violations)),
		)
		return nil, violations.Err(errClassFor(violations))
	}

	if err := s.templates.Create(ctx, t); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncTemplateValidated("accepted")
	}
	s.logger.Info("template registered",
		zap.String("template", t.Name),
		zap.String("category", t.Category.String()),
		zap.String("language", t.Language),
	)

	return t, nil
}

func (s *TemplateService) Get(ctx context.Context, name string) (*domain.Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: template name is required", domain.ErrValidation)
	}
	return s.templates.GetByName(ctx, name)
}

func (s *TemplateService) List(ctx context.Context, page, pageSize int) ([]domain.Template, int64, error) {
	return s.templates.List(ctx, page, pageSize)
}

func (s *TemplateService) Delete(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: template name is required", domain.ErrValidation)
	}

	if err := s.templates.Delete(ctx, name); err != nil {
		return err
	}

	s.logger.Info("template deleted", zap.String("template", name))
	return nil
}

// Preview substitutes values into a stored template for display. Missing
// values render as empty strings.
func (s *TemplateService) Preview(ctx context.Context, name string, values map[int]string) ([]template.PreviewComponent, error) {
	t, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return template.Preview(t, values), nil
}

// errClassFor picks the sentinel to wrap: example violations surface as
// ErrExampleMismatch only when no structural rule is broken.
func errClassFor(vs template.Violations) error {
	structural := false
	for _, v := range vs {
		switch v.Code {
		case template.CodeExampleMissing, template.CodeExampleCountMismatch:
		default:
			structural = true
		}
	}
	if structural {
		return domain.ErrValidation
	}
	return domain.ErrExampleMismatch
}
