package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"template-pipeline/internal/domain"
	"template-pipeline/internal/repository"
)

func registeredTemplate() *domain.Template {
	return &domain.Template{
		Name:     "order_update",
		Category: domain.CategoryUtility,
		Language: "en_US",
		Components: []domain.Component{
			{
				Type:    domain.ComponentBody,
				Text:    "Hi {{1}}, your order {{2}} has shipped.",
				Example: [][]string{{"Ada", "A-1001"}},
			},
		},
	}
}

type fakeTemplateRepo struct {
	createFn    func(ctx context.Context, t *domain.Template) error
	getByNameFn func(ctx context.Context, name string) (*domain.Template, error)
	listFn      func(ctx context.Context, page, pageSize int) ([]domain.Template, int64, error)
	listNamesFn func(ctx context.Context, limit int) ([]string, error)
	deleteFn    func(ctx context.Context, name string) error
}

func (f *fakeTemplateRepo) Create(ctx context.Context, t *domain.Template) error {
	if f.createFn != nil {
		return f.createFn(ctx, t)
	}
	return nil
}

func (f *fakeTemplateRepo) GetByName(ctx context.Context, name string) (*domain.Template, error) {
	if f.getByNameFn != nil {
		return f.getByNameFn(ctx, name)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeTemplateRepo) List(ctx context.Context, page, pageSize int) ([]domain.Template, int64, error) {
	if f.listFn != nil {
		return f.listFn(ctx, page, pageSize)
	}
	return nil, 0, nil
}

func (f *fakeTemplateRepo) ListNames(ctx context.Context, limit int) ([]string, error) {
	if f.listNamesFn != nil {
		return f.listNamesFn(ctx, limit)
	}
	return nil, nil
}

func (f *fakeTemplateRepo) Delete(ctx context.Context, name string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, name)
	}
	return nil
}

var _ repository.TemplateRepository = (*fakeTemplateRepo)(nil)

func TestTemplateServiceRegisterValid(t *testing.T) {
	t.Parallel()

	var created *domain.Template
	repo := &fakeTemplateRepo{
		createFn: func(ctx context.Context, tpl *domain.Template) error {
			created = tpl
			return nil
		},
	}

	svc, err := NewTemplateService(repo, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTemplateService() error = %v", err)
	}

	got, err := svc.Register(context.Background(), registeredTemplate())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if created == nil {
		t.Fatal("template should be persisted")
	}
	if got.Name != "order_update" {
		t.Fatalf("Name = %s, want order_update", got.Name)
	}
}

func TestTemplateServiceRegisterRejectsStructuralViolations(t *testing.T) {
	t.Parallel()

	repo := &fakeTemplateRepo{
		createFn: func(ctx context.Context, tpl *domain.Template) error {
			t.Fatal("invalid template must not be persisted")
			return nil
		},
	}

	svc, err := NewTemplateService(repo, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTemplateService() error = %v", err)
	}

	tpl := registeredTemplate()
	tpl.Name = "Bad Name"
	tpl.Components[0].Text = "{{1}} starts and ends {{2}}"

	_, err = svc.Register(context.Background(), tpl)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Register() error = %v, want ErrValidation", err)
	}
}

func TestTemplateServiceRegisterRejectsExampleMismatch(t *testing.T) {
	t.Parallel()

	svc, err := NewTemplateService(&fakeTemplateRepo{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTemplateService() error = %v", err)
	}

	tpl := registeredTemplate()
	tpl.Components[0].Example = [][]string{{"Ada"}}

	_, err = svc.Register(context.Background(), tpl)
	if !errors.Is(err, domain.ErrExampleMismatch) {
		t.Fatalf("Register() error = %v, want ErrExampleMismatch", err)
	}
}

func TestTemplateServiceValidateAccumulatesBothPasses(t *testing.T) {
	t.Parallel()

	svc, err := NewTemplateService(&fakeTemplateRepo{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTemplateService() error = %v", err)
	}

	tpl := registeredTemplate()
	tpl.Language = ""
	tpl.Components[0].Example = nil

	violations := svc.Validate(tpl)
	if len(violations) != 2 {
		t.Fatalf("violations = %d (%v), want 2", len(violations), violations.Messages())
	}
}

func TestTemplateServiceGetRequiresName(t *testing.T) {
	t.Parallel()

	svc, err := NewTemplateService(&fakeTemplateRepo{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTemplateService() error = %v", err)
	}

	if _, err := svc.Get(context.Background(), "  "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Get() error = %v, want ErrValidation", err)
	}
}

func TestTemplateServicePreview(t *testing.T) {
	t.Parallel()

	repo := &fakeTemplateRepo{
		getByNameFn: func(ctx context.Context, name string) (*domain.Template, error) {
			return registeredTemplate(), nil
		},
	}

	svc, err := NewTemplateService(repo, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTemplateService() error = %v", err)
	}

	preview, err := svc.Preview(context.Background(), "order_update", map[int]string{1: "Ada", 2: "A-1001"})
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if len(preview) != 1 {
		t.Fatalf("preview components = %d, want 1", len(preview))
	}
	if preview[0].Text != "Hi Ada, your order A-1001 has shipped." {
		t.Fatalf("preview text = %q", preview[0].Text)
	}
}

func TestTemplateServiceDelete(t *testing.T) {
	t.Parallel()

	deleted := ""
	repo := &fakeTemplateRepo{
		deleteFn: func(ctx context.Context, name string) error {
			deleted = name
			return nil
		},
	}

	svc, err := NewTemplateService(repo, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTemplateService() error = %v", err)
	}

	if err := svc.Delete(context.Background(), "order_update"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deleted != "order_update" {
		t.Fatalf("deleted = %q, want order_update", deleted)
	}
}
