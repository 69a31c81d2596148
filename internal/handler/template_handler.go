package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"template-pipeline/internal/domain"
	"template-pipeline/internal/template"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type TemplateService interface {
	Register(ctx context.Context, t *domain.Template) (*domain.Template, error)
	Validate(t *domain.Template) template.Violations
	Get(ctx context.Context, name string) (*domain.Template, error)
	List(ctx context.Context, page, pageSize int) ([]domain.Template, int64, error)
	Delete(ctx context.Context, name string) error
	Preview(ctx context.Context, name string, values map[int]string) ([]template.PreviewComponent, error)
}

type TemplateHandler struct {
	service TemplateService
}

func NewTemplateHandler(service TemplateService) (*TemplateHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("template service is required")
	}
	return &TemplateHandler{service: service}, nil
}

func RegisterTemplateRoutes(router fiber.Router, service TemplateService) error {
	h, err := NewTemplateHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/templates", h.RegisterTemplate)
	v1.Post("/templates/validate", h.ValidateTemplate)
	v1.Get("/templates", h.ListTemplates)
	v1.Get("/templates/:name", h.GetTemplate)
	v1.Delete("/templates/:name", h.DeleteTemplate)
	v1.Post("/templates/:name/preview", h.PreviewTemplate)

	return nil
}

type templateRequest struct {
	Name       string             `json:"name"`
	Category   string             `json:"category"`
	Language   string             `json:"language"`
	Components []domain.Component `json:"components"`
}

type templateResponse struct {
	Name       string             `json:"name"`
	Category   string             `json:"category"`
	Language   string             `json:"language"`
	Components []domain.Component `json:"components"`
	CreatedAt  time.Time          `json:"createdAt,omitempty"`
	UpdatedAt  time.Time          `json:"updatedAt,omitempty"`
}

type validateTemplateResponse struct {
	Valid      bool                 `json:"valid"`
	Violations []template.Violation `json:"violations"`
}

type listTemplatesResponse struct {
	Data []templateResponse `json:"data"`
	Meta listMeta           `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

type previewTemplateRequest struct {
	Values map[int]string `json:"values"`
}

type previewTemplateResponse struct {
	Template   string                      `json:"template"`
	Components []template.PreviewComponent `json:"components"`
}

func (h *TemplateHandler) RegisterTemplate(c *fiber.Ctx) error {
	tpl, err := parseTemplateBody(c)
	if err != nil {
		return err
	}

	created, err := h.service.Register(c.Context(), tpl)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(toTemplateResponse(created))
}

// ValidateTemplate reports the full violation set without persisting. A
// template that fails validation still yields a 200; the violations are the
// payload, not an error.
func (h *TemplateHandler) ValidateTemplate(c *fiber.Ctx) error {
	tpl, err := parseTemplateBody(c)
	if err != nil {
		return err
	}

	violations := h.service.Validate(tpl)
	if violations == nil {
		violations = template.Violations{}
	}

	return c.Status(fiber.StatusOK).JSON(validateTemplateResponse{
		Valid:      len(violations) == 0,
		Violations: violations,
	})
}

func (h *TemplateHandler) GetTemplate(c *fiber.Ctx) error {
	tpl, err := h.service.Get(c.Context(), strings.TrimSpace(c.Params("name")))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(toTemplateResponse(tpl))
}

func (h *TemplateHandler) ListTemplates(c *fiber.Ctx) error {
	page := c.QueryInt("page", defaultPage)
	pageSize := c.QueryInt("pageSize", defaultPageSize)
	if page < 1 {
		return fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	templates, total, err := h.service.List(c.Context(), page, pageSize)
	if err != nil {
		return err
	}

	data := make([]templateResponse, 0, len(templates))
	for i := range templates {
		data = append(data, toTemplateResponse(&templates[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listTemplatesResponse{
		Data: data,
		Meta: listMeta{Page: page, PageSize: pageSize, Total: total},
	})
}

func (h *TemplateHandler) DeleteTemplate(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), strings.TrimSpace(c.Params("name"))); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *TemplateHandler) PreviewTemplate(c *fiber.Ctx) error {
	var req previewTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	name := strings.TrimSpace(c.Params("name"))
	components, err := h.service.Preview(c.Context(), name, req.Values)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(previewTemplateResponse{
		Template:   name,
		Components: components,
	})
}

func parseTemplateBody(c *fiber.Ctx) (*domain.Template, error) {
	var req templateRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	// Category case is normalized here; every other rule is the validator's.
	category := domain.Category(strings.ToUpper(strings.TrimSpace(req.Category)))

	return &domain.Template{
		Name:       strings.TrimSpace(req.Name),
		Category:   category,
		Language:   strings.TrimSpace(req.Language),
		Components: req.Components,
	}, nil
}

func toTemplateResponse(t *domain.Template) templateResponse {
	if t == nil {
		return templateResponse{}
	}
	return templateResponse{
		Name:       t.Name,
		Category:   t.Category.String(),
		Language:   t.Language,
		Components: t.Components,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}
