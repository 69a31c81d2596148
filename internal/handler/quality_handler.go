package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"template-pipeline/internal/domain"
)

// QualityReader surfaces the latest stored verdict per template. The send
// path never consults it; it exists for operators and callers.
type QualityReader interface {
	GetLatestVerdict(ctx context.Context, templateName string) (*domain.QualityVerdict, error)
}

type QualityHandler struct {
	reader QualityReader
}

func NewQualityHandler(reader QualityReader) (*QualityHandler, error) {
	if reader == nil {
		return nil, fmt.Errorf("quality reader is required")
	}
	return &QualityHandler{reader: reader}, nil
}

func RegisterQualityRoutes(router fiber.Router, reader QualityReader) error {
	h, err := NewQualityHandler(reader)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/templates/:name/quality", h.GetTemplateQuality)

	return nil
}

type qualityResponse struct {
	Template   string    `json:"template"`
	Score      float64   `json:"score"`
	Status     string    `json:"status"`
	Guidance   string    `json:"guidance"`
	CapturedAt time.Time `json:"capturedAt"`
}

func (h *QualityHandler) GetTemplateQuality(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.Params("name"))
	verdict, err := h.reader.GetLatestVerdict(c.Context(), name)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(qualityResponse{
		Template:   verdict.TemplateName,
		Score:      verdict.Score,
		Status:     verdict.Status.String(),
		Guidance:   verdict.Guidance,
		CapturedAt: verdict.CapturedAt,
	})
}
