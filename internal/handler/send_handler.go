package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"template-pipeline/internal/domain"
	"template-pipeline/internal/repository"
)

type SendService interface {
	Accept(ctx context.Context, send *domain.Send) (*domain.Send, error)
	GetByID(ctx context.Context, id string) (*domain.Send, error)
	List(ctx context.Context, params repository.SendListParams) ([]domain.Send, int64, error)
}

type SendHandler struct {
	service SendService
}

func NewSendHandler(service SendService) (*SendHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("send service is required")
	}
	return &SendHandler{service: service}, nil
}

func RegisterSendRoutes(router fiber.Router, service SendService) error {
	h, err := NewSendHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/sends", h.CreateSend)
	v1.Get("/sends", h.ListSends)
	v1.Get("/sends/:id", h.GetSend)

	return nil
}

type createSendRequest struct {
	CorrelationID string         `json:"correlationId"`
	TemplateName  string         `json:"templateName"`
	Recipient     string         `json:"recipient"`
	Values        map[int]string `json:"values"`
	MaxRetries    *int           `json:"maxRetries,omitempty"`
}

type sendResponse struct {
	ID                string         `json:"id"`
	CorrelationID     string         `json:"correlationId"`
	TemplateName      string         `json:"templateName"`
	Recipient         string         `json:"recipient"`
	Values            map[int]string `json:"values,omitempty"`
	Status            string         `json:"status"`
	ProviderMessageID *string        `json:"providerMessageId,omitempty"`
	AttemptCount      int            `json:"attemptCount"`
	MaxRetries        int            `json:"maxRetries"`
	CreatedAt         time.Time      `json:"createdAt,omitempty"`
	UpdatedAt         time.Time      `json:"updatedAt,omitempty"`
}

type listSendsResponse struct {
	Data []sendResponse `json:"data"`
	Meta listMeta       `json:"meta"`
}

func (h *SendHandler) CreateSend(c *fiber.Ctx) error {
	var req createSendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	send := &domain.Send{
		CorrelationID: strings.TrimSpace(req.CorrelationID),
		TemplateName:  strings.TrimSpace(req.TemplateName),
		Recipient:     strings.TrimSpace(req.Recipient),
		Values:        req.Values,
	}
	if send.CorrelationID == "" {
		send.CorrelationID = requestCorrelationID(c)
	}
	if req.MaxRetries != nil {
		send.MaxRetries = *req.MaxRetries
	}

	accepted, err := h.service.Accept(c.Context(), send)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(toSendResponse(accepted))
}

func (h *SendHandler) GetSend(c *fiber.Ctx) error {
	send, err := h.service.GetByID(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(toSendResponse(send))
}

func (h *SendHandler) ListSends(c *fiber.Ctx) error {
	params, err := parseSendListParams(c)
	if err != nil {
		return err
	}

	sends, total, err := h.service.List(c.Context(), params)
	if err != nil {
		return err
	}

	data := make([]sendResponse, 0, len(sends))
	for i := range sends {
		data = append(data, toSendResponse(&sends[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listSendsResponse{
		Data: data,
		Meta: listMeta{Page: params.Page, PageSize: params.PageSize, Total: total},
	})
}

func parseSendListParams(c *fiber.Ctx) (repository.SendListParams, error) {
	params := repository.SendListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.SendListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.SendListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseSendStatusFromString(rawStatus)
		if err != nil {
			return repository.SendListParams{}, err
		}
		params.Status = &status
	}

	if name := strings.TrimSpace(c.Query("template")); name != "" {
		params.TemplateName = &name
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.SendListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.SendListParams{}, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return repository.SendListParams{}, fmt.Errorf("%w: to must not be before from", domain.ErrValidation)
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toSendResponse(s *domain.Send) sendResponse {
	if s == nil {
		return sendResponse{}
	}
	return sendResponse{
		ID:                s.ID,
		CorrelationID:     s.CorrelationID,
		TemplateName:      s.TemplateName,
		Recipient:         s.Recipient,
		Values:            s.Values,
		Status:            s.Status.String(),
		ProviderMessageID: s.ProviderMessageID,
		AttemptCount:      s.AttemptCount,
		MaxRetries:        s.MaxRetries,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}
