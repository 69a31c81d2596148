package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"template-pipeline/internal/domain"
	"template-pipeline/internal/queue"
	"template-pipeline/internal/repository"
)

const defaultSendMaxRetries = 3

// SendService accepts send requests, persists them and publishes them onto
// the category work queue. It also re-dispatches sends when the retry
// coordinator fires a timer or substitutes a fallback template.
type SendService struct {
	sends     repository.SendRepository
	templates repository.TemplateRepository
	publisher queue.Publisher
	logger    *zap.Logger
}

func NewSendService(
	sends repository.SendRepository,
	templates repository.TemplateRepository,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*SendService, error) {
	if sends == nil {
		return nil, fmt.Errorf("send repository is required")
	}
	if templates == nil {
		return nil, fmt.Errorf("template repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("queue publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SendService{
		sends:     sends,
		templates: templates,
		publisher: publisher,
		logger:    logger,
	}, nil
}

// Accept validates a send against its registered template, persists it and
// queues it for delivery.
func (s *SendService) Accept(ctx context.Context, send *domain.Send) (*domain.Send, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if send == nil {
		return nil, fmt.Errorf("%w: send is required", domain.ErrValidation)
	}

	prepareSendForCreate(send)
	if err := send.Validate(); err != nil {
		return nil, err
	}

	tpl, err := s.templates.GetByName(ctx, send.TemplateName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: template %q is not registered", domain.ErrNotFound, send.TemplateName)
		}
		return nil, err
	}

	if err := s.sends.Create(ctx, send); err != nil {
		return nil, err
	}

	msg := queue.SendMessage{
		SendID:        send.ID,
		CorrelationID: send.CorrelationID,
		TemplateName:  send.TemplateName,
		Recipient:     send.Recipient,
		Category:      tpl.Category,
		Attempt:       1,
	}
	if err := s.publisher.Publish(ctx, queue.QueueName(tpl.Category), msg); err != nil {
		s.logger.Error("failed to publish send",
			zap.String("sendId", send.ID),
			zap.String("template", send.TemplateName),
			zap.Error(err),
		)
		if updateErr := s.sends.UpdateStatus(ctx, send.ID, domain.SendStatusFailed); updateErr != nil {
			s.logger.Error("failed to mark send as failed after publish error",
				zap.String("sendId", send.ID),
				zap.Error(updateErr),
			)
			return nil, fmt.Errorf("failed to publish send: %w (failed to mark as failed: %v)", err, updateErr)
		}
		send.Status = domain.SendStatusFailed
		return nil, fmt.Errorf("failed to publish send: %w", err)
	}

	if err := s.sends.UpdateStatus(ctx, send.ID, domain.SendStatusQueued); err != nil {
		return nil, fmt.Errorf("failed to update send status to queued: %w", err)
	}
	send.Status = domain.SendStatusQueued

	return send, nil
}

func (s *SendService) GetByID(ctx context.Context, id string) (*domain.Send, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: send id is required", domain.ErrValidation)
	}
	return s.sends.GetByID(ctx, strings.TrimSpace(id))
}

func (s *SendService) List(ctx context.Context, params repository.SendListParams) ([]domain.Send, int64, error) {
	return s.sends.List(ctx, params)
}

// Redispatch re-queues a delivery attempt for a (recipient, template) pair.
// When the pair has no send on record the call is a fallback substitution:
// the recipient's latest send supplies the values and a fresh send row is
// created under the substitute template.
func (s *SendService) Redispatch(ctx context.Context, templateName, recipient string, attempt int) error {
	if ctx == nil {
		ctx = context.Background()
	}

	tpl, err := s.templates.GetByName(ctx, templateName)
	if err != nil {
		return fmt.Errorf("failed to load template for redispatch: %w", err)
	}

	send, err := s.sends.GetLatestForPair(ctx, recipient, templateName)
	if errors.Is(err, domain.ErrNotFound) {
		send, err = s.cloneForFallback(ctx, templateName, recipient)
	}
	if err != nil {
		return err
	}

	msg := queue.SendMessage{
		SendID:        send.ID,
		CorrelationID: send.CorrelationID,
		TemplateName:  templateName,
		Recipient:     recipient,
		Category:      tpl.Category,
		Attempt:       attempt,
	}
	if err := s.publisher.Publish(ctx, queue.QueueName(tpl.Category), msg); err != nil {
		return fmt.Errorf("failed to publish redispatch: %w", err)
	}

	if err := s.sends.UpdateStatus(ctx, send.ID, domain.SendStatusQueued); err != nil {
		return fmt.Errorf("failed to update send status for redispatch: %w", err)
	}

	s.logger.Info("send redispatched",
		zap.String("sendId", send.ID),
		zap.String("template", templateName),
		zap.String("recipient", recipient),
		zap.Int("attempt", attempt),
	)

	return nil
}

// cloneForFallback creates a new send under the substitute template, carrying
// over the values of the recipient's most recent send.
func (s *SendService) cloneForFallback(ctx context.Context, templateName, recipient string) (*domain.Send, error) {
	origin, err := s.sends.GetLatestByRecipient(ctx, recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to load origin send for fallback: %w", err)
	}

	send := &domain.Send{
		ID:            uuid.NewString(),
		CorrelationID: origin.CorrelationID,
		TemplateName:  templateName,
		Recipient:     recipient,
		Values:        origin.Values,
		Status:        domain.SendStatusAccepted,
		MaxRetries:    origin.MaxRetries,
	}
	if err := s.sends.Create(ctx, send); err != nil {
		return nil, fmt.Errorf("failed to create fallback send: %w", err)
	}

	s.logger.Info("fallback send created",
		zap.String("sendId", send.ID),
		zap.String("originSendId", origin.ID),
		zap.String("template", templateName),
		zap.String("recipient", recipient),
	)

	return send, nil
}

func prepareSendForCreate(send *domain.Send) {
	send.Recipient = strings.TrimSpace(send.Recipient)
	send.TemplateName = strings.TrimSpace(send.TemplateName)

	send.CorrelationID = strings.TrimSpace(send.CorrelationID)
	if send.CorrelationID == "" {
		send.CorrelationID = uuid.NewString()
	}

	send.ID = strings.TrimSpace(send.ID)
	if send.ID == "" {
		send.ID = uuid.NewString()
	}

	send.Status = domain.SendStatusAccepted
	send.AttemptCount = 0
	if send.MaxRetries <= 0 {
		send.MaxRetries = defaultSendMaxRetries
	}
	send.ProviderMessageID = nil
}
