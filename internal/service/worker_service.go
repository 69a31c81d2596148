package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"template-pipeline/internal/delivery"
	"template-pipeline/internal/domain"
	"template-pipeline/internal/observability"
	"template-pipeline/internal/provider"
	"template-pipeline/internal/queue"
	"template-pipeline/internal/ratelimit"
	"template-pipeline/internal/repository"
	"template-pipeline/internal/template"
)

const minWorkerConcurrency = 1

// WorkerService consumes the category work queues, renders each send against
// its registered template and delivers it through the provider. Failures are
// handed to the retry coordinator; the worker applies the resulting decision
// to the send's persisted status.
type WorkerService struct {
	sends       repository.SendRepository
	templates   repository.TemplateRepository
	attempts    repository.AttemptRepository
	consumer    queue.Consumer
	provider    provider.Provider
	rateLimiter ratelimit.RateLimiter
	coordinator *delivery.Coordinator
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
}

func NewWorkerService(
	sends repository.SendRepository,
	templates repository.TemplateRepository,
	attempts repository.AttemptRepository,
	consumer queue.Consumer,
	provider provider.Provider,
	rateLimiter ratelimit.RateLimiter,
	coordinator *delivery.Coordinator,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if coordinator == nil {
		return nil, fmt.Errorf("retry coordinator is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		sends:       sends,
		templates:   templates,
		attempts:    attempts,
		consumer:    consumer,
		provider:    provider,
		rateLimiter: rateLimiter,
		coordinator: coordinator,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}, nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start consumes category queues and processes send messages until context
// cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	queueNames := queue.WorkQueueNames()
	if len(queueNames) == 0 {
		return fmt.Errorf("no work queues configured")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		queueName := queueNames[i%len(queueNames)]
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)

			err := s.consumer.Consume(groupCtx, queueName, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", queueName),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) processMessage(ctx context.Context, msg queue.SendMessage) error {
	send, err := s.sends.LockForSending(ctx, msg.SendID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("send not found during lock, skipping",
				zap.String("sendId", msg.SendID),
			)
			return nil
		}
		return fmt.Errorf("failed to lock send for sending: %w", err)
	}

	// Nil means terminal/sending state; ack and skip.
	if send == nil {
		return nil
	}

	categoryName := strings.ToLower(msg.Category.String())
	if s.metrics != nil {
		s.metrics.IncWorkerInFlight(categoryName)
		defer s.metrics.DecWorkerInFlight(categoryName)
	}

	tpl, err := s.templates.GetByName(ctx, msg.TemplateName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.failWithoutProvider(ctx, send, msg, categoryName, "template_missing",
				fmt.Sprintf("template %q is no longer registered", msg.TemplateName))
		}
		return fmt.Errorf("failed to load template: %w", err)
	}

	rendered, err := template.Render(tpl, send.Values, send.Recipient)
	if err != nil {
		// A send that cannot be rendered will never succeed.
		return s.failWithoutProvider(ctx, send, msg, categoryName, "render_error", err.Error())
	}

	if err := s.rateLimiter.Wait(ctx, categoryName); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	sendStart := s.now()
	providerResp, sendErr := s.provider.Send(ctx, rendered)
	if s.metrics != nil {
		s.metrics.ObserveSendDuration(categoryName, s.now().Sub(sendStart))
	}

	if err := s.sends.IncrementAttempt(ctx, send.ID); err != nil {
		return fmt.Errorf("failed to increment attempt count: %w", err)
	}

	if sendErr == nil {
		if err := s.recordAttempt(ctx, send.ID, msg.Attempt, providerResp, nil, nil); err != nil {
			return fmt.Errorf("failed to record attempt: %w", err)
		}

		if providerResp != nil && strings.TrimSpace(providerResp.MessageID) != "" {
			if err := s.sends.SetProviderMessageID(ctx, send.ID, providerResp.MessageID); err != nil {
				return fmt.Errorf("failed to set provider message id: %w", err)
			}
		}

		s.coordinator.Resolve(send.Recipient, msg.TemplateName)

		if err := s.sends.UpdateStatus(ctx, send.ID, domain.SendStatusSent); err != nil {
			return fmt.Errorf("failed to update send status to sent: %w", err)
		}
		if s.metrics != nil {
			s.metrics.IncSendSent(categoryName)
		}
		return nil
	}

	failure := delivery.Failure{
		TemplateName: msg.TemplateName,
		Recipient:    send.Recipient,
		Attempt:      msg.Attempt,
		StatusCode:   provider.StatusCodeOf(sendErr),
		Message:      provider.MessageOf(sendErr),
	}
	decision := s.coordinator.HandleFailure(ctx, failure)

	classification := decision.Class.String()
	if err := s.recordAttempt(ctx, send.ID, msg.Attempt, providerResp, sendErr, &classification); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	switch decision.Outcome {
	case delivery.OutcomeRetrying:
		if err := s.sends.UpdateStatus(ctx, send.ID, domain.SendStatusQueued); err != nil {
			return fmt.Errorf("failed to re-queue send for retry: %w", err)
		}
	case delivery.OutcomeFallbackAttempted:
		if err := s.sends.UpdateStatus(ctx, send.ID, domain.SendStatusFallbackSent); err != nil {
			return fmt.Errorf("failed to update send status to fallback sent: %w", err)
		}
	case delivery.OutcomePermanentlyFailed:
		if err := s.sends.UpdateStatus(ctx, send.ID, domain.SendStatusFailed); err != nil {
			return fmt.Errorf("failed to update send status to failed: %w", err)
		}
	}

	return nil
}

// failWithoutProvider marks a send failed for errors detected before the
// provider call. These are permanent and bypass the retry coordinator.
func (s *WorkerService) failWithoutProvider(
	ctx context.Context,
	send *domain.Send,
	msg queue.SendMessage,
	categoryName string,
	reason string,
	message string,
) error {
	errText := message
	attempt := &domain.DeliveryAttempt{
		ID:            uuid.NewString(),
		SendID:        send.ID,
		AttemptNumber: msg.Attempt,
		Error:         &errText,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	if err := s.sends.UpdateStatus(ctx, send.ID, domain.SendStatusFailed); err != nil {
		return fmt.Errorf("failed to update send status to failed: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncSendFailed(categoryName, reason)
	}
	s.logger.Warn("send failed before provider call",
		zap.String("sendId", send.ID),
		zap.String("template", msg.TemplateName),
		zap.String("reason", reason),
		zap.String("detail", message),
	)

	return nil
}

func (s *WorkerService) recordAttempt(
	ctx context.Context,
	sendID string,
	attemptNumber int,
	providerResp *provider.ProviderResponse,
	sendErr error,
	classification *string,
) error {
	var statusCode *int
	var responseBody *string
	var attemptErr *string

	if providerResp != nil {
		if providerResp.StatusCode > 0 {
			value := providerResp.StatusCode
			statusCode = &value
		}
		if body := strings.TrimSpace(providerResp.Body); body != "" {
			value := providerResp.Body
			responseBody = &value
		}
	}

	if sendErr != nil {
		value := sendErr.Error()
		attemptErr = &value

		if code := provider.StatusCodeOf(sendErr); code > 0 && statusCode == nil {
			statusCode = &code
		}
	}

	attempt := &domain.DeliveryAttempt{
		ID:             uuid.NewString(),
		SendID:         sendID,
		AttemptNumber:  attemptNumber,
		StatusCode:     statusCode,
		ResponseBody:   responseBody,
		Error:          attemptErr,
		Classification: classification,
		CreatedAt:      s.now().UTC(),
	}

	return s.attempts.Create(ctx, attempt)
}
