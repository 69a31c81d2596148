package delivery

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"template-pipeline/internal/observability"
)

// Outcome is the terminal-or-transition result of a failure decision.
type Outcome string

const (
	OutcomeRetrying          Outcome = "RETRYING"
	OutcomeFallbackAttempted Outcome = "FALLBACK_ATTEMPTED"
	OutcomePermanentlyFailed Outcome = "PERMANENTLY_FAILED"
)

func (o Outcome) String() string { return string(o) }

// Decision is the structured, loggable result of handling one failure.
// Delivery errors are never raised out of the coordinator; every failure is
// representable as data for the caller to act on.
type Decision struct {
	Outcome          Outcome
	Class            FailureClass
	TemplateName     string
	Recipient        string
	Delay            time.Duration
	NextAttempt      int
	FallbackTemplate string
}

// Config carries the retry tunables, resolved once at construction.
type Config struct {
	MaxRetries        int
	BaseDelay         time.Duration
	BackoffMultiplier float64
	// PaymentDelayFactor extends the backoff of payment-class retries.
	// Inferred from observed provider behavior, not a protocol requirement.
	PaymentDelayFactor float64
	// FallbackAnyAttempt lifts the first-attempt-only restriction on
	// fallback substitution for payment-class failures.
	FallbackAnyAttempt bool
}

const (
	defaultMaxRetries         = 3
	defaultBaseDelay          = 5 * time.Second
	defaultBackoffMultiplier  = 2.0
	defaultPaymentDelayFactor = 2.0
)

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.BackoffMultiplier <= 1 {
		c.BackoffMultiplier = defaultBackoffMultiplier
	}
	if c.PaymentDelayFactor <= 0 {
		c.PaymentDelayFactor = defaultPaymentDelayFactor
	}
	return c
}

// DispatchFunc re-enqueues a send attempt. The coordinator invokes it when a
// scheduled retry fires and, synchronously, when a fallback template is
// substituted.
type DispatchFunc func(ctx context.Context, templateName string, recipient string, attempt int)

type pairKey struct {
	recipient    string
	templateName string
}

// Coordinator owns the per-(recipient, template) failure state machine:
// Attempting → {Succeeded, Retrying, FallbackAttempted, PermanentlyFailed}.
// A superseding failure for a pair replaces the pending retry timer rather
// than racing it, and Shutdown cancels everything so no timer fires after
// teardown.
type Coordinator struct {
	cfg       Config
	fallbacks *FallbackMapping
	dispatch  DispatchFunc
	logger    *zap.Logger
	metrics   *observability.Metrics

	mu      sync.Mutex
	pending map[pairKey]*time.Timer
	closed  bool
}

func NewCoordinator(cfg Config, fallbacks *FallbackMapping, dispatch DispatchFunc, logger *zap.Logger) (*Coordinator, error) {
	if dispatch == nil {
		return nil, fmt.Errorf("dispatch func is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		cfg:       cfg.withDefaults(),
		fallbacks: fallbacks,
		dispatch:  dispatch,
		logger:    logger,
		pending:   make(map[pairKey]*time.Timer),
	}, nil
}

func (c *Coordinator) SetMetrics(metrics *observability.Metrics) {
	if c == nil {
		return
	}
	c.metrics = metrics
}

// HandleFailure classifies a send failure and decides the next transition.
func (c *Coordinator) HandleFailure(ctx context.Context, failure Failure) Decision {
	class := Classify(failure)
	decision := Decision{
		Class:        class,
		TemplateName: failure.TemplateName,
		Recipient:    failure.Recipient,
	}

	switch class {
	case ClassPaymentIssue:
		if substitute, ok := c.fallbackFor(failure); ok {
			// Substitution does not consume retry budget.
			decision.Outcome = OutcomeFallbackAttempted
			decision.FallbackTemplate = substitute
			decision.NextAttempt = failure.Attempt
			c.cancelPending(failure)
			c.record(failure, decision)
			c.dispatch(ctx, substitute, failure.Recipient, failure.Attempt)
			return decision
		}

		decision.Outcome = OutcomeRetrying
		decision.Delay = c.paymentDelay(failure.Attempt)
		decision.NextAttempt = failure.Attempt + 1
		c.schedule(failure, decision)
		c.record(failure, decision)
		return decision

	case ClassTemplateInvalid:
		// The template itself is rejected; retrying cannot succeed.
		if substitute, ok := c.fallbacks.Resolve(failure.TemplateName); ok {
			decision.Outcome = OutcomeFallbackAttempted
			decision.FallbackTemplate = substitute
			decision.NextAttempt = failure.Attempt
			c.cancelPending(failure)
			c.record(failure, decision)
			c.dispatch(ctx, substitute, failure.Recipient, failure.Attempt)
			return decision
		}

		decision.Outcome = OutcomePermanentlyFailed
		c.cancelPending(failure)
		c.record(failure, decision)
		return decision

	default:
		if failure.Attempt < c.cfg.MaxRetries {
			decision.Outcome = OutcomeRetrying
			decision.Delay = c.genericDelay(failure.Attempt)
			decision.NextAttempt = failure.Attempt + 1
			c.schedule(failure, decision)
			c.record(failure, decision)
			return decision
		}

		decision.Outcome = OutcomePermanentlyFailed
		c.cancelPending(failure)
		c.record(failure, decision)
		return decision
	}
}

// Resolve clears pending retry state for a pair after a successful send.
func (c *Coordinator) Resolve(recipient, templateName string) {
	key := pairKey{recipient: recipient, templateName: templateName}

	c.mu.Lock()
	defer c.mu.Unlock()
	if timer, ok := c.pending[key]; ok {
		timer.Stop()
		delete(c.pending, key)
	}
}

// PendingRetries reports the number of scheduled, not yet fired retries.
func (c *Coordinator) PendingRetries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Shutdown cancels every pending retry timer. No timer fires afterwards.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for key, timer := range c.pending {
		timer.Stop()
		delete(c.pending, key)
	}
}

// genericDelay is baseDelay * multiplier^(attempt-1).
func (c *Coordinator) genericDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := math.Pow(c.cfg.BackoffMultiplier, float64(attempt-1))
	return time.Duration(float64(c.cfg.BaseDelay) * factor)
}

// paymentDelay is baseDelay * multiplier^attempt * paymentDelayFactor.
func (c *Coordinator) paymentDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	factor := math.Pow(c.cfg.BackoffMultiplier, float64(attempt))
	return time.Duration(float64(c.cfg.BaseDelay) * factor * c.cfg.PaymentDelayFactor)
}

func (c *Coordinator) fallbackFor(failure Failure) (string, bool) {
	substitute, ok := c.fallbacks.Resolve(failure.TemplateName)
	if !ok {
		return "", false
	}
	if failure.Attempt > 1 && !c.cfg.FallbackAnyAttempt {
		return "", false
	}
	return substitute, true
}

// schedule arms the retry timer for the failure's pair, replacing any
// pending one so a superseding failure never races an older timer.
func (c *Coordinator) schedule(failure Failure, decision Decision) {
	key := pairKey{recipient: failure.Recipient, templateName: failure.TemplateName}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if timer, ok := c.pending[key]; ok {
		timer.Stop()
	}

	nextAttempt := decision.NextAttempt
	c.pending[key] = time.AfterFunc(decision.Delay, func() {
		c.fire(key, nextAttempt)
	})
}

func (c *Coordinator) fire(key pairKey, attempt int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	delete(c.pending, key)
	c.mu.Unlock()

	c.dispatch(context.Background(), key.templateName, key.recipient, attempt)
}

func (c *Coordinator) cancelPending(failure Failure) {
	key := pairKey{recipient: failure.Recipient, templateName: failure.TemplateName}

	c.mu.Lock()
	defer c.mu.Unlock()
	if timer, ok := c.pending[key]; ok {
		timer.Stop()
		delete(c.pending, key)
	}
}

// record logs the transition and updates counters. Failures are never
// silently dropped.
func (c *Coordinator) record(failure Failure, decision Decision) {
	c.logger.Info("delivery failure handled",
		zap.String("recipient", failure.Recipient),
		zap.String("template", failure.TemplateName),
		zap.Int("attempt", failure.Attempt),
		zap.Int("statusCode", failure.StatusCode),
		zap.String("class", decision.Class.String()),
		zap.String("outcome", decision.Outcome.String()),
		zap.Duration("delay", decision.Delay),
		zap.String("fallbackTemplate", decision.FallbackTemplate),
	)

	if c.metrics == nil {
		return
	}
	switch decision.Outcome {
	case OutcomeRetrying:
		c.metrics.IncRetryScheduled(decision.Class.String())
	case OutcomeFallbackAttempted:
		c.metrics.IncFallbackAttempted()
	case OutcomePermanentlyFailed:
		c.metrics.IncSendFailed("", decision.Class.String())
	}
}
