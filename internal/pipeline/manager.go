// Package pipeline owns the order lifecycle: it validates submissions,
// schedules execution and performs every status transition.
package pipeline

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"studio/internal/domain"
	"studio/internal/events"
	"studio/internal/infra"
	"studio/internal/orders"
	"studio/internal/policy"
	"studio/internal/providers"
	"studio/internal/storage"
)

// DefaultDuration applies when a submission does not name one.
const DefaultDuration = 6

// Stage bounds applied when Options leaves them zero.
const (
	DefaultPostProcessTimeout = 5 * time.Minute
	DefaultStorageTimeout     = 5 * time.Minute
)

// finalAttempts bounds retries of the terminal transition on store errors.
const finalAttempts = 5

// Generator produces video bytes. The provider orchestrator satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string, duration int) ([]byte, error)
}

// PostProcessor applies narration and watermark.
type PostProcessor interface {
	Merge(ctx context.Context, video []byte, voiceText string) []byte
	Watermark(ctx context.Context, video []byte, text string) ([]byte, error)
}

// Dispatcher hands a created order to whatever executes it.
type Dispatcher interface {
	Dispatch(ctx context.Context, orderID string) error
}

// SubmitRequest is a validated-by-Submit order request.
type SubmitRequest struct {
	UserID    string
	Email     string
	Plan      string
	Prompt    string
	Duration  int
	VoiceText string
	Country   string
}

// Submission reports a created order. Task is set when the order runs in
// this process.
type Submission struct {
	OrderID string
	Status  domain.OrderStatus
	Task    *Task
}

// Options wires the manager. Dispatcher nil means inline execution on an
// internal Runner with Concurrency slots.
type Options struct {
	Store         orders.Store
	Generator     Generator
	PostProcessor PostProcessor
	Artifacts     storage.ArtifactStore
	Events        events.Publisher
	Dispatcher    Dispatcher
	Concurrency   int
	AdminSecret   string
	WatermarkText string
	// PostProcessTimeout bounds voice merge and watermark separately.
	PostProcessTimeout time.Duration
	StorageTimeout     time.Duration
	Now                func() time.Time
	NewID              func() string
	Logger             *infra.Logger
}

// Manager is the only component that mutates order status.
type Manager struct {
	store         orders.Store
	generator     Generator
	post          PostProcessor
	artifacts     storage.ArtifactStore
	events        events.Publisher
	dispatcher    Dispatcher
	runner        *Runner
	adminSecret   []byte
	watermarkText string
	postTimeout   time.Duration
	putTimeout    time.Duration
	retryDelay    time.Duration
	now           func() time.Time
	newID         func() string
	logger        *infra.Logger
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		store:         opts.Store,
		generator:     opts.Generator,
		post:          opts.PostProcessor,
		artifacts:     opts.Artifacts,
		events:        opts.Events,
		dispatcher:    opts.Dispatcher,
		adminSecret:   []byte(opts.AdminSecret),
		watermarkText: opts.WatermarkText,
		postTimeout:   opts.PostProcessTimeout,
		putTimeout:    opts.StorageTimeout,
		retryDelay:    200 * time.Millisecond,
		now:           opts.Now,
		newID:         opts.NewID,
		logger:        infra.OrDiscard(opts.Logger),
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	if m.events == nil {
		m.events = events.NewLogPublisher(m.logger)
	}
	if m.postTimeout <= 0 {
		m.postTimeout = DefaultPostProcessTimeout
	}
	if m.putTimeout <= 0 {
		m.putTimeout = DefaultStorageTimeout
	}
	if strings.TrimSpace(m.watermarkText) == "" {
		m.watermarkText = "Kairah Studio"
	}
	if m.dispatcher == nil {
		m.runner = NewRunner(opts.Concurrency, m.logger)
	}
	return m
}

// Submit validates req against the plan, creates a pending order and
// schedules it. Nothing is persisted when validation fails.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (Submission, error) {
	limits, err := policy.LimitsFor(req.Plan)
	if err != nil {
		return Submission{}, fmt.Errorf("%w: %q", domain.ErrInvalidPlan, req.Plan)
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return Submission{}, fmt.Errorf("%w: userId is required", domain.ErrPolicyViolation)
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return Submission{}, fmt.Errorf("%w: prompt is required", domain.ErrPolicyViolation)
	}
	duration := req.Duration
	if duration == 0 {
		duration = DefaultDuration
	}
	if duration < 0 {
		return Submission{}, fmt.Errorf("%w: duration must be positive", domain.ErrPolicyViolation)
	}
	if duration > limits.MaxDuration {
		return Submission{}, fmt.Errorf("%w: %ds > %ds", domain.ErrDurationExceeded, duration, limits.MaxDuration)
	}

	now := m.now().UTC()
	if limits.MaxPerDay != nil {
		count, err := m.store.CountCreatedSince(ctx, userID, orders.StartOfUTCDay(now))
		if err != nil {
			return Submission{}, fmt.Errorf("pipeline: count orders: %w", err)
		}
		if count >= *limits.MaxPerDay {
			return Submission{}, fmt.Errorf("%w: %d of %d used today", domain.ErrQuotaExceeded, count, *limits.MaxPerDay)
		}
	}

	order := domain.Order{
		ID:                m.newID(),
		UserID:            userID,
		Email:             strings.TrimSpace(req.Email),
		Plan:              policy.Normalize(req.Plan),
		Prompt:            prompt,
		Duration:          duration,
		VoiceText:         strings.TrimSpace(req.VoiceText),
		WatermarkRequired: limits.WatermarkRequired,
		Country:           req.Country,
		Status:            domain.OrderStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := m.store.Create(ctx, order); err != nil {
		return Submission{}, fmt.Errorf("pipeline: create order: %w", err)
	}
	m.logger.Info().
		Str("order_id", order.ID).
		Str("plan", order.Plan).
		Int("duration", order.Duration).
		Bool("voice", order.WantsVoice()).
		Msg("pipeline: order created")

	sub := Submission{OrderID: order.ID, Status: order.Status}
	if m.runner != nil {
		sub.Task = m.runner.Spawn(order.ID, m.Execute)
		return sub, nil
	}
	if err := m.dispatcher.Dispatch(ctx, order.ID); err != nil {
		// The order stays pending; the worker's reconcile loop picks it up.
		m.logger.Error().Err(err).Str("order_id", order.ID).Msg("pipeline: dispatch failed")
	}
	return sub, nil
}

// Execute runs one order from pending to a terminal status. Losing the
// initial pending -> processing race returns domain.ErrInvalidTransition
// with no side effects.
func (m *Manager) Execute(ctx context.Context, orderID string) error {
	order, err := m.store.Transition(ctx, orderID, domain.Transition{
		From: domain.OrderStatusPending,
		To:   domain.OrderStatusProcessing,
		At:   m.now(),
	})
	if err != nil {
		return err
	}
	log := m.logger.With().Str("order_id", orderID).Logger()
	log.Info().Msg("pipeline: processing")

	location, runErr := m.produce(ctx, order)

	// The final transition must land even if ctx has expired.
	final := context.WithoutCancel(ctx)
	next := domain.Transition{From: domain.OrderStatusProcessing, At: m.now()}
	if runErr != nil {
		next.To = domain.OrderStatusFailed
		next.FailureReason = failureReason(runErr)
		log.Error().Err(runErr).Str("reason", next.FailureReason).Msg("pipeline: order failed")
	} else {
		next.To = domain.OrderStatusCompleted
		next.ResultLocation = location
	}

	updated, err := m.finalize(final, log, orderID, next)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			log.Warn().Str("status", string(next.To)).Msg("pipeline: order changed while running; result discarded")
		} else {
			log.Error().Err(err).Str("status", string(next.To)).Msg("pipeline: final transition failed")
		}
		if runErr != nil {
			return runErr
		}
		return err
	}
	if runErr == nil {
		log.Info().Str("location", location).Msg("pipeline: order completed")
	}
	m.publish(final, updated, false)
	return runErr
}

// produce runs the generation stages in order and uploads the artifact.
func (m *Manager) produce(ctx context.Context, order domain.Order) (location string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pipeline: panic: %v", rec)
		}
	}()

	video, err := m.generator.Generate(ctx, order.Prompt, order.Duration)
	if err != nil {
		return "", err
	}
	if order.WantsVoice() {
		mergeCtx, cancel := context.WithTimeout(ctx, m.postTimeout)
		video = m.post.Merge(mergeCtx, video, order.VoiceText)
		cancel()
	}
	if order.WatermarkRequired {
		video, err = m.watermark(ctx, video)
		if err != nil {
			return "", err
		}
	}
	return m.put(ctx, order.ID, video)
}

func (m *Manager) watermark(ctx context.Context, video []byte) ([]byte, error) {
	stageCtx, cancel := context.WithTimeout(ctx, m.postTimeout)
	defer cancel()

	out, err := m.post.Watermark(stageCtx, video, m.watermarkText)
	switch {
	case err == nil:
		return out, nil
	case stageCtx.Err() != nil && ctx.Err() == nil:
		return nil, fmt.Errorf("%w: watermark exceeded %s", domain.ErrPostProcessFailure, m.postTimeout)
	case errors.Is(err, domain.ErrPostProcessFailure):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: %v", domain.ErrPostProcessFailure, err)
	}
}

func (m *Manager) put(ctx context.Context, orderID string, video []byte) (string, error) {
	stageCtx, cancel := context.WithTimeout(ctx, m.putTimeout)
	defer cancel()

	location, err := m.artifacts.Put(stageCtx, ArtifactKey(orderID), video)
	if err != nil {
		if stageCtx.Err() != nil && ctx.Err() == nil {
			return "", fmt.Errorf("%w: upload exceeded %s", domain.ErrStorageFailure, m.putTimeout)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}
	return location, nil
}

// finalize applies the terminal transition, retrying store errors with
// backoff. A lost CAS or a vanished order is returned at once.
func (m *Manager) finalize(ctx context.Context, log infra.Logger, orderID string, next domain.Transition) (domain.Order, error) {
	delay := m.retryDelay
	for attempt := 1; ; attempt++ {
		order, err := m.store.Transition(ctx, orderID, next)
		if err == nil || attempt >= finalAttempts ||
			errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrNotFound) {
			return order, err
		}
		log.Warn().Err(err).Int("attempt", attempt).Str("status", string(next.To)).Msg("pipeline: final transition failed; retrying")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return order, err
		case <-timer.C:
		}
		delay *= 2
	}
}

// MarkCompleted forces an order to completed with a manual locator. The
// secret is checked before the order is looked up.
func (m *Manager) MarkCompleted(ctx context.Context, orderID, secret string) (domain.Order, error) {
	if len(m.adminSecret) == 0 || subtle.ConstantTimeCompare([]byte(secret), m.adminSecret) != 1 {
		return domain.Order{}, domain.ErrUnauthorized
	}
	order, err := m.store.ForceComplete(ctx, orderID, ManualLocation(orderID), m.now())
	if err != nil {
		return domain.Order{}, err
	}
	m.logger.Warn().Str("order_id", orderID).Msg("pipeline: order marked completed by admin")
	m.publish(ctx, order, true)
	return order, nil
}

// Drain waits for in-process executions to finish.
func (m *Manager) Drain(ctx context.Context) error {
	if m.runner == nil {
		return nil
	}
	return m.runner.Drain(ctx)
}

func (m *Manager) publish(ctx context.Context, order domain.Order, manual bool) {
	evt, ok := events.FromOrder(order, manual)
	if !ok {
		return
	}
	if err := m.events.Publish(ctx, evt); err != nil {
		m.logger.Warn().Err(err).Str("order_id", order.ID).Str("event", evt.Type).Msg("pipeline: event publish failed")
	}
}

// ArtifactKey is the storage key of an order's video.
func ArtifactKey(orderID string) string {
	return "orders/" + orderID + ".mp4"
}

// ManualLocation is the locator recorded by an administrative completion.
func ManualLocation(orderID string) string {
	return "manual:" + ArtifactKey(orderID)
}

// failureReason maps an execution error to a short client-facing reason.
// Raw provider messages are never exposed.
func failureReason(err error) string {
	var perr *providers.ProviderError
	switch {
	case errors.As(err, &perr) && perr.TimedOut():
		return "provider_failure: generation timed out"
	case errors.Is(err, domain.ErrProviderFailure):
		return "provider_failure: all providers failed"
	case errors.Is(err, domain.ErrPostProcessFailure):
		return "postprocess_failure: watermark failed"
	case errors.Is(err, domain.ErrStorageFailure):
		return "storage_failure: upload failed"
	default:
		return "internal_failure"
	}
}
