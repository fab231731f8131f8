// Package providers chains generation and speech providers behind ordered
// fallback with a wall-clock bound per attempt.
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/providers/video"
	"studio/internal/providers/voice"
)

// DefaultTimeout bounds a single provider attempt when a link sets none.
const DefaultTimeout = 15 * time.Minute

// VideoLink is one entry of the generation chain.
type VideoLink struct {
	Name      string
	Generator video.Generator
	Timeout   time.Duration
}

// VoiceLink is one entry of the speech chain.
type VoiceLink struct {
	Name    string
	Speaker voice.Speaker
	Timeout time.Duration
}

// Attempt records one failed provider call.
type Attempt struct {
	Provider string
	Err      error
}

// ProviderError is returned when every provider of a chain failed. It
// matches domain.ErrProviderFailure and the last attempt's cause.
type ProviderError struct {
	Op       string
	Attempts []Attempt
}

func (e *ProviderError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("%s: no providers configured", e.Op)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Provider, a.Err))
	}
	return fmt.Sprintf("%s failed (%s)", e.Op, strings.Join(parts, "; "))
}

func (e *ProviderError) Unwrap() []error {
	if last := e.Last(); last != nil {
		return []error{domain.ErrProviderFailure, last}
	}
	return []error{domain.ErrProviderFailure}
}

// Last returns the cause of the final attempt, or nil.
func (e *ProviderError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// TimedOut reports whether the final attempt ended on its deadline or ran
// out of polls.
func (e *ProviderError) TimedOut() bool {
	last := e.Last()
	return errors.Is(last, context.DeadlineExceeded) || errors.Is(last, video.ErrPollTimeout)
}

// Options wires the chains.
type Options struct {
	Video  []VideoLink
	Voice  []VoiceLink
	Logger *infra.Logger
}

// Orchestrator tries providers in order and returns the first success.
type Orchestrator struct {
	video  []VideoLink
	voice  []VoiceLink
	logger *infra.Logger
}

func NewOrchestrator(opts Options) *Orchestrator {
	return &Orchestrator{
		video:  append([]VideoLink(nil), opts.Video...),
		voice:  append([]VoiceLink(nil), opts.Voice...),
		logger: infra.OrDiscard(opts.Logger),
	}
}

// HasVoice reports whether any speech provider is configured.
func (o *Orchestrator) HasVoice() bool {
	return len(o.voice) > 0
}

// Generate returns video bytes from the first provider that succeeds.
func (o *Orchestrator) Generate(ctx context.Context, prompt string, duration int) ([]byte, error) {
	links := make([]link, len(o.video))
	for i, l := range o.video {
		gen := l.Generator
		links[i] = link{name: l.Name, timeout: l.Timeout, call: func(ctx context.Context) ([]byte, error) {
			return gen.Generate(ctx, video.Request{Prompt: prompt, Duration: duration})
		}}
	}
	return o.run(ctx, "generation", links)
}

// Speak returns narration audio from the first speech provider that succeeds.
func (o *Orchestrator) Speak(ctx context.Context, text string) ([]byte, error) {
	links := make([]link, len(o.voice))
	for i, l := range o.voice {
		speaker := l.Speaker
		links[i] = link{name: l.Name, timeout: l.Timeout, call: func(ctx context.Context) ([]byte, error) {
			return speaker.Speak(ctx, text)
		}}
	}
	return o.run(ctx, "speech", links)
}

type link struct {
	name    string
	timeout time.Duration
	call    func(ctx context.Context) ([]byte, error)
}

func (o *Orchestrator) run(ctx context.Context, op string, links []link) ([]byte, error) {
	perr := &ProviderError{Op: op}
	for _, l := range links {
		if err := ctx.Err(); err != nil {
			perr.Attempts = append(perr.Attempts, Attempt{Provider: l.name, Err: err})
			break
		}
		data, err := o.attempt(ctx, l)
		if err == nil {
			o.logger.Info().Str("provider", l.name).Str("op", op).Int("bytes", len(data)).Msg("providers: attempt succeeded")
			return data, nil
		}
		o.logger.Warn().Err(err).Str("provider", l.name).Str("op", op).Msg("providers: attempt failed")
		perr.Attempts = append(perr.Attempts, Attempt{Provider: l.name, Err: err})
	}
	return nil, perr
}

func (o *Orchestrator) attempt(ctx context.Context, l link) ([]byte, error) {
	timeout := l.timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := l.call(callCtx)
	if err != nil {
		if callCtx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("exceeded %s: %w", timeout, context.DeadlineExceeded)
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty result")
	}
	return data, nil
}
