// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"context"
	"iter"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/prompt"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/stream"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// UserMessage is what the user sees when the service cannot be reached.
const UserMessage = "Неуспешно свързване с AI услугата."

// ErrUnavailable matches every *ServiceError.
var ErrUnavailable = errors.New("gemini service unavailable")

// ServiceError wraps any failure talking to Gemini. Its message is
// UserMessage; the cause stays reachable through Unwrap.
type ServiceError struct {
	Cause error
}

func (e *ServiceError) Error() string {
	return UserMessage
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrUnavailable.
func (e *ServiceError) Is(target error) bool {
	return target == ErrUnavailable
}

func unavailable(err error) error {
	return &ServiceError{Cause: err}
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config configures the producer.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	GoogleSearch bool
	RateLimit    float64 // requests per second, 0 disables pacing
	Burst        int
}

// models is the part of *genai.Models the producer uses.
type models interface {
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// =============================================================================
// PRODUCER
// =============================================================================

// Producer answers questions with Gemini. It implements both stream.Producer
// and stream.SingleShot.
type Producer struct {
	models       models
	model        string
	googleSearch bool
	limiter      *rate.Limiter
	logger       zerolog.Logger
}

// New creates a producer backed by the Gemini API.
func New(ctx context.Context, cfg Config) (*Producer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gemini client")
	}
	return newProducer(client.Models, cfg), nil
}

func newProducer(m models, cfg Config) *Producer {
	name := cfg.Model
	if name == "" {
		name = DefaultModel
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Producer{
		models:       m,
		model:        name,
		googleSearch: cfg.GoogleSearch,
		limiter:      rate.NewLimiter(limit, burst),
		logger:       log.Logger.With().Str("component", "gemini").Str("model", name).Logger(),
	}
}

// Model returns the model name.
func (p *Producer) Model() string {
	return p.model
}

// Stream opens a streaming answer. Text arrives as fragments; the web
// sources gathered across all responses come in one final unit.
func (p *Producer) Stream(ctx context.Context, req stream.Request) (stream.Sequence, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, unavailable(err)
	}
	p.logger.Debug().Int("attachments", len(req.Attachments)).Msg("streaming answer")

	responses := p.models.GenerateContentStream(ctx, p.model, contents(req), p.generateConfig())
	return stream.FromSeq(func(yield func(stream.Unit, error) bool) {
		sources := newSourceCollector()
		for resp, err := range responses {
			if err != nil {
				yield(stream.Unit{}, unavailable(err))
				return
			}
			sources.add(resp)
			if text := resp.Text(); text != "" {
				if !yield(stream.Unit{Fragment: text}, nil) {
					return
				}
			}
		}
		yield(stream.Unit{Final: true, Sources: sources.result()}, nil)
	}), nil
}

// Generate returns the whole answer in one call.
func (p *Producer) Generate(ctx context.Context, req stream.Request) (stream.Answer, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return stream.Answer{}, unavailable(err)
	}
	resp, err := p.models.GenerateContent(ctx, p.model, contents(req), p.generateConfig())
	if err != nil {
		return stream.Answer{}, unavailable(err)
	}
	sources := newSourceCollector()
	sources.add(resp)
	return stream.Answer{Text: resp.Text(), Sources: sources.result()}, nil
}

func (p *Producer) generateConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if p.googleSearch {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return cfg
}

// contents puts the attachments ahead of the prompt in a single user turn.
func contents(req stream.Request) []*genai.Content {
	parts := make([]*genai.Part, 0, len(req.Attachments)+1)
	for _, a := range req.Attachments {
		parts = append(parts, genai.NewPartFromBytes(a.Data, a.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(prompt.Technician(req.Question)))
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}
