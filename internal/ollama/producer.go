// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	lcollama "github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/prompt"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/stream"
)

// Defaults used when Config leaves them empty.
const (
	DefaultURL   = "http://localhost:11434"
	DefaultModel = "llama3.1"
)

// Config configures the producer.
type Config struct {
	URL       string
	Model     string
	RateLimit float64
	Burst     int
}

// Producer answers questions with a local model. Answers carry no web
// sources. Only image attachments are forwarded.
type Producer struct {
	llm     llms.Model
	model   string
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// New creates a producer talking to the Ollama server at cfg.URL.
func New(cfg Config) (*Producer, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	llm, err := lcollama.New(
		lcollama.WithModel(cfg.Model),
		lcollama.WithServerURL(cfg.URL),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}
	return newProducer(llm, cfg), nil
}

func newProducer(llm llms.Model, cfg Config) *Producer {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := max(cfg.Burst, 1)
	return &Producer{
		llm:     llm,
		model:   cfg.Model,
		limiter: rate.NewLimiter(limit, burst),
		logger:  log.Logger.With().Str("component", "ollama").Str("model", cfg.Model).Logger(),
	}
}

// Model returns the model name.
func (p *Producer) Model() string {
	return p.model
}

// Stream starts generation in the background. The streaming callback hands
// each chunk over an unbuffered channel, so generation advances only as
// fast as the sequence is consumed.
func (p *Producer) Stream(ctx context.Context, req stream.Request) (stream.Sequence, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, classify(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	seq := &chunkSequence{
		chunks: make(chan string),
		done:   make(chan error, 1),
		cancel: cancel,
	}
	go func() {
		defer close(seq.done)
		_, err := p.llm.GenerateContent(ctx, p.messages(req),
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				select {
				case seq.chunks <- string(chunk):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}))
		close(seq.chunks)
		seq.done <- err
	}()
	return seq, nil
}

// Generate returns the whole answer in one call.
func (p *Producer) Generate(ctx context.Context, req stream.Request) (stream.Answer, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return stream.Answer{}, classify(err)
	}
	resp, err := p.llm.GenerateContent(ctx, p.messages(req))
	if err != nil {
		return stream.Answer{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return stream.Answer{}, &ClientError{Message: "no response choices"}
	}
	return stream.Answer{Text: resp.Choices[0].Content, Sources: []model.Source{}}, nil
}

func (p *Producer) messages(req stream.Request) []llms.MessageContent {
	parts := make([]llms.ContentPart, 0, len(req.Attachments)+1)
	for _, a := range req.Attachments {
		if !strings.HasPrefix(a.MIMEType, "image/") {
			p.logger.Warn().Str("file", a.Name).Str("mime", a.MIMEType).Msg("local model accepts only images, skipping attachment")
			continue
		}
		parts = append(parts, llms.BinaryPart(a.MIMEType, a.Data))
	}
	parts = append(parts, llms.TextPart(prompt.Technician(req.Question)))
	return []llms.MessageContent{{Role: llms.ChatMessageTypeHuman, Parts: parts}}
}

// =============================================================================
// CHUNK SEQUENCE
// =============================================================================

type chunkSequence struct {
	chunks chan string
	done   chan error
	cancel context.CancelFunc
	final  bool
}

func (s *chunkSequence) Next(ctx context.Context) (stream.Unit, error) {
	for {
		select {
		case <-ctx.Done():
			return stream.Unit{}, ctx.Err()
		case chunk, ok := <-s.chunks:
			if ok {
				if chunk == "" {
					continue
				}
				return stream.Unit{Fragment: chunk}, nil
			}
			if err := <-s.done; err != nil {
				return stream.Unit{}, classify(err)
			}
			if s.final {
				return stream.Unit{}, io.EOF
			}
			s.final = true
			return stream.Unit{Final: true, Sources: []model.Source{}}, nil
		}
	}
}

func (s *chunkSequence) Close() error {
	s.cancel()
	return nil
}
