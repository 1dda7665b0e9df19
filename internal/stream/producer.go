// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"io"
	"iter"
	"strings"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
)

// =============================================================================
// PRODUCER CONTRACT
// =============================================================================

// Request is one question sent to a producer.
type Request struct {
	Question    string
	Attachments []model.Attachment
}

// Unit is one element of a producer sequence. A unit may carry a text
// fragment, and the final unit carries the grounding sources.
type Unit struct {
	Fragment string
	Final    bool
	Sources  []model.Source
}

// Answer is the complete result of a single-shot producer.
type Answer struct {
	Text    string
	Sources []model.Source
}

// Sequence is a finite, forward-only sequence of units. Next returns io.EOF
// once the sequence is exhausted. Close releases the underlying request and
// may be called at any point.
type Sequence interface {
	Next(ctx context.Context) (Unit, error)
	Close() error
}

// Producer opens a streaming answer for a request.
type Producer interface {
	Stream(ctx context.Context, req Request) (Sequence, error)
}

// SingleShot produces a whole answer in one call.
type SingleShot interface {
	Generate(ctx context.Context, req Request) (Answer, error)
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(ctx context.Context, req Request) (Sequence, error)

// Stream calls f.
func (f ProducerFunc) Stream(ctx context.Context, req Request) (Sequence, error) {
	return f(ctx, req)
}

// SingleShotFunc adapts a function to SingleShot.
type SingleShotFunc func(ctx context.Context, req Request) (Answer, error)

// Generate calls f.
func (f SingleShotFunc) Generate(ctx context.Context, req Request) (Answer, error) {
	return f(ctx, req)
}

// =============================================================================
// SEQUENCE ADAPTERS
// =============================================================================

// FromSeq turns a push iterator into a Sequence. The iterator runs lazily:
// each Next resumes it until it yields one more unit.
func FromSeq(seq iter.Seq2[Unit, error]) Sequence {
	next, stop := iter.Pull2(seq)
	return &pullSequence{next: next, stop: stop}
}

type pullSequence struct {
	next func() (Unit, error, bool)
	stop func()
}

func (p *pullSequence) Next(ctx context.Context) (Unit, error) {
	if err := ctx.Err(); err != nil {
		return Unit{}, err
	}
	unit, err, ok := p.next()
	if !ok {
		return Unit{}, io.EOF
	}
	if err != nil {
		return Unit{}, err
	}
	return unit, nil
}

func (p *pullSequence) Close() error {
	p.stop()
	return nil
}

// FromUnits returns a Sequence over a fixed list of units.
func FromUnits(units ...Unit) Sequence {
	return &sliceSequence{units: units}
}

type sliceSequence struct {
	units []Unit
	pos   int
}

func (s *sliceSequence) Next(ctx context.Context) (Unit, error) {
	if err := ctx.Err(); err != nil {
		return Unit{}, err
	}
	if s.pos >= len(s.units) {
		return Unit{}, io.EOF
	}
	u := s.units[s.pos]
	s.pos++
	return u, nil
}

func (s *sliceSequence) Close() error {
	s.pos = len(s.units)
	return nil
}

// Collect drains a producer's sequence into one Answer, so any Producer can
// serve single-shot mode.
func Collect(p Producer) SingleShot {
	return SingleShotFunc(func(ctx context.Context, req Request) (Answer, error) {
		seq, err := p.Stream(ctx, req)
		if err != nil {
			return Answer{}, err
		}
		defer seq.Close()

		var text strings.Builder
		var sources []model.Source
		for {
			unit, err := seq.Next(ctx)
			if err == io.EOF {
				return Answer{Text: text.String(), Sources: sources}, nil
			}
			if err != nil {
				return Answer{}, err
			}
			text.WriteString(unit.Fragment)
			if unit.Final {
				sources = unit.Sources
			}
		}
	})
}
