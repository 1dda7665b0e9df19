// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrUnsupported means no speech recognizer is available.
	ErrUnsupported = errors.New("speech recognition is not supported")

	// ErrAlreadyListening means Start was called on a running recognizer.
	ErrAlreadyListening = errors.New("recognizer is already listening")
)

// InterimPrefix marks a line carrying an interim (non-final) result.
const InterimPrefix = "~"

// Result is one recognition result.
type Result struct {
	Text  string
	Final bool
}

// Recognizer produces speech recognition results until stopped or until its
// input ends, then closes the channel.
type Recognizer interface {
	Start(ctx context.Context) (<-chan Result, error)
	Stop()
}

// =============================================================================
// LINE RECOGNIZER
// =============================================================================

// LineRecognizer reads one utterance per line. Lines starting with "~" are
// interim results; every other non-empty line is final.
type LineRecognizer struct {
	r io.Reader

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

// NewLineRecognizer reads results from r.
func NewLineRecognizer(r io.Reader) *LineRecognizer {
	return &LineRecognizer{r: r}
}

// Start begins reading.
func (l *LineRecognizer) Start(ctx context.Context) (<-chan Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return nil, ErrAlreadyListening
	}
	l.started = true

	ctx, l.cancel = context.WithCancel(ctx)
	out := make(chan Result)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(l.r)
		for scanner.Scan() {
			res, ok := parseLine(scanner.Text())
			if !ok {
				continue
			}
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("dictation input failed")
		}
	}()
	return out, nil
}

// Stop ends delivery. A reader that is also an io.Closer is closed.
func (l *LineRecognizer) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
	if c, ok := l.r.(io.Closer); ok {
		_ = c.Close()
	}
}

func parseLine(line string) (Result, bool) {
	if text, interim := strings.CutPrefix(line, InterimPrefix); interim {
		return Result{Text: text}, strings.TrimSpace(text) != ""
	}
	return Result{Text: line, Final: true}, strings.TrimSpace(line) != ""
}

// =============================================================================
// COMMAND RECOGNIZER
// =============================================================================

// CommandRecognizer runs an external speech-to-text program and reads its
// standard output as a LineRecognizer.
type CommandRecognizer struct {
	Command  []string
	Language string // passed as ELEVATORAPP_VOICE_LANG

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewCommandRecognizer returns ErrUnsupported when command is empty or the
// program cannot be found.
func NewCommandRecognizer(command []string, language string) (*CommandRecognizer, error) {
	if len(command) == 0 {
		return nil, ErrUnsupported
	}
	if _, err := exec.LookPath(command[0]); err != nil {
		return nil, errors.Join(ErrUnsupported, err)
	}
	return &CommandRecognizer{Command: command, Language: language}, nil
}

// Start launches the program.
func (c *CommandRecognizer) Start(ctx context.Context) (<-chan Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil, ErrAlreadyListening
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, c.Command[0], c.Command[1:]...)
	cmd.Env = append(cmd.Environ(), "ELEVATORAPP_VOICE_LANG="+c.Language)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, err
	}
	c.cancel = cancel

	lines, err := NewLineRecognizer(stdout).Start(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan Result)
	go func() {
		defer close(out)
		for res := range lines {
			select {
			case out <- res:
			case <-ctx.Done():
			}
		}
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Strs("command", c.Command).Msg("dictation program exited")
		}
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
	}()
	return out, nil
}

// Stop terminates the program.
func (c *CommandRecognizer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// =============================================================================
// LISTENING
// =============================================================================

// Listen runs rec until ctx is done or the recognizer ends, passing every
// final, trimmed, non-empty transcript to onTranscript.
func Listen(ctx context.Context, rec Recognizer, onTranscript func(string)) error {
	if rec == nil {
		return ErrUnsupported
	}
	results, err := rec.Start(ctx)
	if err != nil {
		return err
	}
	defer rec.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case res, ok := <-results:
			if !ok {
				return nil
			}
			if !res.Final {
				continue
			}
			if text := strings.TrimSpace(res.Text); text != "" {
				onTranscript(text)
			}
		}
	}
}

// ListenOnce returns the first final transcript. It returns "" when the
// recognizer ends without one.
func ListenOnce(ctx context.Context, rec Recognizer) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var transcript string
	err := Listen(ctx, rec, func(text string) {
		if transcript == "" {
			transcript = text
			cancel()
		}
	})
	return transcript, err
}
