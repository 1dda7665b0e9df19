// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendTranscript(t *testing.T) {
	tests := []struct {
		name       string
		question   string
		transcript string
		want       string
	}{
		{"empty draft", "", "асансьорът спира", "асансьорът спира"},
		{"appends with one space", "Вратата  ", "не се затваря", "Вратата не се затваря"},
		{"whitespace draft", "   ", "hello", "hello"},
		{"empty transcript", "draft", "  ", "draft"},
		// "й" as и + combining breve becomes the single code point.
		{"normalizes to NFC", "", "\u0438\u0306", "\u0439"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AppendTranscript(tc.question, tc.transcript))
		})
	}
}

func TestLineRecognizer_InterimAndFinal(t *testing.T) {
	rec := NewLineRecognizer(strings.NewReader("~асан\n~асансьор\nасансьорът спира\n\n"))

	results, err := rec.Start(context.Background())
	require.NoError(t, err)

	var got []Result
	for r := range results {
		got = append(got, r)
	}

	assert.Equal(t, []Result{
		{Text: "асан"},
		{Text: "асансьор"},
		{Text: "асансьорът спира", Final: true},
	}, got)

	_, err = rec.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyListening)
}

func TestListen_DeliversOnlyFinalTrimmed(t *testing.T) {
	rec := NewLineRecognizer(strings.NewReader("~partial\n  first  \n~more\nsecond\n"))

	var got []string
	err := Listen(context.Background(), rec, func(text string) {
		got = append(got, text)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestListenOnce_StopsAfterFirstFinal(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		_, _ = io.WriteString(pw, "~int\nГотово\n")
		// The writer stays open; ListenOnce must return without EOF.
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	text, err := ListenOnce(ctx, NewLineRecognizer(pr))
	require.NoError(t, err)
	assert.Equal(t, "Готово", text)
	_ = pw.Close()
}

func TestNewCommandRecognizer_Unsupported(t *testing.T) {
	_, err := NewCommandRecognizer(nil, "bg-BG")
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = NewCommandRecognizer([]string{"definitely-not-a-dictation-tool-xyz"}, "bg-BG")
	assert.ErrorIs(t, err, ErrUnsupported)

	assert.ErrorIs(t, Listen(context.Background(), nil, func(string) {}), ErrUnsupported)
}
