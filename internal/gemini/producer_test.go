// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gemini

import (
	"context"
	"errors"
	"io"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/stream"
)

type fakeModels struct {
	responses []*genai.GenerateContentResponse
	err       error

	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.gotModel, f.gotContents, f.gotConfig = model, contents, config
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, r := range f.responses {
			if !yield(r, nil) {
				return
			}
		}
		if f.err != nil {
			yield(nil, f.err)
		}
	}
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel, f.gotContents, f.gotConfig = model, contents, config
	if f.err != nil {
		return nil, f.err
	}
	return f.responses[0], nil
}

func response(text string, web ...*genai.GroundingChunkWeb) *genai.GenerateContentResponse {
	cand := &genai.Candidate{Content: genai.NewContentFromText(text, genai.RoleModel)}
	if len(web) > 0 {
		meta := &genai.GroundingMetadata{}
		for _, w := range web {
			meta.GroundingChunks = append(meta.GroundingChunks, &genai.GroundingChunk{Web: w})
		}
		cand.GroundingMetadata = meta
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{cand}}
}

func drain(t *testing.T, seq stream.Sequence) ([]stream.Unit, error) {
	t.Helper()
	defer seq.Close()
	var units []stream.Unit
	for {
		u, err := seq.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return units, nil
		}
		if err != nil {
			return units, err
		}
		units = append(units, u)
	}
}

func TestStream_FragmentsThenSources(t *testing.T) {
	fake := &fakeModels{responses: []*genai.GenerateContentResponse{
		response("Провери ", &genai.GroundingChunkWeb{URI: "https://a", Title: "A"}),
		response("контактите.",
			&genai.GroundingChunkWeb{URI: "https://b"},
			&genai.GroundingChunkWeb{URI: "https://a", Title: "A again"}),
	}}
	p := newProducer(fake, Config{GoogleSearch: true})

	seq, err := p.Stream(context.Background(), stream.Request{Question: "Защо вратата не се затваря?"})
	require.NoError(t, err)
	units, err := drain(t, seq)
	require.NoError(t, err)

	require.Len(t, units, 3)
	assert.Equal(t, "Провери ", units[0].Fragment)
	assert.Equal(t, "контактите.", units[1].Fragment)
	assert.True(t, units[2].Final)
	assert.Equal(t, []model.Source{
		{URI: "https://a", Title: "A"},
		{URI: "https://b", Title: "https://b"},
	}, units[2].Sources)

	assert.Equal(t, DefaultModel, fake.gotModel)
	require.Len(t, fake.gotConfig.Tools, 1)
	assert.NotNil(t, fake.gotConfig.Tools[0].GoogleSearch)
}

func TestStream_ErrorIsServiceError(t *testing.T) {
	cause := errors.New("429 quota")
	fake := &fakeModels{responses: []*genai.GenerateContentResponse{response("част")}, err: cause}
	p := newProducer(fake, Config{})

	seq, err := p.Stream(context.Background(), stream.Request{Question: "q"})
	require.NoError(t, err)
	units, err := drain(t, seq)

	require.Len(t, units, 1)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, UserMessage, err.Error())
	assert.Nil(t, fake.gotConfig.Tools)
}

func TestGenerate_SingleShot(t *testing.T) {
	fake := &fakeModels{responses: []*genai.GenerateContentResponse{
		response("Цял отговор", &genai.GroundingChunkWeb{URI: "https://c", Title: "C"}),
	}}
	p := newProducer(fake, Config{Model: "gemini-2.5-pro"})

	answer, err := p.Generate(context.Background(), stream.Request{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, "Цял отговор", answer.Text)
	assert.Equal(t, []model.Source{{URI: "https://c", Title: "C"}}, answer.Sources)
	assert.Equal(t, "gemini-2.5-pro", fake.gotModel)
}

func TestContents_AttachmentsBeforePrompt(t *testing.T) {
	req := stream.Request{
		Question: "Какво показва схемата?",
		Attachments: []model.Attachment{
			{Name: "schema.png", MIMEType: "image/png", Data: []byte{0x89, 'P'}},
			{Name: "manual.pdf", MIMEType: "application/pdf", Data: []byte("%PDF")},
		},
	}

	got := contents(req)

	require.Len(t, got, 1)
	assert.Equal(t, string(genai.RoleUser), got[0].Role)
	parts := got[0].Parts
	require.Len(t, parts, 3)
	assert.Equal(t, "image/png", parts[0].InlineData.MIMEType)
	assert.Equal(t, "application/pdf", parts[1].InlineData.MIMEType)
	assert.Contains(t, parts[2].Text, `"Какво показва схемата?"`)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}
