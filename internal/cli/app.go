// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog/log"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/bootstrap"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/config"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/conversation"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/gemini"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/logging"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/ollama"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/session"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/share"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/storage"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/stream"
)

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// app is one process worth of wired components.
type app struct {
	cfg         *config.Config
	kv          storage.KV
	closeKV     func() error
	persistence *storage.Persistence
	codec       *share.Codec
	store       *conversation.Store
	bus         *gochannel.GoChannel // nil unless events were requested
}

type appOptions struct {
	location bootstrap.Location
	events   bool
}

// openApp opens storage, resolves the initial state and builds the store.
func openApp(cfg *config.Config, opts appOptions) (*app, error) {
	kv, closeKV, err := storage.OpenKV(cfg.Storage.Backend, cfg.DataDir())
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:         cfg,
		kv:          kv,
		closeKV:     closeKV,
		persistence: storage.NewPersistence(kv, cfg.Storage.Key),
		codec:       share.NewCodec(cfg.Chat.ImportedPrefix),
	}

	resolver := bootstrap.NewResolver(a.persistence, a.codec, cfg.Chat.DefaultTitle)
	initial, changed := resolver.Resolve(opts.location)

	storeOpts := []conversation.Option{
		conversation.WithSaver(a.persistence),
		conversation.WithDefaultTitle(cfg.Chat.DefaultTitle),
	}
	if opts.events {
		a.bus = gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		}, logging.NewWatermillLogger(log.Logger))
		storeOpts = append(storeOpts, conversation.WithPublisher(a.bus, conversation.DefaultTopic))
	}

	a.store = conversation.New(initial, storeOpts...)
	if changed {
		a.store.Persist()
	}
	return a, nil
}

// Close releases storage and the event bus.
func (a *app) Close() error {
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close event bus")
		}
	}
	return a.closeKV()
}

// newSession builds the producer chain for the configured backend.
func (a *app) newSession(ctx context.Context) (*session.Manager, error) {
	producer, err := newProducer(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	rec := stream.NewReconciler(a.store, producer)
	return session.NewManager(a.store, rec, session.Config{
		Streaming:         a.cfg.Producer.Stream,
		AttachmentsPrompt: a.cfg.Chat.AttachmentsPrompt,
	}), nil
}

// newProducer is replaced in tests.
var newProducer = func(ctx context.Context, cfg *config.Config) (stream.Producer, error) {
	p := cfg.Producer
	switch p.Backend {
	case model.BackendOllama:
		if err := ollama.CheckRunning(ctx, p.OllamaURL); err != nil {
			return nil, err
		}
		producer, err := ollama.New(ollama.Config{
			URL:       p.OllamaURL,
			Model:     p.OllamaModel,
			RateLimit: p.RateLimit,
			Burst:     p.Burst,
		})
		if err != nil {
			return nil, err
		}
		return producer, nil

	default:
		if err := cfg.RequireAPIKey(); err != nil {
			return nil, err
		}
		producer, err := gemini.New(ctx, gemini.Config{
			APIKey:       p.APIKey,
			BaseURL:      p.BaseURL,
			Model:        p.Model,
			GoogleSearch: p.GoogleSearch,
			RateLimit:    p.RateLimit,
			Burst:        p.Burst,
		})
		if err != nil {
			return nil, err
		}
		return producer, nil
	}
}

// conversationOrActive looks up id, or the active conversation when id is
// empty.
func (a *app) conversationOrActive(id string) (*model.Conversation, error) {
	if id == "" {
		return a.store.Active(), nil
	}
	return a.store.Conversation(id)
}

// shareLink encodes conv into a link on the configured base URL.
func (a *app) shareLink(conv *model.Conversation) (string, error) {
	token, err := a.codec.Encode(conv)
	if err != nil {
		return "", err
	}
	return share.Link(a.cfg.Chat.ShareBaseURL, token)
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// MaxAttachmentSize bounds a single attached file.
const MaxAttachmentSize = 20 << 20

// loadAttachment reads path into an attachment, guessing its MIME type from
// the extension and then from the content.
func loadAttachment(path string) (model.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.Attachment{}, err
	}
	if info.IsDir() {
		return model.Attachment{}, usageError("file", path, "is a directory", "elevatorapp ask -f panel.jpg ...")
	}
	if info.Size() > MaxAttachmentSize {
		return model.Attachment{}, usageError("file", path, fmt.Sprintf("larger than %d MB", MaxAttachmentSize>>20), "")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return model.Attachment{}, err
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return model.Attachment{
		Name:     filepath.Base(path),
		MIMEType: mimeType,
		Data:     data,
	}, nil
}
