// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/storage"
)

func newSlot(t *testing.T) (*storage.FileKV, *storage.Persistence) {
	t.Helper()
	kv, err := storage.NewFileKV(t.TempDir())
	require.NoError(t, err)
	return kv, storage.NewPersistence(kv, storage.DefaultKey, storage.WithLogger(zerolog.Nop()))
}

func stateTitled(title string) *model.State {
	conv := model.NewConversation(title)
	return &model.State{Conversations: []*model.Conversation{conv}, ActiveID: conv.ID}
}

func waitForTitle(t *testing.T, got <-chan *model.State, title string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-got:
			if s != nil && s.Active().Title == title {
				return
			}
		case <-deadline:
			t.Fatalf("no reload with title %q", title)
		}
	}
}

func TestFsnotifyWatcher_ReloadsAfterSave(t *testing.T) {
	kv, p := newSlot(t)
	got := make(chan *model.State, 8)

	w, err := NewFsnotifyWatcher([]string{kv.Path(storage.DefaultKey)}, p, 50*time.Millisecond, func(s *model.State, ok bool) {
		if ok {
			got <- s
		}
	})
	require.NoError(t, err)
	require.NoError(t, w.Watch())
	defer w.Close()

	p.Save(stateTitled("Hydraulics"))

	waitForTitle(t, got, "Hydraulics")
}

func TestFsnotifyWatcher_IgnoresOtherFiles(t *testing.T) {
	kv, p := newSlot(t)
	calls := make(chan struct{}, 8)

	w, err := NewFsnotifyWatcher([]string{kv.Path(storage.DefaultKey)}, p, 50*time.Millisecond, func(*model.State, bool) {
		calls <- struct{}{}
	})
	require.NoError(t, err)
	require.NoError(t, w.Watch())
	defer w.Close()

	other := storage.NewPersistence(kv, "otherSlot", storage.WithLogger(zerolog.Nop()))
	other.Save(stateTitled("unrelated"))

	select {
	case <-calls:
		t.Fatal("change to another slot triggered a reload")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestPollingWatcher_DetectsChange(t *testing.T) {
	kv, p := newSlot(t)
	path := kv.Path(storage.DefaultKey)
	p.Save(stateTitled("before"))

	w := NewPollingWatcher([]string{path}, p, time.Hour, nil)
	require.NoError(t, w.Watch())
	defer w.Close()
	assert.False(t, w.changed())

	// Make sure the modification time moves.
	time.Sleep(20 * time.Millisecond)
	p.Save(stateTitled("after"))
	assert.True(t, w.changed())
	assert.False(t, w.changed())

	p.Clear()
	assert.True(t, w.changed(), "removal is a change")
	assert.Equal(t, filepath.Dir(path), filepath.Dir(kv.Path("x")))
}
