// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "deep", "chatState.json")

	if err := AtomicWriteFile(path, []byte(`{"chats":[]}`), 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != `{"chats":[]}` {
		t.Errorf("Content mismatch: got %q", string(content))
	}
}

func TestAtomicWriteFile_OverwritesWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatState.json")

	if err := AtomicWriteFile(path, []byte("initial"), 0600); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("updated"), 0600); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "updated" {
		t.Errorf("Content = %q, want %q", string(content), "updated")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestTruncateRunes_Cyrillic(t *testing.T) {
	tests := []struct {
		input    string
		maxRunes int
		want     string
	}{
		{"Нов чат", 10, "Нов чат"},
		{"Асансьорът пропада", 10, "Асансьо..."},
		{"Врата", 3, "Вра"},
		{"anything", 0, ""},
	}

	for _, tc := range tests {
		got := TruncateRunes(tc.input, tc.maxRunes)
		if got != tc.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tc.input, tc.maxRunes, got, tc.want)
		}
	}
}

func TestTruncateWidth(t *testing.T) {
	if got := TruncateWidth("short", 10); got != "short" {
		t.Errorf("TruncateWidth unchanged = %q", got)
	}

	got := TruncateWidth("Какви са стъпките за диагностика", 12)
	if StringWidth(got) > 12 {
		t.Errorf("TruncateWidth result %q wider than 12", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("TruncateWidth result %q should end with ellipsis", got)
	}

	// Double-width runes count twice.
	if w := StringWidth("漢字"); w != 4 {
		t.Errorf("StringWidth(漢字) = %d, want 4", w)
	}
}

func TestPadWidth(t *testing.T) {
	got := PadWidth("чат", 6)
	if StringWidth(got) != 6 {
		t.Errorf("PadWidth width = %d, want 6", StringWidth(got))
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/.elevatorapp"); got != filepath.Join(home, ".elevatorapp") {
		t.Errorf("ExpandHome = %q", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandHome changed absolute path: %q", got)
	}
}
