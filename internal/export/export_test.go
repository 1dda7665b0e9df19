// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func sampleConversation() *model.Conversation {
	conv := model.NewConversation("Код F-28")
	conv.CreatedAt = fixedNow
	conv.UpdatedAt = fixedNow

	q := model.NewUserMessage("Как да разчета код за грешка F-28 на контролер?")
	a := model.NewMessage(model.RoleModel, "Проверете веригата за безопасност.")
	a.Sources = []model.Source{{URI: "https://example.com/f28", Title: "F-28"}}
	pending := model.NewPendingModelMessage()
	conv.Messages = append(conv.Messages, q, a, pending)
	return conv
}

func testOptions(dir string) *Options {
	opts := DefaultOptions()
	opts.OutputDir = dir
	opts.Now = func() time.Time { return fixedNow }
	return opts
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"md", ".md"},
		{"markdown", ".md"},
		{"JSON", ".json"},
		{"yaml", ".yaml"},
		{"yml", ".yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			e, err := ForFormat(tt.format, nil)
			if err != nil {
				t.Fatalf("ForFormat(%q) error = %v", tt.format, err)
			}
			if e.FileExtension() != tt.ext {
				t.Errorf("FileExtension() = %q, want %q", e.FileExtension(), tt.ext)
			}
		})
	}

	if _, err := ForFormat("pdf", nil); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("ForFormat(pdf) error = %v, want ErrUnknownFormat", err)
	}
}

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(testOptions(t.TempDir())).Export(sampleConversation())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	md := string(out)

	for _, want := range []string{
		"title: Код F-28\n",
		"messages: 2\n",
		"# Код F-28",
		"### You",
		"Как да разчета код за грешка F-28 на контролер?",
		"### Assistant",
		"- [F-28](https://example.com/f28)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Count(md, "### Assistant") != 1 {
		t.Error("pending answer should be left out")
	}
}

func TestMarkdownExport_EscapesFrontmatter(t *testing.T) {
	conv := sampleConversation()
	conv.Title = "Test\nInjection: malicious"

	out, err := NewMarkdownExporter(testOptions(t.TempDir())).Export(conv)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.Contains(string(out), `title: "Test\nInjection: malicious"`+"\n") {
		t.Errorf("title not quoted in frontmatter:\n%s", out)
	}
}

func TestJSONExport_StoredShape(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.IncludePending = true

	out, err := NewJSONExporter(opts).Export(sampleConversation())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var got model.Conversation
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("output is not a conversation: %v", err)
	}
	if len(got.Messages) != 3 || !got.Messages[2].Pending {
		t.Errorf("messages = %d, want 3 with the pending one last", len(got.Messages))
	}
	if !strings.Contains(string(out), `"isLoading": true`) {
		t.Error("pending flag should use the stored key")
	}
}

func TestYAMLExport(t *testing.T) {
	out, err := NewYAMLExporter(testOptions(t.TempDir())).Export(sampleConversation())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var doc yamlTranscript
	if err := yaml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("invalid yaml: %v", err)
	}
	if doc.Title != "Код F-28" {
		t.Errorf("title = %q", doc.Title)
	}
	if len(doc.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(doc.Messages))
	}
	if doc.Messages[1].Role != "model" || len(doc.Messages[1].Sources) != 1 {
		t.Errorf("answer = %+v", doc.Messages[1])
	}
}

func TestExportToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	conv := sampleConversation()
	conv.Title = `a/b:c*d?"e"<f>|g h`

	path, err := ExportToFile(conv, NewMarkdownExporter(nil), testOptions(dir))
	if err != nil {
		t.Fatalf("ExportToFile() error = %v", err)
	}

	want := filepath.Join(dir, "chat_a-b-c-d--e--f--g_h_20250314_093000.md")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file not written: %v", err)
	}

	if _, err := ExportToFile(nil, NewMarkdownExporter(nil), nil); !errors.Is(err, ErrNilConversation) {
		t.Errorf("nil conversation error = %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "chat"},
		{"   ", "chat"},
		{"Нов чат", "Нов_чат"},
		{"tab\there", "tab_here"},
		{"bell\x07", "bell-"},
		{strings.Repeat("я", 60), strings.Repeat("я", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
