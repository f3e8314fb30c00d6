package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault_HasAllTemplates(t *testing.T) {
	r := Default()
	for _, name := range requiredNames {
		if r.Text(name) == "" {
			t.Errorf("template %q is empty", name)
		}
	}
	if got := len(r.Names()); got != len(requiredNames) {
		t.Errorf("Names: got %d, want %d", got, len(requiredNames))
	}
}

func TestDefault_IsShared(t *testing.T) {
	if Default() != Default() {
		t.Error("Default parsed the embedded document twice")
	}
}

func TestRender_ChatSystem(t *testing.T) {
	out, err := Default().Render(ChatSystem, ChatSystemData{
		UserName:        "ana",
		DominantEmotion: "Sadness",
		ProfileSummary:  "Tendency toward melancholy",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"ana", `"Sadness"`, "Tendency toward melancholy"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered prompt missing %q:\n%s", want, out)
		}
	}
}

func TestRender_Errors(t *testing.T) {
	r := Default()
	if _, err := r.Render("nope", nil); err == nil {
		t.Error("expected error for unknown template")
	}
	if _, err := r.Render(Classification, map[string]string{}); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestParse_MissingTemplate(t *testing.T) {
	if _, err := Parse([]byte("chat_system: hi\n")); err == nil {
		t.Fatal("expected error for incomplete document")
	}
}

func TestLoadFile_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	if err := os.WriteFile(path, []byte("objectives: \"Goals for {{.Entries}}\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	r, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	out, err := r.Render(Objectives, EntriesData{Entries: "today"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "Goals for today" {
		t.Errorf("override: got %q", out)
	}
	if r.Text(Classification) != Default().Text(Classification) {
		t.Error("non-overridden template should keep the embedded text")
	}
}

func TestLoadFile_Empty(t *testing.T) {
	r, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if r.Text(ChatSystem) == "" {
		t.Error("expected default templates")
	}
}
