package environment_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bdobrica/Kibun/common/environment"
)

func TestStringOr(t *testing.T) {
	t.Setenv("KIBUN_TEST_STRING", "hello")
	if got := environment.StringOr("KIBUN_TEST_STRING", "default"); got != "hello" {
		t.Errorf("expected %q, got %q", "hello", got)
	}
	if got := environment.StringOr("KIBUN_TEST_STRING_MISSING", "default"); got != "default" {
		t.Errorf("expected %q, got %q", "default", got)
	}
}

func TestRequiredString(t *testing.T) {
	t.Setenv("KIBUN_TEST_REQUIRED", "value")
	v, err := environment.RequiredString("KIBUN_TEST_REQUIRED")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "value" {
		t.Errorf("expected %q, got %q", "value", v)
	}
	if _, err := environment.RequiredString("KIBUN_TEST_REQUIRED_MISSING"); err == nil {
		t.Error("expected error for missing variable, got nil")
	}
}

func TestNumericHelpers(t *testing.T) {
	t.Setenv("KIBUN_TEST_INT", "42")
	t.Setenv("KIBUN_TEST_INT_BAD", "forty")
	t.Setenv("KIBUN_TEST_FLOAT", "0.25")
	t.Setenv("KIBUN_TEST_BOOL", "true")
	t.Setenv("KIBUN_TEST_DUR", "30s")

	if got := environment.IntOr("KIBUN_TEST_INT", 0); got != 42 {
		t.Errorf("IntOr: got %d, want 42", got)
	}
	if got := environment.IntOr("KIBUN_TEST_INT_BAD", 7); got != 7 {
		t.Errorf("IntOr bad value: got %d, want 7", got)
	}
	if got := environment.FloatOr("KIBUN_TEST_FLOAT", 1); got != 0.25 {
		t.Errorf("FloatOr: got %v, want 0.25", got)
	}
	if got := environment.FloatOr("KIBUN_TEST_FLOAT_MISSING", 1.5); got != 1.5 {
		t.Errorf("FloatOr default: got %v, want 1.5", got)
	}
	if !environment.BoolOr("KIBUN_TEST_BOOL", false) {
		t.Error("BoolOr: expected true")
	}
	if got := environment.DurationOr("KIBUN_TEST_DUR", time.Minute); got != 30*time.Second {
		t.Errorf("DurationOr: got %v, want 30s", got)
	}
}

func TestStringSliceOr(t *testing.T) {
	t.Setenv("KIBUN_TEST_SLICE", "a, b , ,c")
	got := environment.StringSliceOr("KIBUN_TEST_SLICE", nil)
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("unexpected result: %v", got)
	}
	fallback := []string{"x"}
	if got := environment.StringSliceOr("KIBUN_TEST_SLICE_MISSING", fallback); len(got) != 1 || got[0] != "x" {
		t.Errorf("expected fallback, got %v", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	content := "KIBUN_DOTENV_NEW=from-file\nKIBUN_DOTENV_PRESET=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("KIBUN_DOTENV_PRESET", "from-shell")
	t.Cleanup(func() { os.Unsetenv("KIBUN_DOTENV_NEW") })

	if err := environment.LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("KIBUN_DOTENV_NEW"); got != "from-file" {
		t.Errorf("new variable: got %q, want %q", got, "from-file")
	}
	if got := os.Getenv("KIBUN_DOTENV_PRESET"); got != "from-shell" {
		t.Errorf("preset variable: got %q, want %q", got, "from-shell")
	}
}
