package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

func (s *sample) Validate() error {
	if s.Count < 0 {
		return errors.New("count must not be negative")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "quill")
	s := sample{Count: 3}
	if err := Load(writeFile(t, "name: ${SAMPLE_NAME}\n"), &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "quill" || s.Count != 3 {
		t.Errorf("got %+v", s)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"parse error", "name: [unclosed\n", "failed to parse"},
		{"validation error", "count: -1\n", "config validation failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s sample
			err := Load(writeFile(t, tt.content), &s)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}

	var s sample
	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &s); err == nil {
		t.Error("Load should fail on a missing file")
	}
}

func TestLoadOptional(t *testing.T) {
	s := sample{Name: "default"}
	if err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &s); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if s.Name != "default" {
		t.Errorf("defaults lost: %+v", s)
	}

	bad := sample{Count: -5}
	if err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &bad); err == nil {
		t.Error("defaults should still be validated")
	}
}

func TestLoad_OverridesAreValidated(t *testing.T) {
	path := writeFile(t, "name: file\ncount: 2\n")

	var s sample
	if err := Load(path, &s, func(s *sample) { s.Name = "flag" }); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "flag" || s.Count != 2 {
		t.Errorf("got %+v, want override on top of file", s)
	}

	var bad sample
	err := Load(path, &bad, func(s *sample) { s.Count = -1 })
	if err == nil || !strings.Contains(err.Error(), "config validation failed") {
		t.Errorf("err = %v, want validation failure for overridden value", err)
	}

	missing := filepath.Join(t.TempDir(), "missing.yaml")
	if err := LoadOptional(missing, &sample{}, func(s *sample) { s.Count = -1 }); err == nil {
		t.Error("override of defaults should be validated")
	}
}
