package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "users.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `users:
  - name: Ana Ruiz
    email: ana@example.com
    image: faces/ana.jpg
  - name: Bo Chen
    email: bo@example.com
    image: /abs/bo.png
`)

	m, err := loadManifest(path)
	if err != nil {
		t.Fatalf("loadManifest failed: %v", err)
	}
	if len(m.Users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(m.Users))
	}
	if want := filepath.Join(filepath.Dir(path), "faces", "ana.jpg"); m.Users[0].Image != want {
		t.Errorf("relative image = %q, want %q", m.Users[0].Image, want)
	}
	if m.Users[1].Image != "/abs/bo.png" {
		t.Errorf("absolute image rewritten to %q", m.Users[1].Image)
	}
	if m.Users[0].Name != "Ana Ruiz" || m.Users[1].Email != "bo@example.com" {
		t.Errorf("unexpected entries %+v", m.Users)
	}
}

func TestLoadManifest_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty", "users: []\n", "no users"},
		{"missing image", "users:\n  - name: Ana\n    email: ana@example.com\n", "image is required"},
		{"invalid yaml", "users: [\n", "parsing manifest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadManifest(writeManifest(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadManifest_MissingFile(t *testing.T) {
	if _, err := loadManifest(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing manifest")
	}
}
