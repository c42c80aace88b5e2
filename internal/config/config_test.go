package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"FACE_API_URL", "FACE_API_TIMEOUT", "RECOGNITION_THRESHOLD", "WEB_PORT",
		"CAPTURE_MAX_DIMENSION", "CAPTURE_JPEG_QUALITY", "DATABASE_URL", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Client.URL != "http://localhost:8000" {
		t.Errorf("unexpected client URL %q", cfg.Client.URL)
	}
	if cfg.Client.Timeout != 0 {
		t.Errorf("expected no timeout by default, got %v", cfg.Client.Timeout)
	}
	if cfg.Server.RecognitionThreshold != 0.6 {
		t.Errorf("expected threshold 0.6, got %v", cfg.Server.RecognitionThreshold)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Capture.MaxDimension != 1920 || cfg.Capture.JPEGQuality != 85 {
		t.Errorf("unexpected capture config %+v", cfg.Capture)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("unexpected log level %q", cfg.Log.Level)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("FACE_API_URL", "https://faces.example.com")
	t.Setenv("FACE_API_TIMEOUT", "15s")
	t.Setenv("RECOGNITION_THRESHOLD", "0.75")
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Client.URL != "https://faces.example.com" || cfg.Client.Timeout != 15*time.Second {
		t.Errorf("unexpected client config %+v", cfg.Client)
	}
	if cfg.Server.RecognitionThreshold != 0.75 {
		t.Errorf("unexpected threshold %v", cfg.Server.RecognitionThreshold)
	}
	origins := cfg.Server.Origins()
	if len(origins) != 2 || origins[1] != "https://b.example.com" {
		t.Errorf("unexpected origins %v", origins)
	}
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("RECOGNITION_THRESHOLD", "abc")
	if _, err := Load(); err == nil {
		t.Error("expected parse error for RECOGNITION_THRESHOLD=abc")
	}
}

func TestValidate_Scopes(t *testing.T) {
	tests := []struct {
		key, value  string
		clientFails bool
		serverFails bool
	}{
		{"RECOGNITION_THRESHOLD", "1.5", false, true},
		{"WEB_PORT", "0", false, true},
		{"MAX_REQUEST_BODY_SIZE", "0", false, true},
		{"DATABASE_MAX_OPEN_CONNS", "0", false, true},
		{"DATABASE_MAX_IDLE_CONNS", "-1", false, true},
		{"CAPTURE_JPEG_QUALITY", "101", true, false},
		{"CAPTURE_MAX_DIMENSION", "-1", true, false},
		{"FACE_API_TIMEOUT", "-1s", true, false},
	}
	for _, tc := range tests {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if got := cfg.ValidateClient() != nil; got != tc.clientFails {
				t.Errorf("ValidateClient failed = %v; want %v", got, tc.clientFails)
			}
			if got := cfg.ValidateServer() != nil; got != tc.serverFails {
				t.Errorf("ValidateServer failed = %v; want %v", got, tc.serverFails)
			}
			if cfg.Validate() == nil {
				t.Error("Validate must report every group")
			}
		})
	}
}

func TestValidate_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate, got %v", err)
	}
}

func TestServerAddr(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 9000}
	if cfg.Addr() != "127.0.0.1:9000" {
		t.Errorf("unexpected addr %q", cfg.Addr())
	}
}
