package cmd

import (
	"strings"
	"testing"
)

func TestLoadClientRuntime_IgnoresServerSettings(t *testing.T) {
	t.Setenv("WEB_PORT", "0")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "0")
	t.Setenv("RECOGNITION_THRESHOLD", "2")

	cfg, logger, err := loadClientRuntime()
	if err != nil {
		t.Fatalf("client commands must not validate server settings, got %v", err)
	}
	defer logger.Sync() //nolint:errcheck // test logger
	if cfg.Server.Port != 0 {
		t.Errorf("unexpected port %d", cfg.Server.Port)
	}
}

func TestLoadClientRuntime_RejectsBadClientSettings(t *testing.T) {
	t.Setenv("CAPTURE_JPEG_QUALITY", "0")

	_, _, err := loadClientRuntime()
	if err == nil || !strings.Contains(err.Error(), "CAPTURE_JPEG_QUALITY") {
		t.Errorf("expected CAPTURE_JPEG_QUALITY error, got %v", err)
	}
}
