package config

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MAX_DB_CONNS", "32")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("MAX_UPLOAD_SIZE_MB", "10")
	t.Setenv("BACKEND_TIMEOUT_SECONDS", "30")

	cfg := Load()

	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if cfg.MaxDBConns != 32 {
		t.Errorf("MaxDBConns = %d, want 32", cfg.MaxDBConns)
	}
	want := []string{"https://app.example.com", "https://admin.example.com"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
	}
	for i, origin := range want {
		if cfg.AllowedOrigins[i] != origin {
			t.Errorf("AllowedOrigins[%d] = %q, want %q", i, cfg.AllowedOrigins[i], origin)
		}
	}
	if cfg.MaxUploadBytes != 10*1024*1024 {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 10*1024*1024)
	}
	if cfg.BackendTimeout != 30*time.Second {
		t.Errorf("BackendTimeout = %v, want 30s", cfg.BackendTimeout)
	}
}

func TestLoadFallsBackOnInvalidValues(t *testing.T) {
	t.Setenv("MAX_DB_CONNS", "not-a-number")
	t.Setenv("S3_USE_SSL", "definitely")

	cfg := Load()

	if cfg.MaxDBConns != 16 {
		t.Errorf("MaxDBConns = %d, want default 16", cfg.MaxDBConns)
	}
	if cfg.S3UseSSL {
		t.Error("S3UseSSL = true, want default false")
	}
}

func TestDocumentQuestionsKey(t *testing.T) {
	id := uuid.MustParse("a1b2c3d4-0000-0000-0000-000000000001")
	got := CacheKey.DocumentQuestionsKey(id)
	want := "document:a1b2c3d4-0000-0000-0000-000000000001:questions"
	if got != want {
		t.Errorf("DocumentQuestionsKey = %q, want %q", got, want)
	}
}
