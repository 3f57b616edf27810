package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Load_And_AdminEnabled(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "secret")
	t.Setenv("ADMIN_SESSION_SECRET", "abcd")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load err: %v", err)
	}
	if !cfg.AdminEnabled() {
		t.Fatalf("expected AdminEnabled true")
	}
	if !cfg.IsDev() {
		t.Fatalf("expected IsDev true")
	}
	if cfg.IsProd() {
		t.Fatalf("expected IsProd false")
	}

	require.NoError(t, os.Unsetenv("ADMIN_USERNAME"))
	require.NoError(t, os.Unsetenv("ADMIN_PASSWORD"))
	require.NoError(t, os.Unsetenv("ADMIN_SESSION_SECRET"))
	cfg, err = Load()
	if err != nil {
		t.Fatalf("reload err: %v", err)
	}
	if cfg.AdminEnabled() {
		t.Fatalf("expected AdminEnabled false")
	}
}

func Test_JobTimeout(t *testing.T) {
	cfg := Config{
		ImageJobTimeout:           180e9,
		TextOrImageToModelTimeout: 600e9,
		MultiviewModelTimeout:     900e9,
	}
	if got := cfg.JobTimeout("image", false); got != cfg.ImageJobTimeout {
		t.Fatalf("image timeout = %v, want %v", got, cfg.ImageJobTimeout)
	}
	if got := cfg.JobTimeout("model", false); got != cfg.TextOrImageToModelTimeout {
		t.Fatalf("single-input model timeout = %v, want %v", got, cfg.TextOrImageToModelTimeout)
	}
	if got := cfg.JobTimeout("model", true); got != cfg.MultiviewModelTimeout {
		t.Fatalf("multiview model timeout = %v, want %v", got, cfg.MultiviewModelTimeout)
	}
}
