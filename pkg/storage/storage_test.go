package storage_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/JaimeStill/triage/pkg/storage"
)

const testConnectionString = "DefaultEndpointsProtocol=https;AccountName=triage;AccountKey=a2V5;EndpointSuffix=core.windows.net"

func TestConfigFinalize(t *testing.T) {
	t.Run("disabled needs no location", func(t *testing.T) {
		var cfg storage.Config
		if err := cfg.Finalize(nil); err != nil {
			t.Fatalf("Finalize: %v", err)
		}
	})

	t.Run("enabled requires a location", func(t *testing.T) {
		cfg := storage.Config{Enabled: true}
		if err := cfg.Finalize(nil); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("TEST_STORAGE_ENABLED", "true")
		t.Setenv("TEST_STORAGE_URL", "https://triage.blob.core.windows.net")

		var cfg storage.Config
		if err := cfg.Finalize(&storage.Env{Enabled: "TEST_STORAGE_ENABLED", ServiceURL: "TEST_STORAGE_URL"}); err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		if !cfg.Enabled || cfg.ContainerName != "cases" {
			t.Errorf("container = %q, want cases", cfg.ContainerName)
		}
		if cfg.ServiceURL != "https://triage.blob.core.windows.net" {
			t.Errorf("service url = %q", cfg.ServiceURL)
		}
	})
}

func TestKeyValidation(t *testing.T) {
	cfg := &storage.Config{Enabled: true, ConnectionString: testConnectionString}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}

	sys, err := storage.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		key  string
		want error
	}{
		{"", storage.ErrEmptyKey},
		{"cases/../secrets", storage.ErrInvalidKey},
		{"../image.png", storage.ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := sys.Upload(context.Background(), tt.key, strings.NewReader("x"), "image/png")
			if !errors.Is(err, tt.want) {
				t.Errorf("Upload(%q) = %v, want %v", tt.key, err, tt.want)
			}
			if _, err := sys.Download(context.Background(), tt.key); !errors.Is(err, tt.want) {
				t.Errorf("Download(%q) = %v, want %v", tt.key, err, tt.want)
			}
		})
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{storage.ErrNotFound, http.StatusNotFound},
		{storage.ErrEmptyKey, http.StatusBadRequest},
		{storage.ErrInvalidKey, http.StatusBadRequest},
		{errors.New("network"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		if got := storage.MapHTTPStatus(tt.err); got != tt.want {
			t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
