package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/haukened/peek/internal/backend"
	"github.com/haukened/peek/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

// TestEnsureDataDir verifies directory creation for a missing path.
func TestEnsureDataDir(t *testing.T) {
	tmp := t.TempDir()
	data := filepath.Join(tmp, "data-root")
	got, err := ensureDataDir(data)
	if err != nil {
		t.Fatalf("ensureDataDir error: %v", err)
	}
	if got != data {
		t.Fatalf("data dir mismatch got %s want %s", got, data)
	}
	if _, err := os.Stat(got); err != nil {
		t.Fatalf("data dir stat: %v", err)
	}
}

// Failure path: ensureDataDir where path exists as a regular file.
func TestEnsureDataDir_FilePathError(t *testing.T) {
	tmp := t.TempDir()
	filePath := filepath.Join(tmp, "notadir")
	if err := os.WriteFile(filePath, []byte("x"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := ensureDataDir(filePath); err == nil {
		t.Fatalf("expected error for file path")
	}
}

// TestLoadTemplates ensures the embedded templates parse.
func TestLoadTemplates(t *testing.T) {
	tmpls, err := loadTemplates()
	if err != nil {
		t.Fatalf("loadTemplates error: %v", err)
	}
	if tmpls.index == nil || tmpls.result == nil || tmpls.secret == nil || tmpls.about == nil {
		t.Fatalf("expected all templates non-nil")
	}
}

// Failure path: loadTemplatesFrom missing partials.
func TestLoadTemplatesFrom_Error(t *testing.T) {
	fsys := fstest.MapFS{}
	if _, err := loadTemplatesFrom(fsys); err == nil {
		t.Fatalf("expected error due to missing partials template")
	}
}

// TestNewServer ensures timeouts and addr are applied.
func TestNewServer(t *testing.T) {
	cfg := &config.Config{Addr: ":9999"}
	srv := newServer(cfg, http.NewServeMux())
	if srv.Addr != ":9999" {
		t.Fatalf("addr mismatch got %s", srv.Addr)
	}
	if srv.ReadTimeout == 0 || srv.WriteTimeout == 0 {
		t.Fatalf("expected non-zero timeouts")
	}
}

// TestOpenDatabase creates a fresh metrics database with schema applied.
func TestOpenDatabase(t *testing.T) {
	tmp := t.TempDir()
	db, mgr, err := openDatabase(context.Background(), tmp, slog.Default())
	if err != nil {
		t.Fatalf("openDatabase error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if mgr == nil {
		t.Fatalf("expected metrics manager")
	}
	counters, _, err := mgr.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if counters == nil {
		t.Fatalf("expected counters map")
	}
}

// TestBuildHandler_IndexRoute exercises basic route wiring end to end.
func TestBuildHandler_IndexRoute(t *testing.T) {
	tmp := t.TempDir()
	db, mgr, err := openDatabase(context.Background(), tmp, slog.Default())
	if err != nil {
		t.Fatalf("openDatabase error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tmpls, err := loadTemplates()
	if err != nil {
		t.Fatalf("loadTemplates: %v", err)
	}
	cfg := &config.Config{
		Addr:           ":0",
		BackendURL:     "http://localhost:7143",
		RequestTimeout: time.Second,
		MinTTL:         time.Minute,
		MaxTTL:         48 * time.Hour,
		TTLOptions:     []string{"1h", "24h"},
		MaxBytes:       2048,
		DataDir:        tmp,
	}
	client := backend.New(cfg.BackendURL, cfg.RequestTimeout, slog.Default())
	h, err := buildHandler(cfg, client, mgr, db, tmpls, slog.Default())
	if err != nil {
		t.Fatalf("buildHandler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status got %d", rr.Code)
	}
	if rr.Body.Len() == 0 {
		t.Fatalf("expected body content")
	}
}

// TestBuildHandler_BadTTLOption surfaces config option parse errors.
func TestBuildHandler_BadTTLOption(t *testing.T) {
	tmp := t.TempDir()
	db, mgr, err := openDatabase(context.Background(), tmp, slog.Default())
	if err != nil {
		t.Fatalf("openDatabase error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	tmpls, err := loadTemplates()
	if err != nil {
		t.Fatalf("loadTemplates: %v", err)
	}
	cfg := &config.Config{
		BackendURL:     "http://localhost:7143",
		RequestTimeout: time.Second,
		MinTTL:         time.Minute,
		MaxTTL:         time.Hour,
		TTLOptions:     []string{"not-a-duration"},
		MaxBytes:       2048,
		DataDir:        tmp,
	}
	client := backend.New(cfg.BackendURL, cfg.RequestTimeout, slog.Default())
	if _, err := buildHandler(cfg, client, mgr, db, tmpls, slog.Default()); err == nil {
		t.Fatalf("expected error for invalid ttl option")
	}
}
