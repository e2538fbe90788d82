// Package main provides the peek binary entry point: a small web front end
// for a one-time secret sharing service. It loads configuration, opens the
// local metrics database, wires the backend client and HTTP handlers, and
// serves until interrupted.
//
// The application flow:
//  1. Load defaults, config file, and environment variables.
//  2. Validate configuration.
//  3. Open the SQLite metrics store and start the flush loop.
//  4. Build the backend client and HTTP routes.
//  5. Serve until SIGINT/SIGTERM, then drain and flush.
package main

import (
	"context"
	"database/sql"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/haukened/peek/internal/backend"
	"github.com/haukened/peek/internal/config"
	"github.com/haukened/peek/internal/httpx"
	"github.com/haukened/peek/internal/metrics"
	wembed "github.com/haukened/peek/web"

	_ "github.com/mattn/go-sqlite3"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ensureDataDir creates the data directory if missing and rejects paths that
// exist but are not directories.
func ensureDataDir(dir string) (string, error) {
	st, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if mkErr := os.MkdirAll(dir, 0o700); mkErr != nil {
			return "", mkErr
		}
	case err != nil:
		return "", err
	case !st.IsDir():
		return "", errors.New("data path is not a directory: " + dir)
	}
	return dir, nil
}

// openDatabase opens (creating if needed) the SQLite metrics database in the
// data directory and initializes its schema.
func openDatabase(ctx context.Context, dataDir string, log *slog.Logger) (*sql.DB, *metrics.Manager, error) {
	dbPath := filepath.Join(dataDir, "peek.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, nil, err
	}
	mgr := metrics.New(db, metrics.Config{Logger: log})
	if err := mgr.InitSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, mgr, nil
}

type templates struct{ index, result, secret, about *template.Template }

// tplSpec describes a page template parsed on top of the shared partials.
type tplSpec struct{ name, file string }

func loadTemplates() (*templates, error) { return loadTemplatesFrom(wembed.FS) }

// loadTemplatesFrom parses partials plus page templates from the given
// filesystem using a generic loop to avoid duplication.
func loadTemplatesFrom(fsys fs.FS) (*templates, error) {
	partialsBytes, err := fs.ReadFile(fsys, "partials.tmpl.html")
	if err != nil {
		return nil, err
	}
	base := string(partialsBytes)
	specs := []tplSpec{
		{"index", "index.tmpl.html"},
		{"result", "result.tmpl.html"},
		{"secret", "secret.tmpl.html"},
		{"about", "about.tmpl.html"},
	}
	out := &templates{}
	for _, spec := range specs {
		pageBytes, err := fs.ReadFile(fsys, spec.file)
		if err != nil {
			return nil, err
		}
		t, err := template.New("partials").Parse(base)
		if err == nil {
			t, err = t.New(spec.name).Parse(string(pageBytes))
		}
		if err != nil {
			return nil, err
		}
		switch spec.name {
		case "index":
			out.index = t
		case "result":
			out.result = t
		case "secret":
			out.secret = t
		case "about":
			out.about = t
		}
	}
	return out, nil
}

func buildHandler(cfg *config.Config, client *backend.Client, mgr *metrics.Manager, db *sql.DB, tmpls *templates, log *slog.Logger) (http.Handler, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	h := httpx.New(client, log)
	h.Stats = mgr
	h.Metrics = metrics.Handler(mgr, cfg.MetricsToken)
	h.Readiness = func(ctx context.Context) error { return db.PingContext(ctx) }
	h.IndexTmpl = httpx.TemplateRenderer{T: tmpls.index}
	h.ResultTmpl = httpx.TemplateRenderer{T: tmpls.result}
	h.SecretTmpl = httpx.TemplateRenderer{T: tmpls.secret}
	h.AboutTmpl = httpx.TemplateRenderer{T: tmpls.about}
	h.Assets = http.FS(wembed.FS)
	h.MinTTL = cfg.MinTTL
	h.MaxTTL = cfg.MaxTTL
	h.TTLOptions = opts
	h.MaxBytes = cfg.MaxBytes
	return h.Router(), nil
}

func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{Addr: cfg.Addr, Handler: handler, ReadTimeout: 5 * time.Second, WriteTimeout: 10 * time.Second, IdleTimeout: 120 * time.Second}
}

func run() error {
	log := slog.Default()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dataDir, err := ensureDataDir(cfg.DataDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, mgr, err := openDatabase(ctx, dataDir, log)
	if err != nil {
		return err
	}
	defer db.Close()
	mgr.Start(ctx)

	tmpls, err := loadTemplates()
	if err != nil {
		return err
	}
	client := backend.New(cfg.BackendURL, cfg.RequestTimeout, log)
	handler, err := buildHandler(cfg, client, mgr, db, tmpls, log)
	if err != nil {
		return err
	}
	srv := newServer(cfg, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", cfg.Addr, "backend", cfg.BackendURL, "pid", os.Getpid())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", "err", err)
	}
	mgr.Stop(shutdownCtx)
	return <-errCh
}

func main() {
	if err := run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
