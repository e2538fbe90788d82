package httpx

import (
	"bytes"
	"html/template"
	"io"
	"log/slog"
	"net/http"
)

// Renderer abstracts template execution for easier testing. Typically a thin
// wrapper around html/template.Template.
type Renderer interface {
	Execute(w io.Writer, data any) error
}

// TemplateRenderer implements Renderer using html/template.
type TemplateRenderer struct{ T *template.Template }

func (tr TemplateRenderer) Execute(w io.Writer, data any) error {
	return tr.T.Execute(w, data)
}

// renderPage renders an HTML template into a buffer first, so a template
// error after partial output still produces a consistent 500 instead of a
// half-written page. Successful output is written with HTML headers and the
// no-store cache policy secret-bearing pages require.
func renderPage(w http.ResponseWriter, tmpl Renderer, data any) {
	w.Header().Set("Cache-Control", "no-store")
	if tmpl == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("page unavailable"))
		return
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		// Do not reflect partial output or template internals.
		slog.Error("render", "domain", "ui", "action", "error")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("template error"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, &buf)
}
