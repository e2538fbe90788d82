package httpx

import (
	"fmt"
	"net/http"
)

// IndexView supplies dynamic values to the create-form template.
type IndexView struct {
	MaxBytes      int64
	MaxBytesHuman string
	TTLOptions    []TTLOptionView
	// Error carries a short validation or creation failure message rendered
	// above the form; empty on a clean load.
	Error string
}

// TTLOptionView is the subset of a domain TTLOption the template needs.
type TTLOptionView struct {
	Label           string
	DurationSeconds int
}

func humanBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	suffixes := []string{"KB", "MB", "GB", "TB"}
	f := float64(n)
	for _, s := range suffixes {
		f /= 1024
		if f < 1024 {
			return fmt.Sprintf("%.1f %s", f, s)
		}
	}
	return fmt.Sprintf("%.1f PB", f/1024)
}

// indexView assembles the form view, optionally with an error banner.
func (h *Handler) indexView(errMsg string) IndexView {
	view := IndexView{
		MaxBytes:      h.MaxBytes,
		MaxBytesHuman: humanBytes(h.MaxBytes),
		Error:         errMsg,
	}
	if len(h.TTLOptions) > 0 {
		view.TTLOptions = make([]TTLOptionView, 0, len(h.TTLOptions))
		for _, opt := range h.TTLOptions {
			view.TTLOptions = append(view.TTLOptions, TTLOptionView{Label: opt.Label, DurationSeconds: int(opt.Duration.Seconds())})
		}
	}
	return view
}

// handleIndex renders the root HTML page (the create form).
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" { // only exact root handled here
		h.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	renderPage(w, h.IndexTmpl, h.indexView(""))
}
