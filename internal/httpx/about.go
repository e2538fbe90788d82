package httpx

import "net/http"

// handleAbout renders the informational /about page. Static today; a
// placeholder struct is retained for future configuration exposure.
func (h *Handler) handleAbout(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/about" { // exact match only
		h.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	renderPage(w, h.AboutTmpl, struct{}{})
}
