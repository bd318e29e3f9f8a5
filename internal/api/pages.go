package api

import (
	_ "embed"
	"net/http"
	"os"
	"path/filepath"
)

//go:embed web/admin.html
var adminPage []byte

//go:embed web/fallback.html
var fallbackPage []byte

// handleIndex serves static/index.html, or a short placeholder page when the
// front end has not been deployed next to the binary.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	page, err := os.ReadFile(filepath.Join(s.cfg.StaticDir, "index.html"))
	if err != nil {
		page = fallbackPage
	}
	writeHTML(w, page)
}

func (s *Server) handleAdmin(w http.ResponseWriter, _ *http.Request) {
	writeHTML(w, adminPage)
}

func writeHTML(w http.ResponseWriter, page []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}
