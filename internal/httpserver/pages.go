package httpserver

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"camrent/storefront/internal/route"
)

// registerPageHandlers serves the storefront pages. Static assets bypass the
// navigation guard; every other path is a page navigation and is evaluated first.
func registerPageHandlers(mux *http.ServeMux, deps Deps) {
	distDir := strings.TrimSpace(deps.FrontendDistDir)
	indexPath := ""
	if distDir != "" {
		candidate := filepath.Join(distDir, "index.html")
		if _, err := os.Stat(candidate); err == nil {
			indexPath = candidate
		}
	}
	if indexPath == "" && deps.Navigator == nil {
		return
	}

	var fileServer http.Handler
	if indexPath != "" {
		fileServer = http.FileServer(http.Dir(distDir))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		cleanPath := path.Clean(r.URL.Path)
		if fileServer != nil && cleanPath != "/" && cleanPath != "." {
			fullPath := filepath.Join(distDir, strings.TrimPrefix(cleanPath, "/"))
			if info, err := os.Stat(fullPath); err == nil && !info.IsDir() {
				fileServer.ServeHTTP(w, r)
				return
			}
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		if deps.Navigator != nil {
			d := deps.Navigator.Evaluate(r.Context(), tokenFromRequest(r), r.URL.RequestURI())
			switch d.Outcome {
			case route.Redirect, route.Missing:
				http.Redirect(w, r, d.Route.Path, http.StatusFound)
				return
			}
			if indexPath == "" {
				writeJSON(w, http.StatusOK, d)
				return
			}
		}

		// SPA fallback.
		http.ServeFile(w, r, indexPath)
	})
}
