package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"camrent/storefront/internal/audit"
	"camrent/storefront/internal/catalog"
)

func registerCatalogHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/v1/cameras", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if _, ok := requireSession(w, r, deps.Auth); !ok {
			return
		}
		if deps.Catalog == nil {
			writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
			return
		}
		cameras, err := deps.Catalog.List(r.URL.Query().Get("status"))
		if err != nil {
			deps.logger().ErrorContext(r.Context(), "list cameras failed", "error", err)
			writeError(w, http.StatusInternalServerError, "list cameras failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": cameras})
	})

	mux.HandleFunc("/v1/cameras/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if _, ok := requireSession(w, r, deps.Auth); !ok {
			return
		}
		if deps.Catalog == nil {
			writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
			return
		}
		id := pathID(r.URL.Path, "/v1/cameras/")
		if id == "" {
			writeError(w, http.StatusNotFound, "camera not found")
			return
		}
		cam, err := deps.Catalog.Get(id)
		if err != nil {
			writeCatalogError(w, err, "get camera failed")
			return
		}
		writeJSON(w, http.StatusOK, cam)
	})
}

func registerAdminCatalogHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/v1/admin/cameras", func(w http.ResponseWriter, r *http.Request) {
		admin, ok := requireAdmin(w, r, deps)
		if !ok {
			return
		}
		if deps.Catalog == nil {
			writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
			return
		}

		switch r.Method {
		case http.MethodGet:
			cameras, err := deps.Catalog.List(r.URL.Query().Get("status"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, "list cameras failed")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": cameras})
		case http.MethodPost:
			var req catalog.Camera
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			created, err := deps.Catalog.Create(req)
			if err != nil {
				writeCatalogError(w, err, "create camera failed")
				return
			}
			auditReq(deps.Audit, r, admin.session.Username, "camera.create", created.ID, audit.OutcomeSuccess, admin.session.ID, "")
			writeJSON(w, http.StatusCreated, created)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/v1/admin/cameras/", func(w http.ResponseWriter, r *http.Request) {
		admin, ok := requireAdmin(w, r, deps)
		if !ok {
			return
		}
		if deps.Catalog == nil {
			writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
			return
		}

		rest := strings.TrimPrefix(r.URL.Path, "/v1/admin/cameras/")
		if id, ok := strings.CutSuffix(rest, "/status"); ok {
			id = strings.TrimSpace(id)
			if id == "" || strings.Contains(id, "/") {
				writeError(w, http.StatusNotFound, "camera not found")
				return
			}
			if r.Method != http.MethodPut {
				writeError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			var req struct {
				Status string `json:"status"`
			}
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			updated, err := deps.Catalog.SetStatus(id, req.Status)
			if err != nil {
				writeCatalogError(w, err, "update camera status failed")
				return
			}
			auditReq(deps.Audit, r, admin.session.Username, "camera.status", id, audit.OutcomeSuccess, admin.session.ID, updated.Status)
			writeJSON(w, http.StatusOK, updated)
			return
		}

		id := pathID(r.URL.Path, "/v1/admin/cameras/")
		if id == "" {
			writeError(w, http.StatusNotFound, "camera not found")
			return
		}

		switch r.Method {
		case http.MethodGet:
			cam, err := deps.Catalog.Get(id)
			if err != nil {
				writeCatalogError(w, err, "get camera failed")
				return
			}
			writeJSON(w, http.StatusOK, cam)
		case http.MethodPut:
			var req catalog.Camera
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			updated, err := deps.Catalog.Update(id, req)
			if err != nil {
				writeCatalogError(w, err, "update camera failed")
				return
			}
			auditReq(deps.Audit, r, admin.session.Username, "camera.update", id, audit.OutcomeSuccess, admin.session.ID, "")
			writeJSON(w, http.StatusOK, updated)
		case http.MethodDelete:
			if err := deps.Catalog.Delete(id); err != nil {
				writeCatalogError(w, err, "delete camera failed")
				return
			}
			auditReq(deps.Audit, r, admin.session.Username, "camera.delete", id, audit.OutcomeSuccess, admin.session.ID, "")
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})
}

func writeCatalogError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, catalog.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "camera not found")
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
