package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"camrent/storefront/internal/audit"
	"camrent/storefront/internal/catalog"
	"camrent/storefront/internal/store"
)

// containerResource describes one per-user container exposed over HTTP.
type containerResource struct {
	prefix    string
	kind      string
	open      func(ctx context.Context, userID string) (*store.Container, error)
	allowRent bool
}

func cartResource(deps Deps) containerResource {
	res := containerResource{prefix: "/v1/cart", kind: "cart", allowRent: true}
	if deps.Containers != nil {
		res.open = deps.Containers.Cart
	}
	return res
}

func savedResource(deps Deps) containerResource {
	res := containerResource{prefix: "/v1/saved", kind: "saved"}
	if deps.Containers != nil {
		res.open = deps.Containers.Saved
	}
	return res
}

func registerContainerHandlers(mux *http.ServeMux, deps Deps, res containerResource) {
	openFor := func(w http.ResponseWriter, r *http.Request) (caller, *store.Container, bool) {
		c, ok := requireSession(w, r, deps.Auth)
		if !ok {
			return caller{}, nil, false
		}
		if res.open == nil {
			writeError(w, http.StatusServiceUnavailable, res.kind+" storage unavailable")
			return caller{}, nil, false
		}
		container, err := res.open(r.Context(), c.session.UserID)
		if err != nil {
			deps.logger().ErrorContext(r.Context(), "open container failed", "kind", res.kind, "user_id", c.session.UserID, "error", err)
			writeError(w, http.StatusInternalServerError, "load "+res.kind+" failed")
			return caller{}, nil, false
		}
		return c, container, true
	}

	mux.HandleFunc(res.prefix, func(w http.ResponseWriter, r *http.Request) {
		c, container, ok := openFor(w, r)
		if !ok {
			return
		}

		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"items": container.All()})
		case http.MethodPost:
			var req struct {
				CameraID string `json:"camera_id"`
			}
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			item, err := itemFromCatalog(deps.Catalog, req.CameraID)
			if err != nil {
				writeContainerError(w, err)
				return
			}
			added, err := container.Add(r.Context(), item)
			if err != nil {
				auditReq(deps.Audit, r, c.session.Username, res.kind+".add", item.ID, audit.OutcomeFailure, c.session.ID, err.Error())
				writeContainerError(w, err)
				return
			}
			status := http.StatusOK
			if added {
				status = http.StatusCreated
				auditReq(deps.Audit, r, c.session.Username, res.kind+".add", item.ID, audit.OutcomeSuccess, c.session.ID, "")
			}
			writeJSON(w, status, map[string]any{"added": added, "items": container.All()})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc(res.prefix+"/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, res.prefix+"/")
		if id, ok := strings.CutSuffix(rest, "/rent"); ok && res.allowRent {
			handleRent(w, r, deps, res, openFor, id)
			return
		}
		id := pathID(r.URL.Path, res.prefix+"/")
		if id == "" {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		if r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		c, container, ok := openFor(w, r)
		if !ok {
			return
		}
		removed, err := container.Remove(r.Context(), id)
		if err != nil {
			auditReq(deps.Audit, r, c.session.Username, res.kind+".remove", id, audit.OutcomeFailure, c.session.ID, err.Error())
			writeContainerError(w, err)
			return
		}
		if removed {
			auditReq(deps.Audit, r, c.session.Username, res.kind+".remove", id, audit.OutcomeSuccess, c.session.ID, "")
		}
		writeJSON(w, http.StatusOK, map[string]any{"removed": removed, "items": container.All()})
	})
}

func handleRent(
	w http.ResponseWriter,
	r *http.Request,
	deps Deps,
	res containerResource,
	openFor func(http.ResponseWriter, *http.Request) (caller, *store.Container, bool),
	id string,
) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	c, container, ok := openFor(w, r)
	if !ok {
		return
	}
	if !container.Contains(id) {
		writeContainerError(w, store.ErrItemNotFound)
		return
	}
	// The catalog decides who wins a contested camera; the cart only changes after it agrees.
	if deps.Catalog != nil {
		if _, err := deps.Catalog.Rent(id); err != nil {
			auditReq(deps.Audit, r, c.session.Username, res.kind+".rent", id, audit.OutcomeFailure, c.session.ID, err.Error())
			writeContainerError(w, err)
			return
		}
	}
	item, err := container.Rent(r.Context(), id)
	if err != nil {
		if deps.Catalog != nil {
			if _, rerr := deps.Catalog.SetStatus(id, catalog.StatusAvailable); rerr != nil {
				deps.logger().ErrorContext(r.Context(), "release camera after failed rent", "camera_id", id, "error", rerr)
			}
		}
		auditReq(deps.Audit, r, c.session.Username, res.kind+".rent", id, audit.OutcomeFailure, c.session.ID, err.Error())
		writeContainerError(w, err)
		return
	}
	auditReq(deps.Audit, r, c.session.Username, res.kind+".rent", id, audit.OutcomeSuccess, c.session.ID, "")
	writeJSON(w, http.StatusOK, map[string]any{"rented": item, "items": container.All()})
}

// itemFromCatalog snapshots an available camera into a container item.
func itemFromCatalog(cat CatalogService, cameraID string) (store.Item, error) {
	cameraID = strings.TrimSpace(cameraID)
	if cameraID == "" {
		return store.Item{}, store.ErrInvalidItem
	}
	if cat == nil {
		return store.Item{ID: cameraID}, nil
	}
	cam, err := cat.Get(cameraID)
	if err != nil {
		return store.Item{}, err
	}
	if cam.Status != catalog.StatusAvailable {
		return store.Item{}, catalog.ErrUnavailable
	}
	return store.Item{
		ID:        cam.ID,
		Name:      cam.Name,
		Brand:     cam.Brand,
		Model:     cam.Model,
		DailyRate: cam.DailyRate,
		Currency:  cam.Currency,
		ImageURL:  cam.ImageURL,
		Status:    cam.Status,
	}, nil
}

func writeContainerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidItem):
		writeError(w, http.StatusBadRequest, "camera_id is required")
	case errors.Is(err, store.ErrItemNotFound), errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, catalog.ErrUnavailable):
		writeError(w, http.StatusConflict, catalog.ErrUnavailable.Error())
	default:
		writeError(w, http.StatusInternalServerError, "storage failure")
	}
}
