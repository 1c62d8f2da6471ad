package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"camrent/storefront/internal/audit"
	"camrent/storefront/internal/auth"
	"camrent/storefront/internal/store"
)

func registerAuthHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if deps.Auth == nil {
			writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
			return
		}

		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Username == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "username and password are required")
			return
		}

		session, err := deps.Auth.Login(req.Username, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				auditReq(deps.Audit, r, req.Username, "auth.login", "", audit.OutcomeFailure, "", "invalid credentials")
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			auditReq(deps.Audit, r, req.Username, "auth.login", "", audit.OutcomeFailure, "", err.Error())
			writeError(w, http.StatusInternalServerError, "login failed")
			return
		}
		auditReq(deps.Audit, r, session.Username, "auth.login", "", audit.OutcomeSuccess, session.ID, "")
		writeSessionStarted(w, r, deps, session, http.StatusOK)
	})

	mux.HandleFunc("/v1/auth/register", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if deps.Auth == nil {
			writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
			return
		}

		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		user, err := deps.Auth.Register(req.Username, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidUsername):
				writeError(w, http.StatusBadRequest, "username must be 3-64 characters of a-z, 0-9, '.', '_' or '-'")
			case errors.Is(err, auth.ErrWeakPassword):
				writeError(w, http.StatusBadRequest, "password does not meet policy")
			case errors.Is(err, auth.ErrUserExists):
				writeError(w, http.StatusConflict, "username already taken")
			default:
				writeError(w, http.StatusInternalServerError, "registration failed")
			}
			auditReq(deps.Audit, r, req.Username, "auth.register", "", audit.OutcomeFailure, "", err.Error())
			return
		}
		auditReq(deps.Audit, r, user.Username, "auth.register", user.ID, audit.OutcomeSuccess, "", "")

		session, err := deps.Auth.Login(user.Username, req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "login after registration failed")
			return
		}
		writeSessionStarted(w, r, deps, session, http.StatusCreated)
	})

	mux.HandleFunc("/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		c, ok := requireSession(w, r, deps.Auth)
		if !ok {
			return
		}
		snap := refreshAuthSnapshot(r, deps, c)

		writeJSON(w, http.StatusOK, map[string]any{
			"id":         c.session.UserID,
			"username":   c.session.Username,
			"roles":      c.session.Roles,
			"is_admin":   snap.IsAdmin,
			"expires_at": c.session.ExpiresAt.UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if deps.Auth == nil {
			writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
			return
		}
		token := tokenFromRequest(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing session token")
			return
		}
		session, _ := deps.Auth.ValidateToken(token)
		if err := deps.Auth.Logout(token); err != nil {
			auditReq(deps.Audit, r, session.Username, "auth.logout", "", audit.OutcomeFailure, session.ID, "invalid token")
			clearSessionCookie(w, deps.Cookie)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if deps.Oracle != nil {
			deps.Oracle.Forget(token)
		}
		if deps.Containers != nil && session.ID != "" {
			if state, err := deps.Containers.Auth(r.Context(), session.ID); err == nil {
				if err := state.SignOut(r.Context()); err != nil {
					deps.logger().WarnContext(r.Context(), "clear auth snapshot failed", "session_id", session.ID, "error", err)
				}
			}
			if err := deps.Containers.DropAuth(r.Context(), session.ID); err != nil {
				deps.logger().WarnContext(r.Context(), "drop auth snapshot failed", "session_id", session.ID, "error", err)
			}
		}
		clearSessionCookie(w, deps.Cookie)
		auditReq(deps.Audit, r, session.Username, "auth.logout", "", audit.OutcomeSuccess, session.ID, "")
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/v1/auth/change-password", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if deps.Auth == nil {
			writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
			return
		}
		token := tokenFromRequest(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing session token")
			return
		}
		session, _ := deps.Auth.ValidateToken(token)

		var req struct {
			CurrentPassword string `json:"current_password"`
			NewPassword     string `json:"new_password"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.CurrentPassword == "" || req.NewPassword == "" {
			writeError(w, http.StatusBadRequest, "current_password and new_password are required")
			return
		}

		if err := deps.Auth.ChangePassword(token, req.CurrentPassword, req.NewPassword); err != nil {
			if errors.Is(err, auth.ErrWeakPassword) {
				auditReq(deps.Audit, r, session.Username, "auth.change_password", "", audit.OutcomeFailure, session.ID, "weak password")
				writeError(w, http.StatusBadRequest, "new password does not meet policy")
				return
			}
			if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrInvalidCredentials) {
				auditReq(deps.Audit, r, session.Username, "auth.change_password", "", audit.OutcomeFailure, session.ID, "invalid credentials or token")
				writeError(w, http.StatusUnauthorized, "invalid credentials or token")
				return
			}
			auditReq(deps.Audit, r, session.Username, "auth.change_password", "", audit.OutcomeFailure, session.ID, err.Error())
			writeError(w, http.StatusInternalServerError, "change password failed")
			return
		}
		auditReq(deps.Audit, r, session.Username, "auth.change_password", "", audit.OutcomeSuccess, session.ID, "")
		w.WriteHeader(http.StatusNoContent)
	})
}

func writeSessionStarted(w http.ResponseWriter, r *http.Request, deps Deps, session auth.Session, status int) {
	setSessionCookie(w, session.Token, session.ExpiresAt, deps.Cookie)
	snap := refreshAuthSnapshot(r, deps, caller{session: session, token: session.Token})

	writeJSON(w, status, map[string]any{
		"token":      session.Token,
		"session_id": session.ID,
		"user": map[string]any{
			"id":       session.UserID,
			"username": session.Username,
			"roles":    session.Roles,
			"is_admin": snap.IsAdmin,
		},
		"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// refreshAuthSnapshot re-reads the caller through the oracle and stores the result
// in the session's auth container. Failures are logged and yield an empty snapshot.
func refreshAuthSnapshot(r *http.Request, deps Deps, c caller) store.AuthSnapshot {
	if deps.Containers == nil || deps.Oracle == nil {
		return store.AuthSnapshot{}
	}
	state, err := deps.Containers.Auth(r.Context(), c.session.ID)
	if err != nil {
		deps.logger().WarnContext(r.Context(), "open auth snapshot failed", "session_id", c.session.ID, "error", err)
		return store.AuthSnapshot{}
	}
	snap, err := state.Initialize(r.Context(), deps.Oracle, c.token)
	if err != nil {
		deps.logger().WarnContext(r.Context(), "refresh auth snapshot failed", "session_id", c.session.ID, "error", err)
	}
	return snap
}

func registerSessionAdminHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/v1/system/sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		admin, ok := requireAdmin(w, r, deps)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": deps.Auth.ListSessionViews()})
		auditReq(deps.Audit, r, admin.session.Username, "session.list", "", audit.OutcomeSuccess, admin.session.ID, "")
	})

	mux.HandleFunc("/v1/system/sessions/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		admin, ok := requireAdmin(w, r, deps)
		if !ok {
			return
		}

		sessionID := pathID(r.URL.Path, "/v1/system/sessions/")
		if sessionID == "" {
			writeError(w, http.StatusBadRequest, "invalid session id")
			return
		}
		err := deps.Auth.RevokeSessionByID(sessionID)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				auditReq(deps.Audit, r, admin.session.Username, "session.revoke", sessionID, audit.OutcomeFailure, admin.session.ID, "session not found")
				writeError(w, http.StatusNotFound, "session not found")
				return
			}
			auditReq(deps.Audit, r, admin.session.Username, "session.revoke", sessionID, audit.OutcomeFailure, admin.session.ID, err.Error())
			writeError(w, http.StatusInternalServerError, "revoke session failed")
			return
		}
		if deps.Containers != nil {
			if err := deps.Containers.DropAuth(r.Context(), sessionID); err != nil {
				deps.logger().WarnContext(r.Context(), "drop auth snapshot failed", "session_id", sessionID, "error", err)
			}
		}
		auditReq(deps.Audit, r, admin.session.Username, "session.revoke", sessionID, audit.OutcomeSuccess, admin.session.ID, "")
		w.WriteHeader(http.StatusNoContent)
	})
}

func registerNavigationHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/v1/navigation", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if deps.Navigator == nil {
			writeError(w, http.StatusServiceUnavailable, "navigation guard unavailable")
			return
		}
		target := strings.TrimSpace(r.URL.Query().Get("to"))
		writeJSON(w, http.StatusOK, deps.Navigator.Evaluate(r.Context(), tokenFromRequest(r), target))
	})
}
