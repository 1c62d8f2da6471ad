package httpserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"camrent/storefront/internal/audit"
	"camrent/storefront/internal/auth"
	"camrent/storefront/internal/catalog"
	"camrent/storefront/internal/config"
	"camrent/storefront/internal/oracle"
	"camrent/storefront/internal/route"
	"camrent/storefront/internal/store"
)

type AuthService interface {
	Login(username, password string) (auth.Session, error)
	Register(username, password string) (auth.User, error)
	ValidateToken(token string) (auth.Session, error)
	Logout(token string) error
	ChangePassword(token, currentPassword, newPassword string) error
	ListSessionViews() []auth.SessionView
	RevokeSessionByID(sessionID string) error
}

// SessionOracle answers authentication and role questions without surfacing errors.
type SessionOracle interface {
	IsAuthenticated(ctx context.Context, token string) bool
	CurrentUser(ctx context.Context, token string) *oracle.UserRecord
	CurrentUserRole(ctx context.Context, token string) *oracle.UserRole
	Forget(token string)
}

type Navigator interface {
	Evaluate(ctx context.Context, token, target string) route.Decision
}

type ContainerRegistry interface {
	Cart(ctx context.Context, userID string) (*store.Container, error)
	Saved(ctx context.Context, userID string) (*store.Container, error)
	Auth(ctx context.Context, sessionID string) (*store.AuthState, error)
	DropAuth(ctx context.Context, sessionID string) error
}

type CatalogService interface {
	Create(c catalog.Camera) (catalog.Camera, error)
	List(status string) ([]catalog.Camera, error)
	Get(id string) (catalog.Camera, error)
	Update(id string, c catalog.Camera) (catalog.Camera, error)
	SetStatus(id, status string) (catalog.Camera, error)
	// Rent marks an available camera rented; it fails with catalog.ErrUnavailable otherwise.
	Rent(id string) (catalog.Camera, error)
	Delete(id string) error
}

type AuditLogger interface {
	Record(e audit.Event) error
}

type Deps struct {
	Auth       AuthService
	Oracle     SessionOracle
	Navigator  Navigator
	Containers ContainerRegistry
	Catalog    CatalogService
	Audit      AuditLogger
	Logger     *slog.Logger
	Cookie     CookieOptions
	// Ready reports whether backing stores are reachable. Nil means always ready.
	Ready           func(ctx context.Context) error
	FrontendDistDir string
}

type Server struct {
	httpServer *http.Server
}

func New(cfg config.HTTPConfig, deps Deps) *Server {
	handler := NewHandler(deps)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      loggingMiddleware(deps.logger(), handler),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

func NewHandler(deps Deps) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ready(ctx); err != nil {
				deps.logger().WarnContext(r.Context(), "readiness check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.HandleFunc("/v1/info", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": "camrent-storefront",
			"version": "0.1.0",
		})
	})

	registerAuthHandlers(mux, deps)
	registerSessionAdminHandlers(mux, deps)
	registerNavigationHandlers(mux, deps)
	registerContainerHandlers(mux, deps, cartResource(deps))
	registerContainerHandlers(mux, deps, savedResource(deps))
	registerCatalogHandlers(mux, deps)
	registerAdminCatalogHandlers(mux, deps)
	registerPageHandlers(mux, deps)

	return mux
}

// caller is an authenticated request principal.
type caller struct {
	session auth.Session
	token   string
}

func requireSession(w http.ResponseWriter, r *http.Request, authSvc AuthService) (caller, bool) {
	if authSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
		return caller{}, false
	}
	token := tokenFromRequest(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing session token")
		return caller{}, false
	}

	session, err := authSvc.ValidateToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return caller{}, false
	}
	return caller{session: session, token: token}, true
}

// requireAdmin authenticates the caller and asks the session oracle for the admin flag.
func requireAdmin(w http.ResponseWriter, r *http.Request, deps Deps) (caller, bool) {
	c, ok := requireSession(w, r, deps.Auth)
	if !ok {
		return caller{}, false
	}
	if deps.Oracle == nil {
		writeError(w, http.StatusServiceUnavailable, "session oracle unavailable")
		return caller{}, false
	}
	role := deps.Oracle.CurrentUserRole(r.Context(), c.token)
	if role == nil || !role.IsAdmin {
		auditReq(deps.Audit, r, c.session.Username, "admin.access", r.URL.Path, audit.OutcomeDenied, c.session.ID, "")
		writeError(w, http.StatusForbidden, "forbidden")
		return caller{}, false
	}
	return c, true
}

// tokenFromRequest prefers the bearer header and falls back to the session cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		token, err := extractBearerToken(h)
		if err != nil {
			return ""
		}
		return token
	}
	return sessionCookieValue(r)
}

func extractBearerToken(authHeader string) (string, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// pathID returns the single path segment after prefix, or "" when there is none.
func pathID(p, prefix string) string {
	id := strings.TrimSpace(strings.TrimPrefix(p, prefix))
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(dst)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if reqID == "" {
			reqID = newRequestID()
		}
		w.Header().Set("X-Request-Id", reqID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, reqID))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(r.Context(), level, "http request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

func newRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func requestIDFromContext(ctx context.Context) string {
	v := ctx.Value(requestIDKey{})
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func auditReq(a AuditLogger, r *http.Request, actor, action, target, outcome, sessionID, detail string) {
	parts := []string{
		"ip=" + clientIP(r),
		"ua=" + strings.TrimSpace(r.UserAgent()),
	}
	if sessionID != "" {
		parts = append(parts, "sid="+sessionID)
	}
	if strings.TrimSpace(detail) != "" {
		parts = append(parts, "detail="+strings.TrimSpace(detail))
	}
	auditSafe(a, audit.Event{
		RequestID: requestIDFromContext(r.Context()),
		Actor:     actor,
		Action:    action,
		Target:    target,
		Outcome:   outcome,
		Detail:    strings.Join(parts, " | "),
	})
}

func auditSafe(a AuditLogger, e audit.Event) {
	if a == nil {
		return
	}
	_ = a.Record(e)
}
