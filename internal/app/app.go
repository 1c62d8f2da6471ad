package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"camrent/storefront/internal/audit"
	"camrent/storefront/internal/auth"
	"camrent/storefront/internal/catalog"
	"camrent/storefront/internal/config"
	"camrent/storefront/internal/httpserver"
	"camrent/storefront/internal/observability"
	"camrent/storefront/internal/oracle"
	"camrent/storefront/internal/route"
	"camrent/storefront/internal/store"
)

type App struct {
	cfg    config.Config
	log    *slog.Logger
	db     *sql.DB
	redis  *redis.Client
	server *httpserver.Server
}

// closers collects resources opened during New so a failed startup releases them.
type closers []io.Closer

func (c closers) closeAll() {
	for i := len(c) - 1; i >= 0; i-- {
		_ = c[i].Close()
	}
}

func New(cfg config.Config) (*App, error) {
	logger := observability.NewLogger(cfg.LogLevel)
	a := &App{cfg: cfg, log: logger}

	var opened closers
	fail := func(err error) (*App, error) {
		opened.closeAll()
		return nil, err
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		opened = append(opened, db)
		if err := db.Ping(); err != nil {
			return fail(fmt.Errorf("ping database: %w", err))
		}
		a.db = db
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opened = append(opened, client)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			return fail(fmt.Errorf("ping redis: %w", err))
		}
		a.redis = client
	}

	persister, err := a.buildPersister()
	if err != nil {
		return fail(err)
	}
	containers, err := store.NewRegistry(persister)
	if err != nil {
		return fail(fmt.Errorf("create container registry: %w", err))
	}

	authService, userStore, admins, err := a.buildAuth(func(sessionID string) {
		if err := containers.DropAuth(context.Background(), sessionID); err != nil {
			logger.Warn("drop expired auth snapshot failed", "session_id", sessionID, "error", err)
		}
	})
	if err != nil {
		return fail(err)
	}
	if err := a.ensureBootstrapAdmin(authService, userStore, admins); err != nil {
		return fail(err)
	}

	sessionOracle, err := oracle.New(auth.NewOracleBackend(authService), admins, oracle.Config{
		Timeout:      cfg.Auth.OracleTimeout,
		UserCacheTTL: cfg.Auth.UserCacheTTL,
		Logger:       logger,
	})
	if err != nil {
		return fail(fmt.Errorf("create session oracle: %w", err))
	}
	guard := route.NewGuard(route.MustDefaultTable(), sessionOracle)

	var catalogService httpserver.CatalogService
	if a.db != nil {
		catalogService, err = catalog.NewPGService(a.db)
		if err != nil {
			return fail(fmt.Errorf("create postgres catalog: %w", err))
		}
	} else {
		catalogService, err = catalog.NewServiceWithFile(cfg.CatalogStateFile)
		if err != nil {
			return fail(fmt.Errorf("create catalog: %w", err))
		}
	}

	a.server = httpserver.New(cfg.HTTP, httpserver.Deps{
		Auth:            authService,
		Oracle:          sessionOracle,
		Navigator:       guard,
		Containers:      containers,
		Catalog:         catalogService,
		Audit:           audit.NewLogger(cfg.AuditLogFile),
		Logger:          logger,
		Cookie:          httpserver.CookieOptions{Secure: cfg.Auth.CookieSecure},
		Ready:           a.ready,
		FrontendDistDir: cfg.FrontendDistDir,
	})
	logger.Info("storefront configured",
		"state_backend", cfg.State.Backend,
		"postgres", a.db != nil,
		"redis", a.redis != nil,
	)
	return a, nil
}

func (a *App) buildAuth(onExpired func(sessionID string)) (*auth.Service, auth.UserStore, oracle.AdminFlags, error) {
	var (
		userStore    auth.UserStore
		sessionStore auth.SessionStore
		admins       oracle.AdminFlags
		err          error
	)
	if a.db != nil {
		userStore, err = auth.NewPostgresUserStore(a.db)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create postgres user store: %w", err)
		}
		sessionStore, err = auth.NewPostgresSessionStore(a.db)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create postgres session store: %w", err)
		}
		admins, err = auth.NewPostgresAdminStore(a.db)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create postgres admin store: %w", err)
		}
	} else {
		userStore, err = auth.NewFileUserStore(a.cfg.Auth.UserStateFile)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create user store: %w", err)
		}
		admins, err = auth.NewRoleAdminStore(userStore)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create admin store: %w", err)
		}
	}

	svc, err := auth.NewService(userStore, auth.ServiceConfig{
		PasswordPepper:   a.cfg.Auth.PasswordPepper,
		BcryptCost:       a.cfg.Auth.BcryptCost,
		SessionTTL:       a.cfg.Auth.SessionTTL,
		SessionStateFile: a.cfg.Auth.SessionStateFile,
		SessionStore:     sessionStore,
		OnSessionExpired: onExpired,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create auth service: %w", err)
	}
	if err := svc.LoadSessionState(); err != nil {
		return nil, nil, nil, fmt.Errorf("load auth session state: %w", err)
	}
	return svc, userStore, admins, nil
}

// ensureBootstrapAdmin creates the configured admin account on first start. With
// Postgres the admin flag lives in admin_users and is granted on every start.
func (a *App) ensureBootstrapAdmin(svc *auth.Service, users auth.UserStore, admins oracle.AdminFlags) error {
	username := a.cfg.Auth.BootstrapUsername
	user, err := users.GetByUsername(username)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrUserNotFound):
		hash, err := svc.HashPassword(a.cfg.Auth.BootstrapPassword)
		if err != nil {
			return fmt.Errorf("hash bootstrap password: %w", err)
		}
		user = auth.User{
			ID:           uuid.NewString(),
			Username:     username,
			PasswordHash: hash,
			Roles:        []string{auth.RoleAdmin},
		}
		if err := users.Put(user); err != nil {
			return fmt.Errorf("create bootstrap user: %w", err)
		}
		a.log.Info("bootstrap auth user created", "username", username)
	default:
		return fmt.Errorf("check bootstrap user: %w", err)
	}

	if pg, ok := admins.(*auth.PostgresAdminStore); ok {
		if err := pg.SetAdminFlag(context.Background(), user.ID, true); err != nil {
			return fmt.Errorf("grant bootstrap admin flag: %w", err)
		}
	}
	return nil
}

func (a *App) buildPersister() (store.Persister, error) {
	switch a.cfg.State.Backend {
	case config.StateBackendRedis:
		if a.redis == nil {
			return nil, fmt.Errorf("redis state backend requires REDIS_ADDR")
		}
		p, err := store.NewRedisPersister(a.redis, "")
		if err != nil {
			return nil, fmt.Errorf("create redis persister: %w", err)
		}
		return p, nil
	case config.StateBackendPostgres:
		if a.db == nil {
			return nil, fmt.Errorf("postgres state backend requires DATABASE_URL")
		}
		p, err := store.NewPostgresPersister(a.db)
		if err != nil {
			return nil, fmt.Errorf("create postgres persister: %w", err)
		}
		return p, nil
	default:
		p, err := store.NewFilePersister(a.cfg.State.Dir)
		if err != nil {
			return nil, fmt.Errorf("create file persister: %w", err)
		}
		return p, nil
	}
}

func (a *App) ready(ctx context.Context) error {
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
		if a.db != nil {
			_ = a.db.Close()
		}
	}()

	errCh := make(chan error, 1)

	go func() {
		a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr)
		errCh <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server exited: %w", err)
	}
}
