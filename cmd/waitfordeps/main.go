package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// waitfordeps blocks until the Postgres and Redis instances named in the
// environment answer a ping. Unset targets are skipped.
func main() {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	redisAddr := os.Getenv("TEST_REDIS_ADDR")
	if dsn == "" && redisAddr == "" {
		fmt.Fprintln(os.Stderr, "TEST_POSTGRES_DSN or TEST_REDIS_ADDR is required")
		os.Exit(2)
	}

	timeout := 60 * time.Second
	if raw := os.Getenv("WAIT_FOR_DEPS_TIMEOUT_SEC"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			fmt.Fprintf(os.Stderr, "invalid WAIT_FOR_DEPS_TIMEOUT_SEC: %q\n", raw)
			os.Exit(2)
		}
		timeout = time.Duration(secs) * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	if dsn != "" {
		g.Go(func() error { return waitForPostgres(ctx, dsn) })
	}
	if redisAddr != "" {
		g.Go(func() error { return waitForRedis(ctx, redisAddr) })
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "dependencies not ready within %s: %v\n", timeout, err)
		os.Exit(1)
	}
}

func waitForPostgres(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	return poll(ctx, "postgres", db.PingContext)
}

func waitForRedis(ctx context.Context, addr string) error {
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	return poll(ctx, "redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

func poll(ctx context.Context, name string, ping func(context.Context) error) error {
	for {
		attemptCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := ping(attemptCtx)
		cancel()
		if err == nil {
			fmt.Printf("%s ready\n", name)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", name, err)
		case <-time.After(2 * time.Second):
		}
	}
}
