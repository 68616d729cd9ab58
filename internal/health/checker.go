package health

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Probe checks one dependency. It must respect ctx.
type Probe func(ctx context.Context) error

// Checker runs named dependency probes for the readiness endpoint.
// Probes run concurrently, each under its own timeout.
type Checker struct {
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	probes map[string]Probe
}

// New creates a Checker. timeout bounds each individual probe; zero
// means 2 seconds.
func New(timeout time.Duration, logger *zap.Logger) *Checker {
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	return &Checker{timeout: timeout, logger: logger, probes: make(map[string]Probe)}
}

// Add registers a probe under a stable name.
func (c *Checker) Add(name string, p Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = p
}

// Report is the outcome of one readiness pass.
type Report struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
}

// Check runs every registered probe and reports per-dependency status.
// Any failing probe makes the whole report not ready.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.Lock()
	probes := make(map[string]Probe, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.Unlock()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		report = Report{Ready: true, Checks: make(map[string]string, len(probes))}
	)
	for name, p := range probes {
		wg.Add(1)
		go func(name string, p Probe) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			status := "ok"
			if err := p(pctx); err != nil {
				status = err.Error()
				c.logger.Warn("readiness probe failed",
					zap.String("dependency", name),
					zap.Error(err),
				)
			}
			mu.Lock()
			report.Checks[name] = status
			if status != "ok" {
				report.Ready = false
			}
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()
	return report
}

// pinger covers pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// Postgres probes the database connection pool.
func Postgres(db pinger) Probe {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		return nil
	}
}

// Redis probes the cache connection.
func Redis(rdb redis.UniversalClient) Probe {
	return func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}
}

// Dir probes that a storage directory exists and is writable.
func Dir(path string) Probe {
	return func(_ context.Context) error {
		f, err := os.CreateTemp(path, ".readyz-*")
		if err != nil {
			return fmt.Errorf("storage dir: %w", err)
		}
		name := f.Name()
		f.Close()
		os.Remove(name)
		return nil
	}
}
