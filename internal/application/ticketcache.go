package application

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
	"github.com/ericfisherdev/reviewnudge/internal/domain/port/driven"
)

// TicketCache memoizes ticket lookups by key for the duration of one run.
// Concurrent callers asking for the same key share a single lookup, and
// failed lookups are remembered as "no ticket" so each key is fetched once.
type TicketCache struct {
	provider driven.TicketProvider
	timeout  time.Duration
	logger   *slog.Logger

	group   singleflight.Group
	mu      sync.Mutex
	entries map[string]*model.TicketInfo
	lookups int
}

// NewTicketCache creates an empty cache in front of provider. Each lookup is
// bounded by timeout when it is positive.
func NewTicketCache(provider driven.TicketProvider, timeout time.Duration, logger *slog.Logger) *TicketCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &TicketCache{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
		entries:  make(map[string]*model.TicketInfo),
	}
}

// Get returns the ticket for key, or nil when key is empty or the lookup failed.
func (c *TicketCache) Get(ctx context.Context, key string) *model.TicketInfo {
	if key == "" || c.provider == nil {
		return nil
	}

	c.mu.Lock()
	info, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return info
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		// A racing caller may have stored the entry between our check and Do.
		c.mu.Lock()
		if cached, ok := c.entries[key]; ok {
			c.mu.Unlock()
			return cached, nil
		}
		c.lookups++
		c.mu.Unlock()

		fetched := c.lookup(ctx, key)

		c.mu.Lock()
		c.entries[key] = fetched
		c.mu.Unlock()
		return fetched, nil
	})

	return v.(*model.TicketInfo)
}

func (c *TicketCache) lookup(ctx context.Context, key string) (info *model.TicketInfo) {
	defer func() {
		if v := recover(); v != nil {
			c.logger.Error("panic recovered", "ticket", key, "panic", v, "stack", string(debug.Stack()))
			info = nil
		}
	}()

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	found, err := c.provider.Lookup(callCtx, key)
	if err != nil {
		c.logger.Warn("ticket lookup failed, continuing without ticket", "ticket", key, "error", err)
		return nil
	}
	return found
}

// Lookups returns how many provider calls the cache has made.
func (c *TicketCache) Lookups() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookups
}
