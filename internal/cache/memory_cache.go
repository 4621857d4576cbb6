package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"hielitos/backend/internal/domain"
)

// MemoryDashboardCache is a process-local DashboardCache for single-node
// deployments without Redis.
type MemoryDashboardCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     domain.Dashboard
	expiresAt time.Time
}

func NewMemoryDashboardCache() *MemoryDashboardCache {
	return &MemoryDashboardCache{now: time.Now, entries: make(map[string]memoryEntry)}
}

func (c *MemoryDashboardCache) Get(_ context.Context, key string) (*domain.Dashboard, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	value := cloneDashboard(entry.value)
	return &value, true, nil
}

func (c *MemoryDashboardCache) Set(_ context.Context, key string, value *domain.Dashboard, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: cloneDashboard(*value), expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryDashboardCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func cloneDashboard(d domain.Dashboard) domain.Dashboard {
	d.Summary.StockByCategory = slices.Clone(d.Summary.StockByCategory)
	return d
}
