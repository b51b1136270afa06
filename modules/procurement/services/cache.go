package services

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// procurementCache holds rendered procurement views (pending queues, net
// contract summaries) per tenant. Mutations invalidate the whole tenant
// slice; the views are cheap to rebuild and correctness never depends on a
// hit.
type procurementCache struct {
	mu          sync.RWMutex
	entries     map[string]any
	tenantIndex map[uuid.UUID]map[string]struct{}
}

func newProcurementCache() *procurementCache {
	return &procurementCache{
		entries:     make(map[string]any),
		tenantIndex: make(map[uuid.UUID]map[string]struct{}),
	}
}

func pendingCacheKey(tenantID uuid.UUID, purchaseOrderID *uuid.UUID) string {
	if purchaseOrderID == nil {
		return fmt.Sprintf("pending:%s:all", tenantID)
	}
	return fmt.Sprintf("pending:%s:%s", tenantID, purchaseOrderID)
}

func summaryCacheKey(tenantID, projectID uuid.UUID) string {
	return fmt.Sprintf("summary:%s:%s", tenantID, projectID)
}

func (c *procurementCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *procurementCache) Set(tenantID uuid.UUID, key string, value any) {
	if tenantID == uuid.Nil || key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	if _, ok := c.tenantIndex[tenantID]; !ok {
		c.tenantIndex[tenantID] = make(map[string]struct{})
	}
	c.tenantIndex[tenantID][key] = struct{}{}
}

func (c *procurementCache) InvalidateTenant(tenantID uuid.UUID) {
	if tenantID == uuid.Nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.tenantIndex[tenantID] {
		delete(c.entries, key)
	}
	delete(c.tenantIndex, tenantID)
}
