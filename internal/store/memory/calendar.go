package memory

import (
	"context"
	"sync"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

type Calendar struct {
	mu        sync.RWMutex
	resources map[string]domain.Resource
}

func NewCalendar(resources ...domain.Resource) *Calendar {
	c := &Calendar{resources: make(map[string]domain.Resource)}
	for _, r := range resources {
		c.Put(r)
	}
	return c
}

var _ store.CalendarSource = (*Calendar)(nil)

func (c *Calendar) Put(r domain.Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources[r.TenantID+"/"+r.ID] = r
}

func (c *Calendar) GetResource(ctx context.Context, tenantID, resourceID string) (domain.Resource, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.resources[tenantID+"/"+resourceID]
	if !ok {
		return domain.Resource{}, store.ErrNotFound
	}
	return r, nil
}

type Catalog struct {
	mu       sync.RWMutex
	services map[string]domain.Service
}

func NewCatalog(services ...domain.Service) *Catalog {
	c := &Catalog{services: make(map[string]domain.Service)}
	for _, s := range services {
		c.Put(s)
	}
	return c
}

var _ store.ServiceCatalog = (*Catalog)(nil)

func (c *Catalog) Put(s domain.Service) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[s.TenantID+"/"+s.ID] = s
}

func (c *Catalog) GetService(ctx context.Context, tenantID, serviceID string) (domain.Service, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.services[tenantID+"/"+serviceID]
	if !ok {
		return domain.Service{}, store.ErrNotFound
	}
	return s, nil
}
