package handler

import (
	"sync"
	"time"

	"github.com/strangerdangercoffee/portal/internal/infra/cache"
	"github.com/strangerdangercoffee/portal/internal/service"
)

// page serializes requests against one user's page session.
type page[T any] struct {
	mu      sync.Mutex
	session T
}

// Pages keeps one dashboard and one admin session per user so selection
// and admin filtering stay local between requests. Idle sessions expire.
type Pages struct {
	mu         sync.Mutex
	dashboards *cache.InMemory[*page[*service.DashboardSession]]
	admins     *cache.InMemory[*page[*service.AdminSession]]
}

// NewPages creates the page store. Call Close to stop its janitors.
func NewPages(ttl time.Duration) *Pages {
	return &Pages{
		dashboards: cache.New[*page[*service.DashboardSession]](ttl),
		admins:     cache.New[*page[*service.AdminSession]](ttl),
	}
}

// Close stops the expiry goroutines.
func (p *Pages) Close() {
	p.dashboards.Close()
	p.admins.Close()
}

// Drop forgets both sessions of userID.
func (p *Pages) Drop(userID string) {
	p.dashboards.Delete(userID)
	p.admins.Delete(userID)
}

func (p *Pages) dashboard(userID string) *page[*service.DashboardSession] {
	return lookup(&p.mu, p.dashboards, userID)
}

func (p *Pages) admin(userID string) *page[*service.AdminSession] {
	return lookup(&p.mu, p.admins, userID)
}

// lookup returns the page for key, creating it if needed. Every access
// renews the TTL.
func lookup[T any](mu *sync.Mutex, c *cache.InMemory[*page[T]], key string) *page[T] {
	mu.Lock()
	defer mu.Unlock()

	pg, ok := c.Get(key)
	if !ok {
		pg = &page[T]{}
	}
	c.Set(key, pg)
	return pg
}
