package entity

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var ErrStale = errors.New("view was unmounted")

// LoadError reports the resources whose list call failed during a Load.
type LoadError struct {
	Errs map[string]error
}

func (e *LoadError) Error() string {
	resources := make([]string, 0, len(e.Errs))
	for res := range e.Errs {
		resources = append(resources, res)
	}
	sort.Strings(resources)
	msgs := make([]string, 0, len(resources))
	for _, res := range resources {
		msgs = append(msgs, res+": "+e.Errs[res].Error())
	}
	return strings.Join(msgs, "; ")
}

// Cache holds the collections of the active view.
// Collections are never mutated in place: every change swaps in a new slice,
// so a slice handed out by Collection stays valid.
type Cache struct {
	gw Gateway

	mu          sync.RWMutex
	collections map[string][]Record
	errs        map[string]error
	generation  uint64
}

func NewCache(gw Gateway) *Cache {
	return &Cache{
		gw:          gw,
		collections: make(map[string][]Record),
		errs:        make(map[string]error),
	}
}

// Load lists every resource concurrently and waits for all of them.
// Successful lists replace their collection even when others fail; failures are kept per resource
// and returned as a *LoadError. Results of a Load overtaken by Unmount are dropped (ErrStale).
func (c *Cache) Load(ctx context.Context, resources ...string) error {
	gen := c.Generation()

	var (
		mu      sync.Mutex
		results = make(map[string][]Record, len(resources))
		errs    = make(map[string]error)
		g       errgroup.Group
	)
	for _, res := range unique(resources) {
		res := res
		g.Go(func() error {
			recs, err := c.gw.List(ctx, res)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[res] = errors.Wrapf(err, "list %s", res)
				return nil
			}
			results[res] = recs
			return nil
		})
	}
	_ = g.Wait() // goroutines never fail: errors are collected per resource

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return ErrStale
	}
	for res, recs := range results {
		c.collections[res] = recs
		delete(c.errs, res)
	}
	for res, err := range errs {
		c.collections[res] = nil
		c.errs[res] = err
	}
	if len(errs) > 0 {
		return &LoadError{Errs: errs}
	}
	return nil
}

// Collection returns the records of resource, in server order.
func (c *Cache) Collection(resource string) []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collections[resource]
}

// Snapshot returns every collection currently held.
func (c *Cache) Snapshot() Collections {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := make(Collections, len(c.collections))
	for res, recs := range c.collections {
		snap[res] = recs
	}
	return snap
}

// Err returns the error of the last load of resource, if it failed.
func (c *Cache) Err(resource string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errs[resource]
}

// Errs returns the failed resources of the last load.
func (c *Cache) Errs() map[string]error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	errs := make(map[string]error, len(c.errs))
	for res, err := range c.errs {
		errs[res] = err
	}
	return errs
}

func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Unmount drops every collection; in-flight loads and mutations will not be applied.
func (c *Cache) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.collections = make(map[string][]Record)
	c.errs = make(map[string]error)
}

func (c *Cache) ApplyCreate(resource string, rec Record) {
	c.applyCreate(c.Generation(), resource, rec)
}

func (c *Cache) ApplyUpdate(resource string, rec Record) {
	c.applyUpdate(c.Generation(), resource, rec)
}

func (c *Cache) ApplyDelete(resource, id string) {
	c.applyDelete(c.Generation(), resource, id)
}

func (c *Cache) applyCreate(gen uint64, resource string, rec Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	old := c.collections[resource]
	recs := make([]Record, len(old), len(old)+1)
	copy(recs, old)
	c.collections[resource] = append(recs, rec)
	return true
}

// applyUpdate replaces the record with the same id; it is a no-op when there is none.
func (c *Cache) applyUpdate(gen uint64, resource string, rec Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	old := c.collections[resource]
	i := indexOf(old, rec.ID())
	if i < 0 {
		return true
	}
	recs := make([]Record, len(old))
	copy(recs, old)
	recs[i] = rec
	c.collections[resource] = recs
	return true
}

func (c *Cache) applyDelete(gen uint64, resource, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	old := c.collections[resource]
	i := indexOf(old, id)
	if i < 0 {
		return true
	}
	recs := make([]Record, 0, len(old)-1)
	recs = append(recs, old[:i]...)
	c.collections[resource] = append(recs, old[i+1:]...)
	return true
}

func unique(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
