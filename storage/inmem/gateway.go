package inmemdb

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/esdes/campus/core"
	"github.com/esdes/campus/core/entity"
)

// Operations counted and hooked by the Gateway.
const (
	OpList   = "list"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

type table struct {
	mutex sync.RWMutex
	pk    int
	rows  []entity.Record
}

// Gateway is an in-memory entity.Gateway.
// Latency and failures can be injected per resource and operation.
type Gateway struct {
	mutex   sync.Mutex
	tables  map[string]*table
	latency map[string]time.Duration
	fails   map[string]error
	calls   map[string]int
}

var _ entity.Gateway = (*Gateway)(nil)

func NewGateway() *Gateway {
	return &Gateway{
		tables:  make(map[string]*table),
		latency: make(map[string]time.Duration),
		fails:   make(map[string]error),
		calls:   make(map[string]int),
	}
}

func hookKey(op, resource string) string { return op + ":" + resource }

func (gw *Gateway) table(resource string) *table {
	gw.mutex.Lock()
	defer gw.mutex.Unlock()
	t, ok := gw.tables[resource]
	if !ok {
		t = &table{}
		gw.tables[resource] = t
	}
	return t
}

// Seed stores recs as they are, assigning an id to those without one.
func (gw *Gateway) Seed(resource string, recs ...entity.Record) []entity.Record {
	t := gw.table(resource)
	t.mutex.Lock()
	defer t.mutex.Unlock()

	seeded := make([]entity.Record, 0, len(recs))
	for _, rec := range recs {
		rec = rec.Clone()
		if rec.ID() == "" {
			t.pk++
			rec["id"] = json.Number(strconv.Itoa(t.pk))
		} else if n, err := strconv.Atoi(rec.ID()); err == nil && n > t.pk {
			t.pk = n
		}
		t.rows = append(t.rows, rec)
		seeded = append(seeded, rec.Clone())
	}
	return seeded
}

// SetLatency delays every op call on resource by d.
func (gw *Gateway) SetLatency(op, resource string, d time.Duration) {
	gw.mutex.Lock()
	defer gw.mutex.Unlock()
	gw.latency[hookKey(op, resource)] = d
}

// FailWith makes every op call on resource return err (nil clears it).
func (gw *Gateway) FailWith(op, resource string, err error) {
	gw.mutex.Lock()
	defer gw.mutex.Unlock()
	if err == nil {
		delete(gw.fails, hookKey(op, resource))
		return
	}
	gw.fails[hookKey(op, resource)] = err
}

// Calls returns how many times op was called on resource.
func (gw *Gateway) Calls(op, resource string) int {
	gw.mutex.Lock()
	defer gw.mutex.Unlock()
	return gw.calls[hookKey(op, resource)]
}

// TotalCalls returns the number of calls of any op on any resource.
func (gw *Gateway) TotalCalls() int {
	gw.mutex.Lock()
	defer gw.mutex.Unlock()
	var n int
	for _, c := range gw.calls {
		n += c
	}
	return n
}

func (gw *Gateway) enter(ctx context.Context, op, resource string) error {
	key := hookKey(op, resource)
	gw.mutex.Lock()
	gw.calls[key]++
	delay, err := gw.latency[key], gw.fails[key]
	gw.mutex.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func (gw *Gateway) List(ctx context.Context, resource string) ([]entity.Record, error) {
	if err := gw.enter(ctx, OpList, resource); err != nil {
		return nil, err
	}
	t := gw.table(resource)
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	recs := make([]entity.Record, 0, len(t.rows))
	for _, rec := range t.rows {
		recs = append(recs, rec.Clone())
	}
	return recs, nil
}

func (gw *Gateway) Create(ctx context.Context, resource string, fields entity.Record) (entity.Record, error) {
	if err := gw.enter(ctx, OpCreate, resource); err != nil {
		return nil, err
	}
	t := gw.table(resource)
	t.mutex.Lock()
	defer t.mutex.Unlock()

	rec := fields.Clone()
	t.pk++
	rec["id"] = json.Number(strconv.Itoa(t.pk))
	t.rows = append(t.rows, rec)
	return rec.Clone(), nil
}

// Update only saves the given fields.
func (gw *Gateway) Update(ctx context.Context, resource, id string, fields entity.Record) (entity.Record, error) {
	if err := gw.enter(ctx, OpUpdate, resource); err != nil {
		return nil, err
	}
	t := gw.table(resource)
	t.mutex.Lock()
	defer t.mutex.Unlock()

	for i, rec := range t.rows {
		if rec.ID() != id {
			continue
		}
		upd := rec.Clone()
		for k, v := range fields {
			if k != "id" {
				upd[k] = v
			}
		}
		t.rows[i] = upd
		return upd.Clone(), nil
	}
	return nil, notFound()
}

func (gw *Gateway) Delete(ctx context.Context, resource, id string) error {
	if err := gw.enter(ctx, OpDelete, resource); err != nil {
		return err
	}
	t := gw.table(resource)
	t.mutex.Lock()
	defer t.mutex.Unlock()

	for i, rec := range t.rows {
		if rec.ID() == id {
			t.rows = append(t.rows[:i:i], t.rows[i+1:]...)
			return nil
		}
	}
	return notFound()
}

func notFound() error {
	return core.NewGatewayError(http.StatusNotFound, map[string]interface{}{"detail": "Not found."})
}
