package entity_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esdes/campus/core"
	"github.com/esdes/campus/core/entity"
	inmemdb "github.com/esdes/campus/storage/inmem"
	testutil "github.com/esdes/campus/tests"
)

func TestCacheLoadPartialFailure(t *testing.T) {
	gw := inmemdb.NewGateway()
	gw.Seed("etudiants", testutil.NewStudents(3)...)
	gw.SetLatency(inmemdb.OpList, "etudiants", 50*time.Millisecond)
	gw.SetLatency(inmemdb.OpList, "niveau", 10*time.Millisecond)
	gw.FailWith(inmemdb.OpList, "niveau", core.NewGatewayError(http.StatusInternalServerError, nil))

	cache := entity.NewCache(gw)
	err := cache.Load(context.Background(), "etudiants", "niveau")

	var loadErr *entity.LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Len(t, loadErr.Errs, 1)
	assert.Contains(t, loadErr.Errs, "niveau")

	assert.Len(t, cache.Collection("etudiants"), 3)
	assert.NoError(t, cache.Err("etudiants"))
	assert.Empty(t, cache.Collection("niveau"))
	assert.Error(t, cache.Err("niveau"))

	assert.Equal(t, 1, gw.Calls(inmemdb.OpList, "etudiants"))
	assert.Equal(t, 1, gw.Calls(inmemdb.OpList, "niveau"))
}

func TestCacheLoadReplacesCollections(t *testing.T) {
	gw := inmemdb.NewGateway()
	gw.Seed("niveau", entity.Record{"nom_niveau": "L1"})
	cache := entity.NewCache(gw)
	require.NoError(t, cache.Load(context.Background(), "niveau", "niveau"))
	assert.Equal(t, 1, gw.Calls(inmemdb.OpList, "niveau"), "duplicate resources are listed once")

	gw.Seed("niveau", entity.Record{"nom_niveau": "L2"})
	require.NoError(t, cache.Load(context.Background(), "niveau"))
	assert.Len(t, cache.Collection("niveau"), 2)
}

func TestCacheCreateDeleteInverse(t *testing.T) {
	gw := inmemdb.NewGateway()
	gw.Seed("etudiants", testutil.NewStudents(4)...)
	cache := entity.NewCache(gw)
	require.NoError(t, cache.Load(context.Background(), "etudiants"))

	before := cache.Collection("etudiants")
	cache.ApplyCreate("etudiants", entity.Record{"id": testutil.ID(42), "nom": "Nouveau"})
	assert.Len(t, cache.Collection("etudiants"), 5)
	assert.Len(t, before, 4, "handed out slices are never mutated")

	cache.ApplyDelete("etudiants", "42")
	assert.Equal(t, before, cache.Collection("etudiants"))
}

func TestCacheUpdateIdempotent(t *testing.T) {
	gw := inmemdb.NewGateway()
	gw.Seed("etudiants", testutil.NewStudents(3)...)
	cache := entity.NewCache(gw)
	require.NoError(t, cache.Load(context.Background(), "etudiants"))

	upd := entity.Record{"id": testutil.ID(2), "matricule": "E002", "nom": "Changed"}
	cache.ApplyUpdate("etudiants", upd)
	once := cache.Collection("etudiants")
	cache.ApplyUpdate("etudiants", upd)
	assert.Equal(t, once, cache.Collection("etudiants"))
	assert.Equal(t, "Changed", once[1].Text("nom"))

	cache.ApplyUpdate("etudiants", entity.Record{"id": testutil.ID(99), "nom": "Ghost"})
	assert.Equal(t, once, cache.Collection("etudiants"), "updating an absent record is a no-op")
}

func TestCacheStaleLoadDiscarded(t *testing.T) {
	gw := inmemdb.NewGateway()
	gw.Seed("etudiants", testutil.NewStudents(2)...)
	gw.SetLatency(inmemdb.OpList, "etudiants", 30*time.Millisecond)
	cache := entity.NewCache(gw)

	done := make(chan error, 1)
	go func() { done <- cache.Load(context.Background(), "etudiants") }()
	time.Sleep(5 * time.Millisecond)
	cache.Unmount()

	assert.Equal(t, entity.ErrStale, <-done)
	assert.Empty(t, cache.Collection("etudiants"))
	assert.Empty(t, cache.Errs())
}
