package memstore

import (
	"context"
	"sync"

	"github.com/esdes/campus/core/session"
)

// Store keeps sessions in memory. It is lost on restart.
type Store struct {
	mutex    sync.RWMutex
	sessions map[string]map[string]string
}

var _ session.Store = (*Store)(nil)

func New() *Store {
	return &Store{sessions: make(map[string]map[string]string)}
}

func (st *Store) Load(_ context.Context, sid string) (map[string]string, error) {
	st.mutex.RLock()
	defer st.mutex.RUnlock()

	values := make(map[string]string, len(st.sessions[sid]))
	for k, v := range st.sessions[sid] {
		values[k] = v
	}
	return values, nil
}

func (st *Store) Save(_ context.Context, sid string, values map[string]string) error {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	saved := make(map[string]string, len(values))
	for k, v := range values {
		saved[k] = v
	}
	st.sessions[sid] = saved
	return nil
}

func (st *Store) Delete(_ context.Context, sid string) error {
	st.mutex.Lock()
	defer st.mutex.Unlock()
	delete(st.sessions, sid)
	return nil
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mutex.RLock()
	defer st.mutex.RUnlock()
	return len(st.sessions)
}
