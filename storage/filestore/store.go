package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/esdes/campus/core/session"
)

// Store persists sessions in a JSON file, so the command line console stays logged in between runs.
// Each session is kept as one encoded value: viper folds map keys to lower case.
type Store struct {
	mutex sync.Mutex
	path  string
	v     *viper.Viper
}

var _ session.Store = (*Store)(nil)

// Open reads path if it exists; the file is created on first save.
func Open(path string) (*Store, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			return nil, errors.Wrapf(err, "filestore.ReadInConfig(%s)", path)
		}
	}
	return &Store{path: path, v: v}, nil
}

func sessionKey(sid string) string { return "sessions." + sid }

func (st *Store) Load(_ context.Context, sid string) (map[string]string, error) {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	values := make(map[string]string)
	raw := st.v.GetString(sessionKey(sid))
	if raw == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, errors.Wrap(err, "filestore.Unmarshal")
	}
	return values, nil
}

func (st *Store) Save(_ context.Context, sid string, values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return errors.Wrap(err, "filestore.Marshal")
	}
	st.mutex.Lock()
	defer st.mutex.Unlock()
	st.v.Set(sessionKey(sid), string(data))
	return st.write()
}

func (st *Store) Delete(_ context.Context, sid string) error {
	st.mutex.Lock()
	defer st.mutex.Unlock()
	st.v.Set(sessionKey(sid), "")
	return st.write()
}

func (st *Store) write() error {
	if err := os.MkdirAll(filepath.Dir(st.path), 0o700); err != nil {
		return errors.Wrap(err, "filestore.MkdirAll")
	}
	if err := st.v.WriteConfigAs(st.path); err != nil {
		return errors.Wrapf(err, "filestore.WriteConfigAs(%s)", st.path)
	}
	return os.Chmod(st.path, 0o600)
}
