package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

// Keys of the persisted session values.
const (
	KeyAccess  = "access_token"
	KeyRefresh = "refresh_token"
	KeyIsAdmin = "isAdmin"
	KeyRole    = "role"
)

type Role string

const (
	RoleNone      Role = ""
	RoleAdmin     Role = "admin"
	RoleComptable Role = "comptable"
)

var (
	ErrNoSession    = errors.New("not logged in")
	ErrInvalidToken = errors.New("invalid access token")
	ErrExpired      = errors.New("session expired")

	nowFunc = time.Now
)

// Store persists the values of a session, keyed by session id.
// Load returns an empty map (and no error) for an unknown id.
type Store interface {
	Load(ctx context.Context, sid string) (map[string]string, error)
	Save(ctx context.Context, sid string, values map[string]string) error
	Delete(ctx context.Context, sid string) error
}

// Claims are the access token claims the console relies on.
type Claims struct {
	UserID    string
	Username  string
	Email     string
	Admin     bool
	Comptable bool
	ExpiresAt time.Time
}

func (c Claims) Role() Role {
	switch {
	case c.Admin:
		return RoleAdmin
	case c.Comptable:
		return RoleComptable
	}
	return RoleNone
}

// Session is the authentication state of one user of the console.
// It is explicitly initialised on login and cleared on logout.
type Session struct {
	store Store
	sid   string

	mu      sync.RWMutex
	access  string
	refresh string
	claims  Claims
	isAdmin bool
}

func New(store Store, sid string) *Session {
	return &Session{store: store, sid: sid}
}

func (s *Session) ID() string { return s.sid }

// Init starts the session from a freshly issued token pair and persists it.
func (s *Session) Init(ctx context.Context, access, refresh string) error {
	claims, err := ParseClaims(access)
	if err != nil {
		return err
	}
	values := map[string]string{
		KeyAccess:  access,
		KeyRefresh: refresh,
		KeyIsAdmin: strconv.FormatBool(claims.Admin),
		KeyRole:    string(claims.Role()),
	}
	if err := s.store.Save(ctx, s.sid, values); err != nil {
		return errors.Wrap(err, "session.Save")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.access, s.refresh, s.claims, s.isAdmin = access, refresh, claims, claims.Admin
	return nil
}

// Restore reads back a persisted session. An expired token clears it.
func (s *Session) Restore(ctx context.Context) error {
	values, err := s.store.Load(ctx, s.sid)
	if err != nil {
		return errors.Wrap(err, "session.Load")
	}
	access := values[KeyAccess]
	if access == "" {
		return ErrNoSession
	}
	claims, err := ParseClaims(access)
	if err != nil {
		return err
	}
	if !claims.ExpiresAt.IsZero() && nowFunc().After(claims.ExpiresAt) {
		_ = s.Clear(ctx)
		return ErrExpired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.access, s.refresh, s.claims = access, values[KeyRefresh], claims
	s.isAdmin = values[KeyIsAdmin] == "true"
	return nil
}

// Clear forgets the session, in memory and in the store.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.access, s.refresh, s.claims, s.isAdmin = "", "", Claims{}, false
	s.mu.Unlock()

	if err := s.store.Delete(ctx, s.sid); err != nil {
		return errors.Wrap(err, "session.Delete")
	}
	return nil
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

func (s *Session) Claims() Claims {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claims
}

func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}

func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access != "" && s.isAdmin
}

// Layout is the area the user lands in.
func (s *Session) Layout() Role {
	if !s.IsAuthenticated() {
		return RoleNone
	}
	if s.IsAdmin() {
		return RoleAdmin
	}
	return s.Claims().Role()
}

// ParseClaims decodes the access token claims without checking the signature: the API owns the key.
func ParseClaims(access string) (Claims, error) {
	if access == "" {
		return Claims{}, ErrInvalidToken
	}
	mc := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(access, mc); err != nil {
		return Claims{}, errors.Wrap(ErrInvalidToken, err.Error())
	}
	c := Claims{
		UserID:    claimString(mc["user_id"]),
		Username:  claimString(mc["username"]),
		Email:     claimString(mc["email"]),
		Admin:     claimBool(mc["is_superuser"]),
		Comptable: claimBool(mc["is_comptable"]),
	}
	if exp, ok := mc["exp"].(float64); ok {
		c.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return c, nil
}

func claimString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	return ""
}

func claimBool(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, _ := strconv.ParseBool(val)
		return b
	case float64:
		return val != 0
	}
	return false
}
