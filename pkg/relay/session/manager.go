package session

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourusername/relay/pkg/relay/http11"
)

// Config is a host's session configuration: the cookie the manager
// reads and writes, plus its attributes.
type Config struct {
	// CookieName is the session cookie's name.
	CookieName string

	// Options are the Set-Cookie attributes. Max-Age doubles as the
	// session lifetime.
	Options http11.CookieOptions
}

// Manager mints, resolves and destroys sessions, speaking cookies on
// one side and a Store on the other.
type Manager struct {
	cfg   Config
	store Store
	log   *zap.Logger
	now   func() time.Time
}

// NewManager builds a manager over the given store. A nil now uses the
// wall clock; tests pass their own.
func NewManager(cfg Config, store Store, log *zap.Logger, now func() time.Time) *Manager {
	if store == nil {
		store = NewCacheStore()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{cfg: cfg, store: store, log: log, now: now}
}

// CookieName exposes the configured cookie name.
func (m *Manager) CookieName() string { return m.cfg.CookieName }

// Store exposes the underlying store, mainly for sweeps and tests.
func (m *Manager) Store() Store { return m.store }

// Create mints a fresh session, persists it and returns it with the
// fully formed Set-Cookie header. Expiry is now + Max-Age when the
// configuration sets one, absent otherwise.
func (m *Manager) Create() (*Session, http11.Header, error) {
	now := m.now()
	sess := &Session{
		ID:        uuid.NewString(),
		Data:      map[string]string{},
		CreatedAt: now,
	}
	if m.cfg.Options.MaxAge != nil {
		exp := now.Add(time.Duration(*m.cfg.Options.MaxAge) * time.Second)
		sess.ExpiresAt = &exp
	}
	if err := m.store.Set(sess); err != nil {
		return nil, http11.Header{}, &StorageError{Op: "set", Err: err}
	}

	cookie := http11.Cookie{Name: m.cfg.CookieName, Value: sess.ID, Options: m.cfg.Options}
	m.log.Debug("session created", zap.String("session_id", sess.ID))
	return sess, http11.NewHeader("Set-Cookie", cookie.String()), nil
}

// Get resolves the session named by a Cookie request header value.
// Returns (nil, nil) when the header carries no session cookie or the
// store has no record; ErrSessionExpired when the record existed but is
// past its expiry, in which case it is deleted first.
func (m *Manager) Get(cookieHeader string) (*Session, error) {
	id, ok := http11.CookieFromHeader(cookieHeader, m.cfg.CookieName)
	if !ok || id == "" {
		return nil, nil
	}
	sess, err := m.store.Get(id)
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}
	if sess == nil {
		return nil, nil
	}
	if sess.Expired(m.now()) {
		if err := m.store.Delete(id); err != nil {
			return nil, &StorageError{Op: "delete", Err: err}
		}
		m.log.Debug("session expired", zap.String("session_id", id))
		return nil, ErrSessionExpired
	}
	return sess, nil
}

// Destroy deletes the record and returns the invalidating Set-Cookie
// header: same name, empty value, Max-Age=0.
func (m *Manager) Destroy(id string) (http11.Header, error) {
	if err := m.store.Delete(id); err != nil {
		return http11.Header{}, &StorageError{Op: "delete", Err: err}
	}
	zero := int64(0)
	cookie := http11.Cookie{
		Name:  m.cfg.CookieName,
		Value: "",
		Options: http11.CookieOptions{
			MaxAge: &zero,
			Path:   m.cfg.Options.Path,
		},
	}
	m.log.Debug("session destroyed", zap.String("session_id", id))
	return http11.NewHeader("Set-Cookie", cookie.String()), nil
}

// Sweep deletes every expired record. The reactor calls this from its
// timeout sweep so dead sessions do not accumulate between accesses.
func (m *Manager) Sweep() {
	if err := m.store.CleanupExpired(m.now()); err != nil {
		m.log.Warn("session sweep failed", zap.Error(err))
	}
}
