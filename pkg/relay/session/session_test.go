package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/relay/pkg/relay/http11"
)

// fakeClock is an adjustable now() for expiry tests.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(t *testing.T, maxAge int64) (*Manager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cfg := Config{CookieName: "SID"}
	if maxAge > 0 {
		cfg.Options.MaxAge = &maxAge
	}
	return NewManager(cfg, NewCacheStore(), nil, clock.now), clock
}

func TestCreateSetsExpiryAndCookie(t *testing.T) {
	mgr, clock := newTestManager(t, 60)

	sess, header, err := mgr.Create()
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotEmpty(t, sess.ID)
	require.NotNil(t, sess.ExpiresAt)
	assert.Equal(t, clock.t.Add(60*time.Second), *sess.ExpiresAt)

	assert.Equal(t, http11.HeaderSetCookie, header.Name)
	assert.True(t, strings.HasPrefix(header.Value, "SID="+sess.ID))
	assert.Contains(t, header.Value, "Max-Age=60")
}

func TestCreateWithoutMaxAgeNeverExpires(t *testing.T) {
	mgr, clock := newTestManager(t, 0)
	sess, _, err := mgr.Create()
	require.NoError(t, err)
	assert.Nil(t, sess.ExpiresAt)

	clock.advance(1000 * time.Hour)
	got, err := mgr.Get("SID=" + sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestGetReturnsLiveSession(t *testing.T) {
	mgr, _ := newTestManager(t, 60)
	sess, _, err := mgr.Create()
	require.NoError(t, err)

	got, err := mgr.Get("other=1; SID=" + sess.ID + "; more=2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.ID, got.ID)
}

func TestGetAfterExpiryDeletesRecord(t *testing.T) {
	mgr, clock := newTestManager(t, 60)
	sess, _, err := mgr.Create()
	require.NoError(t, err)

	clock.advance(61 * time.Second)
	got, err := mgr.Get("SID=" + sess.ID)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrSessionExpired)

	// The record is gone: a second access reports no session at all.
	got, err = mgr.Get("SID=" + sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetUnknownCookie(t *testing.T) {
	mgr, _ := newTestManager(t, 60)

	got, err := mgr.Get("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = mgr.Get("SID=no-such-session")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDestroyInvalidatesCookie(t *testing.T) {
	mgr, _ := newTestManager(t, 60)
	sess, _, err := mgr.Create()
	require.NoError(t, err)

	header, err := mgr.Destroy(sess.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(header.Value, "SID=;"))
	assert.Contains(t, header.Value, "Max-Age=0")

	got, err := mgr.Get("SID=" + sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "destroyed session must not resolve")
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	mgr, clock := newTestManager(t, 60)
	expired, _, err := mgr.Create()
	require.NoError(t, err)

	clock.advance(30 * time.Second)
	live, _, err := mgr.Create()
	require.NoError(t, err)

	clock.advance(45 * time.Second) // expired: 75s old; live: 45s old
	mgr.Sweep()

	sessions, err := mgr.Store().List()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, live.ID, sessions[0].ID)
	_ = expired
}

func TestMiddleware(t *testing.T) {
	mgr, clock := newTestManager(t, 60)
	sess, _, err := mgr.Create()
	require.NoError(t, err)

	t.Run("not required passes through", func(t *testing.T) {
		got, err := Middleware(mgr, false, "", "")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("live session passes through", func(t *testing.T) {
		got, err := Middleware(mgr, true, "/login", "SID="+sess.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, sess.ID, got.ID)
	})

	t.Run("missing session with redirect", func(t *testing.T) {
		_, err := Middleware(mgr, true, "/login", "")
		var redir *RedirectError
		require.True(t, errors.As(err, &redir))
		assert.Equal(t, "/login", redir.URL)
	})

	t.Run("missing session without redirect", func(t *testing.T) {
		_, err := Middleware(mgr, true, "", "")
		assert.ErrorIs(t, err, ErrAuthenticationRequired)
	})

	t.Run("expired session with redirect", func(t *testing.T) {
		clock.advance(2 * time.Hour)
		_, err := Middleware(mgr, true, "/login", "SID="+sess.ID)
		var redir *RedirectError
		require.True(t, errors.As(err, &redir))
		assert.Equal(t, "/login", redir.URL)
	})
}

func TestCookieRendering(t *testing.T) {
	maxAge := int64(60)
	expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := http11.Cookie{
		Name:  "SID",
		Value: "abc",
		Options: http11.CookieOptions{
			HTTPOnly:    true,
			Secure:      true,
			MaxAge:      &maxAge,
			Path:        "/",
			Expires:     &expires,
			Domain:      "example",
			SameSite:    http11.SameSiteStrict,
			SameSiteSet: true,
		},
	}
	got := c.String()
	assert.Equal(t,
		"SID=abc; HttpOnly; Secure; Max-Age=60; Path=/; Expires=Sun, 01 Mar 2026 12:00:00 UTC; Domain=example; SameSite=Strict",
		got)
}
