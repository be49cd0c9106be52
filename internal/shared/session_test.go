package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessions(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "sf_session", time.Hour, false), mr
}

func TestSessionRoundTrip(t *testing.T) {
	sessions, mr := newTestSessions(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sessions.Load(ctx, req)
	require.NoError(t, err)
	sess.SetPrincipal(Principal{UserID: "u-1", Email: "ana@example.com"})
	sess.Set("k", "v")

	rr := httptest.NewRecorder()
	require.NoError(t, sessions.Commit(ctx, rr, req, sess))
	assert.True(t, mr.Exists("storefront:session:"+sess.ID))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(&http.Cookie{Name: sessions.CookieName(), Value: sess.ID})
	loaded, err := sessions.Load(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "v", loaded.Get("k"))
	assert.Equal(t, Principal{UserID: "u-1", Email: "ana@example.com"}, loaded.Principal())
}

func TestLoadIgnoresUnknownSessionID(t *testing.T) {
	sessions, _ := newTestSessions(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessions.CookieName(), Value: "attacker-chosen"})
	sess, err := sessions.Load(context.Background(), req)

	require.NoError(t, err)
	assert.NotEqual(t, "attacker-chosen", sess.ID)
	assert.True(t, sess.Principal().Anonymous())
}

func TestRenewRotatesIDAndDropsOldKey(t *testing.T) {
	sessions, mr := newTestSessions(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sessions.Load(ctx, req)
	require.NoError(t, err)
	require.NoError(t, sessions.Commit(ctx, httptest.NewRecorder(), req, sess))
	oldID := sess.ID

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(&http.Cookie{Name: sessions.CookieName(), Value: oldID})
	loaded, err := sessions.Load(ctx, req2)
	require.NoError(t, err)
	sessions.Renew(loaded)
	require.NoError(t, sessions.Commit(ctx, httptest.NewRecorder(), req2, loaded))

	assert.NotEqual(t, oldID, loaded.ID)
	assert.False(t, mr.Exists("storefront:session:"+oldID))
	assert.True(t, mr.Exists("storefront:session:"+loaded.ID))
}

func TestDestroyExpiresCookie(t *testing.T) {
	sessions, mr := newTestSessions(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sessions.Load(ctx, req)
	require.NoError(t, err)
	require.NoError(t, sessions.Commit(ctx, httptest.NewRecorder(), req, sess))

	sessions.Destroy(sess)
	rr := httptest.NewRecorder()
	require.NoError(t, sessions.Commit(ctx, rr, req, sess))

	assert.False(t, mr.Exists("storefront:session:"+sess.ID))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestCSRFTokenLifecycleWithLoadedSession(t *testing.T) {
	sessions, _ := newTestSessions(t)
	csrf := NewCSRFManager("secret")
	ctx := context.Background()

	sess, err := sessions.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	token, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	again, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, csrf.VerifyToken(ctx, sess, token))
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, "nope"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, csrf.VerifyToken(ctx, nil, token), ErrCSRFTokenMissing)
}

func TestCommitSlidesExpiryAndKeepsFields(t *testing.T) {
	sessions, mr := newTestSessions(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sessions.Load(ctx, req)
	require.NoError(t, err)
	sess.Set("cart_slot", "slot-1")
	require.NoError(t, sessions.Commit(ctx, httptest.NewRecorder(), req, sess))
	key := "storefront:session:" + sess.ID
	assert.Equal(t, "slot-1", mr.HGet(key, "v.cart_slot"))

	mr.FastForward(40 * time.Minute)
	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(&http.Cookie{Name: sessions.CookieName(), Value: sess.ID})
	loaded, err := sessions.Load(ctx, next)
	require.NoError(t, err)
	require.NoError(t, sessions.Commit(ctx, httptest.NewRecorder(), next, loaded))

	assert.Equal(t, time.Hour, mr.TTL(key))
	assert.Equal(t, "slot-1", loaded.Get("cart_slot"))
	assert.False(t, loaded.CreatedAt.IsZero())
}
