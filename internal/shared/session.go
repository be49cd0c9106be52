package shared

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/storefront/storefront/internal/platform/cache"
)

// Session hashes keep the bound user and creation time in reserved fields;
// every other field is a caller value prefixed with valuePrefix.
const (
	fieldUserID  = "_uid"
	fieldEmail   = "_email"
	fieldCreated = "_created"
	valuePrefix  = "v."
)

// SessionManager stores sessions as redis hashes addressed by an opaque
// cookie id.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

// Session is the per-request view of a stored session.
type Session struct {
	ID        string
	CreatedAt time.Time

	values    map[string]string
	userID    string
	email     string
	previous  string
	fresh     bool
	changed   bool
	destroyed bool
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{client: client, cookieName: cookieName, ttl: ttl, secure: secure, now: time.Now}
}

// Load returns the session named by the request cookie, or a fresh one when
// the cookie is absent or names nothing stored.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil || cookie.Value == "" {
		return sm.fresh(), nil
	}
	fields, err := sm.client.HGetAll(ctx, sessionKey(cookie.Value)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return sm.fresh(), nil
	}
	return decodeSession(cookie.Value, fields), nil
}

// Commit writes pending changes and refreshes the cookie. Unchanged
// sessions only get their expiry extended.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}
	key := sessionKey(sess.ID)
	_, err := sm.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if sess.previous != "" {
			pipe.Del(ctx, sessionKey(sess.previous))
		}
		switch {
		case sess.destroyed:
			pipe.Del(ctx, key)
		case sess.changed || sess.fresh:
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, sess.encode())
			pipe.Expire(ctx, key, sm.ttl)
		default:
			pipe.Expire(ctx, key, sm.ttl)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sess.previous = ""
	sess.fresh, sess.changed = false, false

	if sess.destroyed {
		http.SetCookie(w, sm.cookie("", -1))
		return nil
	}
	http.SetCookie(w, sm.cookie(sess.ID, int(sm.ttl/time.Second)))
	return nil
}

func (sm *SessionManager) cookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		c.Expires = sm.now().Add(time.Duration(maxAge) * time.Second)
	}
	return c
}

// Destroy deletes the session on the next Commit.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess != nil {
		sess.destroyed = true
	}
}

// Renew moves the session to a new id on the next Commit. Values, including
// the cart slot, carry over.
func (sm *SessionManager) Renew(sess *Session) {
	if sess == nil {
		return
	}
	if !sess.fresh {
		sess.previous = sess.ID
	}
	sess.ID = uuid.NewString()
	sess.changed = true
}

// TTL is the idle lifetime of a session.
func (sm *SessionManager) TTL() time.Duration { return sm.ttl }

// CookieName returns the session cookie name.
func (sm *SessionManager) CookieName() string { return sm.cookieName }

func (sm *SessionManager) fresh() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: sm.now().UTC(),
		values:    make(map[string]string),
		fresh:     true,
	}
}

func sessionKey(id string) string {
	return cache.Key("session", id)
}

func decodeSession(id string, fields map[string]string) *Session {
	sess := &Session{ID: id, values: make(map[string]string, len(fields))}
	for name, value := range fields {
		switch name {
		case fieldUserID:
			sess.userID = value
		case fieldEmail:
			sess.email = value
		case fieldCreated:
			if unix, err := strconv.ParseInt(value, 10, 64); err == nil {
				sess.CreatedAt = time.Unix(unix, 0).UTC()
			}
		default:
			if key, ok := strings.CutPrefix(name, valuePrefix); ok {
				sess.values[key] = value
			}
		}
	}
	return sess
}

func (s *Session) encode() map[string]any {
	out := make(map[string]any, len(s.values)+3)
	out[fieldCreated] = strconv.FormatInt(s.CreatedAt.Unix(), 10)
	if s.userID != "" {
		out[fieldUserID] = s.userID
		out[fieldEmail] = s.email
	}
	for k, v := range s.values {
		out[valuePrefix+k] = v
	}
	return out
}

// Set stores a value.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	if cur, ok := s.values[key]; ok && cur == value {
		return
	}
	s.values[key] = value
	s.changed = true
}

// Get returns a value, empty when unset.
func (s *Session) Get(key string) string {
	return s.values[key]
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.changed = true
}

// SetPrincipal binds the session to a signed-in user.
func (s *Session) SetPrincipal(p Principal) {
	s.userID, s.email = p.UserID, p.Email
	s.changed = true
}

// ClearPrincipal unbinds the user but keeps anonymous state such as the cart.
func (s *Session) ClearPrincipal() {
	if s.userID == "" {
		return
	}
	s.userID, s.email = "", ""
	s.changed = true
}

// User returns the bound user id.
func (s *Session) User() string {
	return s.userID
}

// Principal returns the bound caller, empty when anonymous.
func (s *Session) Principal() Principal {
	if s == nil || s.userID == "" {
		return Principal{}
	}
	return Principal{UserID: s.userID, Email: s.email}
}
