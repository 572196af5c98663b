package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager orchestrates cookie based sessions backed by Redis.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
}

// Session holds per-request session data.
type Session struct {
	ID        string
	user      *AuthUser
	isNew     bool
	dirty     bool
	destroyed bool
}

type sessionPayload struct {
	UserID     string   `json:"user_id"`
	UserName   string   `json:"user_name"`
	Role       string   `json:"role"`
	StationIDs []string `json:"station_ids"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{client: client, cookieName: cookieName, ttl: ttl, secure: secure}
}

// User returns the authenticated user, nil when anonymous.
func (s *Session) User() *AuthUser {
	if s == nil {
		return nil
	}
	return s.user
}

// SetUser attaches the authenticated identity to the session.
func (s *Session) SetUser(user AuthUser) {
	s.user = &user
	s.dirty = true
}

// Destroy marks the session for deletion on commit.
func (s *Session) Destroy() {
	s.user = nil
	s.destroyed = true
	s.dirty = true
}

// Load resolves the session for the request, creating a new one when absent.
func (m *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return m.newSession()
	}
	data, err := m.client.Get(ctx, m.key(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return m.newSession()
		}
		return nil, err
	}
	var payload sessionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return m.newSession()
	}
	sess := &Session{ID: cookie.Value}
	if payload.UserID != "" {
		userID, err := uuid.Parse(payload.UserID)
		if err == nil {
			user := AuthUser{ID: userID, Name: payload.UserName, Role: Role(payload.Role)}
			for _, raw := range payload.StationIDs {
				if id, err := uuid.Parse(raw); err == nil {
					user.StationIDs = append(user.StationIDs, id)
				}
			}
			sess.user = &user
		}
	}
	return sess, nil
}

// Commit persists session changes and writes the cookie when needed.
func (m *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil || !sess.dirty {
		return nil
	}
	if sess.destroyed {
		if err := m.client.Del(ctx, m.key(sess.ID)).Err(); err != nil {
			return err
		}
		http.SetCookie(w, m.cookie("", -time.Hour))
		sess.dirty = false
		return nil
	}
	payload := sessionPayload{}
	if sess.user != nil {
		payload.UserID = sess.user.ID.String()
		payload.UserName = sess.user.Name
		payload.Role = string(sess.user.Role)
		for _, id := range sess.user.StationIDs {
			payload.StationIDs = append(payload.StationIDs, id.String())
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := m.client.Set(ctx, m.key(sess.ID), data, m.ttl).Err(); err != nil {
		return err
	}
	if sess.isNew {
		http.SetCookie(w, m.cookie(sess.ID, m.ttl))
		sess.isNew = false
	}
	sess.dirty = false
	return nil
}

func (m *SessionManager) newSession() (*Session, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return &Session{ID: base64.RawURLEncoding.EncodeToString(buf), isNew: true}, nil
}

func (m *SessionManager) key(id string) string {
	return "session:" + id
}

func (m *SessionManager) cookie(value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	}
}
