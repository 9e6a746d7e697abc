// Package web is the server-rendered form surface. It shares the
// authentication gate with the JSON API but carries the credential in a
// cookie session instead of a bearer header.
package web

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	sessionUserKey  = "user_id"
	sessionTokenKey = "token"
)

// SessionManager wraps the cookie store holding the signed-in user's id
// and token string plus one-shot flash messages.
type SessionManager struct {
	store *sessions.CookieStore
	name  string
}

func NewSessionManager(secret []byte, name string) *SessionManager {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionManager{store: store, name: name}
}

// Token returns the stored credential, empty when the browser has no
// authenticated session.
func (m *SessionManager) Token(r *http.Request) string {
	session, err := m.store.Get(r, m.name)
	if err != nil {
		return ""
	}
	token, _ := session.Values[sessionTokenKey].(string)
	return token
}

// SetAuth binds the issued token to the browser session.
func (m *SessionManager) SetAuth(w http.ResponseWriter, r *http.Request, userID uuid.UUID, token string) error {
	session, _ := m.store.Get(r, m.name)
	session.Values[sessionUserKey] = userID.String()
	session.Values[sessionTokenKey] = token
	return session.Save(r, w)
}

// Clear drops the credential, keeping the cookie for flashes.
func (m *SessionManager) Clear(w http.ResponseWriter, r *http.Request) error {
	session, _ := m.store.Get(r, m.name)
	delete(session.Values, sessionUserKey)
	delete(session.Values, sessionTokenKey)
	return session.Save(r, w)
}

// AddFlash stores a one-shot message under kind ("success" or "error").
func (m *SessionManager) AddFlash(w http.ResponseWriter, r *http.Request, kind, message string) {
	session, _ := m.store.Get(r, m.name)
	session.AddFlash(message, kind)
	_ = session.Save(r, w)
}

// Flashes pops the pending messages. Reading consumes them.
func (m *SessionManager) Flashes(w http.ResponseWriter, r *http.Request, kind string) []string {
	session, err := m.store.Get(r, m.name)
	if err != nil {
		return nil
	}
	raw := session.Flashes(kind)
	if len(raw) == 0 {
		return nil
	}
	_ = session.Save(r, w)
	messages := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			messages = append(messages, s)
		}
	}
	return messages
}
