package userservice

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/sushihentaime/blogclient/internal/common"
	"github.com/sushihentaime/blogclient/internal/storage"
)

var (
	AnonymousSession = Session{}
)

// User is the identity returned by the remote API at login.
type User struct {
	ID     string `json:"_id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	Bio    string `json:"bio,omitempty"`
}

// UnmarshalJSON accepts both "_id" and "id", and "username" in place of "name".
func (u *User) UnmarshalJSON(data []byte) error {
	var aux struct {
		UnderscoreID string `json:"_id"`
		ID           string `json:"id"`
		Name         string `json:"name"`
		Username     string `json:"username"`
		Email        string `json:"email"`
		Avatar       string `json:"avatar"`
		Bio          string `json:"bio"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*u = User{
		ID:     aux.UnderscoreID,
		Name:   aux.Name,
		Email:  aux.Email,
		Avatar: aux.Avatar,
		Bio:    aux.Bio,
	}
	if u.ID == "" {
		u.ID = aux.ID
	}
	if u.Name == "" {
		u.Name = aux.Username
	}

	return nil
}

// Session pairs a bearer token with the user it was issued to. The zero value
// is the unauthenticated session.
type Session struct {
	Token string
	User  User
}

func (s Session) Authenticated() bool {
	return s.Token != "" && s.User.ID != ""
}

// Manager owns the current session and keeps it in step with the store.
type Manager struct {
	mu      sync.RWMutex
	session Session

	store  storage.Store
	sealer *common.Sealer
	logger *slog.Logger

	subsMu sync.Mutex
	subs   map[int]func(Session)
	nextID int
}

// AuthClient talks to the remote login and registration endpoints.
type AuthClient struct {
	t *common.Transport
	m *Manager
}
