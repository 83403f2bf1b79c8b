package userservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sushihentaime/blogclient/internal/common"
	"github.com/sushihentaime/blogclient/internal/storage"
)

var errCorruptSession = errors.New("persisted session is incomplete or unreadable")

// NewManager returns a manager holding the unauthenticated session. Call
// Restore to pick up a session persisted by an earlier run. A nil sealer
// stores the token as is.
func NewManager(store storage.Store, sealer *common.Sealer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Manager{
		store:  store,
		sealer: sealer,
		logger: logger,
		subs:   make(map[int]func(Session)),
	}
}

// Current returns the session snapshot. It never fails.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.session
}

// Login persists token and user together and then makes them current. If
// persisting fails the previous session stays in place.
func (m *Manager) Login(ctx context.Context, token string, user User) error {
	v := common.NewValidator()
	validateToken(v, token)
	validateUser(v, user)
	if !v.Valid() {
		return v.ValidationError()
	}

	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	sealed, err := m.sealer.Seal([]byte(token))
	if err != nil {
		return err
	}

	m.mu.Lock()
	err = m.store.Put(ctx,
		storage.Entry{Key: storage.KeyToken, Value: sealed},
		storage.Entry{Key: storage.KeyUser, Value: userJSON},
	)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("persist session: %w", err)
	}
	m.session = Session{Token: token, User: user}
	s := m.session
	m.mu.Unlock()

	m.logger.Info("session started", slog.String("user_id", user.ID))
	m.notify(s)

	return nil
}

// Logout clears the session in memory and in the store. Calling it while
// unauthenticated is a no-op apart from the store delete.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	was := m.session
	m.session = Session{}
	err := m.store.Delete(ctx, storage.KeyToken, storage.KeyUser)
	m.mu.Unlock()

	if was.Authenticated() {
		m.logger.Info("session ended", slog.String("user_id", was.User.ID))
		m.notify(Session{})
	}

	if err != nil {
		return fmt.Errorf("remove persisted session: %w", err)
	}

	return nil
}

// UpdateProfile changes the locally held user details. The token is kept and
// nothing is sent to the remote API.
func (m *Manager) UpdateProfile(ctx context.Context, name, email string) (User, error) {
	v := common.NewValidator()
	validateName(v, name)
	validateEmail(v, email)
	if !v.Valid() {
		return User{}, v.ValidationError()
	}

	m.mu.Lock()
	if !m.session.Authenticated() {
		m.mu.Unlock()
		return User{}, common.NewUnauthenticatedError()
	}

	user := m.session.User
	user.Name = name
	user.Email = email

	userJSON, err := json.Marshal(user)
	if err != nil {
		m.mu.Unlock()
		return User{}, fmt.Errorf("encode user: %w", err)
	}

	if err := m.store.Put(ctx, storage.Entry{Key: storage.KeyUser, Value: userJSON}); err != nil {
		m.mu.Unlock()
		return User{}, fmt.Errorf("persist user: %w", err)
	}
	m.session.User = user
	s := m.session
	m.mu.Unlock()

	m.notify(s)

	return user, nil
}

// Restore loads the persisted session. A partial or unreadable one is removed
// from the store and leaves the manager unauthenticated. Store failures other
// than absence are returned.
func (m *Manager) Restore(ctx context.Context) error {
	m.mu.Lock()

	before := m.session
	s, err := m.load(ctx)
	switch {
	case errors.Is(err, errCorruptSession):
		m.logger.Warn("discarding persisted session", slog.String("error", err.Error()))
		m.session = Session{}
		if derr := m.store.Delete(ctx, storage.KeyToken, storage.KeyUser); derr != nil {
			m.mu.Unlock()
			return fmt.Errorf("remove persisted session: %w", derr)
		}
	case err != nil:
		m.session = Session{}
		m.mu.Unlock()
		return fmt.Errorf("restore session: %w", err)
	default:
		m.session = s
	}

	after := m.session
	m.mu.Unlock()

	if before != after {
		m.notify(after)
	}

	return nil
}

func (m *Manager) load(ctx context.Context) (Session, error) {
	sealed, tokenErr := m.store.Get(ctx, storage.KeyToken)
	if tokenErr != nil && !errors.Is(tokenErr, storage.ErrNotFound) {
		return Session{}, tokenErr
	}

	userJSON, userErr := m.store.Get(ctx, storage.KeyUser)
	if userErr != nil && !errors.Is(userErr, storage.ErrNotFound) {
		return Session{}, userErr
	}

	switch {
	case tokenErr != nil && userErr != nil:
		return Session{}, nil
	case tokenErr != nil:
		return Session{}, fmt.Errorf("%w: user without token", errCorruptSession)
	case userErr != nil:
		return Session{}, fmt.Errorf("%w: token without user", errCorruptSession)
	}

	token, err := m.sealer.Open(sealed)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", errCorruptSession, err)
	}

	var user User
	if err := json.Unmarshal(userJSON, &user); err != nil {
		return Session{}, fmt.Errorf("%w: %v", errCorruptSession, err)
	}

	s := Session{Token: string(token), User: user}
	if !s.Authenticated() {
		return Session{}, fmt.Errorf("%w: empty token or user id", errCorruptSession)
	}

	return s, nil
}

// Subscribe registers fn to be called with the new session after every
// change. The returned function removes the subscription.
func (m *Manager) Subscribe(fn func(Session)) func() {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn

	return func() {
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Manager) notify(s Session) {
	m.subsMu.Lock()
	fns := make([]func(Session), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subsMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
