// Package apitest runs an in-process stand-in for the remote blog API.
package apitest

import (
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/exp/slices"
)

type user struct {
	ID       string
	Name     string
	Email    string
	Password string
	Avatar   string
	Bio      string
}

// Blog is a seeded or created post.
type Blog struct {
	ID       string
	Title    string
	Content  string
	Image    string
	AuthorID string
	// BareAuthor sends the author as a plain id string instead of an object.
	BareAuthor bool
	Tags       []string
	CreatedAt  time.Time
}

type failure struct {
	status int
	body   string
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]*user
	tokens   map[string]string
	blogs    []*Blog
	nextID   int
	failure  *failure
	requests []string
	wrap     bool

	logger *slog.Logger
}

// New starts a server that is closed when the test ends.
func New(t *testing.T) *Server {
	t.Helper()

	s := &Server{
		users:  make(map[string]*user),
		tokens: make(map[string]string),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)

	return s
}

func (s *Server) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s%d", prefix, s.nextID)
}

// AddUser seeds an account and returns its id.
func (s *Server) AddUser(name, email, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &user{ID: s.newID("u"), Name: name, Email: email, Password: password}
	s.users[u.ID] = u

	return u.ID
}

// IssueToken returns a bearer token valid for userID.
func (s *Server) IssueToken(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := s.newID("tok-")
	s.tokens[token] = userID

	return token
}

// AddBlog seeds a blog and returns its id.
func (s *Server) AddBlog(b Blog) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == "" {
		b.ID = s.newID("b")
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	s.blogs = append(s.blogs, &b)

	return b.ID
}

// Blog returns the stored blog with id.
func (s *Server) Blog(id string) (Blog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.findBlog(id)
	if b == nil {
		return Blog{}, false
	}

	return *b, true
}

// FailNext makes the next request, whatever it is, answer with status and body.
func (s *Server) FailNext(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failure = &failure{status: status, body: body}
}

// UseEnvelopes wraps responses as {"blogs": [...]} and {"blog": {...}}.
func (s *Server) UseEnvelopes(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wrap = on
}

// Requests lists every request received as "METHOD /path".
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.requests)
}

func (s *Server) findBlog(id string) *Blog {
	for _, b := range s.blogs {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func (s *Server) userByEmail(email string) *user {
	for _, u := range s.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (s *Server) userJSON(u *user) envelope {
	return envelope{
		"_id":    u.ID,
		"name":   u.Name,
		"email":  u.Email,
		"avatar": u.Avatar,
		"bio":    u.Bio,
	}
}

func (s *Server) blogJSON(b *Blog) envelope {
	js := envelope{
		"_id":       b.ID,
		"title":     b.Title,
		"content":   b.Content,
		"image":     b.Image,
		"userId":    b.AuthorID,
		"createdAt": b.CreatedAt.Format(time.RFC3339),
	}
	if b.Tags != nil {
		js["tags"] = b.Tags
	}

	u := s.users[b.AuthorID]
	switch {
	case b.BareAuthor || u == nil:
		js["author"] = b.AuthorID
	default:
		js["author"] = envelope{"_id": u.ID, "name": u.Name, "avatar": u.Avatar, "bio": u.Bio}
		js["username"] = u.Name
	}

	return js
}
