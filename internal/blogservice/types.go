package blogservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sushihentaime/blogclient/internal/common"
	"github.com/sushihentaime/blogclient/internal/storage"
	"github.com/sushihentaime/blogclient/internal/userservice"
)

var (
	ErrNotConfirmed     = errors.New("deletion was not confirmed")
	ErrSubmitInProgress = errors.New("a submission is already in progress")
	ErrSubmitFinished   = errors.New("submission already succeeded; reset before submitting again")
)

// Author is who wrote a blog. The API sends either a full object or just the
// author's id; Embedded records which.
type Author struct {
	ID       string
	Name     string
	Avatar   string
	Bio      string
	Embedded bool
}

type authorJSON struct {
	UnderscoreID string `json:"_id,omitempty"`
	ID           string `json:"id,omitempty"`
	Name         string `json:"name,omitempty"`
	Avatar       string `json:"avatar,omitempty"`
	Bio          string `json:"bio,omitempty"`
}

func (a *Author) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Author{}
		return nil
	}

	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*a = Author{ID: id}
		return nil
	}

	var aux authorJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("author must be an object or an id string: %w", err)
	}

	*a = Author{
		ID:       aux.UnderscoreID,
		Name:     aux.Name,
		Avatar:   aux.Avatar,
		Bio:      aux.Bio,
		Embedded: true,
	}
	if a.ID == "" {
		a.ID = aux.ID
	}

	return nil
}

// MarshalJSON writes the author back in the form it was received in.
func (a Author) MarshalJSON() ([]byte, error) {
	switch {
	case a.Embedded:
		return json.Marshal(authorJSON{UnderscoreID: a.ID, Name: a.Name, Avatar: a.Avatar, Bio: a.Bio})
	case a.ID != "":
		return json.Marshal(a.ID)
	default:
		return []byte("null"), nil
	}
}

type Blog struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
	// Content is HTML or Markdown, kept verbatim.
	Content   string    `json:"content"`
	Image     string    `json:"image,omitempty"`
	Author    Author    `json:"author"`
	UserID    string    `json:"userId,omitempty"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Tags      []string  `json:"tags"`
}

// UnmarshalJSON accepts "id" in place of "_id" and defaults tags to empty.
// A createdAt that is missing or not a recognizable date leaves CreatedAt zero.
func (b *Blog) UnmarshalJSON(data []byte) error {
	type alias Blog
	aux := struct {
		*alias
		AltID     string          `json:"id"`
		CreatedAt json.RawMessage `json:"createdAt"`
	}{alias: (*alias)(b)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if b.ID == "" {
		b.ID = aux.AltID
	}
	b.CreatedAt = parseCreatedAt(aux.CreatedAt)
	if b.Tags == nil {
		b.Tags = []string{}
	}

	return nil
}

// BlogForm is the input of create and update.
type BlogForm struct {
	Title   string
	Content string
	// ImageURL and ImageFile are alternatives; a file wins when both are set.
	ImageURL  string
	ImageFile *ImageFile
}

type ImageFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Source says where a resolved blog came from.
type Source int

const (
	SourceRemote Source = iota
	SourceMirror
)

// Resolved is a blog for the detail view together with its provenance.
type Resolved struct {
	Blog   Blog
	Source Source
	// Stale is set when the mirror copy may be out of date.
	Stale bool
}

// Invalidator is told when the remote collection changed.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// SessionSource yields the current session; *userservice.Manager satisfies it.
type SessionSource interface {
	Current() userservice.Session
}

// Mirror is the locally persisted copy of the last fetched blog list.
type Mirror struct {
	mu          sync.RWMutex
	blogs       []Blog
	index       map[string]int
	digest      uint64
	fetchedAt   time.Time
	invalidated bool

	maxAge time.Duration
	store  storage.Store
	logger *slog.Logger
}

// BlogClient calls the remote blog endpoints.
type BlogClient struct {
	t           *common.Transport
	sessions    SessionSource
	mirror      *Mirror
	invalidator Invalidator
	logger      *slog.Logger
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

func parseCreatedAt(raw json.RawMessage) time.Time {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return time.Time{}
	}

	value = strings.TrimSpace(value)
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}

	return time.Time{}
}
