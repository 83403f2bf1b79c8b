package blogservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sushihentaime/blogclient/internal/storage"
	"golang.org/x/exp/slices"
)

// persistedMirror is the value stored under storage.KeyAllBlogs.
type persistedMirror struct {
	FetchedAt time.Time `json:"fetchedAt"`
	Blogs     []Blog    `json:"blogs"`
}

// NewMirror returns an empty mirror. A maxAge of zero means the mirror only
// goes stale when invalidated.
func NewMirror(store storage.Store, maxAge time.Duration, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Mirror{
		index:  make(map[string]int),
		maxAge: maxAge,
		store:  store,
		logger: logger,
	}
}

// Load rehydrates the mirror from the store. A corrupt entry is deleted and
// the mirror is left empty.
func (m *Mirror) Load(ctx context.Context) error {
	data, err := m.store.Get(ctx, storage.KeyAllBlogs)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil
		default:
			return fmt.Errorf("load blog mirror: %w", err)
		}
	}

	p, err := decodeMirror(data)
	if err != nil {
		m.logger.Warn("discarding corrupt blog mirror", slog.String("error", err.Error()))
		if err := m.store.Delete(ctx, storage.KeyAllBlogs); err != nil {
			return fmt.Errorf("remove corrupt blog mirror: %w", err)
		}
		m.reset()
		return nil
	}

	blogs := dedupe(p.Blogs)
	sum, err := digest(blogs)
	if err != nil {
		return fmt.Errorf("digest blog mirror: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.set(blogs, p.FetchedAt)
	m.digest = sum

	return nil
}

// decodeMirror reads both the current format and a bare array of blogs.
func decodeMirror(data []byte) (persistedMirror, error) {
	var p persistedMirror
	if err := json.Unmarshal(data, &p); err == nil && p.Blogs != nil {
		return p, nil
	}

	var blogs []Blog
	if err := json.Unmarshal(data, &blogs); err != nil {
		return persistedMirror{}, err
	}

	return persistedMirror{Blogs: blogs}, nil
}

// Replace overwrites the mirror with blogs, keeping the last occurrence of a
// repeated id at the position of its first. It reports whether the contents
// differ from what was held before.
func (m *Mirror) Replace(ctx context.Context, blogs []Blog) (bool, error) {
	blogs = dedupe(blogs)
	fetchedAt := time.Now()

	data, err := json.Marshal(persistedMirror{FetchedAt: fetchedAt, Blogs: blogs})
	if err != nil {
		return false, fmt.Errorf("encode blog mirror: %w", err)
	}

	sum, err := digest(blogs)
	if err != nil {
		return false, fmt.Errorf("digest blog mirror: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Put(ctx, storage.Entry{Key: storage.KeyAllBlogs, Value: data}); err != nil {
		return false, fmt.Errorf("persist blog mirror: %w", err)
	}

	changed := sum != m.digest || len(blogs) != len(m.blogs)
	m.set(blogs, fetchedAt)
	m.digest = sum

	return changed, nil
}

// FindByID looks a blog up in the mirror only.
func (m *Mirror) FindByID(id string) (Blog, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.index[id]
	if !ok {
		return Blog{}, false
	}

	return m.blogs[i], true
}

// All returns a copy of the mirrored blogs in order.
func (m *Mirror) All() []Blog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.blogs)
}

func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.blogs)
}

// Invalidate drops the mirrored blogs in memory and in the store.
func (m *Mirror) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blogs = nil
	m.index = make(map[string]int)
	m.digest = 0
	m.invalidated = true

	if err := m.store.Delete(ctx, storage.KeyAllBlogs); err != nil {
		return fmt.Errorf("remove blog mirror: %w", err)
	}

	return nil
}

// Stale reports whether the mirror was invalidated, never filled, or is older
// than its max age.
func (m *Mirror) Stale() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch {
	case m.invalidated, m.fetchedAt.IsZero():
		return true
	case m.maxAge > 0:
		return time.Since(m.fetchedAt) > m.maxAge
	default:
		return false
	}
}

func (m *Mirror) FetchedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.fetchedAt
}

func (m *Mirror) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blogs = nil
	m.index = make(map[string]int)
	m.digest = 0
	m.fetchedAt = time.Time{}
}

// set must be called with m.mu held.
func (m *Mirror) set(blogs []Blog, fetchedAt time.Time) {
	m.blogs = blogs
	m.index = make(map[string]int, len(blogs))
	for i, b := range blogs {
		m.index[b.ID] = i
	}
	m.fetchedAt = fetchedAt
	m.invalidated = false
}

func dedupe(blogs []Blog) []Blog {
	out := make([]Blog, 0, len(blogs))
	pos := make(map[string]int, len(blogs))

	for _, b := range blogs {
		if b.ID == "" {
			continue
		}
		if i, ok := pos[b.ID]; ok {
			out[i] = b
			continue
		}
		pos[b.ID] = len(out)
		out = append(out, b)
	}

	return out
}

func digest(blogs []Blog) (uint64, error) {
	h := xxhash.New()
	enc := json.NewEncoder(h)
	for _, b := range blogs {
		if err := enc.Encode(b); err != nil {
			return 0, err
		}
	}

	return h.Sum64(), nil
}
