package blogservice

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/sushihentaime/blogclient/internal/apitest"
	"github.com/sushihentaime/blogclient/internal/common"
	"github.com/sushihentaime/blogclient/internal/storage"
	"github.com/sushihentaime/blogclient/internal/userservice"
)

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type testEnv struct {
	client   *BlogClient
	mirror   *Mirror
	sessions *userservice.Manager
	srv      *apitest.Server
}

func setupTestClient(t *testing.T, invalidator Invalidator) *testEnv {
	t.Helper()

	srv := apitest.New(t)

	tr, err := common.NewTransport(common.TransportConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	sessions := userservice.NewManager(store, nil, nil)
	mirror := NewMirror(store, 0, nil)

	return &testEnv{
		client:   NewBlogClient(tr, sessions, mirror, invalidator, nil),
		mirror:   mirror,
		sessions: sessions,
		srv:      srv,
	}
}

// loginAs seeds a user on the server and makes it the current session.
func (e *testEnv) loginAs(t *testing.T, name string) string {
	t.Helper()

	id := e.srv.AddUser(name, strings.ToLower(name)+"@example.com", "password123")
	token := e.srv.IssueToken(id)
	require.NoError(t, e.sessions.Login(context.Background(), token, userservice.User{ID: id, Name: name}))

	return id
}

func confirmWith(answer bool) Confirmer {
	return ConfirmFunc(func(ctx context.Context, prompt string) (bool, error) {
		return answer, nil
	})
}

func validForm() BlogForm {
	return BlogForm{
		Title:    "My first post",
		Content:  "Ten chars!",
		ImageURL: "https://example.com/cover.png",
	}
}

func TestBlogClient_ListBlogs(t *testing.T) {
	for _, envelope := range []bool{false, true} {
		name := "bare"
		if envelope {
			name = "enveloped"
		}

		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			env := setupTestClient(t, nil)
			env.srv.UseEnvelopes(envelope)

			author := env.srv.AddUser("Jane", "jane@example.com", "password123")
			env.srv.AddBlog(apitest.Blog{ID: "b1", Title: "One", Content: "first blog", AuthorID: author})
			env.srv.AddBlog(apitest.Blog{ID: "b2", Title: "Two", Content: "second blog", AuthorID: author, BareAuthor: true})

			blogs, err := env.client.ListBlogs(ctx)
			require.NoError(t, err)
			require.Len(t, blogs, 2)

			assert.Equal(t, "Jane", blogs[0].Author.Name)
			assert.True(t, blogs[0].Author.Embedded)
			assert.Equal(t, author, blogs[1].Author.ID)
			assert.False(t, blogs[1].Author.Embedded)
			assert.Equal(t, []string{}, blogs[0].Tags)

			cached, ok := env.mirror.FindByID("b2")
			assert.True(t, ok)
			assert.Equal(t, "Two", cached.Title)
			assert.False(t, env.mirror.Stale())
		})
	}
}

func TestBlogClient_ListBlogsLenientCreatedAt(t *testing.T) {
	testCases := []struct {
		name      string
		createdAt string
	}{
		{name: "empty", createdAt: `""`},
		{name: "date only", createdAt: `"2024-05-01"`},
		{name: "with millis", createdAt: `"2024-05-01T10:00:00.000Z"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := setupTestClient(t, nil)
			env.srv.FailNext(http.StatusOK, `[
				{"_id":"b1","title":"First","content":"first body","createdAt":"2024-04-30T08:00:00Z"},
				{"_id":"b2","title":"Second","content":"second body","createdAt":`+tc.createdAt+`}
			]`)

			blogs, err := env.client.ListBlogs(context.Background())
			require.NoError(t, err)
			require.Len(t, blogs, 2)
			assert.Equal(t, "b2", blogs[1].ID)
			assert.Equal(t, 2, env.mirror.Len())
		})
	}
}

func TestBlogClient_ListBlogsErrors(t *testing.T) {
	testCases := []struct {
		name        string
		setup       func(env *testEnv)
		wantErr     error
		notErr      error
		wantMessage string
	}{
		{
			name:        "network failure",
			setup:       func(env *testEnv) { env.srv.Close() },
			wantErr:     common.ErrNetwork,
			notErr:      common.ErrServer,
			wantMessage: common.GenericFailureMessage,
		},
		{
			name:        "server failure with message",
			setup:       func(env *testEnv) { env.srv.FailNext(http.StatusInternalServerError, `{"message":"Database unavailable"}`) },
			wantErr:     common.ErrServer,
			notErr:      common.ErrNetwork,
			wantMessage: "Database unavailable",
		},
		{
			name:        "server failure without message",
			setup:       func(env *testEnv) { env.srv.FailNext(http.StatusServiceUnavailable, `oops`) },
			wantErr:     common.ErrServer,
			notErr:      common.ErrNetwork,
			wantMessage: common.GenericFailureMessage,
		},
		{
			name:        "undecodable payload",
			setup:       func(env *testEnv) { env.srv.FailNext(http.StatusOK, `{"unexpected":true}`) },
			wantErr:     common.ErrServer,
			notErr:      common.ErrNetwork,
			wantMessage: common.GenericFailureMessage,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			env := setupTestClient(t, nil)

			_, err := env.mirror.Replace(ctx, []Blog{{ID: "old"}})
			require.NoError(t, err)

			tc.setup(env)

			_, err = env.client.ListBlogs(ctx)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.NotErrorIs(t, err, tc.notErr)
			assert.Equal(t, tc.wantMessage, common.UserMessage(err))

			_, ok := env.mirror.FindByID("old")
			assert.True(t, ok)
		})
	}
}

func TestBlogClient_ListBlogsCanceled(t *testing.T) {
	env := setupTestClient(t, nil)
	env.srv.AddBlog(apitest.Blog{ID: "b1", Title: "One"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.client.ListBlogs(ctx)
	assert.ErrorIs(t, err, common.ErrNetwork)
	assert.Equal(t, 0, env.mirror.Len())
}

func TestBlogClient_GetBlog(t *testing.T) {
	ctx := context.Background()
	env := setupTestClient(t, nil)
	env.srv.AddBlog(apitest.Blog{ID: "b1", Title: "One", Content: "first blog", AuthorID: "U9", Tags: []string{"go"}})

	b, err := env.client.GetBlog(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "One", b.Title)
	assert.Equal(t, []string{"go"}, b.Tags)

	env.srv.UseEnvelopes(true)
	b, err = env.client.GetBlog(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "b1", b.ID)

	_, err = env.client.GetBlog(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, "Blog not found", common.UserMessage(err))

	_, err = env.client.GetBlog(ctx, "")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestBlogClient_ResolveBlog(t *testing.T) {
	ctx := context.Background()
	env := setupTestClient(t, nil)
	env.srv.AddBlog(apitest.Blog{ID: "b1", Title: "One", Content: "first blog"})

	r, err := env.client.ResolveBlog(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, r.Source)

	_, err = env.client.ListBlogs(ctx)
	require.NoError(t, err)

	_, err = env.client.ResolveBlog(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	env.srv.Close()

	r, err = env.client.ResolveBlog(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, SourceMirror, r.Source)
	assert.Equal(t, "One", r.Blog.Title)
	assert.False(t, r.Stale)

	_, err = env.client.ResolveBlog(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNetwork)
}

func TestBlogClient_ProtectedCallsNeedSession(t *testing.T) {
	testCases := []struct {
		name string
		call func(ctx context.Context, c *BlogClient) error
	}{
		{
			name: "list by author",
			call: func(ctx context.Context, c *BlogClient) error {
				_, err := c.ListBlogsByAuthor(ctx, "U1")
				return err
			},
		},
		{
			name: "create",
			call: func(ctx context.Context, c *BlogClient) error {
				_, err := c.CreateBlog(ctx, validForm())
				return err
			},
		},
		{
			name: "update",
			call: func(ctx context.Context, c *BlogClient) error {
				_, err := c.UpdateBlog(ctx, "b1", validForm())
				return err
			},
		},
		{
			name: "delete",
			call: func(ctx context.Context, c *BlogClient) error {
				return c.DeleteBlog(ctx, "b1", confirmWith(true))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := setupTestClient(t, nil)

			err := tc.call(context.Background(), env.client)
			assert.ErrorIs(t, err, common.ErrUnauthenticated)
			assert.Empty(t, env.srv.Requests())
		})
	}
}

func TestBlogClient_ListBlogsByAuthor(t *testing.T) {
	ctx := context.Background()
	env := setupTestClient(t, nil)

	me := env.loginAs(t, "Jane")
	other := env.srv.AddUser("John", "john@example.com", "password123")
	env.srv.AddBlog(apitest.Blog{ID: "b1", Title: "Mine", AuthorID: me})
	env.srv.AddBlog(apitest.Blog{ID: "b2", Title: "Theirs", AuthorID: other})

	blogs, err := env.client.ListBlogsByAuthor(ctx, "")
	require.NoError(t, err)
	require.Len(t, blogs, 1)
	assert.Equal(t, "b1", blogs[0].ID)
	assert.True(t, blogs[0].IsOwnedBy(me))

	blogs, err = env.client.ListBlogsByAuthor(ctx, other)
	require.NoError(t, err)
	require.Len(t, blogs, 1)
	assert.False(t, blogs[0].IsOwnedBy(me))
}

func TestBlogClient_CreateBlog(t *testing.T) {
	ctx := context.Background()
	inv := new(mockInvalidator)
	inv.On("Invalidate", mock.Anything).Return(nil).Once()

	env := setupTestClient(t, inv)
	me := env.loginAs(t, "Jane")

	form := validForm()
	form.Content = strings.Repeat("a", 9)

	_, err := env.client.CreateBlog(ctx, form)
	require.ErrorIs(t, err, common.ErrValidation)
	var verr common.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be at least 10 characters long", verr.Errors["content"])
	assert.Empty(t, env.srv.Requests())

	form.Content = strings.Repeat("a", 10)
	b, err := env.client.CreateBlog(ctx, form)
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.True(t, b.IsOwnedBy(me))
	assert.Equal(t, "https://example.com/cover.png", b.Image)

	stored, ok := env.srv.Blog(b.ID)
	require.True(t, ok)
	assert.Equal(t, me, stored.AuthorID)

	inv.AssertExpectations(t)
}

func TestBlogClient_CreateBlogWithImageFile(t *testing.T) {
	env := setupTestClient(t, nil)
	env.loginAs(t, "Jane")

	form := validForm()
	form.ImageURL = ""
	form.ImageFile = &ImageFile{Filename: "cover.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}

	b, err := env.client.CreateBlog(context.Background(), form)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(b.Image, "/uploads/cover.png"))
}

func TestBlogClient_CreateInvalidatesMirror(t *testing.T) {
	ctx := context.Background()
	env := setupTestClient(t, nil)
	env.loginAs(t, "Jane")

	_, err := env.client.ListBlogs(ctx)
	require.NoError(t, err)
	assert.False(t, env.mirror.Stale())

	_, err = env.client.CreateBlog(ctx, validForm())
	require.NoError(t, err)
	assert.True(t, env.mirror.Stale())
}

func TestBlogClient_UpdateBlog(t *testing.T) {
	ctx := context.Background()
	env := setupTestClient(t, nil)

	me := env.loginAs(t, "Jane")
	other := env.srv.AddUser("John", "john@example.com", "password123")
	env.srv.AddBlog(apitest.Blog{ID: "mine", Title: "Mine", Content: "original content", Image: "https://example.com/a.png", AuthorID: me})
	env.srv.AddBlog(apitest.Blog{ID: "theirs", Title: "Theirs", Content: "original content", AuthorID: other})

	form := BlogForm{Title: "Mine, edited", Content: "edited content"}

	b, err := env.client.UpdateBlog(ctx, "mine", form)
	require.NoError(t, err)
	assert.Equal(t, "Mine, edited", b.Title)
	assert.Equal(t, "https://example.com/a.png", b.Image)

	_, err = env.client.UpdateBlog(ctx, "theirs", form)
	assert.ErrorIs(t, err, common.ErrForbidden)
	assert.Equal(t, "You are not authorized to update this blog", common.UserMessage(err))

	stored, _ := env.srv.Blog("theirs")
	assert.Equal(t, "Theirs", stored.Title)
}

func TestBlogClient_DeleteBlog(t *testing.T) {
	ctx := context.Background()
	env := setupTestClient(t, nil)

	me := env.loginAs(t, "Jane")
	other := env.srv.AddUser("John", "john@example.com", "password123")
	env.srv.AddBlog(apitest.Blog{ID: "mine", Title: "Mine", AuthorID: me})
	env.srv.AddBlog(apitest.Blog{ID: "theirs", Title: "Theirs", AuthorID: other})

	err := env.client.DeleteBlog(ctx, "theirs", confirmWith(true))
	assert.ErrorIs(t, err, common.ErrForbidden)
	assert.Equal(t, "You are not authorized to delete this blog", common.UserMessage(err))

	b, err := env.client.GetBlog(ctx, "theirs")
	require.NoError(t, err)
	assert.Equal(t, "Theirs", b.Title)

	require.NoError(t, env.client.DeleteBlog(ctx, "mine", confirmWith(true)))

	_, err = env.client.GetBlog(ctx, "mine")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBlogClient_DeleteBlogNeedsConfirmation(t *testing.T) {
	boom := errors.New("stdin closed")

	testCases := []struct {
		name      string
		confirmer Confirmer
		wantErr   error
	}{
		{name: "nil confirmer", confirmer: nil, wantErr: ErrNotConfirmed},
		{name: "declined", confirmer: confirmWith(false), wantErr: ErrNotConfirmed},
		{
			name: "confirmer failed",
			confirmer: ConfirmFunc(func(ctx context.Context, prompt string) (bool, error) {
				return false, boom
			}),
			wantErr: boom,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := setupTestClient(t, nil)
			me := env.loginAs(t, "Jane")
			env.srv.AddBlog(apitest.Blog{ID: "mine", Title: "Mine", AuthorID: me})

			err := env.client.DeleteBlog(context.Background(), "mine", tc.confirmer)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, env.srv.Requests())

			_, ok := env.srv.Blog("mine")
			assert.True(t, ok)
		})
	}
}

func TestBlogClient_MutationFailureDoesNotInvalidate(t *testing.T) {
	inv := new(mockInvalidator)

	env := setupTestClient(t, inv)
	env.loginAs(t, "Jane")
	env.srv.FailNext(http.StatusInternalServerError, `{"message":"Upload failed"}`)

	_, err := env.client.CreateBlog(context.Background(), validForm())
	assert.ErrorIs(t, err, common.ErrServer)
	assert.Equal(t, "Upload failed", common.UserMessage(err))

	inv.AssertNotCalled(t, "Invalidate", mock.Anything)
}
