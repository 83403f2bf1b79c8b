package blogservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sushihentaime/blogclient/internal/common"
)

// NewBlogClient wires the remote endpoints to the session and the mirror.
// Successful mutations call invalidator; when it is nil the mirror itself is
// invalidated.
func NewBlogClient(t *common.Transport, sessions SessionSource, mirror *Mirror, invalidator Invalidator, logger *slog.Logger) *BlogClient {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if invalidator == nil && mirror != nil {
		invalidator = mirror
	}

	return &BlogClient{
		t:           t,
		sessions:    sessions,
		mirror:      mirror,
		invalidator: invalidator,
		logger:      logger,
	}
}

// blogList decodes a bare array or an object holding the array under "blogs"
// or "data".
type blogList []Blog

func (l *blogList) UnmarshalJSON(data []byte) error {
	var blogs []Blog
	if err := json.Unmarshal(data, &blogs); err == nil {
		*l = blogs
		return nil
	}

	var env struct {
		Blogs *[]Blog `json:"blogs"`
		Data  *[]Blog `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	switch {
	case env.Blogs != nil:
		*l = *env.Blogs
	case env.Data != nil:
		*l = *env.Data
	default:
		return errors.New("response holds no blog list")
	}

	return nil
}

// blogItem decodes a bare blog or one wrapped under "blog". Found is false
// when the payload holds neither, e.g. a bare {"message": ...}.
type blogItem struct {
	Blog  Blog
	Found bool
}

func (b *blogItem) UnmarshalJSON(data []byte) error {
	var env struct {
		Blog *Blog `json:"blog"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if env.Blog != nil {
		b.Blog, b.Found = *env.Blog, env.Blog.ID != ""
		return nil
	}

	var blog Blog
	if err := json.Unmarshal(data, &blog); err != nil {
		return err
	}
	b.Blog, b.Found = blog, blog.ID != ""

	return nil
}

func blogPath(id string) string {
	return "/blog/" + url.PathEscape(id)
}

func (c *BlogClient) requireSession() (string, string, error) {
	s := c.sessions.Current()
	if !s.Authenticated() {
		return "", "", common.NewUnauthenticatedError()
	}

	return s.Token, s.User.ID, nil
}

// ListBlogs fetches every blog and, when the fetch completes while ctx is
// still live, replaces the mirror with the result.
func (c *BlogClient) ListBlogs(ctx context.Context) ([]Blog, error) {
	var list blogList
	err := c.t.Do(ctx, common.Request{
		Method: http.MethodGet,
		Path:   "/blog",
		Token:  c.sessions.Current().Token,
	}, &list)
	if err != nil {
		return nil, err
	}

	blogs := []Blog(list)
	if c.mirror != nil && ctx.Err() == nil {
		changed, err := c.mirror.Replace(ctx, blogs)
		if err != nil {
			c.logger.Warn("could not update blog mirror", slog.String("error", err.Error()))
		} else {
			c.logger.Debug("blog mirror replaced", slog.Int("count", len(blogs)), slog.Bool("changed", changed))
		}
	}

	return blogs, nil
}

// GetBlog fetches one blog by id.
func (c *BlogClient) GetBlog(ctx context.Context, id string) (Blog, error) {
	v := common.NewValidator()
	validateID(v, id, "id")
	if !v.Valid() {
		return Blog{}, v.ValidationError()
	}

	var item blogItem
	err := c.t.Do(ctx, common.Request{
		Method: http.MethodGet,
		Path:   blogPath(id),
		Token:  c.sessions.Current().Token,
	}, &item)
	if err != nil {
		return Blog{}, err
	}

	if !item.Found {
		return Blog{}, &common.APIError{
			Kind:    common.KindServer,
			Status:  http.StatusOK,
			Message: common.GenericFailureMessage,
			Err:     errors.New("response holds no blog"),
		}
	}

	return item.Blog, nil
}

// ResolveBlog fetches a blog for the detail view. When the API cannot be
// reached the mirror copy is returned instead, marked with its staleness.
func (c *BlogClient) ResolveBlog(ctx context.Context, id string) (Resolved, error) {
	blog, err := c.GetBlog(ctx, id)
	if err == nil {
		return Resolved{Blog: blog, Source: SourceRemote}, nil
	}

	if !errors.Is(err, common.ErrNetwork) || ctx.Err() != nil || c.mirror == nil {
		return Resolved{}, err
	}

	cached, ok := c.mirror.FindByID(id)
	if !ok {
		return Resolved{}, err
	}

	c.logger.Info("serving blog from mirror", slog.String("id", id), slog.String("error", err.Error()))

	return Resolved{Blog: cached, Source: SourceMirror, Stale: c.mirror.Stale()}, nil
}

// ListBlogsByAuthor fetches the blogs written by userID, or by the current
// user when userID is empty.
func (c *BlogClient) ListBlogsByAuthor(ctx context.Context, userID string) ([]Blog, error) {
	token, currentID, err := c.requireSession()
	if err != nil {
		return nil, err
	}
	if userID == "" {
		userID = currentID
	}

	var list blogList
	err = c.t.Do(ctx, common.Request{
		Method: http.MethodGet,
		Path:   blogPath(userID),
		Token:  token,
	}, &list)
	if err != nil {
		return nil, err
	}

	return []Blog(list), nil
}

// CreateBlog publishes a new blog as the current user.
func (c *BlogClient) CreateBlog(ctx context.Context, form BlogForm) (Blog, error) {
	token, userID, err := c.requireSession()
	if err != nil {
		return Blog{}, err
	}

	if err := validateCreateForm(form); err != nil {
		return Blog{}, err
	}

	mf := newBlogMultipart(form)
	s := c.sessions.Current()
	mf.AddField("userId", userID)
	mf.AddField("author", userID)
	mf.AddField("username", s.User.Name)

	var item blogItem
	err = c.t.Do(ctx, common.Request{
		Method: http.MethodPost,
		Path:   "/blog/create",
		Token:  token,
		Form:   mf,
	}, &item)
	if err != nil {
		return Blog{}, err
	}

	c.invalidate(ctx, "create", item.Blog.ID)

	return item.Blog, nil
}

// UpdateBlog changes title and content, and the image when form carries one.
func (c *BlogClient) UpdateBlog(ctx context.Context, id string, form BlogForm) (Blog, error) {
	token, _, err := c.requireSession()
	if err != nil {
		return Blog{}, err
	}

	v := common.NewValidator()
	validateID(v, id, "id")
	if !v.Valid() {
		return Blog{}, v.ValidationError()
	}

	if err := validateUpdateForm(form); err != nil {
		return Blog{}, err
	}

	var item blogItem
	err = c.t.Do(ctx, common.Request{
		Method: http.MethodPut,
		Path:   blogPath(id),
		Token:  token,
		Form:   newBlogMultipart(form),
	}, &item)
	if err != nil {
		return Blog{}, err
	}

	c.invalidate(ctx, "update", id)

	return item.Blog, nil
}

// DeleteBlog removes a blog after confirmer approves. A nil confirmer counts
// as a refusal.
func (c *BlogClient) DeleteBlog(ctx context.Context, id string, confirmer Confirmer) error {
	token, _, err := c.requireSession()
	if err != nil {
		return err
	}

	v := common.NewValidator()
	validateID(v, id, "id")
	if !v.Valid() {
		return v.ValidationError()
	}

	if confirmer == nil {
		return ErrNotConfirmed
	}

	ok, err := confirmer.Confirm(ctx, "Are you sure you want to delete this blog?")
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotConfirmed
	}

	err = c.t.Do(ctx, common.Request{
		Method: http.MethodDelete,
		Path:   blogPath(id),
		Token:  token,
	}, nil)
	if err != nil {
		return err
	}

	c.invalidate(ctx, "delete", id)

	return nil
}

func (c *BlogClient) invalidate(ctx context.Context, action, id string) {
	if c.invalidator == nil {
		return
	}

	if err := c.invalidator.Invalidate(ctx); err != nil {
		c.logger.Warn("could not invalidate blog mirror",
			slog.String("action", action),
			slog.String("id", id),
			slog.String("error", err.Error()))
	}
}

func newBlogMultipart(form BlogForm) *common.MultipartForm {
	mf := &common.MultipartForm{}
	mf.AddField("title", form.Title)
	mf.AddField("content", form.Content)

	switch {
	case form.ImageFile != nil:
		mf.AddFile(common.FormFile{
			Field:       "image",
			Filename:    form.ImageFile.Filename,
			ContentType: form.ImageFile.ContentType,
			Data:        form.ImageFile.Data,
		})
	case form.ImageURL != "":
		mf.AddField("image", form.ImageURL)
	}

	return mf
}
