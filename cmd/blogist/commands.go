package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sushihentaime/blogclient/internal/blogservice"
	"github.com/sushihentaime/blogclient/internal/common"
)

var (
	errUsage    = errors.New("usage")
	errNotOwner = errors.New("you can only change blogs you wrote")
	errNoBroker = errors.New("watch needs RABBITMQ_URL to be configured")
)

type command struct {
	name    string
	summary string
	run     func(app *application, ctx context.Context, args []string) error
}

var commands = []command{
	{"login", "log in with email and password", (*application).login},
	{"register", "create an account", (*application).register},
	{"logout", "forget the stored session", (*application).logout},
	{"whoami", "show the logged in user", (*application).whoami},
	{"profile", "change the stored name or email", (*application).profile},
	{"list", "list all blogs", (*application).list},
	{"mine", "list your blogs", (*application).mine},
	{"show", "show one blog: show <id> [-html]", (*application).show},
	{"create", "publish a blog", (*application).create},
	{"edit", "edit one of your blogs: edit <id>", (*application).edit},
	{"delete", "delete one of your blogs: delete <id>", (*application).delete},
	{"watch", "follow blog changes made by other clients", (*application).watch},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: blogist [-config file] <command> [flags]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
}

func (app *application) dispatch(ctx context.Context, name string, args []string) error {
	for _, c := range commands {
		if c.name == name {
			return c.run(app, ctx, args)
		}
	}

	fmt.Fprintf(app.stderr, "unknown command %q\n\n", name)
	usage(app.stderr)

	return errUsage
}

func (app *application) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(app.stderr)
	return fs
}

// parseWithID accepts the id either before or after the flags.
func parseWithID(fs *flag.FlagSet, args []string) (string, error) {
	var id string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		id, args = args[0], args[1:]
	}

	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if id == "" && fs.NArg() > 0 {
		id = fs.Arg(0)
	}

	return id, nil
}

func (app *application) login(ctx context.Context, args []string) error {
	fs := app.flags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password, prompted when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p := app.prompter()
	var err error
	if *email == "" {
		if *email, err = p.Ask("Email"); err != nil {
			return err
		}
	}
	if *password == "" {
		if *password, err = p.Ask("Password"); err != nil {
			return err
		}
	}

	session, err := app.auth.Login(ctx, *email, *password)
	if err != nil {
		return err
	}

	fmt.Fprintf(app.stdout, "Logged in as %s\n", displayName(session.User.Name, session.User.Email))

	return nil
}

func (app *application) register(ctx context.Context, args []string) error {
	fs := app.flags("register")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password, prompted when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *password == "" {
		var err error
		if *password, err = app.prompter().Ask("Password"); err != nil {
			return err
		}
	}

	user, err := app.auth.Register(ctx, *name, *email, *password)
	if err != nil {
		return err
	}

	if app.sessions.Current().Authenticated() {
		fmt.Fprintf(app.stdout, "Registered and logged in as %s\n", displayName(user.Name, user.Email))
		return nil
	}

	fmt.Fprintln(app.stdout, "Registered. Log in to continue.")

	return nil
}

func (app *application) logout(ctx context.Context, args []string) error {
	if err := app.flags("logout").Parse(args); err != nil {
		return err
	}

	if err := app.sessions.Logout(ctx); err != nil {
		return err
	}

	fmt.Fprintln(app.stdout, "Logged out")

	return nil
}

func (app *application) whoami(ctx context.Context, args []string) error {
	if err := app.flags("whoami").Parse(args); err != nil {
		return err
	}

	s := app.sessions.Current()
	if !s.Authenticated() {
		fmt.Fprintln(app.stdout, "Not logged in")
		return nil
	}

	printUser(app.stdout, s.User)

	return nil
}

func (app *application) profile(ctx context.Context, args []string) error {
	fs := app.flags("profile")
	name := fs.String("name", "", "new display name")
	email := fs.String("email", "", "new email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s := app.sessions.Current()
	if !s.Authenticated() {
		return common.NewUnauthenticatedError()
	}

	current := s.User
	if *name == "" {
		*name = current.Name
	}
	if *email == "" {
		*email = current.Email
	}

	user, err := app.sessions.UpdateProfile(ctx, *name, *email)
	if err != nil {
		return err
	}

	printUser(app.stdout, user)

	return nil
}

func (app *application) list(ctx context.Context, args []string) error {
	if err := app.flags("list").Parse(args); err != nil {
		return err
	}

	blogs, err := app.blogs.ListBlogs(ctx)
	if err != nil {
		if !errors.Is(err, common.ErrNetwork) || ctx.Err() != nil || app.mirror.Len() == 0 {
			return err
		}

		app.logger.Info("listing blogs from mirror", slog.String("error", err.Error()))
		fmt.Fprintf(app.stdout, "Offline: showing %s copy from %s\n",
			staleness(app.mirror.Stale()), app.mirror.FetchedAt().Format("2006-01-02 15:04"))
		blogs = app.mirror.All()
	}

	printBlogs(app.stdout, blogs, app.sessions.Current().User.ID)

	return nil
}

func (app *application) mine(ctx context.Context, args []string) error {
	fs := app.flags("mine")
	author := fs.String("author", "", "list another user's blogs by id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	blogs, err := app.blogs.ListBlogsByAuthor(ctx, *author)
	if err != nil {
		return err
	}

	printBlogs(app.stdout, blogs, app.sessions.Current().User.ID)

	return nil
}

func (app *application) show(ctx context.Context, args []string) error {
	fs := app.flags("show")
	asHTML := fs.Bool("html", false, "render the content as HTML")
	id, err := parseWithID(fs, args)
	if err != nil {
		return err
	}

	r, err := app.blogs.ResolveBlog(ctx, id)
	if err != nil {
		return err
	}

	if r.Source == blogservice.SourceMirror {
		fmt.Fprintf(app.stdout, "Offline: showing %s copy\n\n", staleness(r.Stale))
	}

	return printBlog(app.stdout, r.Blog, app.sessions.Current().User.ID, *asHTML)
}

func (app *application) create(ctx context.Context, args []string) error {
	fs := app.flags("create")
	title := fs.String("title", "", "blog title")
	content := fs.String("content", "", "blog content, HTML or Markdown")
	contentFile := fs.String("content-file", "", "read the content from a file")
	image := fs.String("image", "", "image URL or path to an image file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	form := blogservice.BlogForm{Title: *title, Content: *content}
	if err := fillForm(&form, *contentFile, *image); err != nil {
		return err
	}

	sub := app.blogs.NewCreateSubmission(form)
	blog, err := sub.Submit(ctx)
	if err != nil {
		return err
	}

	if blog.Title == "" {
		blog.Title = form.Title
	}
	if blog.ID == "" {
		fmt.Fprintf(app.stdout, "Published %q\n", blog.Title)
		return nil
	}
	fmt.Fprintf(app.stdout, "Published %q (%s)\n", blog.Title, blog.ID)

	return nil
}

func (app *application) edit(ctx context.Context, args []string) error {
	fs := app.flags("edit")
	title := fs.String("title", "", "new title")
	content := fs.String("content", "", "new content")
	contentFile := fs.String("content-file", "", "read the new content from a file")
	image := fs.String("image", "", "new image URL or path to an image file")
	id, err := parseWithID(fs, args)
	if err != nil {
		return err
	}

	current, err := app.blogs.GetBlog(ctx, id)
	if err != nil {
		return err
	}
	if !current.IsOwnedBy(app.sessions.Current().User.ID) {
		return errNotOwner
	}

	form := blogservice.BlogForm{Title: current.Title, Content: current.Content}
	if *title != "" {
		form.Title = *title
	}
	if *content != "" {
		form.Content = *content
	}
	if err := fillForm(&form, *contentFile, *image); err != nil {
		return err
	}

	sub := app.blogs.NewUpdateSubmission(id, form)
	blog, err := sub.Submit(ctx)
	if err != nil {
		return err
	}

	if blog.Title == "" {
		blog.Title = form.Title
	}
	fmt.Fprintf(app.stdout, "Updated %q\n", blog.Title)

	return nil
}

func (app *application) delete(ctx context.Context, args []string) error {
	id, err := parseWithID(app.flags("delete"), args)
	if err != nil {
		return err
	}

	if err := app.blogs.DeleteBlog(ctx, id, app.prompter()); err != nil {
		return err
	}

	fmt.Fprintln(app.stdout, "Deleted")

	return nil
}

func (app *application) watch(ctx context.Context, args []string) error {
	if err := app.flags("watch").Parse(args); err != nil {
		return err
	}

	if app.broker == nil {
		return errNoBroker
	}

	target := blogservice.Invalidators{app.mirror, refreshFunc(func(ctx context.Context) error {
		blogs, err := app.blogs.ListBlogs(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(app.stdout, "Blogs changed elsewhere, %d now published\n", len(blogs))
		return nil
	})}

	l := blogservice.NewListener(app.broker, target, app.origin, app.logger)
	if err := l.Start(); err != nil {
		return err
	}
	defer l.Close()

	fmt.Fprintln(app.stdout, "Watching for blog changes, press Ctrl+C to stop")
	<-ctx.Done()

	return nil
}

type refreshFunc func(ctx context.Context) error

func (f refreshFunc) Invalidate(ctx context.Context) error {
	return f(ctx)
}

// fillForm applies the content file and the image argument to form. An image
// that is not an http(s) URL is read from disk.
func fillForm(form *blogservice.BlogForm, contentFile, image string) error {
	if contentFile != "" {
		data, err := os.ReadFile(contentFile)
		if err != nil {
			return fmt.Errorf("read content file: %w", err)
		}
		form.Content = string(data)
	}

	switch {
	case image == "":
	case strings.HasPrefix(image, "http://"), strings.HasPrefix(image, "https://"):
		form.ImageURL = image
	default:
		data, err := os.ReadFile(image)
		if err != nil {
			return fmt.Errorf("read image file: %w", err)
		}

		contentType := mime.TypeByExtension(filepath.Ext(image))
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}

		form.ImageFile = &blogservice.ImageFile{
			Filename:    filepath.Base(image),
			ContentType: contentType,
			Data:        data,
		}
	}

	return nil
}

func staleness(stale bool) string {
	if stale {
		return "a stale"
	}
	return "the cached"
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}
