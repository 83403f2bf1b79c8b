package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sushihentaime/blogclient/internal/blogservice"
	"github.com/sushihentaime/blogclient/internal/userservice"
)

const excerptLength = 60

func printBlogs(w io.Writer, blogs []blogservice.Blog, userID string) {
	if len(blogs) == 0 {
		fmt.Fprintln(w, "No blogs yet")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tDATE\tEXCERPT")
	for _, b := range blogs {
		title := b.Title
		if b.IsOwnedBy(userID) {
			title += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", b.ID, title, b.AuthorName(), formatDate(b), b.Excerpt(excerptLength))
	}
	tw.Flush()
}

func printBlog(w io.Writer, b blogservice.Blog, userID string, asHTML bool) error {
	fmt.Fprintln(w, b.Title)
	fmt.Fprintf(w, "by %s on %s\n", b.AuthorName(), formatDate(b))
	if len(b.Tags) > 0 {
		fmt.Fprintf(w, "tags: %s\n", strings.Join(b.Tags, ", "))
	}
	if b.Image != "" {
		fmt.Fprintf(w, "image: %s\n", b.Image)
	}
	if b.IsOwnedBy(userID) {
		fmt.Fprintln(w, "you wrote this blog")
	}
	fmt.Fprintln(w)

	if !asHTML {
		fmt.Fprintln(w, b.Content)
		return nil
	}

	out, err := b.RenderHTML()
	if err != nil {
		return err
	}
	fmt.Fprint(w, out)

	return nil
}

func printUser(w io.Writer, u userservice.User) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", u.ID)
	fmt.Fprintf(tw, "name\t%s\n", u.Name)
	fmt.Fprintf(tw, "email\t%s\n", u.Email)
	if u.Bio != "" {
		fmt.Fprintf(tw, "bio\t%s\n", u.Bio)
	}
	tw.Flush()
}

func formatDate(b blogservice.Blog) string {
	if b.CreatedAt.IsZero() {
		return "-"
	}
	return b.CreatedAt.Local().Format("Jan 2, 2006")
}
