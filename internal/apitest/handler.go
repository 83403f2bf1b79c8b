package apitest

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/exp/slices"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var input loginRequest

	err := s.parseJSON(w, r, &input)
	if err != nil {
		s.badRequestErrorResponse(w, r, err)
		return
	}

	s.mu.Lock()
	u := s.userByEmail(input.Email)
	if u == nil || u.Password != input.Password {
		s.mu.Unlock()
		s.invalidCredentialsErrorResponse(w, r)
		return
	}
	token := s.newID("tok-")
	s.tokens[token] = u.ID
	body := envelope{"token": token, "user": s.userJSON(u)}
	s.mu.Unlock()

	if err := s.writeJSON(w, http.StatusOK, body, nil); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var input registerRequest

	err := s.parseJSON(w, r, &input)
	if err != nil {
		s.badRequestErrorResponse(w, r, err)
		return
	}

	s.mu.Lock()
	if s.userByEmail(input.Email) != nil {
		s.mu.Unlock()
		s.writeErrorResponse(w, r, http.StatusUnprocessableEntity, "a user with this email address already exists",
			map[string]string{"email": "a user with this email address already exists"})
		return
	}
	u := &user{ID: s.newID("u"), Name: input.Name, Email: input.Email, Password: input.Password}
	s.users[u.ID] = u
	body := envelope{"message": "user account created", "user": s.userJSON(u)}
	s.mu.Unlock()

	if err := s.writeJSON(w, http.StatusCreated, body, nil); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) listBlogsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	blogs := make([]envelope, 0, len(s.blogs))
	for _, b := range s.blogs {
		blogs = append(blogs, s.blogJSON(b))
	}
	wrap := s.wrap
	s.mu.Unlock()

	var body any = blogs
	if wrap {
		body = envelope{"blogs": blogs}
	}

	if err := s.writeJSON(w, http.StatusOK, body, nil); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) getBlogHandler(w http.ResponseWriter, r *http.Request) {
	id := readIDParam(r)

	s.mu.Lock()
	wrap := s.wrap

	if b := s.findBlog(id); b != nil {
		var body any = s.blogJSON(b)
		if wrap {
			body = envelope{"blog": body}
		}
		s.mu.Unlock()

		if err := s.writeJSON(w, http.StatusOK, body, nil); err != nil {
			s.serverErrorResponse(w, r, err)
		}
		return
	}

	if _, ok := s.users[id]; !ok {
		s.mu.Unlock()
		s.notFoundErrorResponse(w, r)
		return
	}

	if _, ok := s.tokens[bearerToken(r)]; !ok {
		s.mu.Unlock()
		s.unAuthorizedErrorResponse(w, r)
		return
	}

	blogs := make([]envelope, 0)
	for _, b := range s.blogs {
		if b.AuthorID == id {
			blogs = append(blogs, s.blogJSON(b))
		}
	}
	s.mu.Unlock()

	var body any = blogs
	if wrap {
		body = envelope{"blogs": blogs}
	}

	if err := s.writeJSON(w, http.StatusOK, body, nil); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

// authenticate returns the id of the caller, or "" after writing a 401.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) string {
	s.mu.Lock()
	userID, ok := s.tokens[bearerToken(r)]
	s.mu.Unlock()

	if !ok {
		s.unAuthorizedErrorResponse(w, r)
		return ""
	}

	return userID
}

type blogInput struct {
	title, content, image string
}

func (s *Server) readBlogForm(r *http.Request) (blogInput, error) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		return blogInput{}, errors.New("request body must be multipart/form-data")
	}

	in := blogInput{
		title:   r.FormValue("title"),
		content: r.FormValue("content"),
		image:   r.FormValue("image"),
	}

	if f, hdr, err := r.FormFile("image"); err == nil {
		f.Close()
		in.image = s.URL + "/uploads/" + hdr.Filename
	}

	return in, nil
}

func validateBlogInput(in blogInput, requireAll bool) map[string]string {
	fields := make(map[string]string)

	if requireAll || in.title != "" {
		if n := utf8.RuneCountInString(in.title); n < 2 || n > 100 {
			fields["title"] = "must be between 2 and 100 characters long"
		}
	}
	if requireAll || in.content != "" {
		if n := utf8.RuneCountInString(in.content); n < 10 || n > 5000 {
			fields["content"] = "must be between 10 and 5000 characters long"
		}
	}
	if requireAll && in.image == "" {
		fields["image"] = "must be provided"
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

func (s *Server) createBlogHandler(w http.ResponseWriter, r *http.Request) {
	userID := s.authenticate(w, r)
	if userID == "" {
		return
	}

	in, err := s.readBlogForm(r)
	if err != nil {
		s.badRequestErrorResponse(w, r, err)
		return
	}

	if fields := validateBlogInput(in, true); fields != nil {
		s.failedValidationErrorResponse(w, r, fields)
		return
	}

	s.mu.Lock()
	b := &Blog{
		ID:        s.newID("b"),
		Title:     strings.TrimSpace(in.title),
		Content:   in.content,
		Image:     in.image,
		AuthorID:  userID,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	s.blogs = append(s.blogs, b)
	body := s.blogJSON(b)
	s.mu.Unlock()

	if err := s.writeJSON(w, http.StatusCreated, body, nil); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) updateBlogHandler(w http.ResponseWriter, r *http.Request) {
	userID := s.authenticate(w, r)
	if userID == "" {
		return
	}

	id := readIDParam(r)

	s.mu.Lock()
	b := s.findBlog(id)
	var owner string
	if b != nil {
		owner = b.AuthorID
	}
	s.mu.Unlock()

	switch {
	case b == nil:
		s.notFoundErrorResponse(w, r)
		return
	case owner != userID:
		s.forbiddenErrorResponse(w, r, "update")
		return
	}

	in, err := s.readBlogForm(r)
	if err != nil {
		s.badRequestErrorResponse(w, r, err)
		return
	}

	if fields := validateBlogInput(in, false); fields != nil {
		s.failedValidationErrorResponse(w, r, fields)
		return
	}

	s.mu.Lock()
	if in.title != "" {
		b.Title = strings.TrimSpace(in.title)
	}
	if in.content != "" {
		b.Content = in.content
	}
	if in.image != "" {
		b.Image = in.image
	}
	body := s.blogJSON(b)
	s.mu.Unlock()

	if err := s.writeJSON(w, http.StatusOK, body, nil); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}

func (s *Server) deleteBlogHandler(w http.ResponseWriter, r *http.Request) {
	userID := s.authenticate(w, r)
	if userID == "" {
		return
	}

	id := readIDParam(r)

	s.mu.Lock()
	b := s.findBlog(id)
	switch {
	case b == nil:
		s.mu.Unlock()
		s.notFoundErrorResponse(w, r)
		return
	case b.AuthorID != userID:
		s.mu.Unlock()
		s.forbiddenErrorResponse(w, r, "delete")
		return
	}
	s.blogs = slices.DeleteFunc(s.blogs, func(x *Blog) bool { return x.ID == id })
	s.mu.Unlock()

	if err := s.writeJSON(w, http.StatusOK, envelope{"message": "Blog deleted successfully"}, nil); err != nil {
		s.serverErrorResponse(w, r, err)
	}
}
