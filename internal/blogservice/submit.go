package blogservice

import (
	"context"
	"sync"
)

type SubmissionState int

const (
	StateIdle SubmissionState = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s SubmissionState) String() string {
	switch s {
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

type SubmitFunc func(ctx context.Context, form BlogForm) (Blog, error)

// Submission guards a create or update form against duplicate submits.
// Idle -> Submitting -> Succeeded | Failed. A failed submission keeps its form
// and can be submitted again; a succeeded one needs Reset first.
type Submission struct {
	mu     sync.Mutex
	state  SubmissionState
	form   BlogForm
	result Blog
	err    error
	submit SubmitFunc
}

func NewSubmission(submit SubmitFunc, form BlogForm) *Submission {
	return &Submission{submit: submit, form: form}
}

// NewCreateSubmission submits form as a new blog.
func (c *BlogClient) NewCreateSubmission(form BlogForm) *Submission {
	return NewSubmission(c.CreateBlog, form)
}

// NewUpdateSubmission submits form as changes to the blog with id.
func (c *BlogClient) NewUpdateSubmission(id string, form BlogForm) *Submission {
	return NewSubmission(func(ctx context.Context, form BlogForm) (Blog, error) {
		return c.UpdateBlog(ctx, id, form)
	}, form)
}

// Submit runs the submission with the current form. While one is in flight
// further calls fail with ErrSubmitInProgress and send nothing.
func (s *Submission) Submit(ctx context.Context) (Blog, error) {
	s.mu.Lock()
	switch s.state {
	case StateSubmitting:
		s.mu.Unlock()
		return Blog{}, ErrSubmitInProgress
	case StateSucceeded:
		s.mu.Unlock()
		return Blog{}, ErrSubmitFinished
	}
	s.state = StateSubmitting
	s.err = nil
	form := s.form
	s.mu.Unlock()

	blog, err := s.submit(ctx, form)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StateFailed
		s.err = err
		return Blog{}, err
	}

	s.state = StateSucceeded
	s.result = blog

	return blog, nil
}

// SetForm replaces the form. A failed submission goes back to idle.
func (s *Submission) SetForm(form BlogForm) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateSubmitting:
		return ErrSubmitInProgress
	case StateSucceeded:
		return ErrSubmitFinished
	}

	s.form = form
	s.state = StateIdle
	s.err = nil

	return nil
}

// Reset clears the form and result and returns to idle.
func (s *Submission) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateSubmitting {
		return ErrSubmitInProgress
	}

	s.state = StateIdle
	s.form = BlogForm{}
	s.result = Blog{}
	s.err = nil

	return nil
}

func (s *Submission) State() SubmissionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Submission) Form() BlogForm {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.form
}

// Err is the error of the last failed submit.
func (s *Submission) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

func (s *Submission) Result() Blog {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.result
}
