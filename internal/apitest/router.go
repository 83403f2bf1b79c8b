package apitest

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(s.notFoundErrorResponse)
	router.MethodNotAllowed = http.HandlerFunc(s.methodNotAllowedErrorResponse)

	router.HandlerFunc(http.MethodPost, "/login", s.loginHandler)
	router.HandlerFunc(http.MethodPost, "/register", s.registerHandler)
	router.HandlerFunc(http.MethodGet, "/blog", s.listBlogsHandler)
	router.HandlerFunc(http.MethodPost, "/blog/create", s.createBlogHandler)
	// GET /blog/:id serves a single blog or, when id names a user, that user's blogs.
	router.HandlerFunc(http.MethodGet, "/blog/:id", s.getBlogHandler)
	router.HandlerFunc(http.MethodPut, "/blog/:id", s.updateBlogHandler)
	router.HandlerFunc(http.MethodDelete, "/blog/:id", s.deleteBlogHandler)

	return s.recoverPanic(s.logRequest(s.recordRequests(s.injectFailures(router))))
}

func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				s.serverErrorResponse(w, r, fmt.Errorf("%s", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("uri", r.URL.RequestURI()),
			slog.Bool("authorized", bearerToken(r) != ""))

		next.ServeHTTP(w, r)
	})
}

func (s *Server) recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		f := s.failure
		s.failure = nil
		s.mu.Unlock()

		if f != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			w.Write([]byte(f.body))
			return
		}

		next.ServeHTTP(w, r)
	})
}
