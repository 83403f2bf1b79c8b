package apitest

import (
	"log/slog"
	"net/http"
)

func (s *Server) logError(r *http.Request, err error) {
	s.logger.Error(err.Error(), slog.String("method", r.Method), slog.String("url", r.URL.RequestURI()))
}

// writeErrorResponse answers with {"message": ...}, plus per-field details
// under "error" when fields is non-nil.
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, status int, message string, fields map[string]string) {
	body := envelope{"message": message}
	if fields != nil {
		body["error"] = fields
	}

	if err := s.writeJSON(w, status, body, nil); err != nil {
		s.logError(r, err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (s *Server) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	s.logError(r, err)
	s.writeErrorResponse(w, r, http.StatusInternalServerError, "the server encountered a problem and could not process your request", nil)
}

func (s *Server) badRequestErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorResponse(w, r, http.StatusBadRequest, err.Error(), nil)
}

func (s *Server) notFoundErrorResponse(w http.ResponseWriter, r *http.Request) {
	s.writeErrorResponse(w, r, http.StatusNotFound, "Blog not found", nil)
}

func (s *Server) failedValidationErrorResponse(w http.ResponseWriter, r *http.Request, errors map[string]string) {
	s.writeErrorResponse(w, r, http.StatusUnprocessableEntity, "Validation failed", errors)
}

func (s *Server) invalidCredentialsErrorResponse(w http.ResponseWriter, r *http.Request) {
	s.writeErrorResponse(w, r, http.StatusUnauthorized, "Invalid email or password", nil)
}

func (s *Server) unAuthorizedErrorResponse(w http.ResponseWriter, r *http.Request) {
	s.writeErrorResponse(w, r, http.StatusUnauthorized, "Not authorized, no token", nil)
}

func (s *Server) forbiddenErrorResponse(w http.ResponseWriter, r *http.Request, action string) {
	s.writeErrorResponse(w, r, http.StatusForbidden, "You are not authorized to "+action+" this blog", nil)
}

func (s *Server) methodNotAllowedErrorResponse(w http.ResponseWriter, r *http.Request) {
	s.writeErrorResponse(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
}
