package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 8 << 20

type TransportConfig struct {
	BaseURL string
	Timeout time.Duration
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Transport issues JSON and multipart requests against one base URL and
// normalizes every failure into an *APIError.
type Transport struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewTransport(cfg TransportConfig, logger *slog.Logger) (*Transport, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("transport: base URL must be provided")
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("transport: base URL %q must be http or https", cfg.BaseURL)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Transport{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		limiter: limiter,
		logger:  logger,
	}, nil
}

type Request struct {
	Method string
	Path   string
	// Token is sent as a bearer credential when non-empty.
	Token string
	JSON  any
	Form  *MultipartForm
}

type MultipartForm struct {
	Fields []FormField
	Files  []FormFile
}

type FormField struct {
	Name  string
	Value string
}

type FormFile struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

func (f *MultipartForm) AddField(name, value string) {
	f.Fields = append(f.Fields, FormField{Name: name, Value: value})
}

func (f *MultipartForm) AddFile(file FormFile) {
	f.Files = append(f.Files, file)
}

func (f *MultipartForm) encode() (*bytes.Buffer, string, error) {
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)

	for _, field := range f.Fields {
		if err := w.WriteField(field.Name, field.Value); err != nil {
			return nil, "", err
		}
	}

	for _, file := range f.Files {
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Filename))
		h.Set("Content-Type", contentType)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return body, w.FormDataContentType(), nil
}

// errorPayload is the shape remote error responses may take. Only message is
// surfaced verbatim; error is kept when it carries per-field details.
type errorPayload struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

// Do sends req and decodes a successful response body into dst when dst is
// non-nil. A response that arrives after ctx is done is discarded.
func (t *Transport) Do(ctx context.Context, req Request, dst any) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return &APIError{Kind: KindNetwork, Message: GenericFailureMessage, Err: err}
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Form != nil:
		buf, ct, err := req.Form.encode()
		if err != nil {
			return fmt.Errorf("transport: encode form: %w", err)
		}
		body, contentType = buf, ct
	case req.JSON != nil:
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return fmt.Errorf("transport: encode body: %w", err)
		}
		body, contentType = bytes.NewReader(b), "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, t.baseURL+req.Path, body)
	if err != nil {
		return fmt.Errorf("transport: build request: %w", err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		t.logger.Warn("request failed",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return &APIError{Kind: KindNetwork, Message: GenericFailureMessage, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &APIError{Kind: KindNetwork, Message: GenericFailureMessage, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &APIError{Kind: KindNetwork, Message: GenericFailureMessage, Err: err}
	}

	t.logger.Debug("request completed",
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode >= http.StatusBadRequest || resp.StatusCode < http.StatusOK {
		return decodeError(resp.StatusCode, payload)
	}

	if dst == nil {
		return nil
	}

	if len(bytes.TrimSpace(payload)) == 0 {
		return &APIError{Kind: KindServer, Status: resp.StatusCode, Message: GenericFailureMessage, Err: errors.New("empty response body")}
	}

	if err := json.Unmarshal(payload, dst); err != nil {
		return &APIError{Kind: KindServer, Status: resp.StatusCode, Message: GenericFailureMessage, Err: err}
	}

	return nil
}

func decodeError(status int, payload []byte) *APIError {
	apiErr := &APIError{
		Kind:    KindForStatus(status),
		Status:  status,
		Message: GenericFailureMessage,
	}

	var p errorPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return apiErr
	}

	if p.Message != "" {
		apiErr.Message = p.Message
	}

	var fields map[string]string
	if len(p.Error) > 0 && json.Unmarshal(p.Error, &fields) == nil && len(fields) > 0 {
		apiErr.Fields = fields
	}

	return apiErr
}
