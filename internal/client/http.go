package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RodyMacay/frontend-trash-classifications/internal/logging"
	"github.com/RodyMacay/frontend-trash-classifications/internal/metrics"
)

// Service endpoints.
const (
	PathActive    = "/api/analytics/operacion-activa/"
	PathCompleted = "/api/analytics/operaciones-completadas/"
	PathStart     = "/api/detection/activar-script/"
	PathStop      = "/api/detection/detener-script/"
	PathClassify  = "/api/detection/ejecutar/"
)

// Multipart layout of a classify upload.
const (
	UploadField       = "imagen"
	UploadFilename    = "captura.jpg"
	UploadContentType = "image/jpeg"
)

var (
	ErrNoActiveSession      = errors.New("no active session")
	ErrClassificationFailed = errors.New("classification failed")
	ErrStartFailed          = errors.New("start failed")
	ErrStopFailed           = errors.New("stop failed")
	ErrFetchFailed          = errors.New("fetch failed")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Body)
}

// HTTPClient makes REST calls to the classification service. There is no
// retry; callers decide what a failure means.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:8000").
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		metrics: m,
	}
}

// ActiveSession fetches the active session. A 404 maps to ErrNoActiveSession.
func (c *HTTPClient) ActiveSession(ctx context.Context) (*Operacion, error) {
	reqID := uuid.NewString()
	c.metrics.ActivePolls.Add(1)

	var op *Operacion
	err := c.get(ctx, reqID, PathActive, &op)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		c.metrics.ActiveMisses.Add(1)
		return nil, ErrNoActiveSession
	}
	if err != nil {
		c.metrics.ActiveMisses.Add(1)
		return nil, logging.NewOperationError("client.active_session", reqID, err)
	}
	// A 200 without a session body (null, {} or a bare message) is also absence.
	if !op.Valid() {
		c.metrics.ActiveMisses.Add(1)
		return nil, ErrNoActiveSession
	}
	return op, nil
}

// CompletedSessions fetches the summaries of finished sessions.
func (c *HTTPClient) CompletedSessions(ctx context.Context) ([]OperacionCompletada, error) {
	reqID := uuid.NewString()
	c.metrics.CompletedFetches.Add(1)

	var out []OperacionCompletada
	if err := c.get(ctx, reqID, PathCompleted, &out); err != nil {
		c.metrics.CompletedErrors.Add(1)
		return nil, logging.NewOperationError("client.completed_sessions", reqID, fmt.Errorf("%w: %w", ErrFetchFailed, err))
	}
	return out, nil
}

// StartSession asks the service to start a session and returns its message.
func (c *HTTPClient) StartSession(ctx context.Context) (string, error) {
	reqID := uuid.NewString()
	c.metrics.StartCommands.Add(1)

	var out startResponse
	if err := c.post(ctx, reqID, PathStart, &out); err != nil {
		c.metrics.StartFailures.Add(1)
		return "", logging.NewOperationError("client.start_session", reqID, fmt.Errorf("%w: %w", ErrStartFailed, err))
	}
	c.logger.Info("session started", zap.String("request_id", reqID), zap.String("mensaje", out.Mensaje))
	return out.Mensaje, nil
}

// StopSession stops the active session and returns its final statistics.
func (c *HTTPClient) StopSession(ctx context.Context) (*Estadisticas, error) {
	reqID := uuid.NewString()
	c.metrics.StopCommands.Add(1)

	var out Estadisticas
	if err := c.post(ctx, reqID, PathStop, &out); err != nil {
		c.metrics.StopFailures.Add(1)
		return nil, logging.NewOperationError("client.stop_session", reqID, fmt.Errorf("%w: %w", ErrStopFailed, err))
	}
	if out.PorTipo == nil {
		out.PorTipo = map[string]int{}
	}
	c.logger.Info("session stopped", zap.String("request_id", reqID), zap.Int("total", out.TotalClasificaciones))
	return &out, nil
}

// Classify uploads one JPEG image and decodes the classifier's verdict.
func (c *HTTPClient) Classify(ctx context.Context, image []byte) (ClassificationResult, error) {
	reqID := uuid.NewString()
	start := time.Now()
	res, err := c.classify(ctx, reqID, image)
	c.metrics.ObserveClassify(time.Since(start), err)
	if err != nil {
		return ClassificationResult{}, logging.NewOperationError("client.classify", reqID, fmt.Errorf("%w: %w", ErrClassificationFailed, err))
	}
	return res, nil
}

func (c *HTTPClient) classify(ctx context.Context, reqID string, image []byte) (ClassificationResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, UploadField, UploadFilename))
	h.Set("Content-Type", UploadContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return ClassificationResult{}, err
	}
	if _, err := part.Write(image); err != nil {
		return ClassificationResult{}, err
	}
	if err := w.Close(); err != nil {
		return ClassificationResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathClassify, &buf)
	if err != nil {
		return ClassificationResult{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-Request-ID", reqID)

	body, err := c.do(req, PathClassify)
	if err != nil {
		return ClassificationResult{}, err
	}
	return decodeResult(body)
}

func (c *HTTPClient) get(ctx context.Context, reqID, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Request-ID", reqID)
	body, err := c.do(req, path)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// post sends an empty JSON body; the session commands take no arguments.
func (c *HTTPClient) post(ctx context.Context, reqID, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader([]byte("{}")))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	body, err := c.do(req, path)
	if err != nil {
		return err
	}
	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		return json.Unmarshal(body, out)
	}
	return nil
}

func (c *HTTPClient) do(req *http.Request, path string) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, &StatusError{Method: req.Method, Path: path, Code: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	return body, nil
}
