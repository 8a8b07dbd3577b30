package mockserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/RodyMacay/frontend-trash-classifications/internal/client"
	"github.com/RodyMacay/frontend-trash-classifications/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*Server, *Store) {
	t.Helper()
	store := newTestStore(t)
	logger := zap.NewNop()
	return NewServer(store, NewBroadcaster(store, logger), logger), store
}

func serve(t *testing.T, r http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, client.UploadFilename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, client.PathClassify, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestSessionRoutes(t *testing.T) {
	srv, _ := newTestServer(t)
	r := srv.Router()

	if rec := serve(t, r, http.MethodGet, client.PathActive); rec.Code != http.StatusNotFound {
		t.Fatalf("active before start = %d, want 404", rec.Code)
	}
	if rec := serve(t, r, http.MethodPost, client.PathStop); rec.Code != http.StatusNotFound {
		t.Fatalf("stop before start = %d, want 404", rec.Code)
	}

	rec := serve(t, r, http.MethodPost, client.PathStart)
	if rec.Code != http.StatusOK {
		t.Fatalf("start = %d: %s", rec.Code, rec.Body.String())
	}
	var started struct {
		Mensaje string `json:"mensaje"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil || started.Mensaje == "" {
		t.Fatalf("start body = %s", rec.Body.String())
	}
	if rec := serve(t, r, http.MethodPost, client.PathStart); rec.Code != http.StatusConflict {
		t.Fatalf("second start = %d, want 409", rec.Code)
	}

	rec = serve(t, r, http.MethodGet, client.PathActive)
	if rec.Code != http.StatusOK {
		t.Fatalf("active = %d", rec.Code)
	}
	var op client.Operacion
	if err := json.Unmarshal(rec.Body.Bytes(), &op); err != nil {
		t.Fatalf("decode active: %v", err)
	}
	if op.Completada || op.Clasificaciones == nil {
		t.Errorf("active = %+v", op)
	}

	rec = serve(t, r, http.MethodPost, client.PathStop)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop = %d", rec.Code)
	}
	rec = serve(t, r, http.MethodGet, client.PathCompleted)
	var done []client.OperacionCompletada
	if err := json.Unmarshal(rec.Body.Bytes(), &done); err != nil {
		t.Fatalf("decode completed: %v", err)
	}
	if len(done) != 1 {
		t.Errorf("completed = %d sessions, want 1", len(done))
	}
}

func TestClassifyRoute(t *testing.T) {
	srv, store := newTestServer(t)
	r := srv.Router()
	ctx := context.Background()

	tests := []struct {
		name     string
		req      func() *http.Request
		wantCode int
	}{
		{"valid jpeg", func() *http.Request {
			return uploadRequest(t, client.UploadField, solidJPEG(t, color.RGBA{0, 0, 220, 255}))
		}, http.StatusOK},
		{"wrong field", func() *http.Request {
			return uploadRequest(t, "file", solidJPEG(t, color.White))
		}, http.StatusBadRequest},
		{"not an image", func() *http.Request {
			return uploadRequest(t, client.UploadField, []byte("garbage"))
		}, http.StatusUnprocessableEntity},
		{"no body", func() *http.Request {
			return httptest.NewRequest(http.MethodPost, client.PathClassify, nil)
		}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, tt.req())
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if rec.Code != http.StatusOK {
				if !strings.Contains(rec.Body.String(), "detail") {
					t.Errorf("error body %s has no detail", rec.Body.String())
				}
				return
			}
			var res struct {
				TipoMaterial string  `json:"tipo_material"`
				Confianza    float64 `json:"confianza"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
				t.Fatal(err)
			}
			if res.TipoMaterial != "vidrio" {
				t.Errorf("tipo_material = %q, want vidrio", res.TipoMaterial)
			}
		})
	}

	// Without a session nothing was recorded.
	if _, err := store.Active(ctx); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("Active() = %v", err)
	}

	if _, err := store.Start(ctx, time.Now(), ""); err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, client.UploadField, solidJPEG(t, color.RGBA{220, 0, 0, 255})))
	if rec.Code != http.StatusOK {
		t.Fatalf("classify during session = %d", rec.Code)
	}
	op, err := store.Active(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(op.Clasificaciones) != 1 || op.Clasificaciones[0].TipoMaterial != "organico" {
		t.Errorf("session events = %+v", op.Clasificaciones)
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := newTestServer(t)
	r := srv.Router()

	rec := serve(t, r, http.MethodGet, "/health")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("no X-Request-ID assigned")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want echo of abc-123", got)
	}
}

// TestHTTPClientAgainstServer drives the real client through a full session.
func TestHTTPClientAgainstServer(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx := context.Background()
	c := client.NewHTTPClient(ts.URL, 5*time.Second, zap.NewNop(), metrics.New())

	if _, err := c.ActiveSession(ctx); !errors.Is(err, client.ErrNoActiveSession) {
		t.Fatalf("ActiveSession() = %v, want ErrNoActiveSession", err)
	}
	if _, err := c.StartSession(ctx); err != nil {
		t.Fatalf("StartSession() error: %v", err)
	}
	if _, err := c.StartSession(ctx); err == nil {
		t.Fatal("second StartSession() succeeded")
	}

	res, err := c.Classify(ctx, solidJPEG(t, color.RGBA{0, 220, 0, 255}))
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if res.TipoMaterial != "plastico" {
		t.Errorf("TipoMaterial = %q, want plastico", res.TipoMaterial)
	}

	op, err := c.ActiveSession(ctx)
	if err != nil {
		t.Fatalf("ActiveSession() error: %v", err)
	}
	if len(op.Clasificaciones) != 1 {
		t.Errorf("active events = %d, want 1", len(op.Clasificaciones))
	}

	stats, err := c.StopSession(ctx)
	if err != nil {
		t.Fatalf("StopSession() error: %v", err)
	}
	if stats.TotalClasificaciones != 1 || stats.PorTipo["plastico"] != 1 {
		t.Errorf("stats = %+v", stats)
	}

	done, err := c.CompletedSessions(ctx)
	if err != nil {
		t.Fatalf("CompletedSessions() error: %v", err)
	}
	if len(done) != 1 {
		t.Errorf("completed = %d, want 1", len(done))
	}
}

func TestWebSocketPush(t *testing.T) {
	srv, store := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() client.WSMessage {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg client.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}

	first := read()
	if first.Type != client.MsgActive || string(first.Payload) != "null" {
		t.Fatalf("initial message = %+v, want active with null payload", first)
	}

	for deadline := time.Now().Add(5 * time.Second); srv.broadcaster.ClientCount() == 0; {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := store.Start(context.Background(), time.Now(), ""); err != nil {
		t.Fatal(err)
	}
	srv.broadcaster.Publish(context.Background())

	next := read()
	if next.Seq <= first.Seq {
		t.Errorf("seq %d not after %d", next.Seq, first.Seq)
	}
	var op client.Operacion
	if err := json.Unmarshal(next.Payload, &op); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if op.Completada {
		t.Errorf("pushed session = %+v", op)
	}
}
