package mockserver

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/RodyMacay/frontend-trash-classifications/internal/client"
	"github.com/RodyMacay/frontend-trash-classifications/internal/logging"
)

// MaxUploadSize bounds the classify upload.
const MaxUploadSize = 8 << 20

const requestIDKey = "request_id"

// Server serves the classification service API.
type Server struct {
	store       *Store
	classifier  Classifier
	broadcaster *Broadcaster
	logger      *zap.Logger
	now         func() time.Time
	upgrader    websocket.Upgrader
}

func NewServer(store *Store, broadcaster *Broadcaster, logger *zap.Logger) *Server {
	return &Server{
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
		now:         time.Now,
		upgrader: websocket.Upgrader{
			// Any origin may subscribe.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = MaxUploadSize
	r.Use(gin.Recovery(), s.requestLogger())
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes wires the handlers to the gin router.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET(client.PathActive, s.handleActive)
	r.GET(client.PathCompleted, s.handleCompleted)
	r.POST(client.PathStart, s.handleStart)
	r.POST(client.PathStop, s.handleStop)
	r.POST(client.PathClassify, s.handleClassify)
	r.GET("/ws", s.handleWS)
}

// requestLogger assigns a request id and logs each request with zap.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)

		start := time.Now()
		c.Next()

		logging.WithOperation(s.logger, c.Request.Method+" "+c.FullPath(), id).Info("request",
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.Strings("errors", c.Errors.Errors()),
		)
	}
}

func (s *Server) fail(c *gin.Context, code int, op string, err error) {
	c.Error(logging.NewOperationError(op, c.GetString(requestIDKey), err))
	c.JSON(code, gin.H{"detail": err.Error()})
}

func (s *Server) handleActive(c *gin.Context) {
	op, err := s.store.Active(c.Request.Context())
	if errors.Is(err, ErrNoActiveSession) {
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
		return
	}
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "mock.active", err)
		return
	}
	c.JSON(http.StatusOK, op)
}

func (s *Server) handleCompleted(c *gin.Context) {
	list, err := s.store.Completed(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "mock.completed", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleStart(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := s.store.Start(ctx, s.now(), "")
	if errors.Is(err, ErrSessionActive) {
		s.fail(c, http.StatusConflict, "mock.start", err)
		return
	}
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "mock.start", err)
		return
	}
	s.broadcaster.Publish(ctx)
	s.logger.Info("session started", zap.Int64("id", id))
	c.JSON(http.StatusOK, gin.H{"mensaje": "Script de detección iniciado"})
}

func (s *Server) handleStop(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := s.store.Stop(ctx, s.now())
	if errors.Is(err, ErrNoActiveSession) {
		s.fail(c, http.StatusNotFound, "mock.stop", err)
		return
	}
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "mock.stop", err)
		return
	}
	s.broadcaster.Publish(ctx)
	s.logger.Info("session stopped", zap.Int("total", stats.TotalClasificaciones))
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleClassify(c *gin.Context) {
	file, err := c.FormFile(client.UploadField)
	if err != nil {
		s.fail(c, http.StatusBadRequest, "mock.classify", errors.New("imagen file is required"))
		return
	}
	if file.Size > MaxUploadSize {
		s.fail(c, http.StatusRequestEntityTooLarge, "mock.classify", errors.New("image too large"))
		return
	}
	src, err := file.Open()
	if err != nil {
		s.fail(c, http.StatusBadRequest, "mock.classify", err)
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "mock.classify", err)
		return
	}

	res, err := s.classifier.Classify(data)
	if err != nil {
		s.fail(c, http.StatusUnprocessableEntity, "mock.classify", err)
		return
	}

	// Uploads during a session are recorded into it.
	ctx := c.Request.Context()
	if _, err := s.store.Record(ctx, res.TipoMaterial, float64(res.Confianza), s.now()); err == nil {
		s.broadcaster.Publish(ctx)
	} else if !errors.Is(err, ErrNoActiveSession) {
		s.logger.Warn("recording classification failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Info("ws upgrade failed", zap.Error(err))
		return
	}

	remote := c.Request.RemoteAddr
	s.logger.Info("ws subscriber connected", zap.String("remote", remote))
	sub := s.broadcaster.AddClient(c.Request.Context(), conn)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(sub)
			s.logger.Info("ws subscriber disconnected", zap.String("remote", remote))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
