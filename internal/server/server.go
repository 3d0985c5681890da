// Package server exposes sessions over HTTP. Every session owns its corpus and
// index; only the embedding model is shared.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"guideline-rag/internal/composer"
	"guideline-rag/internal/config"
	"guideline-rag/internal/embedding"
	"guideline-rag/internal/helper"
	"guideline-rag/internal/metrics"
	"guideline-rag/internal/models"
	"guideline-rag/internal/rag"
	"guideline-rag/internal/render"
)

const (
	filesField      = "files"
	shutdownTimeout = 10 * time.Second
)

type Server struct {
	cfg      *config.Config
	loader   *embedding.Loader
	composer composer.Composer
	metrics  *metrics.Metrics
	engine   *gin.Engine

	mu       sync.RWMutex
	sessions map[string]*rag.Session
}

type queryRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type queryResponse struct {
	Answer      string                `json:"answer"`
	LatencyMS   int64                 `json:"latency_ms"`
	Citations   []string              `json:"citations"`
	Hits        []models.RetrievalHit `json:"hits"`
	Synthesized bool                  `json:"synthesized"`
	HTML        string                `json:"html,omitempty"`
}

// New wires the routes. m may be nil, in which case /metrics is not served.
func New(cfg *config.Config, loader *embedding.Loader, comp composer.Composer, m *metrics.Metrics) *Server {
	gin.SetMode(ginMode(gin.Mode(), zerolog.GlobalLevel()))
	s := &Server{
		cfg:      cfg,
		loader:   loader,
		composer: comp,
		metrics:  m,
		engine:   gin.New(),
		sessions: make(map[string]*rag.Session),
	}
	s.engine.Use(gin.Recovery(), requestLogger())

	s.engine.GET("/healthz", s.health)
	if m != nil {
		s.engine.GET("/metrics", gin.WrapH(m.Handler()))
	}
	sessions := s.engine.Group("/sessions")
	sessions.POST("", s.createSession)
	sessions.GET("/:id", s.getSession)
	sessions.DELETE("/:id", s.deleteSession)
	sessions.POST("/:id/documents", s.uploadDocuments)
	sessions.POST("/:id/query", s.query)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("Shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "model_loaded": s.loader.Loaded(), "llm_enabled": s.cfg.LLMEnabled})
}

func (s *Server) createSession(c *gin.Context) {
	id, err := helper.GenerateUUID()
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	session := rag.NewSession(s.loader, rag.Options{
		Chunk:    rag.ChunkOptions{Size: s.cfg.RAG.ChunkSize, Overlap: s.cfg.RAG.ChunkOverlap},
		Builder:  rag.IndexBuilder(s.cfg.RAG),
		Composer: s.composer,
		Metrics:  s.metrics,
	})
	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()
	c.JSON(http.StatusCreated, gin.H{"id": id, "status": session.Status()})
}

func (s *Server) getSession(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Status())
}

func (s *Server) deleteSession(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		abort(c, http.StatusNotFound, fmt.Errorf("session %q not found", id))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) uploadDocuments(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		abort(c, http.StatusBadRequest, fmt.Errorf("expected multipart form with %q: %w", filesField, err))
		return
	}

	var sources []models.Source
	for _, fh := range form.File[filesField] {
		f, err := fh.Open()
		if err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
		sources = append(sources, models.Source{Name: fh.Filename, Data: data})
	}

	status, err := session.Load(c.Request.Context(), sources)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, status)
	case errors.Is(err, models.ErrEmptyCorpus):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "status": status})
	case errors.Is(err, models.ErrEmbeddingFailure):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "status": status})
	default:
		abort(c, http.StatusInternalServerError, err)
	}
}

func (s *Server) query(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if req.K == 0 {
		req.K = s.cfg.RAG.TopK
	}

	answer, err := session.Ask(c.Request.Context(), req.Query, req.K)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrInvalidTopK), errors.Is(err, models.ErrEmptyQuery):
		abort(c, http.StatusBadRequest, err)
		return
	case errors.Is(err, models.ErrNotReady):
		abort(c, http.StatusConflict, err)
		return
	case errors.Is(err, models.ErrEmbeddingFailure):
		abort(c, http.StatusBadGateway, err)
		return
	default:
		abort(c, http.StatusInternalServerError, err)
		return
	}

	res := queryResponse{
		Answer:      answer.Text,
		LatencyMS:   answer.LatencyMillis(),
		Citations:   answer.Citations(),
		Hits:        answer.Hits,
		Synthesized: answer.Synthesized,
	}
	if c.Query("format") == "html" {
		if res.HTML, err = render.HTML(answer); err != nil {
			abort(c, http.StatusInternalServerError, err)
			return
		}
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) session(c *gin.Context) (*rag.Session, bool) {
	id := c.Param("id")
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		abort(c, http.StatusNotFound, fmt.Errorf("session %q not found", id))
	}
	return session, ok
}

// ginMode switches gin's default debug mode to release unless logging at
// debug level. Other modes are left alone.
func ginMode(current string, level zerolog.Level) string {
	if current == gin.DebugMode && level > zerolog.DebugLevel {
		return gin.ReleaseMode
	}
	return current
}

func abort(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		event := log.Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = log.Error()
		case status >= http.StatusBadRequest:
			event = log.Warn()
		}
		event.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("Handled request")
	}
}
