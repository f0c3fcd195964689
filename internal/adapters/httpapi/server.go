package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lazymail/phish-analyzer/internal/adapters/store"
	"github.com/lazymail/phish-analyzer/internal/analysis"
	"github.com/lazymail/phish-analyzer/internal/core"
)

// maxMessageBytes bounds the raw message size accepted for analysis.
const maxMessageBytes = 30 * 1024 * 1024

// Server exposes the analysis pipeline and stored reports over REST.
type Server struct {
	analyzer   *analysis.Analyzer
	store      core.MessageStore
	reputation core.ReputationClient
	logger     *zap.Logger
	listenAddr string
	corsOrigins []string
	httpServer *http.Server
}

// NewServer creates a new API server
func NewServer(
	analyzer *analysis.Analyzer,
	messageStore core.MessageStore,
	reputation core.ReputationClient,
	logger *zap.Logger,
	listenAddr string,
	corsOrigins []string,
) *Server {
	return &Server{
		analyzer:    analyzer,
		store:       messageStore,
		reputation:  reputation,
		logger:      logger,
		listenAddr:  listenAddr,
		corsOrigins: corsOrigins,
	}
}

// buildRouter assembles the gin engine with middleware and routes.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:  s.corsOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/messages/analyze", s.handleAnalyze)
		v1.GET("/messages", s.handleListMessages)
		v1.GET("/messages/:id", s.handleGetMessage)
		v1.GET("/health", s.handleHealth)
	}

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.httpServer = &http.Server{
		Addr:    s.listenAddr,
		Handler: s.buildRouter(),
	}

	s.logger.Info("HTTP API starting", zap.String("address", s.listenAddr))

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// handleAnalyze runs the pipeline over the raw message in the request
// body. A message that cannot be decoded at all is a 422; a degraded
// reputation engine still yields a 200 with reduced confidence.
func (s *Server) handleAnalyze(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxMessageBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty message body"})
		return
	}

	report, err := s.analyzer.Analyze(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, core.ErrMalformedMessage) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "message could not be decoded"})
			return
		}
		s.logger.Error("Analysis failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
		return
	}

	id := ""
	if s.store != nil {
		id, err = s.store.SaveReport(c.Request.Context(), report, "api")
		if err != nil {
			s.logger.Error("Failed to persist report", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     id,
		"report": report,
	})
}

func (s *Server) handleListMessages(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	summaries, err := s.store.ListReports(c.Request.Context(), limit, offset)
	if err != nil {
		s.logger.Error("Failed to list reports", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": summaries,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleGetMessage(c *gin.Context) {
	report, err := s.store.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		s.logger.Error("Failed to fetch report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch report"})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	c.JSON(http.StatusOK, gin.H{
		"status":               "ok",
		"reputation_available": s.reputation.Ping(ctx),
	})
}

func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return def
	}
	return value
}
