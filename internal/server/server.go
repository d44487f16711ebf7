package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xaenox/wellness-coach/internal/accounts"
	"github.com/xaenox/wellness-coach/internal/insights"
	"github.com/xaenox/wellness-coach/internal/models"
	"github.com/xaenox/wellness-coach/internal/pipeline"
	"github.com/xaenox/wellness-coach/internal/session"
	"github.com/xaenox/wellness-coach/internal/storage"
	"go.uber.org/zap"
)

// Server is the HTTP surface over the pipeline, registry, insights and
// account services.
type Server struct {
	pipeline *pipeline.Pipeline
	registry *session.Registry
	insights *insights.Aggregator
	accounts *accounts.Service
	store    *storage.Hybrid
	logger   *zap.Logger
}

func New(p *pipeline.Pipeline, registry *session.Registry, agg *insights.Aggregator, acc *accounts.Service, store *storage.Hybrid, logger *zap.Logger) *Server {
	return &Server{
		pipeline: p,
		registry: registry,
		insights: agg,
		accounts: acc,
		store:    store,
		logger:   logger,
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthcheck", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		api.POST("/register", s.register)
		api.POST("/login", s.login)

		api.POST("/turns", s.submitTurn)

		api.GET("/users/:id/threads", s.listThreads)
		api.GET("/users/:id/insights", s.userInsights)
		api.GET("/users/:id/plans", s.listPlans)
		api.PUT("/users/:id/profile", s.updateProfile)
		api.POST("/users/:id/daily", s.logDaily)
		api.DELETE("/users/:id", s.deactivateUser)

		api.GET("/threads/:id/messages", s.threadMessages)
		api.DELETE("/threads/:id", s.deleteThread)

		api.POST("/plans/:id/progress", s.logProgress)
	}
	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (s *Server) register(c *gin.Context) {
	var req accounts.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := s.accounts.Register(c.Request.Context(), req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, accounts.ErrEmailTaken) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, sanitizeUser(user))
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := s.accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, sanitizeUser(user))
}

func (s *Server) submitTurn(c *gin.Context) {
	var req struct {
		UserID     string `json:"user_id"`
		ThreadID   string `json:"thread_id"`
		Specialist string `json:"specialist"`
		Message    string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := s.pipeline.Submit(c.Request.Context(), pipeline.TurnRequest{
		ThreadID:   req.ThreadID,
		UserID:     req.UserID,
		Specialist: req.Specialist,
		Message:    req.Message,
	})
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrEmptyMessage), errors.Is(err, session.ErrInvalidThreadID):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			s.internalError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) listThreads(c *gin.Context) {
	var specialist models.Specialist
	if raw := c.Query("specialist"); raw != "" {
		specialist = models.ParseSpecialist(raw)
	}
	threads, err := s.registry.ListThreads(c.Request.Context(), c.Param("id"), specialist)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

func (s *Server) threadMessages(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id query parameter is required"})
		return
	}
	messages, err := s.registry.History(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidThreadID):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		default:
			s.internalError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (s *Server) deleteThread(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id query parameter is required"})
		return
	}
	if err := s.registry.DeleteThread(c.Request.Context(), userID, c.Param("id")); err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidThreadID):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		default:
			s.internalError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (s *Server) userInsights(c *gin.Context) {
	report, err := s.insights.Insights(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) listPlans(c *gin.Context) {
	plans, err := s.store.RoutinePlans(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

func (s *Server) updateProfile(c *gin.Context) {
	var update accounts.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := s.accounts.UpdateProfile(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, sanitizeUser(user))
}

func (s *Server) deactivateUser(c *gin.Context) {
	if err := s.accounts.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deactivated": true})
}

func (s *Server) logDaily(c *gin.Context) {
	var log models.HealthLog
	if err := c.ShouldBindJSON(&log); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	log.UserID = c.Param("id")
	if err := s.accounts.LogDaily(c.Request.Context(), &log); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged": true})
}

func (s *Server) logProgress(c *gin.Context) {
	var entry models.ProgressLog
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	entry.PlanID = c.Param("id")
	if entry.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	if entry.Date == "" {
		entry.Date = time.Now().Format("2006-01-02")
	}
	entry.LoggedAt = time.Now()
	if err := s.store.LogProgress(c.Request.Context(), &entry); err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged": true})
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error("Request failed",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// sanitizeUser strips the credential hash before a profile leaves the API.
func sanitizeUser(user *models.User) *models.User {
	clean := *user
	clean.PasswordHash = ""
	return &clean
}

// Run serves until ctx is cancelled, then drains with a short grace period.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("HTTP server listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
