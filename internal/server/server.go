// Package server exposes the story engine over HTTP.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/storyforge/internal/auth"
	"github.com/agenthands/storyforge/internal/core"
	"github.com/agenthands/storyforge/internal/core/model"
	"github.com/agenthands/storyforge/internal/export"
)

const userKey = "user"

type Server struct {
	engine     *core.Engine
	auth       *auth.Service
	limiter    *RateLimiter
	logger     *slog.Logger
	exportOpts export.Options
}

func NewServer(engine *core.Engine, authSvc *auth.Service, limiter *RateLimiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, auth: authSvc, limiter: limiter, logger: logger}
}

// WithExportOptions sets the options used by the export route.
func (s *Server) WithExportOptions(opts export.Options) *Server {
	s.exportOpts = opts
	return s
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/healthz", s.Health)

	a := r.Group("/api/auth")
	a.POST("/register", s.Register)
	a.POST("/login", s.Login)
	a.POST("/logout", s.Logout)
	a.POST("/forgot-password", s.ForgotPassword)
	a.POST("/reset-password", s.ResetPassword)
	a.GET("/me", s.requireAuth(), s.Me)

	api := r.Group("/api", s.requireAuth())
	api.GET("/stories", s.ListStories)
	api.POST("/story/create", s.CreateStory)
	api.POST("/story/preview", s.PreviewChapter)
	api.GET("/story/export", s.ExportStory)
	api.GET("/story/:id", s.GetStory)

	generate := r.Group("/api/story")
	if s.limiter != nil {
		generate.Use(s.limiter.Middleware(s))
	}
	generate.Use(s.requireAuth())
	generate.POST("/generate-chapter", s.GenerateChapter)
	generate.POST("/continue", s.ContinueStory)

	return r
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"ip", clientIP(c),
			"took", time.Since(start).Round(time.Millisecond))
	}
}

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := s.auth.Authenticate(c.Request.Context(), auth.TokenFromRequest(c.Request))
		if err != nil {
			s.abortWithError(c, err)
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

func currentUser(c *gin.Context) *model.User {
	u, _ := c.MustGet(userKey).(*model.User)
	return u
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "provider": s.engine.ProviderName()})
}
