package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/storyforge/internal/auth"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

func (r *registerRequest) normalize() { r.Email = auth.NormalizeEmail(r.Email) }

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

func (r *loginRequest) normalize() { r.Email = auth.NormalizeEmail(r.Email) }

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

func (r *forgotPasswordRequest) normalize() { r.Email = auth.NormalizeEmail(r.Email) }

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required,max=128"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

func (s *Server) Register(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		s.abortWithError(c, err)
		return
	}
	u, token, err := s.auth.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	s.auth.SetCookie(c.Writer, token)
	s.logger.Info("user registered", "user_id", u.ID)
	c.JSON(http.StatusCreated, gin.H{"user": u})
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		s.abortWithError(c, err)
		return
	}
	u, token, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	s.auth.SetCookie(c.Writer, token)
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (s *Server) Logout(c *gin.Context) {
	s.auth.ClearCookie(c.Writer)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": currentUser(c)})
}

// ForgotPassword answers identically whether or not the account exists.
func (s *Server) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		s.abortWithError(c, err)
		return
	}
	if err := s.auth.RequestReset(c.Request.Context(), req.Email); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": auth.ResetMessage})
}

func (s *Server) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		s.abortWithError(c, err)
		return
	}
	if err := s.auth.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset successful. You can log in now."})
}
