package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kwak/pkg/auth"
	kwakerrors "kwak/pkg/errors"
	"kwak/pkg/protocol"
	"kwak/pkg/storage"
)

const minPasswordLength = 6

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type publicUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type authResponse struct {
	Token string     `json:"token"`
	User  publicUser `json:"user"`
}

// handleRegister creates an account and issues a token
func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username, email and password are required"})
		return
	}

	username := auth.NormalizeUsername(req.Username)
	email := auth.NormalizeEmail(req.Email)
	if username == "" || email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username, email and password are required"})
		return
	}
	if len(req.Password) < minPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password too short"})
		return
	}

	exists, err := s.store.UserExists(username, email)
	if err != nil {
		s.log.ErrorWithErr("user lookup failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	if exists {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username or email already in use"})
		return
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.log.ErrorWithErr("password hash failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	user, err := s.store.CreateUser(username, email, hash)
	if err != nil {
		if errors.Is(err, kwakerrors.ErrUserExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username or email already in use"})
			return
		}
		s.log.ErrorWithErr("user create failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	s.finishAuth(c, http.StatusCreated, user)
}

// handleLogin verifies credentials and issues a token. Every failure mode
// returns the same 401 body so the response never reveals whether the
// email exists.
func (s *Server) handleLogin(c *gin.Context) {
	if !s.loginLimiter.AllowRequest(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, err := s.store.GetUserByEmail(auth.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, kwakerrors.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		s.log.ErrorWithErr("user lookup failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	s.finishAuth(c, http.StatusOK, user)
}

// handleListMessages returns the full message history in commit order
func (s *Server) handleListMessages(c *gin.Context) {
	messages, err := s.store.ListMessages()
	if err != nil {
		s.log.ErrorWithErr("message list failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	if messages == nil {
		messages = []*protocol.ChatMessage{}
	}
	c.JSON(http.StatusOK, messages)
}

// handleHealth reports server and host health
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitor.GetHealth(s.reg.Count()))
}

// authMiddleware requires a valid bearer token and stores the identity in
// the request context.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "access token required"})
			return
		}

		identity, err := s.tokens.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid token"})
			return
		}

		c.Set("identity", identity)
		c.Next()
	}
}

func (s *Server) finishAuth(c *gin.Context, status int, user *storage.User) {
	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		s.log.ErrorWithErr("token issue failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	c.JSON(status, authResponse{
		Token: token,
		User: publicUser{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
		},
	})
}
