package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"kwak/pkg/auth"
	"kwak/pkg/config"
	"kwak/pkg/health"
	"kwak/pkg/logger"
	"kwak/pkg/presence"
	"kwak/pkg/registry"
	"kwak/pkg/relay"
	"kwak/pkg/storage"
)

// Server wires the chat room together: the HTTP/websocket surface, the
// connection registry, the presence broadcaster, the message relay, and
// the persistent store.
type Server struct {
	config       *config.ServerConfig
	store        storage.Store
	reg          *registry.Registry
	bc           *presence.Broadcaster
	relay        *relay.Relay
	tokens       *auth.TokenManager
	hasher       *auth.PasswordHasher
	loginLimiter *auth.RateLimiter
	monitor      *health.Monitor
	httpServer   *http.Server
	serverMu     sync.Mutex
	log          *logger.Logger
}

// NewServer creates a server instance from configuration
func NewServer(cfg *config.ServerConfig) (*Server, error) {
	store, err := storage.NewStore(cfg.Database)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	bc := presence.New(reg)

	return &Server{
		config:       cfg,
		store:        store,
		reg:          reg,
		bc:           bc,
		relay:        relay.New(store, reg, bc),
		tokens:       auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TokenTTLDuration()),
		hasher:       auth.NewPasswordHasher(),
		loginLimiter: auth.NewRateLimiter(10, 15*time.Minute),
		monitor:      health.NewMonitor(),
		log:          logger.Get().With("component", "server"),
	}, nil
}

// buildRouter wires the HTTP routes
func (s *Server) buildRouter() *gin.Engine {
	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})
	router.Use(s.corsMiddleware())

	// Websocket endpoint for the realtime session
	router.GET("/ws", s.handleWebSocket)

	// REST API
	router.POST("/api/register", s.handleRegister)
	router.POST("/api/login", s.handleLogin)
	router.GET("/api/messages", s.authMiddleware(), s.handleListMessages)
	router.GET("/api/health", s.handleHealth)

	return router
}

// Start runs the HTTP server until it fails or Shutdown is called
func (s *Server) Start() error {
	server := &http.Server{
		Addr:    s.config.Address,
		Handler: s.buildRouter(),
	}

	s.serverMu.Lock()
	s.httpServer = server
	s.serverMu.Unlock()

	var err error
	if s.config.TLS.Enabled {
		server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
		s.log.InfoWith("serving with TLS", "address", s.config.Address)
		err = server.ListenAndServeTLS(s.config.TLS.CertFile, s.config.TLS.KeyFile)
	} else {
		s.log.InfoWith("serving", "address", s.config.Address)
		err = server.ListenAndServe()
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server: drain HTTP, close every live
// connection, then release the store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMu.Lock()
	httpServer := s.httpServer
	s.serverMu.Unlock()

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			s.log.ErrorWithErr("http shutdown failed", err)
			httpServer.Close()
		}
	}

	for _, conn := range s.reg.AllConns() {
		s.reg.Remove(conn.ID())
	}

	if err := s.store.Close(); err != nil {
		s.log.ErrorWithErr("store close failed", err)
		return err
	}

	s.log.Info("shutdown complete")
	return nil
}

// corsMiddleware applies the configured cross-origin policy
func (s *Server) corsMiddleware() gin.HandlerFunc {
	origin := s.config.CORS.Origin
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
