package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/layer-3/nostrauth/service"
)

// RouterConfig holds the transport-level settings of the router
type RouterConfig struct {
	AllowedOrigins []string
	// TrustedProxies may set X-Forwarded-For. Empty means the peer address
	// is the caller.
	TrustedProxies []string
	Metrics        http.Handler
	Logger         *zap.Logger
}

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, cfg RouterConfig) (*gin.Engine, error) {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.ForwardedByClientIP = true
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	router.Use(gin.Recovery(), RequestLogger(cfg.Logger))

	// Create handlers
	handlers := NewAuthHandlers(authService)

	// Auth routes; OPTIONS is answered by the CORS middleware
	auth := router.Group("/auth")
	auth.Use(CORS(cfg.AllowedOrigins))
	{
		auth.POST("/challenge", handlers.Challenge)
		auth.POST("/nostr", handlers.SignIn)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
		auth.OPTIONS("/*path", func(*gin.Context) {})
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(CORS(cfg.AllowedOrigins), AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)
	}

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router, nil
}
