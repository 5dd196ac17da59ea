package main

import (
	"codelink-platform/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	s := r.Group("/session")
	{
		// Browser flow: redirect to the provider, come back with cookies.
		s.GET("/login", h.Login)
		s.GET("/callback", h.Callback)

		// API flow: JSON in, token pair out.
		s.POST("/exchange", h.Exchange)

		s.POST("/refresh", h.Refresh)
		s.POST("/logout", h.Logout)

		s.GET("/current", authMW, h.Current)
	}
}
