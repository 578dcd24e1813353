package api

import (
	"net/http"

	"valhalla/gym-api/internal/domain" // Needed for RoleMiddleware
	"valhalla/gym-api/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	clientService service.ClientService,
) {
	authHandler := NewAuthHandler(authService)
	userHandler := NewUserHandler(authService)
	clientHandler := NewClientHandler(clientService)

	authMiddleware := AuthMiddleware(jwtSecret)
	adminOnly := RoleMiddleware(domain.RoleAdmin)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", authHandler.Me)

		// --- Client Records ---
		clientGroup := protected.Group("/clients")
		{
			// Visibility is computed per request inside the service: admins
			// see everything, members only their assigned record.
			clientGroup.GET("", clientHandler.ListClients)
			clientGroup.GET("/:id", clientHandler.GetClient)

			// The patch pipeline does its own field-level authorization, so
			// members can reach it for their nutrition/progress updates.
			clientGroup.PATCH("/:id", clientHandler.PatchClient)

			clientGroup.POST("", adminOnly, clientHandler.CreateClient)
			clientGroup.DELETE("/:id", adminOnly, clientHandler.DeleteClient)
			clientGroup.POST("/:id/archive", adminOnly, clientHandler.ArchiveClient)
		}

		// --- User Accounts (admin only) ---
		userGroup := protected.Group("/users")
		userGroup.Use(adminOnly)
		{
			userGroup.GET("", userHandler.ListUsers)
			userGroup.POST("", userHandler.CreateUser)
		}
	}
}
