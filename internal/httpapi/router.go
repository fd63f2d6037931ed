package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lazycook/chat-platform/internal/common"
	"github.com/lazycook/chat-platform/internal/httpapi/handlers"
	"github.com/lazycook/chat-platform/internal/httpapi/middleware"
)

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.PlanHeader, middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(cors.New(corsConfig(h.Cfg.CORSOrigins)))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/health", h.Health)
	r.GET("/ping", h.Ping)
	r.GET("/plans", h.Plans)

	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)

	limiter := middleware.NewUserLimiter(h.Cfg.RateLimitRPS, h.Cfg.RateLimitBurst)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(h.Cfg.JWTSecret), middleware.LoadUser(h.DB))
	authGroup.GET("/auth/me", h.Me)
	authGroup.PUT("/auth/plan", h.ChangePlan)
	authGroup.POST("/ai/run", middleware.RateLimit(limiter), h.RunAI)

	// chat session (JWT required)
	authGroup.GET("/chats", h.ListChats)
	authGroup.POST("/chats", h.CreateChat)
	authGroup.POST("/chats/messages", middleware.RateLimit(limiter), h.SendChatMessage)
	authGroup.PUT("/chats/model", h.SelectModel)
	authGroup.GET("/chats/:chat_id", h.GetChat)
	authGroup.PATCH("/chats/:chat_id", h.RenameChat)
	authGroup.DELETE("/chats/:chat_id", h.DeleteChat)
	authGroup.POST("/chats/:chat_id/select", h.SelectChat)
	return r
}
