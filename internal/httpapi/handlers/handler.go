package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lazycook/chat-platform/internal/chat"
	"github.com/lazycook/chat-platform/internal/common"
	"github.com/lazycook/chat-platform/internal/config"
	"github.com/lazycook/chat-platform/internal/gateway"
	"github.com/lazycook/chat-platform/internal/httpapi/middleware"
	"github.com/lazycook/chat-platform/internal/models"
	"gorm.io/gorm"
)

type Handler struct {
	DB       *gorm.DB
	Cfg      config.Config
	Router   *gateway.Router
	Sessions *chat.Sessions
}

func NewHandler(db *gorm.DB, cfg config.Config, router *gateway.Router, sessions *chat.Sessions) *Handler {
	return &Handler{DB: db, Cfg: cfg, Router: router, Sessions: sessions}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, "pong")
}

// Health is a static liveness probe, outside the envelope.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func currentUser(c *gin.Context) (*models.User, bool) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
	}
	return u, ok
}

func storeUserID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// session returns the caller's chat Manager with the plan on record applied.
func (h *Handler) session(c *gin.Context) (*chat.Manager, *models.User, bool) {
	u, ok := currentUser(c)
	if !ok {
		return nil, nil, false
	}
	return h.Sessions.Get(c.Request.Context(), storeUserID(u.ID), u.Plan), u, true
}
