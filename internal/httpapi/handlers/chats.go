package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lazycook/chat-platform/internal/chat"
	"github.com/lazycook/chat-platform/internal/common"
	"github.com/lazycook/chat-platform/internal/plan"
)

func (h *Handler) ListChats(c *gin.Context) {
	m, _, ok := h.session(c)
	if !ok {
		return
	}
	chats := m.Chats()
	out := make([]gin.H, 0, len(chats))
	for _, ch := range chats {
		out = append(out, gin.H{
			"id":         ch.ID,
			"title":      ch.Title,
			"state":      ch.State(),
			"messages":   len(ch.Messages),
			"created_at": ch.CreatedAt,
			"updated_at": ch.UpdatedAt,
		})
	}
	common.OK(c, gin.H{"active_chat_id": m.ActiveChatID(), "chats": out})
}

func (h *Handler) CreateChat(c *gin.Context) {
	m, _, ok := h.session(c)
	if !ok {
		return
	}
	id := m.CreateChat()
	ch, _ := m.Chat(id)
	common.Created(c, ch)
}

func (h *Handler) GetChat(c *gin.Context) {
	m, _, ok := h.session(c)
	if !ok {
		return
	}
	ch, err := m.Chat(c.Param("chat_id"))
	if err != nil {
		common.Fail(c, http.StatusNotFound, 40402, "chat not found")
		return
	}
	common.OK(c, ch)
}

// SelectChat moves the active pointer. Unknown ids leave it unchanged.
func (h *Handler) SelectChat(c *gin.Context) {
	m, _, ok := h.session(c)
	if !ok {
		return
	}
	m.SelectChat(c.Param("chat_id"))
	common.OK(c, gin.H{"active_chat_id": m.ActiveChatID()})
}

type renameReq struct {
	Title string `json:"title"`
}

func (h *Handler) RenameChat(c *gin.Context) {
	m, _, ok := h.session(c)
	if !ok {
		return
	}
	var req renameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	id := c.Param("chat_id")
	if err := m.RenameChat(c.Request.Context(), id, req.Title); err != nil {
		if errors.Is(err, chat.ErrChatNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "chat not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50003, "rename failed")
		return
	}
	ch, _ := m.Chat(id)
	common.OK(c, gin.H{"id": ch.ID, "title": ch.Title})
}

func (h *Handler) DeleteChat(c *gin.Context) {
	m, _, ok := h.session(c)
	if !ok {
		return
	}
	active, err := m.DeleteChat(c.Request.Context(), c.Param("chat_id"))
	if err != nil {
		if errors.Is(err, chat.ErrChatNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "chat not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50004, "delete failed")
		return
	}
	common.OK(c, gin.H{"active_chat_id": active})
}

type sendMessageReq struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

// SendChatMessage appends the user turn and the reply (or the failure text)
// to the chat. Router and gateway failures are part of the thread, so the
// request itself succeeds.
func (h *Handler) SendChatMessage(c *gin.Context) {
	m, _, ok := h.session(c)
	if !ok {
		return
	}
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		common.Fail(c, http.StatusBadRequest, 10009, "message is required")
		return
	}
	chatID := req.ChatID
	if chatID == "" {
		chatID = m.ActiveChatID()
	}

	// a client that goes away does not cancel the reply or its mirror write
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.sendTimeout())
	defer cancel()

	res := m.SendMessage(ctx, chatID, req.Message)
	out := gin.H{
		"chat_id":   res.ChatID,
		"title":     res.Title,
		"user":      res.User,
		"assistant": res.Assistant,
		"model":     m.Model(),
	}
	if res.Err != nil {
		out["error"] = res.Err.Error()
	}
	if res.Warning != nil {
		out["warning"] = "chat could not be saved; it is kept for this session"
	}
	common.OK(c, out)
}

func (h *Handler) sendTimeout() time.Duration {
	if h.Cfg.GatewayTimeout > 0 {
		return 2*h.Cfg.GatewayTimeout + 10*time.Second
	}
	return 3 * time.Minute
}

type selectModelReq struct {
	Model string `json:"model"`
}

// SelectModel records the requested model for the session. It is gated on
// the next send, not here, so a denied choice shows up in the thread.
func (h *Handler) SelectModel(c *gin.Context) {
	m, u, ok := h.session(c)
	if !ok {
		return
	}
	var req selectModelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	mdl, err := plan.ParseModel(req.Model)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10008, "invalid model")
		return
	}
	m.SetModel(mdl)
	d := plan.Authorize(u.Plan, mdl)
	common.OK(c, gin.H{"model": mdl, "allowed": d.Allowed, "required_plan": d.Required})
}
