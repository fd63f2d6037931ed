package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lazycook/chat-platform/internal/auth"
	"github.com/lazycook/chat-platform/internal/common"
	"github.com/lazycook/chat-platform/internal/models"
	"github.com/lazycook/chat-platform/internal/plan"
	"gorm.io/gorm"
)

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

const minPasswordLen = 8

func (h *Handler) defaultPlan() plan.Plan {
	if p, err := plan.ParsePlan(h.Cfg.DefaultPlan); err == nil {
		return p
	}
	return plan.Go
}

func (h *Handler) tokenResponse(c *gin.Context, u *models.User) {
	token, err := auth.SignJWT(u.ID, u.Plan, h.Cfg.JWTSecret, h.Cfg.JWTTTL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}
	model, _ := plan.ModelFor(u.Plan)
	common.OK(c, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user_id":      u.ID,
		"email":        u.Email,
		"plan":         u.Plan,
		"model":        model,
	})
}

func (h *Handler) Register(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "email and password required")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		common.Fail(c, http.StatusBadRequest, 10003, "invalid email")
		return
	}
	if len(req.Password) < minPasswordLen {
		common.Fail(c, http.StatusBadRequest, 10004, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "failed to hash password")
		return
	}

	var cnt int64
	if err := h.DB.Model(&models.User{}).Where("email = ?", email).Count(&cnt).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	if cnt > 0 {
		common.Fail(c, http.StatusConflict, 40901, "email already registered")
		return
	}

	user := models.User{Email: email, PasswordHash: hash, Plan: h.defaultPlan()}
	if err := h.DB.Create(&user).Error; err != nil {
		common.Fail(c, http.StatusBadRequest, 10005, "failed to create user (maybe email already exists)")
		return
	}
	h.tokenResponse(c, &user)
}

func (h *Handler) Login(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "email and password required")
		return
	}

	var user models.User
	if err := h.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusUnauthorized, 40107, "invalid email or password")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		common.Fail(c, http.StatusUnauthorized, 40107, "invalid email or password")
		return
	}
	h.tokenResponse(c, &user)
}

func (h *Handler) Me(c *gin.Context) {
	m, u, ok := h.session(c)
	if !ok {
		return
	}
	common.OK(c, gin.H{
		"user_id":    u.ID,
		"email":      u.Email,
		"plan":       u.Plan,
		"model":      m.Model(),
		"created_at": u.CreatedAt,
	})
}

type changePlanReq struct {
	Plan string `json:"plan"`
}

// ChangePlan switches the caller's tier and returns a fresh token carrying it.
// Billing is not modelled; any valid plan is accepted.
func (h *Handler) ChangePlan(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		return
	}
	var req changePlanReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	p, err := plan.ParsePlan(req.Plan)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10006, "unknown plan")
		return
	}

	if err := h.DB.Model(u).Update("plan", p).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	u.Plan = p
	h.Sessions.Get(c.Request.Context(), storeUserID(u.ID), p)
	h.tokenResponse(c, u)
}

func (h *Handler) Plans(c *gin.Context) {
	out := make([]gin.H, 0, len(plan.Plans()))
	for _, p := range plan.Plans() {
		m, _ := plan.ModelFor(p)
		out = append(out, gin.H{"plan": p, "model": m})
	}
	common.OK(c, out)
}
