package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lazycook/chat-platform/internal/ai"
	"github.com/lazycook/chat-platform/internal/apperr"
	"github.com/lazycook/chat-platform/internal/common"
	"github.com/lazycook/chat-platform/internal/gateway"
	"github.com/lazycook/chat-platform/internal/plan"
)

const maxHistory = 100

type runReq struct {
	Prompt  string       `json:"prompt"`
	Model   string       `json:"model"`
	History []ai.Message `json:"history"`
}

// RunAI is the plan-gated completion endpoint. The model is optional and
// defaults to the one the caller's plan grants.
func (h *Handler) RunAI(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		return
	}
	var req runReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		common.Fail(c, http.StatusBadRequest, 10007, "prompt is required")
		return
	}

	var model plan.Model
	if strings.TrimSpace(req.Model) != "" {
		m, err := plan.ParseModel(req.Model)
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10008, "invalid model")
			return
		}
		model = m
	}

	history, ok := validHistory(req.History)
	if !ok {
		common.Fail(c, http.StatusBadRequest, 10010, "invalid history")
		return
	}

	res, err := h.Router.Run(c.Request.Context(), u.Plan, model, req.Prompt, history...)
	if err != nil {
		writeRunError(c, u.ID, err)
		return
	}
	common.OK(c, res)
}

// validHistory keeps the last maxHistory turns; roles must be user or
// assistant.
func validHistory(in []ai.Message) ([]ai.Message, bool) {
	for _, m := range in {
		if m.Role != "user" && m.Role != "assistant" {
			return nil, false
		}
	}
	if len(in) > maxHistory {
		in = in[len(in)-maxHistory:]
	}
	return in, true
}

func writeRunError(c *gin.Context, userID uint64, err error) {
	switch {
	case errors.Is(err, gateway.ErrEmptyPrompt):
		common.Fail(c, http.StatusBadRequest, 10007, "prompt is required")
	case errors.Is(err, plan.ErrUnknownModel):
		common.Fail(c, http.StatusBadRequest, 10008, "invalid model")
	case apperr.Is(err, apperr.KindPlanDenied):
		common.Fail(c, http.StatusForbidden, 40301, "Upgrade plan to access this AI")
	case apperr.Is(err, apperr.KindGateway):
		log.Printf("ai_run_failed user=%d err=%v", userID, err)
		common.Fail(c, http.StatusBadGateway, 50201, apperr.Detail(err))
	default:
		log.Printf("ai_run_failed user=%d err=%v", userID, err)
		common.Fail(c, http.StatusInternalServerError, 50002, "ai request failed")
	}
}
