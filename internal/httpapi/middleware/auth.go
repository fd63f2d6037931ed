package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lazycook/chat-platform/internal/auth"
	"github.com/lazycook/chat-platform/internal/common"
	"github.com/lazycook/chat-platform/internal/models"
	"github.com/lazycook/chat-platform/internal/plan"
	"gorm.io/gorm"
)

const (
	UserIDKey = "user_id"
	UserKey   = "user"

	// PlanHeader carries the plan the client believes it is on.
	PlanHeader = "X-Plan"
)

// AuthRequired validates the bearer token and stores the user id.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			common.Abort(c, http.StatusUnauthorized, 40101, "missing authorization header")
			return
		}
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			common.Abort(c, http.StatusUnauthorized, 40102, "invalid authorization header")
			return
		}

		claims, err := auth.ParseJWT(strings.TrimSpace(parts[1]), secret)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				common.Abort(c, http.StatusUnauthorized, 40103, "token expired")
				return
			}
			common.Abort(c, http.StatusUnauthorized, 40104, "invalid token")
			return
		}
		uid, _ := claims.UserID()
		c.Set(UserIDKey, uid)
		c.Next()
	}
}

// LoadUser reads the caller's row so handlers see the plan on record, not
// the one in the token. A client whose X-Plan disagrees must sign in again.
func LoadUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := UserID(c)
		if !ok {
			common.Abort(c, http.StatusUnauthorized, 40101, "unauthorized")
			return
		}

		var u models.User
		if err := db.WithContext(c.Request.Context()).First(&u, uid).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				common.Abort(c, http.StatusUnauthorized, 40105, "user not found")
				return
			}
			common.Abort(c, http.StatusInternalServerError, 50001, "db error")
			return
		}

		if v := strings.TrimSpace(c.GetHeader(PlanHeader)); v != "" {
			claimed, err := plan.ParsePlan(v)
			if err != nil || claimed != u.Plan {
				common.Abort(c, http.StatusUnauthorized, 40106, "plan changed, sign in again")
				return
			}
		}

		c.Set(UserKey, &u)
		c.Next()
	}
}

func UserID(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}
