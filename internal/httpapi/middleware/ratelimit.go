package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lazycook/chat-platform/internal/common"
	"golang.org/x/time/rate"
)

const limiterIdle = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserLimiter is a token bucket per user.
type UserLimiter struct {
	mu     sync.Mutex
	rps    rate.Limit
	burst  int
	users  map[uint64]*limiterEntry
	now    func() time.Time
	lastGC time.Time
}

func NewUserLimiter(rps float64, burst int) *UserLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &UserLimiter{
		rps:   rate.Limit(rps),
		burst: burst,
		users: make(map[uint64]*limiterEntry),
		now:   time.Now,
	}
}

func (l *UserLimiter) Allow(userID uint64) bool {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastGC) > limiterIdle {
		for id, e := range l.users {
			if now.Sub(e.lastSeen) > limiterIdle {
				delete(l.users, id)
			}
		}
		l.lastGC = now
	}
	e, ok := l.users[userID]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.users[userID] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// RateLimit must run after AuthRequired. rps <= 0 disables it.
func RateLimit(l *UserLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.rps <= 0 {
			c.Next()
			return
		}
		uid, _ := UserID(c)
		if !l.Allow(uid) {
			c.Header("Retry-After", strconv.Itoa(1))
			common.Abort(c, http.StatusTooManyRequests, 42901, "too many requests")
			return
		}
		c.Next()
	}
}
