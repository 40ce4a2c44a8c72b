package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jsamuelsen/quotes-api/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
)

// limiterIdleTTL is how long a client's bucket survives without requests.
const limiterIdleTTL = 10 * time.Minute

// RateLimitConfig configures per-client throttling.
type RateLimitConfig struct {
	// RPS is the sustained number of requests per second per client IP.
	RPS float64

	// Burst is the bucket size per client IP.
	Burst int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters holds one token bucket per client IP.
type clientLimiters struct {
	mu      sync.Mutex
	cfg     RateLimitConfig
	clients map[string]*clientLimiter
	now     func() time.Time
	swept   time.Time
}

func newClientLimiters(cfg RateLimitConfig, now func() time.Time) *clientLimiters {
	return &clientLimiters{
		cfg:     cfg,
		clients: make(map[string]*clientLimiter),
		now:     now,
		swept:   now(),
	}
}

// reserve takes a token for key. When none is available it returns false
// and how long the client should wait.
func (l *clientLimiters) reserve(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	cl, ok := l.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)}
		l.clients[key] = cl
	}

	cl.lastSeen = now

	r := cl.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}

	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}

	return true, 0
}

// sweep drops idle buckets at most once per TTL. Must hold mu.
func (l *clientLimiters) sweep(now time.Time) {
	if now.Sub(l.swept) < limiterIdleTTL {
		return
	}

	for key, cl := range l.clients {
		if now.Sub(cl.lastSeen) >= limiterIdleTTL {
			delete(l.clients, key)
		}
	}

	l.swept = now
}

// RateLimit rejects requests beyond cfg per client IP with 429 and a
// Retry-After header. Internal /-/ paths are never limited.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	limiters := newClientLimiters(cfg, time.Now)

	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/-/") {
			c.Next()
			return
		}

		allowed, wait := limiters.reserve(c.ClientIP())
		if allowed {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		logging.FromContext(ctx).WarnContext(ctx, "rate limit exceeded",
			slog.String("client_ip", c.ClientIP()),
			slog.Duration("retry_after", wait),
		)

		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		dto.AbortWithCode(c, dto.ErrorCodeRateLimited, http.StatusText(http.StatusTooManyRequests))
	}
}
