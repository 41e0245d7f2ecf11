package middleware

import (
	"net/http"
	"sync"
	"time"

	"clinicslots/pkg/auth"
	"clinicslots/pkg/logger"

	"golang.org/x/time/rate"
)

type holderLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// HolderRateLimiter keeps one token bucket per holder so a single session
// cannot hammer hold/release in a loop.
type HolderRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*holderLimiter
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	log      *logger.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewHolderRateLimiter(perSecond float64, burst int, log *logger.Logger) *HolderRateLimiter {
	rl := &HolderRateLimiter{
		limiters: make(map[string]*holderLimiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		log:      log,
		stopCh:   make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

func (rl *HolderRateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for holder, l := range rl.limiters {
				if time.Since(l.lastSeen) > rl.idleTTL {
					delete(rl.limiters, holder)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *HolderRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *HolderRateLimiter) Allow(holder string) bool {
	if holder == "" {
		return true
	}

	rl.mu.Lock()
	l, ok := rl.limiters[holder]
	if !ok {
		l = &holderLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[holder] = l
	}
	l.lastSeen = time.Now()
	rl.mu.Unlock()

	return l.limiter.Allow()
}

// HolderRateLimit must run after Authenticate. Requests without a holder
// pass through.
func HolderRateLimit(limiter *HolderRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			holder, _ := auth.HolderFromContext(r.Context())
			if !limiter.Allow(holder) {
				limiter.log.Warn("Rate limit exceeded",
					"request_id", requestID(r),
					"holder", holder,
					"path", r.URL.Path,
				)
				writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
