package rest

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const RequestIDKey = "X-Request-ID"

// requestID берёт X-Request-ID клиента или выдаёт новый ULID.
func requestID() fiber.Handler {
	entropy := ulid.Monotonic(rand.Reader, 0)
	var mu sync.Mutex

	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDKey)
		if id == "" {
			mu.Lock()
			id = ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
			mu.Unlock()
		}
		c.Locals(RequestIDKey, id)
		c.Set(RequestIDKey, id)
		return c.Next()
	}
}

// RequestIDFrom возвращает идентификатор запроса, выданный middleware.
func RequestIDFrom(c *fiber.Ctx) string {
	id, ok := c.Locals(RequestIDKey).(string)
	if !ok || id == "" {
		return "unknown"
	}
	return id
}

// limiterIdle: через столько без запросов лимитер IP удаляется.
const limiterIdle = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	bucket    map[string]*visitor
	rate      rate.Limit
	burstSize int
	idle      time.Duration
	lastPrune time.Time
	mutex     sync.Mutex
	now       func() time.Time
	log       logrus.FieldLogger
}

func newRateLimiter(reqRate float64, burst int, log logrus.FieldLogger) *rateLimiter {
	idle := limiterIdle
	// не короче полного восстановления корзины
	if refill := time.Duration(float64(burst) / reqRate * float64(time.Second)); refill > idle {
		idle = refill
	}
	return &rateLimiter{
		bucket:    make(map[string]*visitor),
		rate:      rate.Limit(reqRate),
		burstSize: burst,
		idle:      idle,
		lastPrune: time.Now(),
		now:       time.Now,
		log:       log,
	}
}

func (r *rateLimiter) limiterFor(ip string) *rate.Limiter {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.now()
	if now.Sub(r.lastPrune) >= r.idle {
		r.prune(now)
	}

	v, ok := r.bucket[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(r.rate, r.burstSize)}
		r.bucket[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// prune удаляет лимитеры, простоявшие дольше idle. Вызывается под mutex.
func (r *rateLimiter) prune(now time.Time) int {
	removed := 0
	for ip, v := range r.bucket {
		if now.Sub(v.lastSeen) >= r.idle {
			delete(r.bucket, ip)
			removed++
		}
	}
	r.lastPrune = now
	if removed > 0 {
		r.log.WithField("limiters", removed).Debug("idle rate limiters pruned")
	}
	return removed
}

func (r *rateLimiter) size() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.bucket)
}

// handler ограничивает частоту запросов с одного IP.
func (r *rateLimiter) handler(c *fiber.Ctx) error {
	ip := c.IP()
	if !r.limiterFor(ip).Allow() {
		r.log.WithFields(logrus.Fields{
			"request_id": RequestIDFrom(c),
			"ip":         ip,
		}).Warn("too many requests")
		return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
			Error:     "too_many_requests",
			Detail:    "rate limit exceeded",
			RequestID: RequestIDFrom(c),
		})
	}
	return c.Next()
}

// accessLog пишет строку журнала на каждый запрос; тело запроса не логируется.
func accessLog(log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		entry := log.WithFields(logrus.Fields{
			"request_id":    RequestIDFrom(c),
			"method":        c.Method(),
			"path":          c.Path(),
			"status":        status,
			"latency_ms":    time.Since(start).Milliseconds(),
			"ip":            c.IP(),
			"request_size":  len(c.Request().Body()),
			"response_size": len(c.Response().Body()),
		})
		switch {
		case status >= 500:
			entry.Error("server error")
		case status >= 400:
			entry.Warn("client error")
		default:
			entry.Info("request served")
		}
		return err
	}
}
