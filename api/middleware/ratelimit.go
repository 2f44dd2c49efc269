package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anoixa/image-scraper/api/common"
	"github.com/anoixa/image-scraper/utils"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter 按客户端 IP 限流
type IPRateLimiter struct {
	rps        float64
	burst      int
	expireTime time.Duration

	mu       sync.Mutex
	clients  map[string]*clientLimiter
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter 创建限流器并启动过期清理
func NewIPRateLimiter(rps float64, burst int, expireTime time.Duration) *IPRateLimiter {
	if burst < 1 {
		burst = 1
	}
	if expireTime <= 0 {
		expireTime = 10 * time.Minute
	}
	rl := &IPRateLimiter{
		rps:        rps,
		burst:      burst,
		expireTime: expireTime,
		clients:    make(map[string]*clientLimiter),
		stopChan:   make(chan struct{}),
	}
	utils.SafeGo("ratelimit-cleanup", rl.cleanupStaleClients)
	return rl
}

// Allow 判断 ip 当前是否允许请求
func (rl *IPRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	client, ok := rl.clients[ip]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst)}
		rl.clients[ip] = client
	}
	client.lastSeen = time.Now()
	return client.limiter.Allow()
}

// Middleware 超出限制时返回 429
func (rl *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(getClientIP(c)) {
			common.RespondErrorAbort(c, http.StatusTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}

// StopCleanup 停止后台清理，可重复调用
func (rl *IPRateLimiter) StopCleanup() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

func (rl *IPRateLimiter) cleanupStaleClients() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for ip, client := range rl.clients {
				if time.Since(client.lastSeen) > rl.expireTime {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopChan:
			return
		}
	}
}

// getClientIP Get the client's real IP address
func getClientIP(c *gin.Context) string {
	if ip := c.GetHeader("X-Forwarded-For"); ip != "" {
		ips := strings.Split(ip, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}
	return c.ClientIP()
}
