package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pocketfiler/internal/apiserver/httpapi"
	"pocketfiler/internal/shared/apperr"
)

// Limiter 固定窗口计数限流
type Limiter interface {
	// Allow 计数加一，超过 limit 时返回 false
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RedisLimiter 基于 INCR + EXPIRE 的多实例共享限流
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLimiter 创建 Redis 限流器
func NewRedisLimiter(client redis.UniversalClient) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "ratelimit:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := l.prefix + key
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	// 窗口内第一次计数时设置过期
	if n == 1 {
		if err := l.client.Expire(ctx, k, window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire %s: %w", key, err)
		}
	}
	return n <= int64(limit), nil
}

// MemoryLimiter 单实例进程内限流，未启用 Redis 时使用
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

// NewMemoryLimiter 创建进程内限流器
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string]*window), now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, win time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(win)}
		l.windows[key] = w
		l.sweep(now)
	}
	w.count++
	return w.count <= limit, nil
}

// sweep 清理已过期窗口，避免 key 无限增长
func (l *MemoryLimiter) sweep(now time.Time) {
	if len(l.windows) < 1024 {
		return
	}
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
}

// RateLimit 按客户端 IP 限制每分钟请求数
//
// limit <= 0 表示不限流。限流器故障时放行，只记录日志。
func RateLimit(limiter Limiter, ips *IPResolver, name string, limit int) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		if limiter == nil || limit <= 0 {
			return next
		}
		return func(w http.ResponseWriter, r *http.Request) {
			key := name + ":" + ips.ClientIP(r)
			ok, err := limiter.Allow(r.Context(), key, limit, time.Minute)
			if err != nil {
				log.WithContext(r.Context()).WithError(err).Warn("rate limiter unavailable", "key", key)
			} else if !ok {
				w.Header().Set("Retry-After", "60")
				httpapi.WriteError(w, r, apperr.RateLimited("Too many requests. Please try again later."))
				return
			}
			next(w, r)
		}
	}
}

// IPResolver 解析客户端 IP，只在直连地址属于可信代理时读取代理头
type IPResolver struct {
	trusted []netip.Prefix
}

// NewIPResolver proxies 为 IP 或 CIDR 列表，为空时始终使用 RemoteAddr
func NewIPResolver(proxies []string) (*IPResolver, error) {
	res := &IPResolver{}
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.Contains(p, "/") {
			prefix, err := netip.ParsePrefix(p)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", p, err)
			}
			res.trusted = append(res.trusted, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(p)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", p, err)
		}
		addr = addr.Unmap()
		res.trusted = append(res.trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return res, nil
}

func (res *IPResolver) isTrusted(ip string) bool {
	if res == nil {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range res.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP 客户端地址
//
// 直连地址不是可信代理时忽略 X-Forwarded-For / X-Real-IP。
// X-Forwarded-For 从右向左跳过可信代理，取第一个不可信的地址。
func (res *IPResolver) ClientIP(r *http.Request) string {
	remote := remoteHost(r)
	if !res.isTrusted(remote) {
		return remote
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !res.isTrusted(hop) || i == 0 {
				return hop
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return remote
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
