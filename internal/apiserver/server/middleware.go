package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/pkg/logging"
)

// HeaderRequestID 请求 ID 响应头，客户端传入时沿用
const HeaderRequestID = "X-Request-ID"

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// statusRecorder 记录响应状态码供访问日志使用
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

var accessLogger = logging.Default("http")

func accessLog(ips *auth.IPResolver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			return
		}
		accessLogger.WithContext(r.Context()).
			HTTPRequestLog(r.Method, r.URL.Path, rec.status, time.Since(start), ips.ClientIP(r))
	})
}

// cors 添加 CORS 头支持跨域请求，origin 为空时允许任意来源
func cors(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+HeaderRequestID)
			w.Header().Set("Access-Control-Expose-Headers", HeaderRequestID)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
