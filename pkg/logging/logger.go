// Package logging 结构化日志
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// ContextKey 上下文键类型
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	AccountIDKey ContextKey = "account_id"
)

// Logger 结构化日志器
type Logger struct {
	*slog.Logger
	component string
}

// Config 日志配置
type Config struct {
	Level     string `json:"level"`
	Format    string `json:"format"` // json or text
	Output    string `json:"output"` // stdout, stderr, or file path
	Component string `json:"component"`
}

// ParseLevel 解析日志级别，未知值返回 Info
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New 创建新的日志器
func New(cfg Config) *Logger {
	var output io.Writer
	switch cfg.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			output = os.Stdout
		} else {
			output = f
		}
	}
	return NewWithWriter(cfg, output)
}

// NewWithWriter 写入指定 io.Writer 的日志器（测试中用于捕获输出）
func NewWithWriter(cfg Config, w io.Writer) *Logger {
	level := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		Logger:    slog.New(handler).With(slog.String("component", cfg.Component)),
		component: cfg.Component,
	}
}

// Default 创建默认日志器
func Default(component string) *Logger {
	return New(Config{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    os.Getenv("LOG_FORMAT"),
		Output:    "stdout",
		Component: component,
	})
}

// Discard 丢弃所有输出的日志器
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// Named 派生子组件日志器，共享同一 handler
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		Logger:    l.Logger.With(slog.String("component", component)),
		component: component,
	}
}

// WithRequestID 把请求 ID 放进上下文
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestID 从上下文读取请求 ID
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithAccountID 把当前账号 ID 放进上下文
func WithAccountID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, AccountIDKey, id)
}

// WithContext 从上下文提取追踪信息
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var attrs []any
	if id := RequestID(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if id, ok := ctx.Value(AccountIDKey).(int64); ok && id != 0 {
		attrs = append(attrs, slog.Int64("account_id", id))
	}
	if len(attrs) == 0 {
		return l
	}
	return &Logger{
		Logger:    l.Logger.With(attrs...),
		component: l.component,
	}
}

// WithError 添加错误信息
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{
		Logger:    l.Logger.With(slog.String("error", err.Error())),
		component: l.component,
	}
}

// WithDuration 添加持续时间
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return &Logger{
		Logger:    l.Logger.With(slog.Float64("duration_ms", float64(d.Milliseconds()))),
		component: l.component,
	}
}

// HTTPRequestLog HTTP 请求日志
func (l *Logger) HTTPRequestLog(method, path string, status int, duration time.Duration, clientIP string) {
	attrs := []any{
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
		slog.String("client_ip", clientIP),
	}
	if status >= 500 {
		l.Logger.Error("HTTP request", attrs...)
		return
	}
	l.Logger.Info("HTTP request", attrs...)
}

// SlowQueryThreshold 超过该耗时的查询以 Warn 级别记录
var SlowQueryThreshold = 500 * time.Millisecond

// DBQueryLog 数据库查询日志
func (l *Logger) DBQueryLog(operation, table string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("operation", operation),
		slog.String("table", table),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	}
	switch {
	case err != nil:
		attrs = append(attrs, slog.String("error", err.Error()))
		l.Logger.Error("DB query failed", attrs...)
	case duration >= SlowQueryThreshold:
		l.Logger.Warn("DB query slow", attrs...)
	default:
		l.Logger.Debug("DB query", attrs...)
	}
}

// TransitionLog 生命周期状态变更日志
func (l *Logger) TransitionLog(entity string, id int64, from, to string, extra ...any) {
	attrs := []any{
		slog.String("entity", entity),
		slog.String("id", strconv.FormatInt(id, 10)),
		slog.String("from", from),
		slog.String("to", to),
	}
	attrs = append(attrs, extra...)
	l.Logger.Info("Status transition", attrs...)
}
