// Package httpapi HTTP 处理器的公共工具：响应写入、请求解析与校验、分页参数
package httpapi

import (
	"encoding/json"
	"net/http"

	"pocketfiler/internal/shared/apperr"
	"pocketfiler/pkg/logging"
)

var log = logging.Default("httpapi")

// ErrorBody 错误响应体
type ErrorBody struct {
	Message string `json:"message"`
}

// WriteJSON 将数据以 JSON 格式写入 HTTP 响应
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteMessage 写入 {"message": ...}
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorBody{Message: message})
}

// WriteError 按错误类别写入响应
//
// 对外只暴露 apperr.Error 的 Message，底层原因写入日志。
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.StatusOf(err)
	if status >= http.StatusInternalServerError {
		log.WithContext(r.Context()).WithError(err).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "status", status)
	} else {
		log.WithContext(r.Context()).Debug("request rejected",
			"method", r.Method, "path", r.URL.Path, "status", status, "error", err.Error())
	}
	WriteMessage(w, status, apperr.MessageOf(err))
}

// NoContent 204
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
