package httpapi

import (
	"math"
	"net/http"
	"strconv"

	"pocketfiler/internal/shared/apperr"
)

// 分页默认值
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage 保证 (Page-1)*Limit 不溢出
	MaxPage = math.MaxInt32 / MaxLimit
)

// Pagination 分页参数
type Pagination struct {
	Page  int
	Limit int
}

// Offset 对应的跳过条数
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ParsePagination 解析 ?page=&limit=
//
// 缺省为 1/10，limit 超过上限时截断为 100；非正整数或 page 超过 MaxPage 返回 400。
func ParsePagination(r *http.Request) (Pagination, error) {
	p := Pagination{Page: DefaultPage, Limit: DefaultLimit}
	q := r.URL.Query()

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxPage {
			return p, apperr.Validation("Invalid page.")
		}
		p.Page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, apperr.Validation("Invalid limit.")
		}
		p.Limit = min(n, MaxLimit)
	}
	return p, nil
}

// PathID 解析路径参数中的数字 ID
func PathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.Validation("Invalid %s.", name)
	}
	return id, nil
}

// QueryID 解析可选的数字查询参数，缺省返回 0
func QueryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.Validation("Invalid %s.", name)
	}
	return id, nil
}
