package model

// AssociateCounts 按状态统计的协作者数量
type AssociateCounts struct {
	Pending  int `json:"pending"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// DashboardSummary 租户维度的概览统计
type DashboardSummary struct {
	Projects     int             `json:"projects"`
	Contracts    int             `json:"contracts"`
	OpenDisputes int             `json:"openDisputes"`
	Associates   AssociateCounts `json:"associates"`
}

// Page 分页结果
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

// NewPage 计算总页数，pages = ceil(total/limit)
func NewPage[T any](items []T, total, page, limit int) Page[T] {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Page: page, Pages: pages}
}
