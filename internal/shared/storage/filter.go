package storage

import (
	"time"

	"pocketfiler/internal/shared/model"
)

// OwnerID 为 0 表示不限租户（管理员视角）

// AssociateFilter 协作者查询条件
type AssociateFilter struct {
	OwnerID int64
	Status  model.AssociateStatus
	Limit   int
	Offset  int
}

// ContractFilter 合同查询条件
type ContractFilter struct {
	OwnerID int64
	Limit   int
	Offset  int
}

// SmartContractFilter 智能合同查询条件
type SmartContractFilter struct {
	OwnerID int64
	Limit   int
	Offset  int
}

// DisputeFilter 争议查询条件
type DisputeFilter struct {
	OwnerID int64
	UserID  int64
	Status  model.DisputeStatus
	Limit   int
	Offset  int
}

// ProjectFilter 项目查询条件
//
// Search 为标题的大小写不敏感子串（按字面匹配）；
// Since/Until 限定 date 在 [Since, Until) 区间。
type ProjectFilter struct {
	OwnerID int64
	Search  string
	Since   time.Time
	Until   time.Time
	Limit   int
	Offset  int
}
