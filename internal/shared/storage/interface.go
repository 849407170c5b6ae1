package storage

import (
	"context"
	"time"

	"pocketfiler/internal/shared/model"
)

// Collection 名称常量，同时作为序列号计数器的 key
const (
	CollectionAccounts       = "accounts"
	CollectionAssociates     = "associates"
	CollectionContracts      = "contracts"
	CollectionDisputes       = "disputes"
	CollectionProjects       = "projects"
	CollectionSmartContracts = "smart_contracts"
	CollectionSubscriptions  = "subscriptions"
)

// Collections 所有使用序列号的集合
var Collections = []string{
	CollectionAccounts,
	CollectionAssociates,
	CollectionContracts,
	CollectionDisputes,
	CollectionProjects,
	CollectionSmartContracts,
	CollectionSubscriptions,
}

// Sequencer 按集合分配递增的整数 ID
//
// 每个集合独立计数；空集合返回 1。ID 只保证单调递增，不保证连续。
type Sequencer interface {
	NextID(ctx context.Context, collection string) (int64, error)
}

// AccountStore 账号存储
type AccountStore interface {
	// CreateAccount 分配 ID 并写入，邮箱重复返回 ErrDuplicate
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	GetAccountByResetToken(ctx context.Context, token string) (*model.Account, error)
	UpdateAccount(ctx context.Context, account *model.Account) error
}

// AssociateStore 协作者存储
type AssociateStore interface {
	CreateAssociate(ctx context.Context, associate *model.Associate) error
	GetAssociate(ctx context.Context, id int64) (*model.Associate, error)
	GetAssociateByToken(ctx context.Context, token string) (*model.Associate, error)
	ListAssociates(ctx context.Context, filter AssociateFilter) ([]*model.Associate, int, error)
	// TransitionAssociate 仅当当前状态为 from 时更新为 to，否则返回 ErrConflict
	TransitionAssociate(ctx context.Context, id int64, from, to model.AssociateStatus, at time.Time) (*model.Associate, error)
	DeleteAssociate(ctx context.Context, id int64) error
}

// ContractStore 合同存储
type ContractStore interface {
	CreateContract(ctx context.Context, contract *model.Contract) error
	GetContract(ctx context.Context, id int64) (*model.Contract, error)
	ListContracts(ctx context.Context, filter ContractFilter) ([]*model.Contract, int, error)
	// SetContractFile 记录文件存储 key 和访问地址
	SetContractFile(ctx context.Context, id int64, fileKey, fileRef string) (*model.Contract, error)
	SetContractSignature(ctx context.Context, id int64, signatureRef string) (*model.Contract, error)
	// ShareContract 按邮箱去重追加分享对象，返回更新后的合同和实际新增的记录
	ShareContract(ctx context.Context, id int64, shares []model.ContractShare) (*model.Contract, []model.ContractShare, error)
}

// DisputeStore 争议存储
type DisputeStore interface {
	CreateDispute(ctx context.Context, dispute *model.Dispute) error
	GetDispute(ctx context.Context, id int64) (*model.Dispute, error)
	ListDisputes(ctx context.Context, filter DisputeFilter) ([]*model.Dispute, int, error)
	// AppendDisputeMessage 仅对 Open 状态生效，终态返回 ErrConflict
	AppendDisputeMessage(ctx context.Context, id int64, msg model.DisputeMessage) (*model.Dispute, error)
	AppendDisputeDocuments(ctx context.Context, id int64, docs []model.DisputeDocument) (*model.Dispute, error)
	TransitionDispute(ctx context.Context, id int64, from, to model.DisputeStatus, at time.Time) (*model.Dispute, error)
}

// ProjectStore 项目存储
type ProjectStore interface {
	CreateProject(ctx context.Context, project *model.Project) error
	GetProject(ctx context.Context, id int64) (*model.Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]*model.Project, int, error)
	AppendProjectDocuments(ctx context.Context, id int64, docs []model.ProjectDocument) (*model.Project, error)
	AppendProjectActivity(ctx context.Context, id int64, activity model.ProjectActivity) (*model.Project, error)
	// AddProjectClient 同邮箱客户已存在时返回 ErrDuplicate
	AddProjectClient(ctx context.Context, id int64, client model.ProjectClient) (*model.Project, error)
	RemoveProjectClient(ctx context.Context, id int64, email string) (*model.Project, error)
	AppendProjectMessage(ctx context.Context, id int64, msg model.ProjectMessage) (*model.Project, error)
}

// SmartContractStore 智能合同存储
type SmartContractStore interface {
	CreateSmartContract(ctx context.Context, contract *model.SmartContract) error
	GetSmartContract(ctx context.Context, id int64) (*model.SmartContract, error)
	ListSmartContracts(ctx context.Context, filter SmartContractFilter) ([]*model.SmartContract, int, error)
}

// SubscriptionStore 订阅存储
type SubscriptionStore interface {
	// CreateSubscription 同一用户已有 Active 订阅时返回 ErrDuplicate
	CreateSubscription(ctx context.Context, sub *model.Subscription) error
	GetSubscription(ctx context.Context, id int64) (*model.Subscription, error)
	GetActiveSubscription(ctx context.Context, userID int64) (*model.Subscription, error)
	// MarkSubscriptionPaid 仅当 Active 且 Unpaid 时生效，否则返回 ErrConflict
	MarkSubscriptionPaid(ctx context.Context, id int64, reference string, at time.Time) (*model.Subscription, error)
	TransitionSubscription(ctx context.Context, id int64, from, to model.SubscriptionStatus, at time.Time) (*model.Subscription, error)
	ListExpiredSubscriptions(ctx context.Context, now time.Time, limit int) ([]*model.Subscription, error)
}

// SummaryStore 概览统计
type SummaryStore interface {
	Summary(ctx context.Context, ownerID int64) (*model.DashboardSummary, error)
}

// Store 持久化存储组合接口
type Store interface {
	Sequencer
	AccountStore
	AssociateStore
	ContractStore
	DisputeStore
	ProjectStore
	SmartContractStore
	SubscriptionStore
	SummaryStore
	Ping(ctx context.Context) error
	Close() error
}
