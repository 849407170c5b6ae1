package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SmartContract 创建时的默认值
const (
	SmartContractStatusInProgress = "In-Progress"
	DefaultSmartContractType      = "employment"
	DefaultSmartContractDesc      = "Contract description"
	DefaultOrganization           = "Default Organization"
	DefaultPriority               = "Medium"
	DefaultKind                   = "Standard"
)

// Milestone 智能合同里程碑
type Milestone struct {
	Title   string     `json:"title" bson:"title"`
	Amount  float64    `json:"amount" bson:"amount"`
	DueDate *time.Time `json:"dueDate,omitempty" bson:"due_date,omitempty"`
	Status  string     `json:"status,omitempty" bson:"status,omitempty"`
}

// BudgetDetails 预算使用情况
type BudgetDetails struct {
	InitialBudget   float64 `json:"initialBudget" bson:"initial_budget"`
	CurrentBudget   float64 `json:"currentBudget" bson:"current_budget"`
	SpentAmount     float64 `json:"spentAmount" bson:"spent_amount"`
	RemainingBudget float64 `json:"remainingBudget" bson:"remaining_budget"`
}

// SmartContract 带预算和里程碑的合同
type SmartContract struct {
	ID            int64         `json:"smartContractId" bson:"id"`
	OwnerID       int64         `json:"ownerId" bson:"owner_id"`
	Title         string        `json:"title" bson:"title"`
	Description   string        `json:"description" bson:"description"`
	TotalAmount   float64       `json:"totalAmount" bson:"total_amount"`
	Budget        float64       `json:"budget" bson:"budget"`
	Currency      string        `json:"currency" bson:"currency"`
	Status        string        `json:"status" bson:"status"`
	ContractType  string        `json:"contractType" bson:"contract_type"`
	Type          string        `json:"type" bson:"type"`
	Organization  string        `json:"organization" bson:"organization"`
	Priority      string        `json:"priority" bson:"priority"`
	Tags          []string      `json:"tags" bson:"tags"`
	Milestones    []Milestone   `json:"milestones" bson:"milestones"`
	BudgetDetails BudgetDetails `json:"budgetDetails" bson:"budget_details"`
	Progress      int           `json:"progress" bson:"progress"`
	AvatarURL     string        `json:"avatarUrl" bson:"avatar_url"`
	StartDate     time.Time     `json:"startDate" bson:"start_date"`
	EndDate       time.Time     `json:"endDate" bson:"end_date"`
	CreatedAt     time.Time     `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time     `json:"updatedAt" bson:"updated_at"`
}

// Total 返回合同总额
func (c *SmartContract) Total() decimal.Decimal {
	return decimal.NewFromFloat(c.TotalAmount)
}

// Remaining 返回剩余预算
func (c *SmartContract) Remaining() decimal.Decimal {
	return decimal.NewFromFloat(c.BudgetDetails.RemainingBudget)
}

// NewSmartContract 以总额初始化预算，其余字段取默认值，由调用方按需覆盖
func NewSmartContract(ownerID int64, title string, total decimal.Decimal, now time.Time) *SmartContract {
	amount := total.Round(2).InexactFloat64()
	return &SmartContract{
		OwnerID:      ownerID,
		Title:        title,
		Description:  DefaultSmartContractDesc,
		TotalAmount:  amount,
		Budget:       amount,
		Currency:     DefaultCurrency,
		Status:       SmartContractStatusInProgress,
		ContractType: DefaultSmartContractType,
		Type:         DefaultKind,
		Organization: DefaultOrganization,
		Priority:     DefaultPriority,
		Tags:         []string{},
		Milestones:   []Milestone{},
		BudgetDetails: BudgetDetails{
			InitialBudget:   amount,
			CurrentBudget:   amount,
			RemainingBudget: amount,
		},
		StartDate: now,
		EndDate:   now.AddDate(1, 0, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
