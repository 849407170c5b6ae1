package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PlanType string

const (
	PlanFree     PlanType = "Free"
	PlanPro      PlanType = "Pro"
	PlanUltimate PlanType = "Ultimate"
)

type BillingCycle string

const (
	BillingMonthly BillingCycle = "Monthly"
	BillingYearly  BillingCycle = "Yearly"
)

// SubscriptionStatus 订阅状态
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "Active"
	SubscriptionStatusCancelled SubscriptionStatus = "Cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "Expired"
)

// PaymentStatus 支付状态，与订阅状态正交
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "Unpaid"
	PaymentStatusPaid   PaymentStatus = "Paid"
)

// DefaultCurrency 订阅计费币种
const DefaultCurrency = "USD"

var planPrices = map[PlanType]map[BillingCycle]decimal.Decimal{
	PlanFree:     {BillingMonthly: decimal.Zero, BillingYearly: decimal.Zero},
	PlanPro:      {BillingMonthly: decimal.NewFromInt(15), BillingYearly: decimal.NewFromInt(150)},
	PlanUltimate: {BillingMonthly: decimal.NewFromInt(30), BillingYearly: decimal.NewFromInt(300)},
}

// PlanPrice 返回套餐价格，未知套餐或周期返回 false
func PlanPrice(plan PlanType, cycle BillingCycle) (decimal.Decimal, bool) {
	byCycle, ok := planPrices[plan]
	if !ok {
		return decimal.Zero, false
	}
	price, ok := byCycle[cycle]
	return price, ok
}

// PeriodEnd 计算一个计费周期的结束时间
func (c BillingCycle) PeriodEnd(start time.Time) time.Time {
	if c == BillingYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

// Subscription 订阅
type Subscription struct {
	ID               int64              `json:"id" bson:"id"`
	UserID           int64              `json:"userId" bson:"user_id"`
	PlanType         PlanType           `json:"planType" bson:"plan_type"`
	BillingCycle     BillingCycle       `json:"billingCycle" bson:"billing_cycle"`
	Status           SubscriptionStatus `json:"status" bson:"status"`
	PaymentStatus    PaymentStatus      `json:"paymentStatus" bson:"payment_status"`
	PaymentAmount    float64            `json:"paymentAmount" bson:"payment_amount"`
	PaymentCurrency  string             `json:"paymentCurrency" bson:"payment_currency"`
	PaymentReference string             `json:"paymentReference,omitempty" bson:"payment_reference,omitempty"`
	AutoRenew        bool               `json:"autoRenew" bson:"auto_renew"`
	StartDate        time.Time          `json:"startDate" bson:"start_date"`
	EndDate          time.Time          `json:"endDate" bson:"end_date"`
	NextBillingDate  time.Time          `json:"nextBillingDate" bson:"next_billing_date"`
	PaidAt           *time.Time         `json:"paidAt,omitempty" bson:"paid_at,omitempty"`
	CancelledAt      *time.Time         `json:"cancelledAt,omitempty" bson:"cancelled_at,omitempty"`
	CreatedAt        time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt        time.Time          `json:"updatedAt" bson:"updated_at"`
}

// Amount 返回应付金额
func (s *Subscription) Amount() decimal.Decimal {
	return decimal.NewFromFloat(s.PaymentAmount)
}

// NewSubscription 按套餐和周期创建一个 Active/Unpaid 订阅
func NewSubscription(userID int64, plan PlanType, cycle BillingCycle, autoRenew bool, now time.Time) (*Subscription, bool) {
	price, ok := PlanPrice(plan, cycle)
	if !ok {
		return nil, false
	}
	end := cycle.PeriodEnd(now)
	return &Subscription{
		UserID:          userID,
		PlanType:        plan,
		BillingCycle:    cycle,
		Status:          SubscriptionStatusActive,
		PaymentStatus:   PaymentStatusUnpaid,
		PaymentAmount:   price.InexactFloat64(),
		PaymentCurrency: DefaultCurrency,
		AutoRenew:       autoRenew,
		StartDate:       now,
		EndDate:         end,
		NextBillingDate: end,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, true
}
