package model

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition 状态机不允许的迁移
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError 描述一次被拒绝的状态迁移
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot transition from %s to %s", e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// transitions 状态迁移表：key 为当前状态，value 为允许的目标状态
type transitions[S ~string] map[S][]S

func (t transitions[S]) allows(from, to S) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (t transitions[S]) check(entity string, from, to S) error {
	if t.allows(from, to) {
		return nil
	}
	return &TransitionError{Entity: entity, From: string(from), To: string(to)}
}

var associateTransitions = transitions[AssociateStatus]{
	AssociateStatusPending: {AssociateStatusAccepted, AssociateStatusRejected},
}

var disputeTransitions = transitions[DisputeStatus]{
	DisputeStatusOpen: {DisputeStatusClosed, DisputeStatusWithdrawn},
}

var subscriptionTransitions = transitions[SubscriptionStatus]{
	SubscriptionStatusActive: {SubscriptionStatusCancelled, SubscriptionStatusExpired},
}

var paymentTransitions = transitions[PaymentStatus]{
	PaymentStatusUnpaid: {PaymentStatusPaid},
}

// CheckTransition 校验邀请状态迁移，只有 pending 可以变更
func (s AssociateStatus) CheckTransition(to AssociateStatus) error {
	return associateTransitions.check("associate", s, to)
}

// IsTerminal 是否为终态
func (s AssociateStatus) IsTerminal() bool {
	return len(associateTransitions[s]) == 0
}

// CheckTransition 校验争议状态迁移
func (s DisputeStatus) CheckTransition(to DisputeStatus) error {
	return disputeTransitions.check("dispute", s, to)
}

// IsTerminal Closed/Withdrawn 之后不再接受消息和文件
func (s DisputeStatus) IsTerminal() bool {
	return len(disputeTransitions[s]) == 0
}

// CheckTransition 校验订阅状态迁移
func (s SubscriptionStatus) CheckTransition(to SubscriptionStatus) error {
	return subscriptionTransitions.check("subscription", s, to)
}

// CheckPayment 校验支付状态迁移，仅 Active 订阅可以从 Unpaid 变为 Paid
func (sub *Subscription) CheckPayment(to PaymentStatus) error {
	if sub.Status != SubscriptionStatusActive {
		return &TransitionError{Entity: "subscription payment", From: string(sub.Status), To: string(to)}
	}
	return paymentTransitions.check("subscription payment", sub.PaymentStatus, to)
}
