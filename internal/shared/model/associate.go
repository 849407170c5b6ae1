package model

import "time"

// AssociateStatus 邀请状态
type AssociateStatus string

const (
	AssociateStatusPending  AssociateStatus = "pending"
	AssociateStatusAccepted AssociateStatus = "accepted"
	AssociateStatusRejected AssociateStatus = "rejected"
)

// DefaultAssociateRole 未指定时的协作者角色
const DefaultAssociateRole = "associate"

// Associate 被邀请的协作者
type Associate struct {
	ID              int64           `json:"id" bson:"id"`
	OwnerID         int64           `json:"ownerId" bson:"owner_id"`
	Name            string          `json:"name,omitempty" bson:"name,omitempty"`
	Email           string          `json:"email" bson:"email"`
	Role            string          `json:"role" bson:"role"`
	Status          AssociateStatus `json:"status" bson:"status"`
	InvitationToken string          `json:"-" bson:"invitation_token,omitempty"`
	InvitationLink  string          `json:"invitationLink,omitempty" bson:"invitation_link,omitempty"`
	RespondedAt     *time.Time      `json:"respondedAt,omitempty" bson:"responded_at,omitempty"`
	CreatedAt       time.Time       `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" bson:"updated_at"`
}
