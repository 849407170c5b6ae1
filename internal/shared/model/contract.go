package model

import (
	"strings"
	"time"
)

// ContractStatusDraft 合同创建时的状态，之后不再变化
const ContractStatusDraft = "Draft"

// ContractShare 合同分享记录
type ContractShare struct {
	Name     string    `json:"name,omitempty" bson:"name,omitempty"`
	Email    string    `json:"email" bson:"email"`
	SharedBy string    `json:"sharedBy" bson:"shared_by"`
	SharedAt time.Time `json:"sharedAt" bson:"shared_at"`
}

// Contract 合同
type Contract struct {
	ID           int64           `json:"id" bson:"id"`
	OwnerID      int64           `json:"ownerId" bson:"owner_id"`
	Name         string          `json:"name" bson:"name"`
	Type         string          `json:"type" bson:"type"`
	Status       string          `json:"status" bson:"status"`
	FileRef      string          `json:"fileRef,omitempty" bson:"file_ref,omitempty"`
	FileKey      string          `json:"-" bson:"file_key,omitempty"`
	SignatureRef string          `json:"signatureRef,omitempty" bson:"signature_ref,omitempty"`
	Associates   []ContractShare `json:"associates" bson:"associates"`
	CreatedAt    time.Time       `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time       `json:"updatedAt" bson:"updated_at"`
}

// MergeShares 按邮箱去重追加分享对象，返回实际新增的记录
func (c *Contract) MergeShares(shares []ContractShare) []ContractShare {
	seen := make(map[string]bool, len(c.Associates))
	for _, s := range c.Associates {
		seen[strings.ToLower(s.Email)] = true
	}
	var added []ContractShare
	for _, s := range shares {
		key := strings.ToLower(s.Email)
		if seen[key] {
			continue
		}
		seen[key] = true
		c.Associates = append(c.Associates, s)
		added = append(added, s)
	}
	return added
}
