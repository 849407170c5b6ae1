package model

import (
	"slices"
	"time"
)

// Role 账号角色
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Account 组织/用户账号
type Account struct {
	ID                   int64      `json:"id" bson:"id"`
	FullName             string     `json:"fullName" bson:"full_name"`
	Username             string     `json:"username,omitempty" bson:"username,omitempty"`
	OrganizationName     string     `json:"organizationName,omitempty" bson:"organization_name,omitempty"`
	Email                string     `json:"email" bson:"email"`
	ContactNumber        string     `json:"contactNumber,omitempty" bson:"contact_number,omitempty"`
	PasswordHash         string     `json:"-" bson:"password_hash"`
	Roles                []Role     `json:"roles" bson:"roles"`
	IsEmailVerified      bool       `json:"isEmailVerified" bson:"is_email_verified"`
	VerificationCode     string     `json:"-" bson:"verification_code,omitempty"`
	VerificationExpires  *time.Time `json:"-" bson:"verification_expires,omitempty"`
	// VerificationAttempts 当前验证码的失败次数，重发验证码时清零
	VerificationAttempts int        `json:"-" bson:"verification_attempts,omitempty"`
	ResetToken           string     `json:"-" bson:"reset_token,omitempty"`
	ResetExpires         *time.Time `json:"-" bson:"reset_expires,omitempty"`
	CreatedAt            time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt            time.Time  `json:"updatedAt" bson:"updated_at"`
}

// IsOrganization 以组织身份注册的账号
func (a *Account) IsOrganization() bool {
	return a.OrganizationName != ""
}

// HasRole 是否拥有指定角色
func (a *Account) HasRole(role Role) bool {
	return slices.Contains(a.Roles, role)
}

// PrimaryRole 用于 JWT 的角色声明
func (a *Account) PrimaryRole() Role {
	if a.HasRole(RoleAdmin) {
		return RoleAdmin
	}
	return RoleUser
}

// VerificationValid 验证码是否匹配且未过期
func (a *Account) VerificationValid(code string, now time.Time) (matched, expired bool) {
	if a.VerificationCode == "" || a.VerificationCode != code {
		return false, false
	}
	if a.VerificationExpires == nil || now.After(*a.VerificationExpires) {
		return true, true
	}
	return true, false
}
