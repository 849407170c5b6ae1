package repository

import (
	"context"

	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
)

var accounts = table[model.Account]{
	name:    storage.CollectionAccounts,
	columns: []string{"email", "reset_token", "created_at"},
	values: func(a *model.Account) []interface{} {
		return []interface{}{a.Email, nullable(a.ResetToken), millis(a.CreatedAt)}
	},
	setID: func(a *model.Account, id int64) { a.ID = id },
}

// CreateAccount 创建账号，邮箱重复返回 storage.ErrDuplicate
func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	return insert(ctx, s, accounts, account)
}

func (s *Store) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	return getByID(ctx, s, accounts, id)
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	var w where
	w.add("email = $%d", email)
	return getOne(ctx, s, accounts, w)
}

func (s *Store) GetAccountByResetToken(ctx context.Context, token string) (*model.Account, error) {
	if token == "" {
		return nil, storage.ErrNotFound
	}
	var w where
	w.add("reset_token = $%d", token)
	return getOne(ctx, s, accounts, w)
}

// UpdateAccount 覆盖可变字段，邮箱和创建时间保持不变
func (s *Store) UpdateAccount(ctx context.Context, account *model.Account) error {
	_, err := mutate(ctx, s, accounts, account.ID, func(cur *model.Account) error {
		cur.FullName = account.FullName
		cur.Username = account.Username
		cur.OrganizationName = account.OrganizationName
		cur.ContactNumber = account.ContactNumber
		cur.PasswordHash = account.PasswordHash
		cur.Roles = account.Roles
		cur.IsEmailVerified = account.IsEmailVerified
		cur.VerificationCode = account.VerificationCode
		cur.VerificationExpires = account.VerificationExpires
		cur.VerificationAttempts = account.VerificationAttempts
		cur.ResetToken = account.ResetToken
		cur.ResetExpires = account.ResetExpires
		cur.UpdatedAt = account.UpdatedAt
		return nil
	})
	return err
}
