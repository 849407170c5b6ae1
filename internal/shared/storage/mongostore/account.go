package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
)

// ============================================================================
// AccountStore
// ============================================================================

func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	return create(ctx, s, ColAccounts, account, func(id int64) { account.ID = id })
}

func (s *Store) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	return findOne[model.Account](ctx, s.col(ColAccounts), byID(id))
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return findOne[model.Account](ctx, s.col(ColAccounts), bson.D{{Key: "email", Value: email}})
}

func (s *Store) GetAccountByResetToken(ctx context.Context, token string) (*model.Account, error) {
	if token == "" {
		return nil, storage.ErrNotFound
	}
	return findOne[model.Account](ctx, s.col(ColAccounts), bson.D{{Key: "reset_token", Value: token}})
}

// UpdateAccount 整体替换可变字段（邮箱和 ID 不变）
func (s *Store) UpdateAccount(ctx context.Context, account *model.Account) error {
	fields := bson.D{
		{Key: "full_name", Value: account.FullName},
		{Key: "contact_number", Value: account.ContactNumber},
		{Key: "password_hash", Value: account.PasswordHash},
		{Key: "roles", Value: account.Roles},
		{Key: "is_email_verified", Value: account.IsEmailVerified},
		{Key: "updated_at", Value: account.UpdatedAt},
	}
	unset := bson.D{}
	optional := func(key string, value interface{}, present bool) {
		if present {
			fields = append(fields, bson.E{Key: key, Value: value})
		} else {
			unset = append(unset, bson.E{Key: key, Value: ""})
		}
	}
	optional("verification_code", account.VerificationCode, account.VerificationCode != "")
	optional("verification_expires", account.VerificationExpires, account.VerificationExpires != nil)
	optional("verification_attempts", account.VerificationAttempts, account.VerificationAttempts > 0)
	optional("username", account.Username, account.Username != "")
	optional("organization_name", account.OrganizationName, account.OrganizationName != "")
	optional("reset_token", account.ResetToken, account.ResetToken != "")
	optional("reset_expires", account.ResetExpires, account.ResetExpires != nil)

	update := bson.D{set(fields)}
	if len(unset) > 0 {
		// reset_token 是稀疏唯一索引，清空时必须删除字段而不是置空
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}

	res, err := s.col(ColAccounts).UpdateOne(ctx, byID(account.ID), update)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
