package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPage(t *testing.T) {
	const limit = 10
	tests := []struct {
		total int
		pages int
	}{
		{0, 0},
		{1, 1},
		{limit, 1},
		{limit + 1, 2},
		{95, 10},
	}
	for _, tt := range tests {
		p := NewPage[int](nil, tt.total, 1, limit)
		assert.Equal(t, tt.pages, p.Pages, "total=%d", tt.total)
		assert.NotNil(t, p.Items)
	}
}

func TestAccountJSONHidesSecrets(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	acc := &Account{
		ID:                  1,
		Email:               "a@x.com",
		PasswordHash:        "hash",
		VerificationCode:    "1234",
		VerificationExpires: &exp,
		ResetToken:          "tok",
		Roles:               []Role{RoleUser},
	}
	data, err := json.Marshal(acc)
	require.NoError(t, err)

	s := string(data)
	assert.NotContains(t, s, "hash")
	assert.NotContains(t, s, "1234")
	assert.NotContains(t, s, "tok")
	assert.Contains(t, s, `"email":"a@x.com"`)
}

func TestAccountVerificationValid(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	acc := &Account{VerificationCode: "4321", VerificationExpires: &future}
	matched, expired := acc.VerificationValid("4321", now)
	assert.True(t, matched)
	assert.False(t, expired)

	matched, _ = acc.VerificationValid("0000", now)
	assert.False(t, matched)

	acc.VerificationExpires = &past
	matched, expired = acc.VerificationValid("4321", now)
	assert.True(t, matched)
	assert.True(t, expired)

	empty := &Account{}
	matched, _ = empty.VerificationValid("", now)
	assert.False(t, matched)
}

func TestAccountPrimaryRole(t *testing.T) {
	assert.Equal(t, RoleUser, (&Account{Roles: []Role{RoleUser}}).PrimaryRole())
	assert.Equal(t, RoleAdmin, (&Account{Roles: []Role{RoleUser, RoleAdmin}}).PrimaryRole())
}

func TestContractMergeShares(t *testing.T) {
	c := &Contract{Associates: []ContractShare{{Email: "a@x.com"}}}
	added := c.MergeShares([]ContractShare{
		{Email: "A@x.com"},
		{Email: "b@x.com"},
		{Email: "b@x.com"},
	})
	require.Len(t, added, 1)
	assert.Equal(t, "b@x.com", added[0].Email)
	assert.Len(t, c.Associates, 2)
}

func TestDocumentTypeOf(t *testing.T) {
	assert.Equal(t, DocumentTypePDF, DocumentTypeOf("evidence.PDF"))
	assert.Equal(t, DocumentTypeImage, DocumentTypeOf("photo.jpeg"))
	assert.Equal(t, DocumentTypeDoc, DocumentTypeOf("notes.docx"))
	assert.Equal(t, DocumentTypeDoc, DocumentTypeOf("README"))
}

func TestProjectHasClient(t *testing.T) {
	p := &Project{Clients: []ProjectClient{{Name: "A", Email: "a@x.com"}}}
	assert.True(t, p.HasClient("a@x.com"))
	assert.False(t, p.HasClient("b@x.com"))
}

func TestNewSmartContract(t *testing.T) {
	now := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	c := NewSmartContract(7, "Build", decimal.RequireFromString("10.005"), now)
	assert.Equal(t, 10.01, c.TotalAmount)
	assert.Equal(t, c.TotalAmount, c.Budget)
	assert.True(t, c.Total().Equal(c.Remaining()))
	assert.Zero(t, c.BudgetDetails.SpentAmount)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), c.EndDate)

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"smartContractId":0`)
	assert.Contains(t, string(data), `"tags":[]`)
}
