// Package storagetest 提供 storage.Store 实现共用的一致性测试
//
// 每个驱动在自己的 _test.go 中调用 Run，传入创建空库的工厂函数。
package storagetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
)

// Factory 返回一个空的、测试结束后自动清理的 Store
type Factory func(t *testing.T) storage.Store

// Run 执行全部一致性测试
func Run(t *testing.T, newStore Factory) {
	t.Run("Sequence", func(t *testing.T) { testSequence(t, newStore) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, newStore) })
	t.Run("Account", func(t *testing.T) { testAccount(t, newStore) })
	t.Run("Associate", func(t *testing.T) { testAssociate(t, newStore) })
	t.Run("Contract", func(t *testing.T) { testContract(t, newStore) })
	t.Run("SmartContract", func(t *testing.T) { testSmartContract(t, newStore) })
	t.Run("Dispute", func(t *testing.T) { testDispute(t, newStore) })
	t.Run("Project", func(t *testing.T) { testProject(t, newStore) })
	t.Run("ProjectList", func(t *testing.T) { testProjectList(t, newStore) })
	t.Run("Subscription", func(t *testing.T) { testSubscription(t, newStore) })
	t.Run("Summary", func(t *testing.T) { testSummary(t, newStore) })
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func newAccount(email string) *model.Account {
	ts := now()
	return &model.Account{
		FullName:     "Test User",
		Email:        email,
		PasswordHash: "hash",
		Roles:        []model.Role{model.RoleUser},
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
}

func testSequence(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		id, err := s.NextID(ctx, storage.CollectionProjects)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}

	// 每个集合独立计数
	id, err := s.NextID(ctx, storage.CollectionDisputes)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func testConcurrentCreate(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()

	const n = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ids  []int64
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := &model.Project{
				OwnerID:  1,
				Title:    fmt.Sprintf("project %d", i),
				Date:     now(),
				Status:   model.ProjectStatusInProgress,
				Currency: model.DefaultProjectCurrency,
			}
			err := s.CreateProject(ctx, p)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ids = append(ids, p.ID)
		}(i)
	}
	wg.Wait()

	require.Empty(t, errs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	want := make([]int64, n)
	for i := range want {
		want[i] = int64(i + 1)
	}
	assert.Equal(t, want, ids)
}

func testAccount(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()

	acc := newAccount("alice@example.com")
	require.NoError(t, s.CreateAccount(ctx, acc))
	assert.Equal(t, int64(1), acc.ID)

	dup := newAccount("alice@example.com")
	err := s.CreateAccount(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrDuplicate)
	assert.Zero(t, dup.ID)

	got, err := s.GetAccountByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)
	assert.Equal(t, "Test User", got.FullName)

	_, err = s.GetAccount(ctx, 99)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// 设置并按 token 查找，再清除
	expires := now().Add(time.Hour)
	got.ResetToken = "reset-1"
	got.ResetExpires = &expires
	got.FullName = "Alice"
	require.NoError(t, s.UpdateAccount(ctx, got))

	byToken, err := s.GetAccountByResetToken(ctx, "reset-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", byToken.FullName)

	byToken.ResetToken = ""
	byToken.ResetExpires = nil
	require.NoError(t, s.UpdateAccount(ctx, byToken))
	_, err = s.GetAccountByResetToken(ctx, "reset-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// 失败次数与组织字段随更新持久化，清零后字段删除
	byToken.VerificationAttempts = 3
	byToken.OrganizationName = "Acme"
	byToken.Username = "acme"
	require.NoError(t, s.UpdateAccount(ctx, byToken))
	got, err = s.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.VerificationAttempts)
	assert.Equal(t, "Acme", got.OrganizationName)
	assert.Equal(t, "acme", got.Username)
	got.VerificationAttempts = 0
	require.NoError(t, s.UpdateAccount(ctx, got))
	got, err = s.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Zero(t, got.VerificationAttempts)

	// 两个账号都没有 reset token 时不冲突
	require.NoError(t, s.CreateAccount(ctx, newAccount("bob@example.com")))

	missing := newAccount("nobody@example.com")
	missing.ID = 42
	assert.ErrorIs(t, s.UpdateAccount(ctx, missing), storage.ErrNotFound)
}

func testAssociate(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()

	ts := now()
	a := &model.Associate{
		OwnerID:         1,
		Email:           "assoc@example.com",
		Role:            model.DefaultAssociateRole,
		Status:          model.AssociateStatusPending,
		InvitationToken: "tok-1",
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}
	require.NoError(t, s.CreateAssociate(ctx, a))

	dup := *a
	dup.ID = 0
	dup.InvitationToken = "tok-2"
	assert.ErrorIs(t, s.CreateAssociate(ctx, &dup), storage.ErrDuplicate)

	got, err := s.GetAssociateByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	updated, err := s.TransitionAssociate(ctx, a.ID, model.AssociateStatusPending, model.AssociateStatusAccepted, ts)
	require.NoError(t, err)
	assert.Equal(t, model.AssociateStatusAccepted, updated.Status)
	require.NotNil(t, updated.RespondedAt)

	// 已经不是 pending，守卫失败
	_, err = s.TransitionAssociate(ctx, a.ID, model.AssociateStatusPending, model.AssociateStatusRejected, ts)
	assert.ErrorIs(t, err, storage.ErrConflict)
	_, err = s.TransitionAssociate(ctx, 99, model.AssociateStatusPending, model.AssociateStatusRejected, ts)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	other := &model.Associate{OwnerID: 2, Email: "other@example.com", Role: "associate", Status: model.AssociateStatusPending, CreatedAt: ts, UpdatedAt: ts}
	require.NoError(t, s.CreateAssociate(ctx, other))

	items, total, err := s.ListAssociates(ctx, storage.AssociateFilter{OwnerID: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "assoc@example.com", items[0].Email)

	_, total, err = s.ListAssociates(ctx, storage.AssociateFilter{Status: model.AssociateStatusPending})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	require.NoError(t, s.DeleteAssociate(ctx, a.ID))
	assert.ErrorIs(t, s.DeleteAssociate(ctx, a.ID), storage.ErrNotFound)
}

func testContract(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()

	ts := now()
	c := &model.Contract{OwnerID: 1, Name: "NDA", Type: "legal", Status: model.ContractStatusDraft, CreatedAt: ts, UpdatedAt: ts}
	require.NoError(t, s.CreateContract(ctx, c))

	got, err := s.SetContractFile(ctx, c.ID, "contracts/1/nda.pdf", "https://files/nda.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://files/nda.pdf", got.FileRef)
	assert.Equal(t, "contracts/1/nda.pdf", got.FileKey)

	got, err = s.SetContractSignature(ctx, c.ID, "https://files/sig.png")
	require.NoError(t, err)
	assert.Equal(t, "https://files/sig.png", got.SignatureRef)

	shares := []model.ContractShare{
		{Email: "x@example.com", SharedBy: "owner@example.com", SharedAt: ts},
		{Email: "y@example.com", SharedBy: "owner@example.com", SharedAt: ts},
	}
	got, added, err := s.ShareContract(ctx, c.ID, shares)
	require.NoError(t, err)
	assert.Len(t, added, 2)
	assert.Len(t, got.Associates, 2)

	// 重复分享按邮箱去重
	got, added, err = s.ShareContract(ctx, c.ID, []model.ContractShare{{Email: "X@example.com", SharedAt: ts}})
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Len(t, got.Associates, 2)

	_, _, err = s.ShareContract(ctx, 99, shares)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	items, total, err := s.ListContracts(ctx, storage.ContractFilter{OwnerID: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, items, 1)
}

func testSmartContract(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()

	ts := now()
	c := model.NewSmartContract(1, "Retainer", decimal.RequireFromString("1250.50"), ts)
	c.Tags = []string{"legal"}
	c.Milestones = []model.Milestone{{Title: "Kickoff", Amount: 250}}
	require.NoError(t, s.CreateSmartContract(ctx, c))
	assert.Equal(t, int64(1), c.ID)
	require.NoError(t, s.CreateSmartContract(ctx, model.NewSmartContract(2, "Other", decimal.NewFromInt(10), ts)))

	got, err := s.GetSmartContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Retainer", got.Title)
	assert.Equal(t, 1250.50, got.TotalAmount)
	assert.Equal(t, 1250.50, got.BudgetDetails.RemainingBudget)
	assert.Equal(t, []string{"legal"}, got.Tags)
	require.Len(t, got.Milestones, 1)
	assert.Equal(t, "Kickoff", got.Milestones[0].Title)
	assert.True(t, got.EndDate.Equal(ts.AddDate(1, 0, 0)))

	_, err = s.GetSmartContract(ctx, 99)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	items, total, err := s.ListSmartContracts(ctx, storage.SmartContractFilter{OwnerID: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, c.ID, items[0].ID)

	_, total, err = s.ListSmartContracts(ctx, storage.SmartContractFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func testDispute(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()

	ts := now()
	d := &model.Dispute{OwnerID: 1, ProjectID: 1, UserID: 1, InitialMessage: "late delivery", Status: model.DisputeStatusOpen, CreatedAt: ts, UpdatedAt: ts}
	require.NoError(t, s.CreateDispute(ctx, d))

	got, err := s.AppendDisputeMessage(ctx, d.ID, model.DisputeMessage{SenderID: 1, Message: "hello", Timestamp: ts})
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hello", got.Messages[0].Message)

	docs := []model.DisputeDocument{{URL: "u1", Filename: "a.pdf", Type: model.DocumentTypePDF, UploadedAt: ts}}
	got, err = s.AppendDisputeDocuments(ctx, d.ID, docs)
	require.NoError(t, err)
	assert.Len(t, got.Documents, 1)

	got, err = s.TransitionDispute(ctx, d.ID, model.DisputeStatusOpen, model.DisputeStatusWithdrawn, ts)
	require.NoError(t, err)
	assert.Equal(t, model.DisputeStatusWithdrawn, got.Status)
	assert.NotNil(t, got.ClosedAt)

	// 终态后拒绝追加
	_, err = s.AppendDisputeMessage(ctx, d.ID, model.DisputeMessage{SenderID: 1, Message: "again", Timestamp: ts})
	assert.ErrorIs(t, err, storage.ErrConflict)
	_, err = s.AppendDisputeDocuments(ctx, d.ID, docs)
	assert.ErrorIs(t, err, storage.ErrConflict)
	_, err = s.TransitionDispute(ctx, d.ID, model.DisputeStatusOpen, model.DisputeStatusClosed, ts)
	assert.ErrorIs(t, err, storage.ErrConflict)

	final, err := s.GetDispute(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, final.Messages, 1)

	_, total, err := s.ListDisputes(ctx, storage.DisputeFilter{Status: model.DisputeStatusOpen})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func testProject(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()

	ts := now()
	p := &model.Project{OwnerID: 1, Title: "Website", Date: ts, Status: model.ProjectStatusInProgress, Budget: 500, Currency: "USD", CreatedAt: ts, UpdatedAt: ts}
	require.NoError(t, s.CreateProject(ctx, p))

	client := model.ProjectClient{Name: "Carol", Email: "carol@example.com", AddedAt: ts}
	got, err := s.AddProjectClient(ctx, p.ID, client)
	require.NoError(t, err)
	assert.Len(t, got.Clients, 1)

	_, err = s.AddProjectClient(ctx, p.ID, client)
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	got, err = s.AppendProjectDocuments(ctx, p.ID, []model.ProjectDocument{{Name: "brief.pdf", URL: "u", UploadedAt: ts}})
	require.NoError(t, err)
	assert.Len(t, got.Documents, 1)

	got, err = s.AppendProjectActivity(ctx, p.ID, model.ProjectActivity{Description: "kickoff", CreatedAt: ts})
	require.NoError(t, err)
	assert.Len(t, got.Activities, 1)

	got, err = s.AppendProjectMessage(ctx, p.ID, model.ProjectMessage{SenderID: 1, Message: "hi", MessageType: model.MessageTypeText, SentAt: ts})
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)

	got, err = s.RemoveProjectClient(ctx, p.ID, "carol@example.com")
	require.NoError(t, err)
	assert.Empty(t, got.Clients)

	_, err = s.RemoveProjectClient(ctx, p.ID, "carol@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.AppendProjectActivity(ctx, 99, model.ProjectActivity{Description: "x", CreatedAt: ts})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testProjectList(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()

	mk := func(owner int64, title string, date time.Time) {
		p := &model.Project{OwnerID: owner, Title: title, Date: date, Status: model.ProjectStatusInProgress, Currency: "USD", CreatedAt: date, UpdatedAt: date}
		require.NoError(t, s.CreateProject(ctx, p))
	}
	mk(1, "Alpha Website", time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC))
	mk(1, "Beta App", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	mk(1, "Gamma website redesign", time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC))
	mk(1, "100% [done]", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	mk(2, "Other tenant website", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	items, total, err := s.ListProjects(ctx, storage.ProjectFilter{OwnerID: 1, Search: "WEBSITE"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	// 按 date 降序
	assert.Equal(t, "Gamma website redesign", items[0].Title)

	_, total, err = s.ListProjects(ctx, storage.ProjectFilter{
		OwnerID: 1,
		Since:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Until:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	// 搜索词按字面匹配
	items, total, err = s.ListProjects(ctx, storage.ProjectFilter{OwnerID: 1, Search: "% ["})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "100% [done]", items[0].Title)

	items, total, err = s.ListProjects(ctx, storage.ProjectFilter{OwnerID: 1, Limit: 3, Offset: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Alpha Website", items[0].Title)

	_, total, err = s.ListProjects(ctx, storage.ProjectFilter{})
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	// 非 ASCII 字母同样忽略大小写
	mk(3, "Über Älpha Studio", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	for _, q := range []string{"älpha", "ÜBER", "über älpha"} {
		items, total, err = s.ListProjects(ctx, storage.ProjectFilter{OwnerID: 3, Search: q})
		require.NoError(t, err)
		assert.Equal(t, 1, total, q)
		require.Len(t, items, 1, q)
		assert.Equal(t, "Über Älpha Studio", items[0].Title)
	}
}

func testSubscription(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()

	start := now().Add(-48 * time.Hour)
	sub, ok := model.NewSubscription(7, model.PlanPro, model.BillingMonthly, true, start)
	require.True(t, ok)
	require.NoError(t, s.CreateSubscription(ctx, sub))

	second, _ := model.NewSubscription(7, model.PlanUltimate, model.BillingYearly, false, start)
	assert.ErrorIs(t, s.CreateSubscription(ctx, second), storage.ErrDuplicate)

	active, err := s.GetActiveSubscription(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, active.ID)

	paid, err := s.MarkSubscriptionPaid(ctx, sub.ID, "ch_1", now())
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, paid.PaymentStatus)
	assert.Equal(t, "ch_1", paid.PaymentReference)

	_, err = s.MarkSubscriptionPaid(ctx, sub.ID, "ch_2", now())
	assert.ErrorIs(t, err, storage.ErrConflict)

	cancelled, err := s.TransitionSubscription(ctx, sub.ID, model.SubscriptionStatusActive, model.SubscriptionStatusCancelled, now())
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)

	_, err = s.GetActiveSubscription(ctx, 7)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// 取消后可以重新订阅
	second.ID = 0
	require.NoError(t, s.CreateSubscription(ctx, second))

	expiring, _ := model.NewSubscription(8, model.PlanPro, model.BillingMonthly, false, now().AddDate(0, -2, 0))
	require.NoError(t, s.CreateSubscription(ctx, expiring))

	expired, err := s.ListExpiredSubscriptions(ctx, now(), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, expiring.ID, expired[0].ID)
}

func testSummary(t *testing.T, newStore Factory) {
	s := newStore(t)
	ctx := context.Background()

	ts := now()
	require.NoError(t, s.CreateProject(ctx, &model.Project{OwnerID: 1, Title: "p", Date: ts, CreatedAt: ts, UpdatedAt: ts}))
	require.NoError(t, s.CreateContract(ctx, &model.Contract{OwnerID: 1, Name: "c", CreatedAt: ts, UpdatedAt: ts}))
	require.NoError(t, s.CreateDispute(ctx, &model.Dispute{OwnerID: 1, Status: model.DisputeStatusOpen, CreatedAt: ts, UpdatedAt: ts}))
	require.NoError(t, s.CreateAssociate(ctx, &model.Associate{OwnerID: 1, Email: "a@x.io", Status: model.AssociateStatusPending, CreatedAt: ts, UpdatedAt: ts}))
	require.NoError(t, s.CreateAssociate(ctx, &model.Associate{OwnerID: 1, Email: "b@x.io", Status: model.AssociateStatusAccepted, CreatedAt: ts, UpdatedAt: ts}))
	require.NoError(t, s.CreateProject(ctx, &model.Project{OwnerID: 2, Title: "q", Date: ts, CreatedAt: ts, UpdatedAt: ts}))

	sum, err := s.Summary(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Projects)
	assert.Equal(t, 1, sum.Contracts)
	assert.Equal(t, 1, sum.OpenDisputes)
	assert.Equal(t, model.AssociateCounts{Pending: 1, Accepted: 1}, sum.Associates)

	all, err := s.Summary(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, all.Projects)
}
