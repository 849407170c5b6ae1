package dashboard

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/testutil"
)

func TestSummary(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, owner := range []int64{1, 1, 2} {
		require.NoError(t, store.CreateProject(ctx, &model.Project{OwnerID: owner, Title: "P", Date: now, CreatedAt: now}))
	}
	require.NoError(t, store.CreateContract(ctx, &model.Contract{OwnerID: 1, Name: "C", Status: model.ContractStatusDraft, CreatedAt: now}))
	require.NoError(t, store.CreateDispute(ctx, &model.Dispute{OwnerID: 1, ProjectID: 1, Status: model.DisputeStatusOpen, CreatedAt: now}))
	require.NoError(t, store.CreateDispute(ctx, &model.Dispute{OwnerID: 1, ProjectID: 1, Status: model.DisputeStatusClosed, CreatedAt: now}))
	require.NoError(t, store.CreateAssociate(ctx, &model.Associate{OwnerID: 1, Email: "a@x.com", Status: model.AssociateStatusPending, CreatedAt: now}))
	require.NoError(t, store.CreateAssociate(ctx, &model.Associate{OwnerID: 1, Email: "b@x.com", Status: model.AssociateStatusAccepted, CreatedAt: now}))

	mux := http.NewServeMux()
	NewHandler(store).RegisterRoutes(mux)

	w := testutil.Do(t, mux, http.MethodGet, "/dashboard/summary", nil, testutil.User(1))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sum model.DashboardSummary
	testutil.Decode(t, w, &sum)
	assert.Equal(t, model.DashboardSummary{
		Projects:     2,
		Contracts:    1,
		OpenDisputes: 1,
		Associates:   model.AssociateCounts{Pending: 1, Accepted: 1},
	}, sum)

	w = testutil.Do(t, mux, http.MethodGet, "/dashboard/summary", nil, testutil.Admin(9))
	testutil.Decode(t, w, &sum)
	assert.Equal(t, 3, sum.Projects)

	w = testutil.Do(t, mux, http.MethodGet, "/dashboard/summary", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
