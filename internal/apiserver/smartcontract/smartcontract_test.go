package smartcontract

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/testutil"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newHandler(t *testing.T) http.Handler {
	t.Helper()
	svc := NewService(testutil.NewStore(t), nil)
	svc.now = func() time.Time { return fixedNow }
	mux := http.NewServeMux()
	NewHandler(svc).RegisterRoutes(mux)
	return mux
}

type created struct {
	SmartContractID int64               `json:"smartContractId"`
	Message         string              `json:"message"`
	Contract        model.SmartContract `json:"contract"`
}

func TestCreateDefaults(t *testing.T) {
	h := newHandler(t)

	w := testutil.Do(t, h, http.MethodPost, "/smart-contracts",
		map[string]interface{}{"title": "Website build", "totalAmount": 1200}, testutil.User(1))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res created
	testutil.Decode(t, w, &res)
	assert.Equal(t, int64(1), res.SmartContractID)
	assert.Equal(t, MsgCreated, res.Message)

	c := res.Contract
	assert.Equal(t, res.SmartContractID, c.ID)
	assert.Equal(t, int64(1), c.OwnerID)
	assert.Equal(t, model.SmartContractStatusInProgress, c.Status)
	assert.Equal(t, "USD", c.Currency)
	assert.Equal(t, "employment", c.ContractType)
	assert.Equal(t, "Contract description", c.Description)
	assert.Equal(t, "Default Organization", c.Organization)
	assert.Equal(t, "Medium", c.Priority)
	assert.Equal(t, "Standard", c.Type)
	assert.Equal(t, 1200.0, c.Budget)
	assert.Equal(t, model.BudgetDetails{InitialBudget: 1200, CurrentBudget: 1200, RemainingBudget: 1200}, c.BudgetDetails)
	assert.Zero(t, c.Progress)
	assert.Empty(t, c.Tags)
	assert.Empty(t, c.Milestones)
	assert.True(t, c.StartDate.Equal(fixedNow))
	assert.True(t, c.EndDate.Equal(fixedNow.AddDate(1, 0, 0)))

	// 序列号按集合递增
	w = testutil.Do(t, h, http.MethodPost, "/smart-contracts",
		map[string]interface{}{"title": "Second", "totalAmount": "99.999"}, testutil.User(1))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	testutil.Decode(t, w, &res)
	assert.Equal(t, int64(2), res.SmartContractID)
	assert.Equal(t, 100.0, res.Contract.TotalAmount)
}

func TestCreateOverrides(t *testing.T) {
	h := newHandler(t)

	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	w := testutil.Do(t, h, http.MethodPost, "/smart-contracts", map[string]interface{}{
		"title":        "Retainer",
		"totalAmount":  "5000.00",
		"budget":       4500,
		"description":  "Monthly legal retainer",
		"startDate":    start.Format(time.RFC3339),
		"organization": "Acme LLC",
		"priority":     "High",
		"tags":         []string{"legal", "monthly"},
		"milestones":   []map[string]interface{}{{"title": "Q1", "amount": 1250}},
	}, testutil.User(1))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res created
	testutil.Decode(t, w, &res)
	c := res.Contract
	assert.Equal(t, 5000.0, c.TotalAmount)
	assert.Equal(t, 4500.0, c.Budget)
	assert.Equal(t, 5000.0, c.BudgetDetails.InitialBudget)
	assert.Equal(t, "Monthly legal retainer", c.Description)
	assert.Equal(t, "Acme LLC", c.Organization)
	assert.Equal(t, "High", c.Priority)
	assert.Equal(t, []string{"legal", "monthly"}, c.Tags)
	require.Len(t, c.Milestones, 1)
	assert.Equal(t, 1250.0, c.Milestones[0].Amount)
	assert.True(t, c.StartDate.Equal(start))
	assert.True(t, c.EndDate.Equal(start.AddDate(1, 0, 0)))
}

func TestCreateValidation(t *testing.T) {
	h := newHandler(t)

	tests := []struct {
		body map[string]interface{}
		msg  string
	}{
		{map[string]interface{}{"totalAmount": 10}, MsgRequired},
		{map[string]interface{}{"title": "  ", "totalAmount": 10}, MsgRequired},
		{map[string]interface{}{"title": "x"}, MsgRequired},
		{map[string]interface{}{"title": "x", "totalAmount": 0}, MsgRequired},
		{map[string]interface{}{"title": "x", "totalAmount": -5}, MsgInvalidAmount},
		{map[string]interface{}{"title": "x", "totalAmount": 5, "budget": -1}, MsgInvalidBudget},
		{map[string]interface{}{"title": "x", "totalAmount": 5,
			"startDate": "2025-05-01T00:00:00Z", "endDate": "2025-04-01T00:00:00Z"}, MsgInvalidDateRange},
		{map[string]interface{}{"title": "x", "totalAmount": 5,
			"milestones": []map[string]interface{}{{"amount": 1}}}, MsgInvalidMilestone},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			w := testutil.Do(t, h, http.MethodPost, "/smart-contracts", tt.body, testutil.User(1))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.msg, testutil.Message(t, w))
		})
	}

	w := testutil.Do(t, h, http.MethodPost, "/smart-contracts", map[string]interface{}{"title": "x", "totalAmount": 5}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListAndGetScopedToTenant(t *testing.T) {
	h := newHandler(t)
	for _, owner := range []int64{1, 1, 2} {
		w := testutil.Do(t, h, http.MethodPost, "/smart-contracts",
			map[string]interface{}{"title": "c", "totalAmount": 10}, testutil.User(owner))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := testutil.Do(t, h, http.MethodGet, "/smart-contracts", nil, testutil.User(1))
	require.Equal(t, http.StatusOK, w.Code)
	var page model.Page[model.SmartContract]
	testutil.Decode(t, w, &page)
	assert.Equal(t, 2, page.Total)

	w = testutil.Do(t, h, http.MethodGet, "/smart-contracts", nil, testutil.Admin(9))
	testutil.Decode(t, w, &page)
	assert.Equal(t, 3, page.Total)

	w = testutil.Do(t, h, http.MethodGet, "/smart-contracts/3", nil, testutil.User(2))
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.Do(t, h, http.MethodGet, "/smart-contracts/3", nil, testutil.User(1))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, MsgForbidden, testutil.Message(t, w))

	w = testutil.Do(t, h, http.MethodGet, "/smart-contracts/99", nil, testutil.User(1))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
