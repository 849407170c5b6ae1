package payment

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxCharge(t *testing.T) {
	ctx := context.Background()
	gw := NewSandbox()

	tests := []struct {
		name    string
		req     ChargeRequest
		wantErr error
	}{
		{"success", ChargeRequest{Amount: decimal.NewFromInt(15), Currency: "USD", PaymentMethod: "tok_visa"}, nil},
		{"declined", ChargeRequest{Amount: decimal.NewFromInt(15), Currency: "USD", PaymentMethod: DeclinedToken}, ErrDeclined},
		{"missing method", ChargeRequest{Amount: decimal.NewFromInt(15), Currency: "USD"}, ErrDeclined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := gw.Charge(ctx, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(res.Reference, "ch_"))
			assert.True(t, res.Amount.Equal(decimal.NewFromInt(15)))
		})
	}

	_, err := gw.Charge(ctx, ChargeRequest{Amount: decimal.Zero, PaymentMethod: "tok_visa"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrDeclined)

	assert.Equal(t, int64(1), gw.Charges())
}

func TestNew(t *testing.T) {
	gw, err := New("sandbox")
	require.NoError(t, err)
	assert.IsType(t, &Sandbox{}, gw)

	_, err = New("stripe")
	assert.Error(t, err)
}
