package api

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount_NumberOnTheWireWithoutGlobalFlag(t *testing.T) {
	// GIVEN: The decimal package left at its default
	require.False(t, decimal.MarshalJSONWithoutQuotes)

	// WHEN: Encoding a DTO and a bare decimal
	dto, err := json.Marshal(SummaryDTO{Count: 1, DueAmount: Amount{decimal.RequireFromString("12.50")}})
	require.NoError(t, err)
	plain, err := json.Marshal(decimal.RequireFromString("12.50"))
	require.NoError(t, err)

	// THEN: Only the DTO carries a bare number
	assert.Contains(t, string(dto), `"dueAmount":12.5`)
	assert.Contains(t, string(dto), `"totalAmount":0`)
	assert.Equal(t, `"12.5"`, string(plain))
}

func TestAmount_AcceptsNumbersAndStrings(t *testing.T) {
	for _, body := range []string{`{"amount":7.25}`, `{"amount":"7.25"}`} {
		var req PaymentRequest
		require.NoError(t, json.Unmarshal([]byte(body), &req), body)
		assert.True(t, req.Amount.Equal(decimal.RequireFromString("7.25")), body)
	}
}
