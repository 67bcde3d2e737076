package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 42, "b": "abc", "c": null}`), &v))

	assert.Equal(t, ID("42"), v.A)
	assert.Equal(t, ID("abc"), v.B)
	assert.Equal(t, ID(""), v.C)
}

func TestTimestampNaiveIsUTC(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2026-03-01T09:30:15.123456"`), &ts))

	want := time.Date(2026, 3, 1, 9, 30, 15, 123456000, time.UTC)
	assert.True(t, ts.Equal(want), "got %v", ts.Time)
	assert.Equal(t, time.UTC, ts.Location())
}

func TestTimestampRFC3339KeepsOffset(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2026-03-01T11:30:00+02:00"`), &ts))

	assert.True(t, ts.Equal(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)))
}

func TestTimestampRejectsGarbage(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}

func TestNotificationDecodesBackendShape(t *testing.T) {
	raw := `{
		"id": 12, "user_id": 3, "type": "loan_approved",
		"title": "Loan approved", "message": "Your loan was approved",
		"related_id": 55, "is_read": false, "read_at": null,
		"created_at": "2026-03-01T09:30:00.000000"
	}`

	var n Notification
	require.NoError(t, json.Unmarshal([]byte(raw), &n))

	assert.Equal(t, ID("12"), n.ID)
	assert.Equal(t, ID("3"), n.UserID)
	assert.Equal(t, ID("55"), n.RelatedID)
	assert.Equal(t, TypeLoanApproved, n.Type)
	assert.Nil(t, n.ReadAt)
	assert.Equal(t, CategoryLoan, CategoryFor(n.Type))
}

func TestMarkReadStampsOnce(t *testing.T) {
	n := Notification{ID: "1"}
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	n.MarkRead(first)
	n.MarkRead(first.Add(time.Hour))

	require.NotNil(t, n.ReadAt)
	assert.True(t, n.IsRead)
	assert.True(t, n.ReadAt.Equal(first))
}

func TestCategoryFor(t *testing.T) {
	cases := map[NotificationType]Category{
		TypeTransaction:  CategoryTransaction,
		TypeLoanRequest:  CategoryLoan,
		TypeKYCRejected:  CategoryKYC,
		TypeCardApproved: CategoryAccount,
		TypeGeneral:      CategoryOther,
		"low_balance":    CategoryOther,
	}
	for typ, want := range cases {
		assert.Equal(t, want, CategoryFor(typ), typ)
	}
}

func TestTransactionFrameKeepsDecimalPrecision(t *testing.T) {
	raw := `{"transaction_id": 9, "src": 1, "dest": 2,
		"amount": "0.10", "new_src_balance": 99.9, "new_dest_balance": "200.10"}`

	var tx TransactionCompleted
	require.NoError(t, json.Unmarshal([]byte(raw), &tx))

	b := tx.BalanceUpdate()
	assert.Equal(t, ID("9"), b.TransactionID)
	assert.True(t, b.Amount.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, b.NewSrcBalance.Equal(decimal.RequireFromString("99.9")))
	assert.True(t, b.NewDestBalance.Equal(decimal.RequireFromString("200.1")))
}
