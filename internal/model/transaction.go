package model

import "github.com/shopspring/decimal"

// TransactionCompleted is the payload of a transaction.success push frame.
// The backend flattens it into the frame itself rather than nesting it
// under "data".
type TransactionCompleted struct {
	TransactionID  ID              `json:"transaction_id"`
	Src            ID              `json:"src,omitempty"`
	Dest           ID              `json:"dest,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	NewSrcBalance  decimal.Decimal `json:"new_src_balance"`
	NewDestBalance decimal.Decimal `json:"new_dest_balance"`
}

// BalanceUpdate is broadcast to interested views after a completed
// transaction so they can refresh balances without polling.
type BalanceUpdate struct {
	TransactionID  ID              `json:"transactionId"`
	Amount         decimal.Decimal `json:"amount"`
	NewSrcBalance  decimal.Decimal `json:"newSrcBalance"`
	NewDestBalance decimal.Decimal `json:"newDestBalance"`
}

// BalanceUpdate projects the frame onto the event payload.
func (t TransactionCompleted) BalanceUpdate() BalanceUpdate {
	return BalanceUpdate{
		TransactionID:  t.TransactionID,
		Amount:         t.Amount,
		NewSrcBalance:  t.NewSrcBalance,
		NewDestBalance: t.NewDestBalance,
	}
}
