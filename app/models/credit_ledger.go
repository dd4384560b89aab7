package models

import "time"

// Credit ledger event types. Grants, purchases, bonuses and refunds carry a
// positive amount; spends carry a negative amount.
const (
	CreditEventGrant    = "grant"
	CreditEventPurchase = "purchase"
	CreditEventSpend    = "spend"
	CreditEventBonus    = "bonus"
	CreditEventRefund   = "refund"
)

// CreditLedgerEntry is one immutable row per balance mutation. Entries are
// only ever appended inside the same transaction that updates the account
// balance; they are never updated or deleted.
type CreditLedgerEntry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AccountID    uint      `gorm:"not null;index:idx_credit_ledger_account_created,priority:1" json:"account_id"`
	EventType    string    `gorm:"type:varchar(20);not null;index" json:"event_type"`
	Amount       int       `gorm:"not null" json:"amount"`
	BalanceAfter int       `gorm:"not null" json:"balance_after"`
	Reference    string    `gorm:"type:varchar(255);default:'';index" json:"reference"`
	Notes        string    `gorm:"type:varchar(500);default:''" json:"notes"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index:idx_credit_ledger_account_created,priority:2" json:"created_at"`
}

func (CreditLedgerEntry) TableName() string {
	return "credit_ledger"
}

// IsCreditEvent reports whether the event type adds credits to a balance.
func IsCreditEvent(eventType string) bool {
	switch eventType {
	case CreditEventGrant, CreditEventPurchase, CreditEventBonus, CreditEventRefund:
		return true
	default:
		return false
	}
}
