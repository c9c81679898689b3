package domain

import "time"

const TransactionTypePurchase = "purchase"

// Transaction is a purchase ledger row.
type Transaction struct {
	ID          int64          `db:"id" json:"id"`
	UserID      int64          `db:"user_id" json:"user_id"`
	Type        string         `db:"type" json:"type"`
	Amount      int64          `db:"amount" json:"amount"`
	USDAmount   float64        `db:"usd_amount" json:"usd_amount"`
	ExternalRef string         `db:"external_ref" json:"external_ref,omitempty"`
	Meta        map[string]any `db:"meta" json:"meta,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}
