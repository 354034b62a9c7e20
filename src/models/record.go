// backend/src/models/record.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Money pairs a quantity with its currency symbol. A nil *Money on a
// TransactionRecord means the leg has not been set yet; once set, a leg is
// never overwritten for the lifetime of the record.
type Money struct {
	Quantity decimal.Decimal `json:"quantity"`
	Currency string          `json:"currency"`
}

// TransactionRecord is the accumulating output unit: one complete economic
// event assembled from one or more ledger entries sharing a correlation key.
// Remark is carried from the entry that created the record and is kept for
// reference only; it is excluded from the CoinTracker export.
type TransactionRecord struct {
	Date     time.Time `json:"date"`
	Received *Money    `json:"received,omitempty"`
	Sent     *Money    `json:"sent,omitempty"`
	Fee      *Money    `json:"fee,omitempty"`
	Tag      string    `json:"tag,omitempty"`
	Remark   string    `json:"remark,omitempty"`
}
