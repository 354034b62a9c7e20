// backend/src/models/contribution.go
package models

import "github.com/shopspring/decimal"

// ContributionKind identifies which leg of a transaction record a ledger
// entry sets.
type ContributionKind int

const (
	// ContributionIgnored marks entries with an unrecognized operation; they
	// never reach the merge step.
	ContributionIgnored ContributionKind = iota
	ContributionSent
	ContributionReceived
	ContributionFee
	// ContributionSignDirected defers the sent-vs-received decision to merge
	// time, where the sign of the original change amount selects the leg.
	// Used only for "Small Assets Exchange BNB" entries.
	ContributionSignDirected
)

func (k ContributionKind) String() string {
	switch k {
	case ContributionSent:
		return "SENT"
	case ContributionReceived:
		return "RECEIVED"
	case ContributionFee:
		return "FEE"
	case ContributionSignDirected:
		return "SIGN_DIRECTED"
	default:
		return "IGNORED"
	}
}

// Contribution is the classified effect of one ledger entry: the field pair
// it sets on its target record. Quantity is always the absolute value of the
// entry's change amount.
type Contribution struct {
	Kind     ContributionKind
	Quantity decimal.Decimal
	Currency string
	Tag      string
}
