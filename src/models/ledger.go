// backend/src/models/ledger.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Operation strings exactly as they appear in the Binance account statement
// export. Anything else is skipped (and logged) during correlation.
const (
	OpAirdropAssets       = "Airdrop Assets"
	OpBuy                 = "Buy"
	OpCommissionHistory   = "Commission History"
	OpCommissionRebate    = "Commission Rebate"
	OpDeposit             = "Deposit"
	OpDistribution        = "Distribution"
	OpFee                 = "Fee"
	OpSell                = "Sell"
	OpSmallAssetsExchange = "Small Assets Exchange BNB"
	OpStakingRewards      = "Staking Rewards"
	OpTransactionRelated  = "Transaction Related"
	OpWithdraw            = "Withdraw"
)

// Tags attached to received legs for CoinTracker's classification column.
const (
	TagStaked  = "staked"
	TagAirdrop = "airdrop"
)

// LedgerEntry represents a single row of the account statement: one side of a
// money movement. The sign of Change encodes the direction.
type LedgerEntry struct {
	UserID    string          `json:"user_id"`
	Timestamp time.Time       `json:"utc_time"`
	Account   string          `json:"account"`
	Operation string          `json:"operation"`
	Coin      string          `json:"coin"`
	Change    decimal.Decimal `json:"change"`
	Remark    string          `json:"remark"`
}
