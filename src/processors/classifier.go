// backend/src/processors/classifier.go
package processors

import (
	"errors"
	"fmt"

	"github.com/username/coinfolio/backend/src/models"
	"github.com/username/coinfolio/backend/src/utils"
)

// ErrSignAssertion is returned when a ledger entry's change amount
// contradicts the direction its operation type requires. The source encodes
// direction purely by sign, so a violation means the exchange changed its
// convention and the whole run must stop rather than produce wrong records.
var ErrSignAssertion = errors.New("change amount contradicts operation direction")

// Classify determines which leg of a transaction record a ledger entry
// contributes. Unrecognized operations yield an Ignored contribution; they
// are skipped by the correlator, not treated as errors.
func Classify(entry models.LedgerEntry) (models.Contribution, error) {
	abs := entry.Change.Abs()

	switch entry.Operation {
	case models.OpTransactionRelated, models.OpSell:
		if err := assertNegative(entry); err != nil {
			return models.Contribution{}, err
		}
		return models.Contribution{Kind: models.ContributionSent, Quantity: abs, Currency: entry.Coin}, nil

	case models.OpWithdraw:
		if err := assertNegative(entry); err != nil {
			return models.Contribution{}, err
		}
		return models.Contribution{Kind: models.ContributionSent, Quantity: abs, Currency: entry.Coin}, nil

	case models.OpFee:
		if err := assertNegative(entry); err != nil {
			return models.Contribution{}, err
		}
		return models.Contribution{Kind: models.ContributionFee, Quantity: abs, Currency: entry.Coin}, nil

	case models.OpBuy, models.OpDeposit:
		if err := assertPositive(entry); err != nil {
			return models.Contribution{}, err
		}
		return models.Contribution{Kind: models.ContributionReceived, Quantity: abs, Currency: entry.Coin}, nil

	case models.OpStakingRewards, models.OpCommissionHistory, models.OpCommissionRebate:
		if err := assertPositive(entry); err != nil {
			return models.Contribution{}, err
		}
		return models.Contribution{Kind: models.ContributionReceived, Quantity: abs, Currency: entry.Coin, Tag: models.TagStaked}, nil

	case models.OpDistribution, models.OpAirdropAssets:
		// Distributions go both ways: negative entries are redenominations
		// or clawbacks leaving the account, positive ones are airdrops in.
		if entry.Change.IsNegative() {
			return models.Contribution{Kind: models.ContributionSent, Quantity: abs, Currency: entry.Coin}, nil
		}
		return models.Contribution{Kind: models.ContributionReceived, Quantity: abs, Currency: entry.Coin, Tag: models.TagAirdrop}, nil

	case models.OpSmallAssetsExchange:
		// Direction is decided at merge time from the sign of the original
		// change amount.
		return models.Contribution{Kind: models.ContributionSignDirected, Quantity: abs, Currency: entry.Coin}, nil

	default:
		return models.Contribution{Kind: models.ContributionIgnored}, nil
	}
}

func assertNegative(entry models.LedgerEntry) error {
	if entry.Change.Sign() >= 0 {
		return signError(entry, "negative")
	}
	return nil
}

func assertPositive(entry models.LedgerEntry) error {
	if entry.Change.Sign() <= 0 {
		return signError(entry, "positive")
	}
	return nil
}

func signError(entry models.LedgerEntry, expected string) error {
	return fmt.Errorf("%w: %s of %s %s at %s must be %s",
		ErrSignAssertion, entry.Operation, entry.Change, entry.Coin,
		entry.Timestamp.UTC().Format(utils.LedgerTimeFormat), expected)
}
