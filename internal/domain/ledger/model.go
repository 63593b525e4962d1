package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrBalanceMismatch      = errors.New("balance does not match transaction log")
	ErrDuplicateTransaction = errors.New("duplicate transaction id")
)

// Type tells whether a transaction added or removed points.
type Type string

const (
	TypeEarned Type = "earned"
	TypeSpent  Type = "spent"
)

// Source names where a transaction came from.
type Source string

const (
	SourceTask              Source = "task"
	SourceAd                Source = "ad"
	SourceShop              Source = "shop"
	SourceAffiliatePurchase Source = "affiliate_purchase"
	SourceAffiliateReward   Source = "affiliate_reward"
	SourceSettlement        Source = "settlement"
)

// Transaction is an append-only ledger entry. Amount is signed; Timestamp is
// a per-instance monotonic counter, not wall time.
type Transaction struct {
	ID          string
	PlayerID    string
	Amount      int64
	Source      Source
	Description string
	Timestamp   uint64
	Type        Type
}

func (t Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction id is required")
	}
	if t.PlayerID == "" {
		return fmt.Errorf("transaction player id is required")
	}
	switch t.Type {
	case TypeEarned:
		if t.Amount <= 0 {
			return fmt.Errorf("%w: earned amount %d", ErrInvalidAmount, t.Amount)
		}
	case TypeSpent:
		if t.Amount >= 0 {
			return fmt.Errorf("%w: spent amount %d", ErrInvalidAmount, t.Amount)
		}
	default:
		return fmt.Errorf("invalid transaction type: %s", t.Type)
	}
	return nil
}

// Sum folds transaction amounts into a balance.
func Sum(txs []Transaction) int64 {
	var total int64
	for _, tx := range txs {
		total += tx.Amount
	}
	return total
}
