package event

import (
	"PoolLedger/internal/fixedpoint"

	"github.com/google/uuid"
)

// LiquidityChange moves a bank's total deposit shares: positive delta for a
// deposit, negative for a withdrawal. Driven by the excluded instruction
// layer after it has settled the user-facing transfer.
type LiquidityChange struct {
	EventID  uuid.UUID        `json:"event_id"`
	Asset    uuid.UUID        `json:"asset"`
	Delta    fixedpoint.Fixed `json:"delta"`
	Sequence int64            `json:"sequence"`
}

func (e *LiquidityChange) IdempotencyKey() string { return e.EventID.String() }

func (e *LiquidityChange) EventType() EventType { return EventTypeLiquidityChange }

func (e *LiquidityChange) AssetID() *uuid.UUID {
	id := e.Asset
	return &id
}

func (e *LiquidityChange) SourceSequence() int64 { return e.Sequence }

// LoanChange moves a bank's total borrow shares: positive delta for a
// borrow, negative for a repayment. No capacity ceiling applies.
type LoanChange struct {
	EventID  uuid.UUID        `json:"event_id"`
	Asset    uuid.UUID        `json:"asset"`
	Delta    fixedpoint.Fixed `json:"delta"`
	Sequence int64            `json:"sequence"`
}

func (e *LoanChange) IdempotencyKey() string { return e.EventID.String() }

func (e *LoanChange) EventType() EventType { return EventTypeLoanChange }

func (e *LoanChange) AssetID() *uuid.UUID {
	id := e.Asset
	return &id
}

func (e *LoanChange) SourceSequence() int64 { return e.Sequence }

// InterestAccrual advances a bank's share values to reflect accrued
// interest. Share values only ever move up; the rate engine that computes
// the new values is an external collaborator.
type InterestAccrual struct {
	EventID uuid.UUID `json:"event_id"`
	Asset   uuid.UUID `json:"asset"`

	DepositShareValue   fixedpoint.Fixed `json:"deposit_share_value"`
	LiabilityShareValue fixedpoint.Fixed `json:"liability_share_value"`

	Sequence int64 `json:"sequence"`
}

func (e *InterestAccrual) IdempotencyKey() string { return e.EventID.String() }

func (e *InterestAccrual) EventType() EventType { return EventTypeInterestAccrual }

func (e *InterestAccrual) AssetID() *uuid.UUID {
	id := e.Asset
	return &id
}

func (e *InterestAccrual) SourceSequence() int64 { return e.Sequence }
