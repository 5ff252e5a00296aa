package event

import (
	"fmt"

	"PoolLedger/internal/state"

	"github.com/google/uuid"
)

// BankRegister provisions a new bank into the pool with unit share values
// and zero totals.
type BankRegister struct {
	EventID uuid.UUID `json:"event_id"`
	Asset   uuid.UUID `json:"asset"`

	DepositVault   uuid.UUID `json:"deposit_vault"`
	InsuranceVault uuid.UUID `json:"insurance_vault"`
	FeeVault       uuid.UUID `json:"fee_vault"`

	Config state.BankConfig `json:"config"`

	Sequence int64 `json:"sequence"`
}

func (e *BankRegister) IdempotencyKey() string { return e.EventID.String() }

func (e *BankRegister) EventType() EventType { return EventTypeBankRegister }

func (e *BankRegister) AssetID() *uuid.UUID {
	id := e.Asset
	return &id
}

func (e *BankRegister) SourceSequence() int64 { return e.Sequence }

// BankConfigUpdate applies a partial config patch to one bank. The merge
// itself cannot fail; authorization happened upstream.
type BankConfigUpdate struct {
	EventID uuid.UUID           `json:"event_id"`
	Asset   uuid.UUID           `json:"asset"`
	Patch   state.BankConfigOpt `json:"patch"`

	Sequence int64 `json:"sequence"`
}

func (e *BankConfigUpdate) IdempotencyKey() string { return e.EventID.String() }

func (e *BankConfigUpdate) EventType() EventType { return EventTypeBankConfigUpdate }

func (e *BankConfigUpdate) AssetID() *uuid.UUID {
	id := e.Asset
	return &id
}

func (e *BankConfigUpdate) SourceSequence() int64 { return e.Sequence }

// GroupConfigUpdate applies a partial patch to the group singleton.
type GroupConfigUpdate struct {
	EventID uuid.UUID         `json:"event_id"`
	Patch   state.GroupConfig `json:"patch"`

	Sequence int64 `json:"sequence"`
}

func (e *GroupConfigUpdate) IdempotencyKey() string { return e.EventID.String() }

func (e *GroupConfigUpdate) EventType() EventType { return EventTypeGroupConfigUpdate }

func (e *GroupConfigUpdate) AssetID() *uuid.UUID { return nil }

func (e *GroupConfigUpdate) SourceSequence() int64 { return e.Sequence }

// GroupInit resets the group to defaults plus the supplied admin. Runs once
// at deployment.
type GroupInit struct {
	Admin    uuid.UUID `json:"admin"`
	Sequence int64     `json:"sequence"`
}

func (e *GroupInit) IdempotencyKey() string {
	return fmt.Sprintf("group_init:%s", e.Admin)
}

func (e *GroupInit) EventType() EventType { return EventTypeGroupInit }

func (e *GroupInit) AssetID() *uuid.UUID { return nil }

func (e *GroupInit) SourceSequence() int64 { return e.Sequence }
