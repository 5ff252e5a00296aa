package state

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// MaxPoolBanks is the fixed slot count of a lending pool. Slot positions are
// stable: an empty slot is an explicit absent marker, never an omission, so
// the array layout matches the persisted record exactly.
const MaxPoolBanks = 128

var (
	ErrPoolFull              = errors.New("state: lending pool has no free slot")
	ErrBankAlreadyRegistered = errors.New("state: asset already has a registered bank")
)

// BankSlot is one optional entry of the pool.
type BankSlot struct {
	Present bool
	Bank    Bank
}

// LendingPool is the fixed-capacity registry of banks keyed by asset id.
// Lookup is a linear scan over the 128 slots; the capacity is small and
// fixed, so no index is maintained.
type LendingPool struct {
	Banks [MaxPoolBanks]BankSlot
}

// GetBank returns a copy of the first populated bank matching assetID.
func (p *LendingPool) GetBank(assetID uuid.UUID) (Bank, bool) {
	for i := range p.Banks {
		if p.Banks[i].Present && p.Banks[i].Bank.AssetID == assetID {
			return p.Banks[i].Bank, true
		}
	}
	return Bank{}, false
}

// GetBankMut returns an exclusive handle to the first populated bank
// matching assetID. The caller owns serialization; the pool does no locking.
func (p *LendingPool) GetBankMut(assetID uuid.UUID) (*Bank, bool) {
	for i := range p.Banks {
		if p.Banks[i].Present && p.Banks[i].Bank.AssetID == assetID {
			return &p.Banks[i].Bank, true
		}
	}
	return nil, false
}

// RegisterBank places a bank into the first free slot. Registering a second
// bank for the same asset is refused, which keeps the at-most-one-bank-per-
// asset invariant at the pool's only write path.
func (p *LendingPool) RegisterBank(bank Bank) (slot int, err error) {
	if _, exists := p.GetBank(bank.AssetID); exists {
		return 0, fmt.Errorf("asset %s: %w", bank.AssetID, ErrBankAlreadyRegistered)
	}
	for i := range p.Banks {
		if !p.Banks[i].Present {
			p.Banks[i] = BankSlot{Present: true, Bank: bank}
			return i, nil
		}
	}
	return 0, ErrPoolFull
}

// SlotOf returns the slot index holding the bank for assetID.
func (p *LendingPool) SlotOf(assetID uuid.UUID) (int, bool) {
	for i := range p.Banks {
		if p.Banks[i].Present && p.Banks[i].Bank.AssetID == assetID {
			return i, true
		}
	}
	return 0, false
}

// SetSlot populates a specific slot, used when rebuilding the pool from
// storage so slot positions survive restarts.
func (p *LendingPool) SetSlot(i int, bank Bank) error {
	if i < 0 || i >= MaxPoolBanks {
		return fmt.Errorf("state: slot %d out of range", i)
	}
	p.Banks[i] = BankSlot{Present: true, Bank: bank}
	return nil
}

// Len returns the number of populated slots.
func (p *LendingPool) Len() int {
	n := 0
	for i := range p.Banks {
		if p.Banks[i].Present {
			n++
		}
	}
	return n
}
