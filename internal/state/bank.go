package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"PoolLedger/internal/fixedpoint"

	"github.com/google/uuid"
)

// ErrDepositCapacityExceeded is the business-rule rejection for a deposit
// that would push total deposit value past the configured capacity.
// Recoverable: the caller may retry with a smaller amount.
var ErrDepositCapacityExceeded = errors.New("state: bank deposit capacity exceeded")

// WeightTier selects which risk-weight pair applies: the stricter Initial
// tier when a position is opened, or the looser Maintenance tier during
// ongoing solvency checks.
type WeightTier int

const (
	WeightTierInitial WeightTier = iota
	WeightTierMaintenance
)

func (w WeightTier) String() string {
	switch w {
	case WeightTierInitial:
		return "Initial"
	case WeightTierMaintenance:
		return "Maintenance"
	default:
		return "Unknown"
	}
}

// BankConfig holds per-bank risk parameters. Maintenance weights are expected
// to be less conservative than initial weights; that relationship is a
// convention consumed by external health checks, not enforced here.
type BankConfig struct {
	DepositWeightInit  fixedpoint.Fixed `json:"deposit_weight_init"`
	DepositWeightMaint fixedpoint.Fixed `json:"deposit_weight_maint"`

	LiabilityWeightInit  fixedpoint.Fixed `json:"liability_weight_init"`
	LiabilityWeightMaint fixedpoint.Fixed `json:"liability_weight_maint"`

	// MaxCapacity is the deposit ceiling in whole asset units.
	MaxCapacity uint64 `json:"max_capacity"`

	Oracle uuid.UUID `json:"oracle"`
}

// Weights returns the (deposit, liability) weight pair for the given tier.
func (c *BankConfig) Weights(tier WeightTier) (deposit, liability fixedpoint.Fixed) {
	switch tier {
	case WeightTierMaintenance:
		return c.DepositWeightMaint, c.LiabilityWeightMaint
	default:
		return c.DepositWeightInit, c.LiabilityWeightInit
	}
}

// BankConfigOpt is a partial-update patch for BankConfig: every field is
// independently optional, a nil field leaves the live value untouched.
// Applying an all-nil patch is a no-op.
type BankConfigOpt struct {
	DepositWeightInit  *fixedpoint.Fixed `json:"deposit_weight_init,omitempty"`
	DepositWeightMaint *fixedpoint.Fixed `json:"deposit_weight_maint,omitempty"`

	LiabilityWeightInit  *fixedpoint.Fixed `json:"liability_weight_init,omitempty"`
	LiabilityWeightMaint *fixedpoint.Fixed `json:"liability_weight_maint,omitempty"`

	MaxCapacity *uint64 `json:"max_capacity,omitempty"`

	Oracle *uuid.UUID `json:"oracle,omitempty"`
}

// Bank is the per-asset share ledger. Share values express the current
// exchange rate between one share and one underlying asset unit; interest
// accrual moves the share values instead of rewriting per-account balances,
// which keeps accrual O(1) across all depositors.
type Bank struct {
	AssetID uuid.UUID

	DepositShareValue   fixedpoint.Fixed
	LiabilityShareValue fixedpoint.Fixed

	DepositVault   uuid.UUID
	InsuranceVault uuid.UUID
	FeeVault       uuid.UUID

	Config BankConfig

	TotalDepositShares fixedpoint.Fixed
	TotalBorrowShares  fixedpoint.Fixed
}

// NewBank creates a bank with unit share values and zero share totals.
func NewBank(config BankConfig, assetID, depositVault, insuranceVault, feeVault uuid.UUID) Bank {
	return Bank{
		AssetID:             assetID,
		DepositShareValue:   fixedpoint.One(),
		LiabilityShareValue: fixedpoint.One(),
		DepositVault:        depositVault,
		InsuranceVault:      insuranceVault,
		FeeVault:            feeVault,
		Config:              config,
	}
}

// DepositValue converts deposit shares to underlying asset value.
func (b *Bank) DepositValue(shares fixedpoint.Fixed) (fixedpoint.Fixed, error) {
	v, err := shares.Mul(b.DepositShareValue)
	if err != nil {
		return fixedpoint.Fixed{}, fmt.Errorf("deposit value: %w", err)
	}
	return v, nil
}

// LiabilityValue converts borrow shares to underlying asset value.
func (b *Bank) LiabilityValue(shares fixedpoint.Fixed) (fixedpoint.Fixed, error) {
	v, err := shares.Mul(b.LiabilityShareValue)
	if err != nil {
		return fixedpoint.Fixed{}, fmt.Errorf("liability value: %w", err)
	}
	return v, nil
}

// DepositShares converts an underlying asset value to deposit shares.
func (b *Bank) DepositShares(value fixedpoint.Fixed) (fixedpoint.Fixed, error) {
	s, err := value.Div(b.DepositShareValue)
	if err != nil {
		return fixedpoint.Fixed{}, fmt.Errorf("deposit shares: %w", err)
	}
	return s, nil
}

// LiabilityShares converts an underlying asset value to borrow shares.
func (b *Bank) LiabilityShares(value fixedpoint.Fixed) (fixedpoint.Fixed, error) {
	s, err := value.Div(b.LiabilityShareValue)
	if err != nil {
		return fixedpoint.Fixed{}, fmt.Errorf("liability shares: %w", err)
	}
	return s, nil
}

// ChangeDepositShares adds delta to the total deposit shares. A positive
// delta is capacity-checked: if the new total deposit value strictly exceeds
// MaxCapacity converted through the deposit share value, the call fails with
// ErrDepositCapacityExceeded. Withdrawals (negative delta) are never
// capacity-checked.
//
// NOTE: the total is mutated before the capacity check, so a failing call
// leaves the incremented total in place. Callers must treat the receiver as
// scratch state and discard it on error — the engine applies events to a
// copy of the stored record and writes the copy back only on success.
func (b *Bank) ChangeDepositShares(delta fixedpoint.Fixed) error {
	total, err := b.TotalDepositShares.Add(delta)
	if err != nil {
		return fmt.Errorf("change deposit shares: %w", err)
	}
	b.TotalDepositShares = total

	if delta.IsPositive() {
		totalValue, err := b.DepositValue(b.TotalDepositShares)
		if err != nil {
			return err
		}
		capacityValue, err := b.DepositValue(fixedpoint.FromUint(b.Config.MaxCapacity))
		if err != nil {
			return err
		}
		if totalValue.Cmp(capacityValue) > 0 {
			return fmt.Errorf("deposit value %s over capacity %s: %w",
				totalValue, capacityValue, ErrDepositCapacityExceeded)
		}
	}

	return nil
}

// ChangeLiabilityShares adds delta to the total borrow shares. There is no
// borrow-side ceiling here: utilization-based borrow limits live in the rate
// layer, and the asymmetry with deposits is deliberate.
func (b *Bank) ChangeLiabilityShares(delta fixedpoint.Fixed) error {
	total, err := b.TotalBorrowShares.Add(delta)
	if err != nil {
		return fmt.Errorf("change liability shares: %w", err)
	}
	b.TotalBorrowShares = total
	return nil
}

// Configure applies each present field of the patch. Never fails; the merge
// is idempotent and is the only path by which the config mutates.
func (b *Bank) Configure(patch BankConfigOpt) {
	if patch.DepositWeightInit != nil {
		b.Config.DepositWeightInit = *patch.DepositWeightInit
	}
	if patch.DepositWeightMaint != nil {
		b.Config.DepositWeightMaint = *patch.DepositWeightMaint
	}
	if patch.LiabilityWeightInit != nil {
		b.Config.LiabilityWeightInit = *patch.LiabilityWeightInit
	}
	if patch.LiabilityWeightMaint != nil {
		b.Config.LiabilityWeightMaint = *patch.LiabilityWeightMaint
	}
	if patch.MaxCapacity != nil {
		b.Config.MaxCapacity = *patch.MaxCapacity
	}
	if patch.Oracle != nil {
		b.Config.Oracle = *patch.Oracle
	}
}

// CanonicalBytes serializes the bank deterministically for state hashing.
func (b *Bank) CanonicalBytes() []byte {
	buf := make([]byte, 0, 192)

	buf = append(buf, b.AssetID[:]...)
	buf = appendFixed(buf, b.DepositShareValue)
	buf = appendFixed(buf, b.LiabilityShareValue)
	buf = append(buf, b.DepositVault[:]...)
	buf = append(buf, b.InsuranceVault[:]...)
	buf = append(buf, b.FeeVault[:]...)
	buf = appendFixed(buf, b.Config.DepositWeightInit)
	buf = appendFixed(buf, b.Config.DepositWeightMaint)
	buf = appendFixed(buf, b.Config.LiabilityWeightInit)
	buf = appendFixed(buf, b.Config.LiabilityWeightMaint)
	buf = binary.LittleEndian.AppendUint64(buf, b.Config.MaxCapacity)
	buf = append(buf, b.Config.Oracle[:]...)
	buf = appendFixed(buf, b.TotalDepositShares)
	buf = appendFixed(buf, b.TotalBorrowShares)

	return buf
}

func appendFixed(buf []byte, f fixedpoint.Fixed) []byte {
	hi, lo := f.Raw()
	buf = binary.LittleEndian.AppendUint64(buf, uint64(hi))
	buf = binary.LittleEndian.AppendUint64(buf, lo)
	return buf
}
