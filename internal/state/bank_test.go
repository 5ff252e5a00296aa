package state_test

import (
	"errors"
	"testing"

	"PoolLedger/internal/fixedpoint"
	"PoolLedger/internal/state"

	"github.com/google/uuid"
)

func newTestBank(t *testing.T, maxCapacity uint64) state.Bank {
	t.Helper()
	cfg := state.BankConfig{
		DepositWeightInit:    fixedpoint.One(),
		DepositWeightMaint:   fixedpoint.One(),
		LiabilityWeightInit:  fixedpoint.One(),
		LiabilityWeightMaint: fixedpoint.One(),
		MaxCapacity:          maxCapacity,
		Oracle:               uuid.New(),
	}
	return state.NewBank(cfg, uuid.New(), uuid.New(), uuid.New(), uuid.New())
}

func TestNewBank_UnitShareValues(t *testing.T) {
	b := newTestBank(t, 1000)

	if b.DepositShareValue != fixedpoint.One() {
		t.Errorf("deposit share value: got %v, want 1", b.DepositShareValue)
	}
	if b.LiabilityShareValue != fixedpoint.One() {
		t.Errorf("liability share value: got %v, want 1", b.LiabilityShareValue)
	}
	if !b.TotalDepositShares.IsZero() || !b.TotalBorrowShares.IsZero() {
		t.Error("new bank should have zero share totals")
	}
}

func TestDepositShares_RoundTrip(t *testing.T) {
	b := newTestBank(t, 1_000_000)
	// Move the exchange rate off 1 so the conversion does real work.
	b.DepositShareValue, _ = fixedpoint.FromFloat64(1.5)

	values := []int64{1, 10, 12345, 999_999}
	for _, v := range values {
		value := fixedpoint.FromInt(v)
		shares, err := b.DepositShares(value)
		if err != nil {
			t.Fatalf("DepositShares(%d): %v", v, err)
		}
		back, err := b.DepositValue(shares)
		if err != nil {
			t.Fatalf("DepositValue: %v", err)
		}

		// Round trip within one ulp of the 48-bit fraction.
		diff, _ := back.Sub(value)
		if diff.IsNegative() {
			diff, _ = diff.Neg()
		}
		ulp := fixedpoint.FromRaw(0, 2)
		if diff.Cmp(ulp) > 0 {
			t.Errorf("round trip for %d: got %v, want %v (diff %v)", v, back, value, diff)
		}
	}
}

func TestDepositShares_ZeroShareValue(t *testing.T) {
	b := newTestBank(t, 1000)
	b.DepositShareValue = fixedpoint.Zero()

	_, err := b.DepositShares(fixedpoint.FromInt(10))
	if !errors.Is(err, fixedpoint.ErrNumericOverflow) {
		t.Errorf("zero share value: got %v, want ErrNumericOverflow", err)
	}
}

func TestChangeDepositShares_WithinCapacity(t *testing.T) {
	b := newTestBank(t, 1000)

	if err := b.ChangeDepositShares(fixedpoint.FromInt(500)); err != nil {
		t.Fatalf("deposit 500: %v", err)
	}
	if b.TotalDepositShares != fixedpoint.FromInt(500) {
		t.Errorf("total: got %v, want 500", b.TotalDepositShares)
	}
}

func TestChangeDepositShares_CapacityExceeded(t *testing.T) {
	b := newTestBank(t, 1000)

	if err := b.ChangeDepositShares(fixedpoint.FromInt(500)); err != nil {
		t.Fatalf("deposit 500: %v", err)
	}

	err := b.ChangeDepositShares(fixedpoint.FromInt(600))
	if !errors.Is(err, state.ErrDepositCapacityExceeded) {
		t.Fatalf("deposit 600 past capacity: got %v, want ErrDepositCapacityExceeded", err)
	}

	// Reference ordering: the total is mutated even on a failing call.
	// Callers discard the record as a unit on error.
	if b.TotalDepositShares != fixedpoint.FromInt(1100) {
		t.Errorf("total after failed deposit: got %v, want 1100", b.TotalDepositShares)
	}
}

func TestChangeDepositShares_ExactCapacityAllowed(t *testing.T) {
	b := newTestBank(t, 1000)

	if err := b.ChangeDepositShares(fixedpoint.FromInt(1000)); err != nil {
		t.Errorf("deposit to exact capacity: %v", err)
	}
}

func TestChangeDepositShares_WithdrawalNeverChecked(t *testing.T) {
	b := newTestBank(t, 10)
	// Force the total above capacity, then withdraw: no capacity error.
	b.TotalDepositShares = fixedpoint.FromInt(500)

	neg, _ := fixedpoint.FromInt(100).Neg()
	if err := b.ChangeDepositShares(neg); err != nil {
		t.Errorf("withdrawal: %v", err)
	}
	if b.TotalDepositShares != fixedpoint.FromInt(400) {
		t.Errorf("total after withdrawal: got %v, want 400", b.TotalDepositShares)
	}
}

func TestChangeLiabilityShares_NoCeiling(t *testing.T) {
	b := newTestBank(t, 10)

	if err := b.ChangeLiabilityShares(fixedpoint.FromInt(1_000_000_000)); err != nil {
		t.Errorf("borrow far past deposit capacity: %v", err)
	}
	if b.TotalBorrowShares != fixedpoint.FromInt(1_000_000_000) {
		t.Errorf("borrow total: got %v", b.TotalBorrowShares)
	}
}

func TestChangeLiabilityShares_OverflowOnly(t *testing.T) {
	b := newTestBank(t, 10)
	b.TotalBorrowShares = fixedpoint.FromRaw(1<<63-1, ^uint64(0))

	err := b.ChangeLiabilityShares(fixedpoint.One())
	if !errors.Is(err, fixedpoint.ErrNumericOverflow) {
		t.Errorf("overflowing borrow: got %v, want ErrNumericOverflow", err)
	}
}

func TestConfigure_PartialPatch(t *testing.T) {
	b := newTestBank(t, 1000)
	origMaint := b.Config.DepositWeightMaint

	newInit, _ := fixedpoint.FromFloat64(0.8)
	b.Configure(state.BankConfigOpt{DepositWeightInit: &newInit})

	if b.Config.DepositWeightInit != newInit {
		t.Errorf("init weight: got %v, want %v", b.Config.DepositWeightInit, newInit)
	}
	if b.Config.DepositWeightMaint != origMaint {
		t.Errorf("maint weight changed by init-only patch: got %v, want %v",
			b.Config.DepositWeightMaint, origMaint)
	}
}

func TestConfigure_EmptyPatchNoOp(t *testing.T) {
	b := newTestBank(t, 1000)
	before := b.Config

	b.Configure(state.BankConfigOpt{})

	if b.Config != before {
		t.Error("all-absent patch must leave config untouched")
	}
}

func TestWeights_Tiers(t *testing.T) {
	depInit, _ := fixedpoint.FromFloat64(0.8)
	depMaint, _ := fixedpoint.FromFloat64(0.9)
	liabInit, _ := fixedpoint.FromFloat64(1.2)
	liabMaint, _ := fixedpoint.FromFloat64(1.1)

	cfg := state.BankConfig{
		DepositWeightInit:    depInit,
		DepositWeightMaint:   depMaint,
		LiabilityWeightInit:  liabInit,
		LiabilityWeightMaint: liabMaint,
	}

	d, l := cfg.Weights(state.WeightTierInitial)
	if d != depInit || l != liabInit {
		t.Errorf("initial tier: got (%v, %v), want (%v, %v)", d, l, depInit, liabInit)
	}

	d, l = cfg.Weights(state.WeightTierMaintenance)
	if d != depMaint || l != liabMaint {
		t.Errorf("maintenance tier: got (%v, %v), want (%v, %v)", d, l, depMaint, liabMaint)
	}
}

func TestCanonicalBytes_Deterministic(t *testing.T) {
	b := newTestBank(t, 1000)

	first := b.CanonicalBytes()
	second := b.CanonicalBytes()
	if string(first) != string(second) {
		t.Error("canonical bytes must be deterministic")
	}

	if err := b.ChangeDepositShares(fixedpoint.FromInt(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if string(b.CanonicalBytes()) == string(first) {
		t.Error("canonical bytes must change when state changes")
	}
}
