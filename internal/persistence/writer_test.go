package persistence_test

import (
	"testing"

	"PoolLedger/internal/fixedpoint"
	"PoolLedger/internal/persistence"
	"PoolLedger/internal/state"

	"github.com/google/uuid"
)

func TestBankRowRoundTrip(t *testing.T) {
	depositSV, _ := fixedpoint.FromFloat64(1.0375)
	cfg := state.BankConfig{
		DepositWeightInit:    fixedpoint.One(),
		DepositWeightMaint:   fixedpoint.One(),
		LiabilityWeightInit:  fixedpoint.One(),
		LiabilityWeightMaint: fixedpoint.One(),
		MaxCapacity:          1 << 63, // past int64 range, must survive the trip
		Oracle:               uuid.New(),
	}
	bank := state.NewBank(cfg, uuid.New(), uuid.New(), uuid.New(), uuid.New())
	bank.DepositShareValue = depositSV
	bank.TotalDepositShares = fixedpoint.FromInt(123_456)

	row := persistence.BankRowFromState(&bank, 7, 99)
	if row.SlotIndex != 7 || row.UpdatedSequence != 99 {
		t.Fatalf("slot/sequence: got %d/%d", row.SlotIndex, row.UpdatedSequence)
	}

	restored, err := persistence.BankStateFromRow(row)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	if restored != bank {
		t.Errorf("bank changed through persistence:\n got %+v\nwant %+v", restored, bank)
	}
}

func TestBankStateFromRow_BadFixed(t *testing.T) {
	bank := state.NewBank(state.BankConfig{}, uuid.New(), uuid.New(), uuid.New(), uuid.New())
	row := persistence.BankRowFromState(&bank, 0, 0)
	row.TotalBorrowShares = "garbage"

	if _, err := persistence.BankStateFromRow(row); err == nil {
		t.Error("malformed fixed-point column should fail the restore")
	}
}
