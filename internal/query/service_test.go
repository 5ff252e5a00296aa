package query_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"PoolLedger/internal/fixedpoint"
	"PoolLedger/internal/query"
	"PoolLedger/internal/state"
	"PoolLedger/internal/yield"

	"github.com/google/uuid"
)

// flatCurve charges a fixed spread regardless of utilization.
type flatCurve struct {
	lending, borrowing float64
}

func (c flatCurve) Rates(_ float64) (float64, float64, error) {
	return c.lending, c.borrowing, nil
}

func newStatsBank(t *testing.T, deposits, borrows int64) state.Bank {
	t.Helper()
	bank := state.NewBank(state.BankConfig{
		DepositWeightInit:    fixedpoint.One(),
		DepositWeightMaint:   fixedpoint.One(),
		LiabilityWeightInit:  fixedpoint.One(),
		LiabilityWeightMaint: fixedpoint.One(),
		MaxCapacity:          1_000_000_000,
	}, uuid.New(), uuid.New(), uuid.New(), uuid.New())
	bank.TotalDepositShares = fixedpoint.FromInt(deposits)
	bank.TotalBorrowShares = fixedpoint.FromInt(borrows)
	return bank
}

func TestComputeBankStats_Totals(t *testing.T) {
	calc := yield.NewCalculatorWithPeriods(flatCurve{lending: 0.04, borrowing: 0.10}, 12)
	bank := newStatsBank(t, 4_000_000, 1_000_000)

	// 6 decimals: 4_000_000 smallest units = 4 whole tokens at $2.50.
	info := query.SymbolInfo{Symbol: "USDX", Decimals: 6}
	stats, err := query.ComputeBankStats(calc, &bank, info, 2.50, 0)
	if err != nil {
		t.Fatalf("compute stats: %v", err)
	}

	if math.Abs(stats.TotalDeposits-4.0) > 1e-9 {
		t.Errorf("total deposits: got %f, want 4.0", stats.TotalDeposits)
	}
	if math.Abs(stats.Utilization-0.25) > 1e-9 {
		t.Errorf("utilization: got %f, want 0.25", stats.Utilization)
	}
	if math.Abs(stats.SupplyUSD-10.0) > 1e-9 {
		t.Errorf("supply usd: got %f, want 10.0", stats.SupplyUSD)
	}
	if math.Abs(stats.TVLUSD-7.5) > 1e-9 {
		t.Errorf("tvl usd: got %f, want 7.5", stats.TVLUSD)
	}
	if stats.LendingAPY <= 0.04 {
		t.Errorf("lending apy %f should exceed the nominal 0.04 after compounding", stats.LendingAPY)
	}
	if stats.LendingRewardAPY != nil {
		t.Error("no emission configured, reward apy must be nil")
	}
}

func TestComputeBankStats_AccruedShareValues(t *testing.T) {
	calc := yield.NewCalculatorWithPeriods(flatCurve{lending: 0, borrowing: 0}, 1)
	bank := newStatsBank(t, 1_000, 0)
	sv, _ := fixedpoint.FromFloat64(1.5)
	bank.DepositShareValue = sv

	stats, err := query.ComputeBankStats(calc, &bank, query.SymbolInfo{}, 1.0, 0)
	if err != nil {
		t.Fatalf("compute stats: %v", err)
	}

	// 1000 shares at share value 1.5 is 1500 underlying.
	if math.Abs(stats.TotalDeposits-1500) > 1e-6 {
		t.Errorf("total deposits: got %f, want 1500", stats.TotalDeposits)
	}
}

func TestComputeBankStats_EmissionBlending(t *testing.T) {
	calc := yield.NewCalculatorWithPeriods(flatCurve{lending: 0.02, borrowing: 0.05}, 12)
	bank := newStatsBank(t, 1_000, 500)

	info := query.SymbolInfo{
		Symbol: "SOLX",
		Emission: &yield.Emission{
			AssetID:       uuid.New(),
			Rate:          1_000_000,
			Decimals:      6,
			LendingActive: true,
		},
	}

	stats, err := query.ComputeBankStats(calc, &bank, info, 10.0, 2.0)
	if err != nil {
		t.Fatalf("compute stats: %v", err)
	}

	if stats.LendingRewardAPY == nil {
		t.Fatal("lending emission active, reward apy missing")
	}
	if *stats.LendingRewardAPY <= stats.LendingAPY {
		t.Errorf("reward apy %f should exceed base apy %f",
			*stats.LendingRewardAPY, stats.LendingAPY)
	}
	if stats.BorrowingRewardAPY != nil {
		t.Error("borrow emission inactive, reward apy must be nil")
	}
}

func TestLoadSymbolTable(t *testing.T) {
	asset := uuid.New()
	emissionAsset := uuid.New()
	content := `[
		{
			"asset_id": "` + asset.String() + `",
			"symbol": "USDX",
			"decimals": 6,
			"emission": {
				"asset_id": "` + emissionAsset.String() + `",
				"rate": 500,
				"decimals": 9,
				"lending_active": true,
				"borrow_active": false
			}
		}
	]`

	path := filepath.Join(t.TempDir(), "symbols.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write symbol file: %v", err)
	}

	table, err := query.LoadSymbolTable(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	info, ok := table.Lookup(asset)
	if !ok {
		t.Fatal("asset missing from table")
	}
	if info.Symbol != "USDX" || info.Decimals != 6 {
		t.Errorf("info: got %+v", info)
	}
	if !info.Emission.Active() || info.Emission.AssetID != emissionAsset {
		t.Errorf("emission: got %+v", info.Emission)
	}
	if info.Emission.BorrowActive {
		t.Error("borrow_active should be false")
	}

	if _, ok := table.Lookup(uuid.New()); ok {
		t.Error("unknown asset should miss")
	}
}

func TestLoadSymbolTable_MissingFile(t *testing.T) {
	table, err := query.LoadSymbolTable(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing file should yield an empty table: %v", err)
	}
	if _, ok := table.Lookup(uuid.New()); ok {
		t.Error("empty table should miss everything")
	}
}
