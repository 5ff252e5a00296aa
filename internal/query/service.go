package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"PoolLedger/internal/observability"
	"PoolLedger/internal/persistence"
	"PoolLedger/internal/state"
	"PoolLedger/internal/yield"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrBankNotFound is returned for assets with no registered bank.
var ErrBankNotFound = errors.New("query: no bank for asset")

// PriceSource provides current oracle prices in a common quote currency.
// Prices feed reporting only; the ledger itself never reads them.
type PriceSource interface {
	Price(ctx context.Context, assetID uuid.UUID) (float64, error)
}

// Service answers read-only queries from the Postgres projection tables.
// Every response carries as_of_sequence, the highest durably persisted
// sequence at read time, so callers can reason about freshness.
type Service struct {
	store   *persistence.EventLogWriter
	calc    *yield.Calculator
	prices  PriceSource
	symbols *SymbolTable
	log     zerolog.Logger
}

func NewService(db *sql.DB, calc *yield.Calculator, prices PriceSource, symbols *SymbolTable) *Service {
	if symbols == nil {
		symbols = NewSymbolTable(nil)
	}
	return &Service{
		store:   persistence.NewEventLogWriter(db),
		calc:    calc,
		prices:  prices,
		symbols: symbols,
		log:     observability.NewLogger("query"),
	}
}

// ListBanks returns every registered bank in slot order.
func (s *Service) ListBanks(ctx context.Context) ([]BankSummary, error) {
	asOf, err := s.watermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	rows, err := s.store.LoadBanks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load banks: %w", err)
	}

	out := make([]BankSummary, 0, len(rows))
	for _, row := range rows {
		summary, err := s.summaryFromRow(row, asOf)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// GetBank returns one bank by asset id.
func (s *Service) GetBank(ctx context.Context, assetID uuid.UUID) (*BankSummary, error) {
	asOf, err := s.watermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	row, err := s.bankRow(ctx, assetID)
	if err != nil {
		return nil, err
	}

	summary, err := s.summaryFromRow(*row, asOf)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// GetBankStats returns the derived reporting figures for one bank: value
// totals, utilization, USD sizes and yield rates.
func (s *Service) GetBankStats(ctx context.Context, assetID uuid.UUID) (*BankStats, error) {
	asOf, err := s.watermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	row, err := s.bankRow(ctx, assetID)
	if err != nil {
		return nil, err
	}
	bank, err := persistence.BankStateFromRow(*row)
	if err != nil {
		return nil, fmt.Errorf("decode bank %s: %w", assetID, err)
	}

	info, _ := s.symbols.Lookup(assetID)

	price, err := s.prices.Price(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("price for %s: %w", assetID, err)
	}

	// The emission asset has its own price; only fetch it when the bank
	// actually emits rewards.
	emissionPrice := 0.0
	if info.Emission.Active() {
		emissionPrice, err = s.prices.Price(ctx, info.Emission.AssetID)
		if err != nil {
			return nil, fmt.Errorf("emission price for %s: %w", info.Emission.AssetID, err)
		}
	}

	stats, err := ComputeBankStats(s.calc, &bank, info, price, emissionPrice)
	if err != nil {
		return nil, err
	}
	stats.AsOfSequence = asOf
	return stats, nil
}

// GetGroup returns the group singleton.
func (s *Service) GetGroup(ctx context.Context) (*GroupInfo, error) {
	asOf, err := s.watermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	group, err := s.store.LoadGroup(ctx)
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}

	info := &GroupInfo{AsOfSequence: asOf}
	if group != nil {
		if info.Admin, err = uuid.Parse(group.Admin); err != nil {
			return nil, fmt.Errorf("group admin: %w", err)
		}
	}

	banks, err := s.store.LoadBanks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load banks: %w", err)
	}
	info.BankCount = len(banks)

	return info, nil
}

// ComputeBankStats derives the reporting figures from a decoded bank record.
// Share totals convert to underlying value through the share values, then to
// whole units through the symbol's decimals, then to USD through the price.
func ComputeBankStats(calc *yield.Calculator, bank *state.Bank, info SymbolInfo, price, emissionPrice float64) (*BankStats, error) {
	depositValue, err := bank.DepositValue(bank.TotalDepositShares)
	if err != nil {
		return nil, fmt.Errorf("deposit value: %w", err)
	}
	borrowValue, err := bank.LiabilityValue(bank.TotalBorrowShares)
	if err != nil {
		return nil, fmt.Errorf("borrow value: %w", err)
	}

	unitScale := math.Pow10(int(info.Decimals))
	totalDeposits := depositValue.Float64() / unitScale
	totalBorrows := borrowValue.Float64() / unitScale

	utilization := yield.Utilization(totalBorrows, totalDeposits)

	rates, err := calc.BankRates(utilization, info.Emission, emissionPrice, price)
	if err != nil {
		return nil, fmt.Errorf("bank rates: %w", err)
	}

	supplyUSD := totalDeposits * price
	borrowUSD := totalBorrows * price

	return &BankStats{
		AssetID:            bank.AssetID,
		Symbol:             info.Symbol,
		TotalDeposits:      totalDeposits,
		TotalBorrows:       totalBorrows,
		Utilization:        utilization,
		SupplyUSD:          supplyUSD,
		BorrowUSD:          borrowUSD,
		TVLUSD:             supplyUSD - borrowUSD,
		LendingAPY:         rates.LendingAPY,
		BorrowingAPY:       rates.BorrowingAPY,
		LendingRewardAPY:   rates.LendingRewardAPY,
		BorrowingRewardAPY: rates.BorrowingRewardAPY,
		Price:              price,
	}, nil
}

func (s *Service) summaryFromRow(row persistence.BankRow, asOf int64) (BankSummary, error) {
	assetID, err := uuid.Parse(row.AssetID)
	if err != nil {
		return BankSummary{}, fmt.Errorf("asset_id %q: %w", row.AssetID, err)
	}
	oracle, err := uuid.Parse(row.Oracle)
	if err != nil {
		return BankSummary{}, fmt.Errorf("oracle %q: %w", row.Oracle, err)
	}

	info, _ := s.symbols.Lookup(assetID)

	return BankSummary{
		AssetID:              assetID,
		Symbol:               info.Symbol,
		SlotIndex:            row.SlotIndex,
		DepositShareValue:    row.DepositShareValue,
		LiabilityShareValue:  row.LiabilityShareValue,
		TotalDepositShares:   row.TotalDepositShares,
		TotalBorrowShares:    row.TotalBorrowShares,
		DepositWeightInit:    row.DepositWeightInit,
		DepositWeightMaint:   row.DepositWeightMaint,
		LiabilityWeightInit:  row.LiabilityWeightInit,
		LiabilityWeightMaint: row.LiabilityWeightMaint,
		MaxCapacity:          row.MaxCapacity,
		Oracle:               oracle,
		AsOfSequence:         asOf,
	}, nil
}

func (s *Service) bankRow(ctx context.Context, assetID uuid.UUID) (*persistence.BankRow, error) {
	rows, err := s.store.LoadBanks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load banks: %w", err)
	}
	want := assetID.String()
	for i := range rows {
		if rows[i].AssetID == want {
			return &rows[i], nil
		}
	}
	return nil, fmt.Errorf("asset %s: %w", assetID, ErrBankNotFound)
}

// watermark is the highest sequence durably written to the event log.
func (s *Service) watermark(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.store.DB().QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM pool.events
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
