package query

import (
	"time"

	"github.com/google/uuid"
)

// BankSummary is one bank as served by the read API. Fixed-point fields are
// raw decimal strings (exact); the *_Display fields are float approximations
// for human consumption.
type BankSummary struct {
	AssetID   uuid.UUID `json:"asset_id"`
	Symbol    string    `json:"symbol,omitempty"`
	SlotIndex int       `json:"slot_index"`

	DepositShareValue   string `json:"deposit_share_value"`
	LiabilityShareValue string `json:"liability_share_value"`
	TotalDepositShares  string `json:"total_deposit_shares"`
	TotalBorrowShares   string `json:"total_borrow_shares"`

	DepositWeightInit    string `json:"deposit_weight_init"`
	DepositWeightMaint   string `json:"deposit_weight_maint"`
	LiabilityWeightInit  string `json:"liability_weight_init"`
	LiabilityWeightMaint string `json:"liability_weight_maint"`

	MaxCapacity uint64    `json:"max_capacity"`
	Oracle      uuid.UUID `json:"oracle"`

	AsOfSequence int64 `json:"as_of_sequence"`
}

// BankStats carries the derived reporting figures for one bank: value
// totals, utilization and yield rates. Everything here is advisory and
// computed in float64.
type BankStats struct {
	AssetID uuid.UUID `json:"asset_id"`
	Symbol  string    `json:"symbol,omitempty"`

	TotalDeposits float64 `json:"total_deposits"`
	TotalBorrows  float64 `json:"total_borrows"`
	Utilization   float64 `json:"utilization"`

	SupplyUSD float64 `json:"supply_usd"`
	BorrowUSD float64 `json:"borrow_usd"`
	TVLUSD    float64 `json:"tvl_usd"`

	LendingAPY   float64 `json:"lending_apy"`
	BorrowingAPY float64 `json:"borrowing_apy"`

	LendingRewardAPY   *float64 `json:"lending_reward_apy,omitempty"`
	BorrowingRewardAPY *float64 `json:"borrowing_reward_apy,omitempty"`

	Price        float64 `json:"price"`
	AsOfSequence int64   `json:"as_of_sequence"`
}

// GroupInfo is the group singleton as served by the read API.
type GroupInfo struct {
	Admin        uuid.UUID `json:"admin"`
	BankCount    int       `json:"bank_count"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// SnapshotInfo acknowledges an admin-triggered snapshot.
type SnapshotInfo struct {
	Sequence  int64     `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}
