package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"PoolLedger/internal/fixedpoint"
	"PoolLedger/internal/state"

	"github.com/google/uuid"
)

// EventLogWriter writes the event log and the bank/group projections to
// Postgres. Event rows use multi-row INSERT with ON CONFLICT DO NOTHING so a
// replayed batch is idempotent; bank and group rows are upserts keyed by
// asset and the singleton group row.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow is one row of pool.events.
type EventRow struct {
	Sequence       int64
	EventType      string
	IdempotencyKey string
	AssetID        *string
	Payload        []byte // JSON-encoded event payload
	StateHash      []byte
	PrevHash       []byte
	Timestamp      time.Time
	SourceSequence int64
}

// BankRow is one row of pool.banks: the full bank record flattened, with
// fixed-point values as raw decimal strings so nothing is rounded on the way
// through Postgres.
type BankRow struct {
	AssetID              string
	SlotIndex            int
	DepositShareValue    string
	LiabilityShareValue  string
	DepositVault         string
	InsuranceVault       string
	FeeVault             string
	DepositWeightInit    string
	DepositWeightMaint   string
	LiabilityWeightInit  string
	LiabilityWeightMaint string
	MaxCapacity          uint64
	Oracle               string
	TotalDepositShares   string
	TotalBorrowShares    string
	UpdatedSequence      int64
}

// GroupRow is the singleton pool.group_state row.
type GroupRow struct {
	Admin           string
	UpdatedSequence int64
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// BankRowFromState flattens a bank record into its persisted form.
func BankRowFromState(bank *state.Bank, slot int, sequence int64) BankRow {
	return BankRow{
		AssetID:              bank.AssetID.String(),
		SlotIndex:            slot,
		DepositShareValue:    bank.DepositShareValue.RawString(),
		LiabilityShareValue:  bank.LiabilityShareValue.RawString(),
		DepositVault:         bank.DepositVault.String(),
		InsuranceVault:       bank.InsuranceVault.String(),
		FeeVault:             bank.FeeVault.String(),
		DepositWeightInit:    bank.Config.DepositWeightInit.RawString(),
		DepositWeightMaint:   bank.Config.DepositWeightMaint.RawString(),
		LiabilityWeightInit:  bank.Config.LiabilityWeightInit.RawString(),
		LiabilityWeightMaint: bank.Config.LiabilityWeightMaint.RawString(),
		MaxCapacity:          bank.Config.MaxCapacity,
		Oracle:               bank.Config.Oracle.String(),
		TotalDepositShares:   bank.TotalDepositShares.RawString(),
		TotalBorrowShares:    bank.TotalBorrowShares.RawString(),
		UpdatedSequence:      sequence,
	}
}

// BankStateFromRow rebuilds the in-memory bank record from its persisted form.
func BankStateFromRow(row BankRow) (state.Bank, error) {
	var bank state.Bank
	var err error

	if bank.AssetID, err = uuid.Parse(row.AssetID); err != nil {
		return bank, fmt.Errorf("asset_id: %w", err)
	}
	if bank.DepositVault, err = uuid.Parse(row.DepositVault); err != nil {
		return bank, fmt.Errorf("deposit_vault: %w", err)
	}
	if bank.InsuranceVault, err = uuid.Parse(row.InsuranceVault); err != nil {
		return bank, fmt.Errorf("insurance_vault: %w", err)
	}
	if bank.FeeVault, err = uuid.Parse(row.FeeVault); err != nil {
		return bank, fmt.Errorf("fee_vault: %w", err)
	}
	if bank.Config.Oracle, err = uuid.Parse(row.Oracle); err != nil {
		return bank, fmt.Errorf("oracle: %w", err)
	}

	fields := []struct {
		name string
		raw  string
		dst  *fixedpoint.Fixed
	}{
		{"deposit_share_value", row.DepositShareValue, &bank.DepositShareValue},
		{"liability_share_value", row.LiabilityShareValue, &bank.LiabilityShareValue},
		{"deposit_weight_init", row.DepositWeightInit, &bank.Config.DepositWeightInit},
		{"deposit_weight_maint", row.DepositWeightMaint, &bank.Config.DepositWeightMaint},
		{"liability_weight_init", row.LiabilityWeightInit, &bank.Config.LiabilityWeightInit},
		{"liability_weight_maint", row.LiabilityWeightMaint, &bank.Config.LiabilityWeightMaint},
		{"total_deposit_shares", row.TotalDepositShares, &bank.TotalDepositShares},
		{"total_borrow_shares", row.TotalBorrowShares, &bank.TotalBorrowShares},
	}
	for _, f := range fields {
		if *f.dst, err = fixedpoint.ParseRaw(f.raw); err != nil {
			return bank, fmt.Errorf("%s: %w", f.name, err)
		}
	}

	bank.Config.MaxCapacity = row.MaxCapacity
	return bank, nil
}

// WriteEventBatch writes a batch of events to pool.events inside tx.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO pool.events
		(sequence, event_type, idempotency_key, asset_id, payload, state_hash, prev_hash, timestamp, source_sequence)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*9)

	for i, e := range events {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			e.Sequence, e.EventType, e.IdempotencyKey, e.AssetID,
			e.Payload, e.StateHash, e.PrevHash, e.Timestamp, e.SourceSequence,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING" // Idempotent writes

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// UpsertBank writes one bank projection row inside tx. max_capacity travels
// as a decimal string because it is a uint64 and BIGINT is signed.
func (w *EventLogWriter) UpsertBank(ctx context.Context, tx *sql.Tx, row BankRow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO pool.banks
			(asset_id, slot_index, deposit_share_value, liability_share_value,
			 deposit_vault, insurance_vault, fee_vault,
			 deposit_weight_init, deposit_weight_maint,
			 liability_weight_init, liability_weight_maint,
			 max_capacity, oracle,
			 total_deposit_shares, total_borrow_shares, updated_sequence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (asset_id) DO UPDATE SET
			deposit_share_value    = EXCLUDED.deposit_share_value,
			liability_share_value  = EXCLUDED.liability_share_value,
			deposit_weight_init    = EXCLUDED.deposit_weight_init,
			deposit_weight_maint   = EXCLUDED.deposit_weight_maint,
			liability_weight_init  = EXCLUDED.liability_weight_init,
			liability_weight_maint = EXCLUDED.liability_weight_maint,
			max_capacity           = EXCLUDED.max_capacity,
			oracle                 = EXCLUDED.oracle,
			total_deposit_shares   = EXCLUDED.total_deposit_shares,
			total_borrow_shares    = EXCLUDED.total_borrow_shares,
			updated_sequence       = EXCLUDED.updated_sequence
	`,
		row.AssetID, row.SlotIndex, row.DepositShareValue, row.LiabilityShareValue,
		row.DepositVault, row.InsuranceVault, row.FeeVault,
		row.DepositWeightInit, row.DepositWeightMaint,
		row.LiabilityWeightInit, row.LiabilityWeightMaint,
		strconv.FormatUint(row.MaxCapacity, 10), row.Oracle,
		row.TotalDepositShares, row.TotalBorrowShares, row.UpdatedSequence,
	)
	return err
}

// UpsertGroup writes the singleton group row inside tx.
func (w *EventLogWriter) UpsertGroup(ctx context.Context, tx *sql.Tx, row GroupRow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO pool.group_state (id, admin, updated_sequence)
		VALUES (TRUE, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			admin            = EXCLUDED.admin,
			updated_sequence = EXCLUDED.updated_sequence
	`, row.Admin, row.UpdatedSequence)
	return err
}

// LoadBanks reads every persisted bank row ordered by slot.
func (w *EventLogWriter) LoadBanks(ctx context.Context) ([]BankRow, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT asset_id, slot_index, deposit_share_value, liability_share_value,
		       deposit_vault, insurance_vault, fee_vault,
		       deposit_weight_init, deposit_weight_maint,
		       liability_weight_init, liability_weight_maint,
		       max_capacity::TEXT, oracle,
		       total_deposit_shares, total_borrow_shares, updated_sequence
		FROM pool.banks
		ORDER BY slot_index ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BankRow
	for rows.Next() {
		var r BankRow
		var maxCapacity string
		if err := rows.Scan(
			&r.AssetID, &r.SlotIndex, &r.DepositShareValue, &r.LiabilityShareValue,
			&r.DepositVault, &r.InsuranceVault, &r.FeeVault,
			&r.DepositWeightInit, &r.DepositWeightMaint,
			&r.LiabilityWeightInit, &r.LiabilityWeightMaint,
			&maxCapacity, &r.Oracle,
			&r.TotalDepositShares, &r.TotalBorrowShares, &r.UpdatedSequence,
		); err != nil {
			return nil, err
		}
		if r.MaxCapacity, err = strconv.ParseUint(maxCapacity, 10, 64); err != nil {
			return nil, fmt.Errorf("max_capacity for %s: %w", r.AssetID, err)
		}
		out = append(out, r)
	}

	return out, rows.Err()
}

// LoadGroup reads the singleton group row. Returns nil when the service has
// never seen a GroupInit.
func (w *EventLogWriter) LoadGroup(ctx context.Context) (*GroupRow, error) {
	var r GroupRow
	err := w.db.QueryRowContext(ctx, `
		SELECT admin, updated_sequence FROM pool.group_state WHERE id = TRUE
	`).Scan(&r.Admin, &r.UpdatedSequence)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DB exposes the handle for components that share the connection pool.
func (w *EventLogWriter) DB() *sql.DB {
	return w.db
}
