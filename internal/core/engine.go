package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"PoolLedger/internal/event"
	"PoolLedger/internal/fixedpoint"
	"PoolLedger/internal/observability"
	"PoolLedger/internal/state"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownBank       = errors.New("core: no bank registered for asset")
	ErrShareValueRegress = errors.New("core: accrual would move a share value backwards")
)

// Output is what the engine hands to the persistence worker after an event
// is applied: the event envelope plus the piece of state it touched.
type Output struct {
	Envelope *event.Envelope

	// Bank is a copy of the bank after the event, nil for group-level
	// events. Slot is its stable pool position.
	Bank *state.Bank
	Slot int

	// Admin is the group admin after the event.
	Admin uuid.UUID
}

// Engine is the single-threaded event processor that owns the group record.
// The surrounding shell serializes all access: the engine performs no
// locking, and every mutation runs against a scratch copy of the bank so a
// rejected event leaves the owned state untouched.
type Engine struct {
	sequence     int64
	group        state.Group
	hasher       *StateHasher
	idempotency  *IdempotencyChecker
	seqValidator *SequenceValidator
	metrics      *observability.Metrics
	log          zerolog.Logger

	persistChan chan<- Output
}

func NewEngine(
	startSequence int64,
	persistChan chan<- Output,
	dbChecker DBIdempotencyChecker,
	idempotencyCapacity int,
	metrics *observability.Metrics,
) *Engine {
	return &Engine{
		sequence:     startSequence,
		hasher:       NewStateHasher(),
		idempotency:  NewIdempotencyChecker(idempotencyCapacity, dbChecker),
		seqValidator: NewSequenceValidator(),
		metrics:      metrics,
		log:          observability.NewLogger("engine"),
		persistChan:  persistChan,
	}
}

// ProcessEvent validates, dedups and applies one event. A returned error
// means the event was rejected and the group state is unchanged.
func (e *Engine) ProcessEvent(evt event.Event) error {
	start := time.Now()
	eventType := evt.EventType().String()
	idempotencyKey := evt.IdempotencyKey()

	isDuplicate, tier := e.idempotency.IsDuplicate(eventType, idempotencyKey)
	if isDuplicate && e.metrics != nil {
		e.metrics.IdempotencyDuplicates.WithLabelValues(eventType, tier).Inc()
	}

	partition := e.partition(evt)

	// Accruals are periodic snapshots: stale ones are skipped, gaps accepted.
	if acc, ok := evt.(*event.InterestAccrual); ok {
		if stale := e.seqValidator.ValidateAccrualSequence(acc.Asset.String(), acc.Sequence); stale {
			return nil
		}
	} else {
		if err := e.seqValidator.ValidateSequence(partition, evt.SourceSequence(), isDuplicate); err != nil {
			e.reject(eventType, "sequence")
			return fmt.Errorf("sequence validation failed: %w", err)
		}
	}

	if isDuplicate {
		e.reject(eventType, "duplicate")
		return nil
	}

	bank, slot, err := e.dispatch(evt)
	if err != nil {
		e.reject(eventType, rejectReason(err))
		return fmt.Errorf("dispatch %s: %w", eventType, err)
	}

	e.idempotency.MarkProcessed(eventType, idempotencyKey)
	e.sequence++

	hashStart := time.Now()
	prevHash := e.hasher.GetPrevHash()
	stateHash := e.hasher.ComputeHash(e.sequence, e.stateDigest(bank))
	if e.metrics != nil {
		e.metrics.StateHashDuration.Observe(time.Since(hashStart).Seconds())
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		// Events are plain structs; this only fires on a programming error.
		e.log.Error().Err(err).Str("event_type", eventType).Msg("payload marshal failed")
		payload = []byte("{}")
	}

	envelope := &event.Envelope{
		Sequence:       e.sequence,
		IdempotencyKey: idempotencyKey,
		EventType:      evt.EventType(),
		AssetID:        evt.AssetID(),
		Timestamp:      time.Now().UTC(),
		SourceSequence: evt.SourceSequence(),
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	out := Output{Envelope: envelope, Bank: bank, Slot: slot, Admin: e.group.Admin}

	// Blocking send: if persistence falls behind, the engine stalls rather
	// than losing an applied event.
	e.persistChan <- out

	if e.metrics != nil {
		e.metrics.EventsApplied.WithLabelValues(eventType).Inc()
		e.metrics.EventApplyDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		e.metrics.EngineSequence.Set(float64(e.sequence))
		e.metrics.PoolBanks.Set(float64(e.group.Pool.Len()))
		if bank != nil {
			asset := bank.AssetID.String()
			e.metrics.BankDepositShares.WithLabelValues(asset).Set(bank.TotalDepositShares.Float64())
			e.metrics.BankBorrowShares.WithLabelValues(asset).Set(bank.TotalBorrowShares.Float64())
		}
	}

	e.log.Debug().
		Str("event_type", eventType).
		Int64("sequence", e.sequence).
		Msg("event applied")

	return nil
}

// dispatch applies the event to the group and returns a copy of the bank it
// touched (nil for group-level events) plus its slot.
func (e *Engine) dispatch(evt event.Event) (*state.Bank, int, error) {
	switch ev := evt.(type) {
	case *event.LiquidityChange:
		return e.applyToBank(ev.Asset, func(b *state.Bank) error {
			err := b.ChangeDepositShares(ev.Delta)
			if errors.Is(err, state.ErrDepositCapacityExceeded) && e.metrics != nil {
				e.metrics.CapacityRejections.WithLabelValues(ev.Asset.String()).Inc()
			}
			return err
		})

	case *event.LoanChange:
		return e.applyToBank(ev.Asset, func(b *state.Bank) error {
			return b.ChangeLiabilityShares(ev.Delta)
		})

	case *event.InterestAccrual:
		return e.applyToBank(ev.Asset, func(b *state.Bank) error {
			return applyAccrual(b, ev.DepositShareValue, ev.LiabilityShareValue)
		})

	case *event.BankConfigUpdate:
		return e.applyToBank(ev.Asset, func(b *state.Bank) error {
			b.Configure(ev.Patch)
			return nil
		})

	case *event.BankRegister:
		bank := state.NewBank(ev.Config, ev.Asset, ev.DepositVault, ev.InsuranceVault, ev.FeeVault)
		slot, err := e.group.Pool.RegisterBank(bank)
		if err != nil {
			return nil, 0, err
		}
		registered := e.group.Pool.Banks[slot].Bank
		return &registered, slot, nil

	case *event.GroupConfigUpdate:
		e.group.Configure(ev.Patch)
		return nil, 0, nil

	case *event.GroupInit:
		e.group.SetInitialConfiguration(ev.Admin)
		return nil, 0, nil

	default:
		return nil, 0, fmt.Errorf("unhandled event type %s", evt.EventType())
	}
}

// applyToBank runs fn against a scratch copy of the bank and stores the copy
// back only when fn succeeds. Share-change operations mutate before they
// validate, so the copy is what makes a rejected event side-effect free.
func (e *Engine) applyToBank(asset uuid.UUID, fn func(*state.Bank) error) (*state.Bank, int, error) {
	slot, ok := e.group.Pool.SlotOf(asset)
	if !ok {
		return nil, 0, fmt.Errorf("asset %s: %w", asset, ErrUnknownBank)
	}

	scratch := e.group.Pool.Banks[slot].Bank
	if err := fn(&scratch); err != nil {
		return nil, 0, err
	}

	e.group.Pool.Banks[slot].Bank = scratch
	return &scratch, slot, nil
}

// applyAccrual moves both share values forward. Share values are exchange
// rates that only grow as interest accrues; a regression means the rate
// engine and the ledger disagree and the event must not land.
func applyAccrual(b *state.Bank, depositSV, liabilitySV fixedpoint.Fixed) error {
	if depositSV.Cmp(b.DepositShareValue) < 0 || liabilitySV.Cmp(b.LiabilityShareValue) < 0 {
		return fmt.Errorf("deposit %s -> %s, liability %s -> %s: %w",
			b.DepositShareValue, depositSV, b.LiabilityShareValue, liabilitySV,
			ErrShareValueRegress)
	}
	b.DepositShareValue = depositSV
	b.LiabilityShareValue = liabilitySV
	return nil
}

// stateDigest feeds the hash chain: the touched bank's canonical bytes, or
// the admin id for group-level events.
func (e *Engine) stateDigest(bank *state.Bank) []byte {
	if bank != nil {
		return bank.CanonicalBytes()
	}
	return e.group.Admin[:]
}

func (e *Engine) partition(evt event.Event) string {
	if id := evt.AssetID(); id != nil {
		return id.String()
	}
	return "group"
}

func (e *Engine) reject(eventType, reason string) {
	if e.metrics != nil {
		e.metrics.EventsRejected.WithLabelValues(eventType, reason).Inc()
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, state.ErrDepositCapacityExceeded):
		return "capacity"
	case errors.Is(err, fixedpoint.ErrNumericOverflow):
		return "overflow"
	case errors.Is(err, ErrUnknownBank):
		return "unknown_bank"
	case errors.Is(err, ErrShareValueRegress):
		return "regression"
	case errors.Is(err, state.ErrBankAlreadyRegistered):
		return "duplicate_bank"
	case errors.Is(err, state.ErrPoolFull):
		return "pool_full"
	default:
		return "invalid"
	}
}

// ReplayEvent re-applies a persisted event during recovery. Replay skips the
// dedup tiers — every replayed event is in the log by definition — and sends
// nothing to the persist channel. The recomputed state hash must match the
// stored one; a mismatch means the log and the state transition function
// disagree and recovery must not continue.
func (e *Engine) ReplayEvent(evt event.Event, storedSequence int64, storedHash [32]byte) error {
	eventType := evt.EventType().String()

	if acc, ok := evt.(*event.InterestAccrual); ok {
		if stale := e.seqValidator.ValidateAccrualSequence(acc.Asset.String(), acc.Sequence); stale {
			return fmt.Errorf("replay: persisted accrual for %s is stale at source sequence %d", acc.Asset, acc.Sequence)
		}
	} else {
		if err := e.seqValidator.ValidateSequence(e.partition(evt), evt.SourceSequence(), false); err != nil {
			return fmt.Errorf("replay sequence validation: %w", err)
		}
	}

	bank, _, err := e.dispatch(evt)
	if err != nil {
		return fmt.Errorf("replay dispatch %s: %w", eventType, err)
	}

	e.idempotency.MarkProcessed(eventType, evt.IdempotencyKey())
	e.sequence++

	if e.sequence != storedSequence {
		return fmt.Errorf("replay sequence drift: computed %d, log has %d", e.sequence, storedSequence)
	}

	stateHash := e.hasher.ComputeHash(e.sequence, e.stateDigest(bank))
	if stateHash != storedHash {
		return fmt.Errorf("replay state hash mismatch at sequence %d", e.sequence)
	}

	return nil
}

// Sequence returns the engine's current global sequence.
func (e *Engine) Sequence() int64 {
	return e.sequence
}

// Group returns a copy of the owned group record, for queries and tests.
func (e *Engine) Group() state.Group {
	return e.group
}

// StateHash returns the current hash-chain tip.
func (e *Engine) StateHash() [32]byte {
	return e.hasher.GetPrevHash()
}

// Restore rebuilds the engine's owned state from a snapshot.
func (e *Engine) Restore(group state.Group, sequence int64, stateHash [32]byte, sequenceState map[string]int64, idempotencyKeys []string) {
	e.group = group
	e.sequence = sequence
	e.hasher.SetPrevHash(stateHash)
	for partition, next := range sequenceState {
		e.seqValidator.SetExpectedSequence(partition, next)
	}
	e.idempotency.WarmLRU(idempotencyKeys)
}

// SequenceState exports per-partition ordering state for snapshotting.
func (e *Engine) SequenceState() map[string]int64 {
	return e.seqValidator.SequenceState()
}

// IdempotencyKeys exports the dedup LRU contents for snapshotting.
func (e *Engine) IdempotencyKeys() []string {
	return e.idempotency.Keys()
}
