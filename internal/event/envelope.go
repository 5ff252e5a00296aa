package event

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeLiquidityChange
	EventTypeLoanChange
	EventTypeInterestAccrual
	EventTypeBankRegister
	EventTypeBankConfigUpdate
	EventTypeGroupConfigUpdate
	EventTypeGroupInit
)

// Envelope wraps every event in the log
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Bank context (nil for group-level events)
	AssetID *uuid.UUID

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// AssetID returns the bank context (nil for group-level events)
	AssetID() *uuid.UUID

	// SourceSequence returns upstream ordering key
	SourceSequence() int64
}

func (et EventType) String() string {
	switch et {
	case EventTypeLiquidityChange:
		return "LiquidityChange"
	case EventTypeLoanChange:
		return "LoanChange"
	case EventTypeInterestAccrual:
		return "InterestAccrual"
	case EventTypeBankRegister:
		return "BankRegister"
	case EventTypeBankConfigUpdate:
		return "BankConfigUpdate"
	case EventTypeGroupConfigUpdate:
		return "GroupConfigUpdate"
	case EventTypeGroupInit:
		return "GroupInit"
	default:
		return "Unknown"
	}
}
