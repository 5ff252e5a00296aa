package ingestion

import (
	"encoding/json"
	"fmt"

	"PoolLedger/internal/event"
	"PoolLedger/internal/fixedpoint"
	"PoolLedger/internal/state"

	"github.com/google/uuid"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a
// typed event.Event. The ingestion shell validates, parses, and converts raw
// events before sending them to the deterministic core.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "LiquidityChange":
		return parseLiquidityChange(raw.Data)
	case "LoanChange":
		return parseLoanChange(raw.Data)
	case "InterestAccrual":
		return parseInterestAccrual(raw.Data)
	case "BankRegister":
		return parseBankRegister(raw.Data)
	case "BankConfigUpdate":
		return parseBankConfigUpdate(raw.Data)
	case "GroupConfigUpdate":
		return parseGroupConfigUpdate(raw.Data)
	case "GroupInit":
		return parseGroupInit(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS. Field names
// use snake_case to match upstream producers. Fixed-point values travel as
// decimal strings of the raw two's-complement representation so no precision
// is lost in transit.

type shareChangeJSON struct {
	EventID  string `json:"event_id"`
	Asset    string `json:"asset"`
	Delta    string `json:"delta"`
	Sequence int64  `json:"sequence"`
}

func parseLiquidityChange(data []byte) (*event.LiquidityChange, error) {
	var j shareChangeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse LiquidityChange: %w", err)
	}

	eventID, err := uuid.Parse(j.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event_id: %w", err)
	}
	asset, err := uuid.Parse(j.Asset)
	if err != nil {
		return nil, fmt.Errorf("parse asset: %w", err)
	}
	delta, err := fixedpoint.ParseRaw(j.Delta)
	if err != nil {
		return nil, fmt.Errorf("parse delta: %w", err)
	}

	return &event.LiquidityChange{
		EventID:  eventID,
		Asset:    asset,
		Delta:    delta,
		Sequence: j.Sequence,
	}, nil
}

func parseLoanChange(data []byte) (*event.LoanChange, error) {
	var j shareChangeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse LoanChange: %w", err)
	}

	eventID, err := uuid.Parse(j.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event_id: %w", err)
	}
	asset, err := uuid.Parse(j.Asset)
	if err != nil {
		return nil, fmt.Errorf("parse asset: %w", err)
	}
	delta, err := fixedpoint.ParseRaw(j.Delta)
	if err != nil {
		return nil, fmt.Errorf("parse delta: %w", err)
	}

	return &event.LoanChange{
		EventID:  eventID,
		Asset:    asset,
		Delta:    delta,
		Sequence: j.Sequence,
	}, nil
}

type interestAccrualJSON struct {
	EventID             string `json:"event_id"`
	Asset               string `json:"asset"`
	DepositShareValue   string `json:"deposit_share_value"`
	LiabilityShareValue string `json:"liability_share_value"`
	Sequence            int64  `json:"sequence"`
}

func parseInterestAccrual(data []byte) (*event.InterestAccrual, error) {
	var j interestAccrualJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse InterestAccrual: %w", err)
	}

	eventID, err := uuid.Parse(j.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event_id: %w", err)
	}
	asset, err := uuid.Parse(j.Asset)
	if err != nil {
		return nil, fmt.Errorf("parse asset: %w", err)
	}
	depositSV, err := fixedpoint.ParseRaw(j.DepositShareValue)
	if err != nil {
		return nil, fmt.Errorf("parse deposit_share_value: %w", err)
	}
	liabilitySV, err := fixedpoint.ParseRaw(j.LiabilityShareValue)
	if err != nil {
		return nil, fmt.Errorf("parse liability_share_value: %w", err)
	}

	return &event.InterestAccrual{
		EventID:             eventID,
		Asset:               asset,
		DepositShareValue:   depositSV,
		LiabilityShareValue: liabilitySV,
		Sequence:            j.Sequence,
	}, nil
}

type bankRegisterJSON struct {
	EventID        string           `json:"event_id"`
	Asset          string           `json:"asset"`
	DepositVault   string           `json:"deposit_vault"`
	InsuranceVault string           `json:"insurance_vault"`
	FeeVault       string           `json:"fee_vault"`
	Config         state.BankConfig `json:"config"`
	Sequence       int64            `json:"sequence"`
}

func parseBankRegister(data []byte) (*event.BankRegister, error) {
	var j bankRegisterJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse BankRegister: %w", err)
	}

	eventID, err := uuid.Parse(j.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event_id: %w", err)
	}
	asset, err := uuid.Parse(j.Asset)
	if err != nil {
		return nil, fmt.Errorf("parse asset: %w", err)
	}
	depositVault, err := uuid.Parse(j.DepositVault)
	if err != nil {
		return nil, fmt.Errorf("parse deposit_vault: %w", err)
	}
	insuranceVault, err := uuid.Parse(j.InsuranceVault)
	if err != nil {
		return nil, fmt.Errorf("parse insurance_vault: %w", err)
	}
	feeVault, err := uuid.Parse(j.FeeVault)
	if err != nil {
		return nil, fmt.Errorf("parse fee_vault: %w", err)
	}

	return &event.BankRegister{
		EventID:        eventID,
		Asset:          asset,
		DepositVault:   depositVault,
		InsuranceVault: insuranceVault,
		FeeVault:       feeVault,
		Config:         j.Config,
		Sequence:       j.Sequence,
	}, nil
}

type bankConfigUpdateJSON struct {
	EventID  string              `json:"event_id"`
	Asset    string              `json:"asset"`
	Patch    state.BankConfigOpt `json:"patch"`
	Sequence int64               `json:"sequence"`
}

func parseBankConfigUpdate(data []byte) (*event.BankConfigUpdate, error) {
	var j bankConfigUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse BankConfigUpdate: %w", err)
	}

	eventID, err := uuid.Parse(j.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event_id: %w", err)
	}
	asset, err := uuid.Parse(j.Asset)
	if err != nil {
		return nil, fmt.Errorf("parse asset: %w", err)
	}

	return &event.BankConfigUpdate{
		EventID:  eventID,
		Asset:    asset,
		Patch:    j.Patch,
		Sequence: j.Sequence,
	}, nil
}

type groupConfigUpdateJSON struct {
	EventID  string            `json:"event_id"`
	Patch    state.GroupConfig `json:"patch"`
	Sequence int64             `json:"sequence"`
}

func parseGroupConfigUpdate(data []byte) (*event.GroupConfigUpdate, error) {
	var j groupConfigUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse GroupConfigUpdate: %w", err)
	}

	eventID, err := uuid.Parse(j.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event_id: %w", err)
	}

	return &event.GroupConfigUpdate{
		EventID:  eventID,
		Patch:    j.Patch,
		Sequence: j.Sequence,
	}, nil
}

type groupInitJSON struct {
	Admin    string `json:"admin"`
	Sequence int64  `json:"sequence"`
}

func parseGroupInit(data []byte) (*event.GroupInit, error) {
	var j groupInitJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse GroupInit: %w", err)
	}

	admin, err := uuid.Parse(j.Admin)
	if err != nil {
		return nil, fmt.Errorf("parse admin: %w", err)
	}

	return &event.GroupInit{
		Admin:    admin,
		Sequence: j.Sequence,
	}, nil
}
