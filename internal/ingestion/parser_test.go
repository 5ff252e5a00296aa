package ingestion_test

import (
	"encoding/json"
	"testing"
	"time"

	"PoolLedger/internal/event"
	"PoolLedger/internal/fixedpoint"
	"PoolLedger/internal/ingestion"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawEvent {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawEvent{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func TestParseLiquidityChange(t *testing.T) {
	delta := fixedpoint.FromInt(500)
	payload := map[string]interface{}{
		"event_id": "550e8400-e29b-41d4-a716-446655440000",
		"asset":    "660e8400-e29b-41d4-a716-446655440001",
		"delta":    delta.RawString(),
		"sequence": int64(42),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "LiquidityChange")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	lc, ok := evt.(*event.LiquidityChange)
	if !ok {
		t.Fatalf("expected *event.LiquidityChange, got %T", evt)
	}

	if lc.Delta != delta {
		t.Errorf("delta: got %v, want %v", lc.Delta, delta)
	}
	if lc.Sequence != 42 {
		t.Errorf("sequence: got %d, want 42", lc.Sequence)
	}
	if lc.EventType() != event.EventTypeLiquidityChange {
		t.Errorf("event type: got %v, want LiquidityChange", lc.EventType())
	}
}

func TestParseLoanChange_NegativeDelta(t *testing.T) {
	repay, err := fixedpoint.FromInt(250).Neg()
	if err != nil {
		t.Fatalf("neg: %v", err)
	}
	payload := map[string]interface{}{
		"event_id": "550e8400-e29b-41d4-a716-446655440000",
		"asset":    "660e8400-e29b-41d4-a716-446655440001",
		"delta":    repay.RawString(),
		"sequence": int64(7),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "LoanChange")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	lc, ok := evt.(*event.LoanChange)
	if !ok {
		t.Fatalf("expected *event.LoanChange, got %T", evt)
	}

	if !lc.Delta.IsNegative() {
		t.Error("repayment delta should stay negative through the wire")
	}
	if lc.Delta != repay {
		t.Errorf("delta: got %v, want %v", lc.Delta, repay)
	}
}

func TestParseInterestAccrual(t *testing.T) {
	depositSV, _ := fixedpoint.FromFloat64(1.05)
	liabilitySV, _ := fixedpoint.FromFloat64(1.08)
	payload := map[string]interface{}{
		"event_id":              "550e8400-e29b-41d4-a716-446655440000",
		"asset":                 "660e8400-e29b-41d4-a716-446655440001",
		"deposit_share_value":   depositSV.RawString(),
		"liability_share_value": liabilitySV.RawString(),
		"sequence":              int64(9),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "InterestAccrual")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	ia, ok := evt.(*event.InterestAccrual)
	if !ok {
		t.Fatalf("expected *event.InterestAccrual, got %T", evt)
	}

	if ia.DepositShareValue != depositSV {
		t.Errorf("deposit share value: got %v, want %v", ia.DepositShareValue, depositSV)
	}
	if ia.LiabilityShareValue != liabilitySV {
		t.Errorf("liability share value: got %v, want %v", ia.LiabilityShareValue, liabilitySV)
	}
}

func TestParseBankRegister(t *testing.T) {
	one := fixedpoint.One()
	payload := map[string]interface{}{
		"event_id":        "550e8400-e29b-41d4-a716-446655440000",
		"asset":           "660e8400-e29b-41d4-a716-446655440001",
		"deposit_vault":   "770e8400-e29b-41d4-a716-446655440002",
		"insurance_vault": "880e8400-e29b-41d4-a716-446655440003",
		"fee_vault":       "990e8400-e29b-41d4-a716-446655440004",
		"config": map[string]interface{}{
			"deposit_weight_init":    one.RawString(),
			"deposit_weight_maint":   one.RawString(),
			"liability_weight_init":  one.RawString(),
			"liability_weight_maint": one.RawString(),
			"max_capacity":           uint64(1_000_000),
		},
		"sequence": int64(0),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "BankRegister")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	br, ok := evt.(*event.BankRegister)
	if !ok {
		t.Fatalf("expected *event.BankRegister, got %T", evt)
	}

	if br.Config.MaxCapacity != 1_000_000 {
		t.Errorf("max_capacity: got %d, want 1_000_000", br.Config.MaxCapacity)
	}
	if br.Config.DepositWeightInit != one {
		t.Errorf("deposit_weight_init: got %v, want %v", br.Config.DepositWeightInit, one)
	}
	if br.DepositVault == br.FeeVault {
		t.Error("vault ids collapsed during parsing")
	}
}

func TestParseBankConfigUpdate_PartialPatch(t *testing.T) {
	payload := map[string]interface{}{
		"event_id": "550e8400-e29b-41d4-a716-446655440000",
		"asset":    "660e8400-e29b-41d4-a716-446655440001",
		"patch": map[string]interface{}{
			"max_capacity": uint64(5_000),
		},
		"sequence": int64(3),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "BankConfigUpdate")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cu, ok := evt.(*event.BankConfigUpdate)
	if !ok {
		t.Fatalf("expected *event.BankConfigUpdate, got %T", evt)
	}

	if cu.Patch.MaxCapacity == nil || *cu.Patch.MaxCapacity != 5_000 {
		t.Errorf("max_capacity patch: got %v, want 5000", cu.Patch.MaxCapacity)
	}
	// Absent wire fields must come through as nil, not zero values.
	if cu.Patch.DepositWeightInit != nil {
		t.Error("absent deposit_weight_init should be nil in the patch")
	}
	if cu.Patch.Oracle != nil {
		t.Error("absent oracle should be nil in the patch")
	}
}

func TestParseGroupConfigUpdate(t *testing.T) {
	payload := map[string]interface{}{
		"event_id": "550e8400-e29b-41d4-a716-446655440000",
		"patch": map[string]interface{}{
			"admin": "660e8400-e29b-41d4-a716-446655440001",
		},
		"sequence": int64(1),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "GroupConfigUpdate")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	gc, ok := evt.(*event.GroupConfigUpdate)
	if !ok {
		t.Fatalf("expected *event.GroupConfigUpdate, got %T", evt)
	}
	if gc.Patch.Admin == nil {
		t.Fatal("admin patch missing")
	}
	if gc.Patch.Admin.String() != "660e8400-e29b-41d4-a716-446655440001" {
		t.Errorf("admin: got %s", gc.Patch.Admin)
	}
}

func TestParseGroupInit(t *testing.T) {
	payload := map[string]interface{}{
		"admin":    "660e8400-e29b-41d4-a716-446655440001",
		"sequence": int64(0),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "GroupInit")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	gi, ok := evt.(*event.GroupInit)
	if !ok {
		t.Fatalf("expected *event.GroupInit, got %T", evt)
	}
	if gi.EventType() != event.EventTypeGroupInit {
		t.Errorf("event type: got %v, want GroupInit", gi.EventType())
	}
}

func TestParseUnknownEventType_Fails(t *testing.T) {
	raw := ingestion.RawEvent{Data: []byte(`{}`)}
	_, err := ingestion.ParseRawEvent(raw, "NonExistentType")
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestParseInvalidJSON_Fails(t *testing.T) {
	raw := ingestion.RawEvent{Data: []byte(`{invalid json`)}
	_, err := ingestion.ParseRawEvent(raw, "LiquidityChange")
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseInvalidUUID_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"event_id": "not-a-uuid",
		"asset":    "also-not-a-uuid",
		"delta":    fixedpoint.One().RawString(),
		"sequence": int64(0),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawEvent(raw, "LiquidityChange")
	if err == nil {
		t.Fatal("expected error for invalid UUID")
	}
}

func TestParseInvalidFixed_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"event_id": "550e8400-e29b-41d4-a716-446655440000",
		"asset":    "660e8400-e29b-41d4-a716-446655440001",
		"delta":    "not-a-number",
		"sequence": int64(0),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawEvent(raw, "LiquidityChange")
	if err == nil {
		t.Fatal("expected error for malformed fixed-point string")
	}
}
