package state_test

import (
	"errors"
	"testing"

	"PoolLedger/internal/state"

	"github.com/google/uuid"
)

func TestGetBank_Unregistered(t *testing.T) {
	var pool state.LendingPool

	if _, ok := pool.GetBank(uuid.New()); ok {
		t.Error("lookup of unregistered asset should report absent")
	}
	if _, ok := pool.GetBankMut(uuid.New()); ok {
		t.Error("mutable lookup of unregistered asset should report absent")
	}
}

func TestRegisterBank_LookupRoundTrip(t *testing.T) {
	var pool state.LendingPool
	b := newTestBank(t, 1000)

	slot, err := pool.RegisterBank(b)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if slot != 0 {
		t.Errorf("first bank should land in slot 0, got %d", slot)
	}

	got, ok := pool.GetBank(b.AssetID)
	if !ok {
		t.Fatal("registered bank not found")
	}
	if got.AssetID != b.AssetID {
		t.Errorf("asset id: got %s, want %s", got.AssetID, b.AssetID)
	}
}

func TestRegisterBank_DuplicateAsset(t *testing.T) {
	var pool state.LendingPool
	b := newTestBank(t, 1000)

	if _, err := pool.RegisterBank(b); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := pool.RegisterBank(b); !errors.Is(err, state.ErrBankAlreadyRegistered) {
		t.Errorf("duplicate register: got %v, want ErrBankAlreadyRegistered", err)
	}
}

func TestRegisterBank_FullPool(t *testing.T) {
	var pool state.LendingPool

	ids := make([]uuid.UUID, state.MaxPoolBanks)
	for i := range ids {
		b := newTestBank(t, 1000)
		ids[i] = b.AssetID
		if _, err := pool.RegisterBank(b); err != nil {
			t.Fatalf("register bank %d: %v", i, err)
		}
	}

	if pool.Len() != state.MaxPoolBanks {
		t.Fatalf("pool length: got %d, want %d", pool.Len(), state.MaxPoolBanks)
	}

	// Every registered asset resolves to its own bank, collision-free.
	for i, id := range ids {
		got, ok := pool.GetBank(id)
		if !ok {
			t.Fatalf("bank %d missing after full population", i)
		}
		if got.AssetID != id {
			t.Errorf("bank %d: got asset %s, want %s", i, got.AssetID, id)
		}
	}

	if _, err := pool.RegisterBank(newTestBank(t, 1000)); !errors.Is(err, state.ErrPoolFull) {
		t.Errorf("register into full pool: got %v, want ErrPoolFull", err)
	}
}

func TestGetBankMut_MutatesInPlace(t *testing.T) {
	var pool state.LendingPool
	b := newTestBank(t, 1000)
	if _, err := pool.RegisterBank(b); err != nil {
		t.Fatalf("register: %v", err)
	}

	ptr, ok := pool.GetBankMut(b.AssetID)
	if !ok {
		t.Fatal("mutable lookup failed")
	}
	ptr.Config.MaxCapacity = 999

	got, _ := pool.GetBank(b.AssetID)
	if got.Config.MaxCapacity != 999 {
		t.Errorf("mutation not visible: got %d, want 999", got.Config.MaxCapacity)
	}
}

func TestSetSlot_StablePositions(t *testing.T) {
	var pool state.LendingPool
	b := newTestBank(t, 1000)

	if err := pool.SetSlot(42, b); err != nil {
		t.Fatalf("set slot: %v", err)
	}
	if !pool.Banks[42].Present {
		t.Error("slot 42 should be present")
	}
	if err := pool.SetSlot(state.MaxPoolBanks, b); err == nil {
		t.Error("out-of-range slot should fail")
	}
}

func TestGroup_SetInitialConfiguration(t *testing.T) {
	var g state.Group
	b := newTestBank(t, 1000)
	if _, err := g.Pool.RegisterBank(b); err != nil {
		t.Fatalf("register: %v", err)
	}

	admin := uuid.New()
	g.SetInitialConfiguration(admin)

	if g.Admin != admin {
		t.Errorf("admin: got %s, want %s", g.Admin, admin)
	}
	if g.Pool.Len() != 0 {
		t.Error("initial configuration must reset the pool to defaults")
	}
}

func TestGroup_Configure(t *testing.T) {
	var g state.Group
	admin := uuid.New()

	g.Configure(state.GroupConfig{Admin: &admin})
	if g.Admin != admin {
		t.Errorf("admin after patch: got %s, want %s", g.Admin, admin)
	}

	// All-absent patch is a no-op.
	g.Configure(state.GroupConfig{})
	if g.Admin != admin {
		t.Error("empty patch must not change admin")
	}
}
