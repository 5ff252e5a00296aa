package query

import (
	"encoding/json"
	"fmt"
	"os"

	"PoolLedger/internal/yield"

	"github.com/google/uuid"
)

// SymbolInfo is the static metadata for one asset: a human-readable symbol
// and an optional reward emission. Ledger state never depends on any of it.
type SymbolInfo struct {
	Symbol   string
	Decimals uint8
	Emission *yield.Emission
}

// SymbolTable maps asset ids to display metadata. It is loaded once at
// startup and never mutated, so concurrent reads need no locking.
type SymbolTable struct {
	entries map[uuid.UUID]SymbolInfo
}

func NewSymbolTable(entries map[uuid.UUID]SymbolInfo) *SymbolTable {
	if entries == nil {
		entries = map[uuid.UUID]SymbolInfo{}
	}
	return &SymbolTable{entries: entries}
}

// Lookup returns the metadata for an asset; ok is false for assets the table
// doesn't know, which is fine — stats are still served, just unlabeled.
func (st *SymbolTable) Lookup(assetID uuid.UUID) (SymbolInfo, bool) {
	info, ok := st.entries[assetID]
	return info, ok
}

// symbolFileEntry is the on-disk JSON form of one symbol table row.
type symbolFileEntry struct {
	AssetID  string `json:"asset_id"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`

	Emission *struct {
		AssetID       string `json:"asset_id"`
		Rate          uint64 `json:"rate"`
		Decimals      uint8  `json:"decimals"`
		LendingActive bool   `json:"lending_active"`
		BorrowActive  bool   `json:"borrow_active"`
	} `json:"emission,omitempty"`
}

// LoadSymbolTable reads a JSON symbol file. A missing path yields an empty
// table rather than an error: the symbol table is optional operator config.
func LoadSymbolTable(path string) (*SymbolTable, error) {
	if path == "" {
		return NewSymbolTable(nil), nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewSymbolTable(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read symbol table: %w", err)
	}

	var raw []symbolFileEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse symbol table: %w", err)
	}

	entries := make(map[uuid.UUID]SymbolInfo, len(raw))
	for _, e := range raw {
		assetID, err := uuid.Parse(e.AssetID)
		if err != nil {
			return nil, fmt.Errorf("symbol table asset_id %q: %w", e.AssetID, err)
		}

		info := SymbolInfo{Symbol: e.Symbol, Decimals: e.Decimals}
		if e.Emission != nil {
			emissionAsset, err := uuid.Parse(e.Emission.AssetID)
			if err != nil {
				return nil, fmt.Errorf("symbol table emission asset_id %q: %w", e.Emission.AssetID, err)
			}
			info.Emission = &yield.Emission{
				AssetID:       emissionAsset,
				Rate:          e.Emission.Rate,
				Decimals:      e.Emission.Decimals,
				LendingActive: e.Emission.LendingActive,
				BorrowActive:  e.Emission.BorrowActive,
			}
		}
		entries[assetID] = info
	}

	return NewSymbolTable(entries), nil
}
