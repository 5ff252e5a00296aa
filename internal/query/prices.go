package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// ErrPriceUnavailable is returned when no price is known for an asset.
// Stats endpoints surface it as a missing valuation, not a server fault.
var ErrPriceUnavailable = errors.New("query: price unavailable")

// StaticPriceSource serves prices from a fixed in-memory table. It stands in
// for a live oracle feed: valuations are advisory and a stale price degrades
// reporting, never ledger state. Loaded once at startup, never mutated.
type StaticPriceSource struct {
	prices map[uuid.UUID]float64
}

func NewStaticPriceSource(prices map[uuid.UUID]float64) *StaticPriceSource {
	if prices == nil {
		prices = map[uuid.UUID]float64{}
	}
	return &StaticPriceSource{prices: prices}
}

// Price implements PriceSource.
func (s *StaticPriceSource) Price(_ context.Context, assetID uuid.UUID) (float64, error) {
	p, ok := s.prices[assetID]
	if !ok {
		return 0, fmt.Errorf("asset %s: %w", assetID, ErrPriceUnavailable)
	}
	return p, nil
}

// priceFileEntry is the on-disk JSON form of one price table row.
type priceFileEntry struct {
	AssetID string  `json:"asset_id"`
	Price   float64 `json:"price"`
}

// LoadPriceTable reads a JSON price file. Like the symbol table, a missing
// path yields an empty source: unpriced banks still report share totals,
// just without USD valuations.
func LoadPriceTable(path string) (*StaticPriceSource, error) {
	if path == "" {
		return NewStaticPriceSource(nil), nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewStaticPriceSource(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read price table: %w", err)
	}

	var raw []priceFileEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse price table: %w", err)
	}

	prices := make(map[uuid.UUID]float64, len(raw))
	for _, e := range raw {
		assetID, err := uuid.Parse(e.AssetID)
		if err != nil {
			return nil, fmt.Errorf("price table asset_id %q: %w", e.AssetID, err)
		}
		if e.Price < 0 {
			return nil, fmt.Errorf("price table asset %s: negative price %f", assetID, e.Price)
		}
		prices[assetID] = e.Price
	}

	return NewStaticPriceSource(prices), nil
}
