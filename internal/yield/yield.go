// Package yield derives annualized yield figures from ledger share totals,
// an external interest-rate curve and optional reward emissions. Figures are
// advisory reporting outputs, so they are computed in float64 rather than the
// ledger's fixed-point type.
package yield

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// SecondsPerYear is the default compounding period count for APR→APY
// conversion: rates accrue per second.
const SecondsPerYear = 31_536_000

// ErrRateCurveContract is returned when a curve yields rates outside its
// documented contract (negative, or lending above borrowing).
var ErrRateCurveContract = errors.New("yield: rate curve violated its contract")

// RateCurve is the external interest-rate model. Contract: for any
// utilization in [0, 1], lendingApr <= borrowingApr (the spread is protocol
// revenue), both non-negative, and borrowingApr non-decreasing in
// utilization. The curve itself is a collaborator; this package only
// consumes it.
type RateCurve interface {
	Rates(utilization float64) (lendingApr, borrowingApr float64, err error)
}

// AprToApy converts a nominal annual rate to the effective annual rate after
// compounding over the given number of periods: (1 + apr/periods)^periods - 1.
// Monotonic increasing in apr for fixed periods; 0 when apr is 0.
func AprToApy(apr, periods float64) float64 {
	return math.Pow(1+apr/periods, periods) - 1
}

// Utilization is total borrowed value over total deposited value, defined as
// 0 when nothing is deposited.
func Utilization(totalBorrows, totalDeposits float64) float64 {
	if totalDeposits == 0 {
		return 0
	}
	return totalBorrows / totalDeposits
}

// Emission describes a reward asset distributed to depositors and/or
// borrowers of a bank. Rate is the raw emission rate per unit time in the
// emission asset's smallest units; Decimals is that asset's unit precision.
type Emission struct {
	AssetID  uuid.UUID
	Rate     uint64
	Decimals uint8

	LendingActive bool
	BorrowActive  bool
}

// Active reports whether the emission refers to a real asset. A nil or
// default-asset emission yields no reward APY at all, as opposed to a
// reward APY of zero.
func (e *Emission) Active() bool {
	return e != nil && e.AssetID != uuid.Nil
}

// Rates carries the derived APY figures for one bank. Reward fields are nil
// when no emission applies to that side.
type Rates struct {
	LendingAPY   float64
	BorrowingAPY float64

	LendingRewardAPY   *float64
	BorrowingRewardAPY *float64
}

// Calculator blends base curve rates with emission rewards and compounds
// them to APYs.
type Calculator struct {
	curve   RateCurve
	periods float64
}

func NewCalculator(curve RateCurve) *Calculator {
	return &Calculator{curve: curve, periods: SecondsPerYear}
}

// NewCalculatorWithPeriods overrides the compounding period count, mainly
// for tests.
func NewCalculatorWithPeriods(curve RateCurve, periods float64) *Calculator {
	return &Calculator{curve: curve, periods: periods}
}

// BankRates computes the APY figures for a bank at the given utilization.
// emissionPrice and underlyingPrice are current oracle prices in a common
// quote currency; they are only read when the emission is active.
func (c *Calculator) BankRates(
	utilization float64,
	emission *Emission,
	emissionPrice, underlyingPrice float64,
) (Rates, error) {
	lendingApr, borrowingApr, err := c.curve.Rates(utilization)
	if err != nil {
		return Rates{}, fmt.Errorf("rate curve at utilization %f: %w", utilization, err)
	}
	if lendingApr < 0 || borrowingApr < 0 || lendingApr > borrowingApr {
		return Rates{}, fmt.Errorf("lending=%f borrowing=%f: %w",
			lendingApr, borrowingApr, ErrRateCurveContract)
	}

	out := Rates{
		LendingAPY:   AprToApy(lendingApr, c.periods),
		BorrowingAPY: AprToApy(borrowingApr, c.periods),
	}

	if !emission.Active() {
		return out, nil
	}

	// rate per whole emission token, then re-expressed relative to the
	// underlying asset's price so it adds to the base APR directly
	ratePerToken := float64(emission.Rate) / math.Pow10(int(emission.Decimals))
	relativeApr := emissionPrice * ratePerToken / underlyingPrice

	if emission.LendingActive {
		v := AprToApy(lendingApr+relativeApr, c.periods)
		out.LendingRewardAPY = &v
	}
	if emission.BorrowActive {
		v := AprToApy(borrowingApr+relativeApr, c.periods)
		out.BorrowingRewardAPY = &v
	}

	return out, nil
}
