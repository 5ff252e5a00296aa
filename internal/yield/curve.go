package yield

import (
	"errors"
	"fmt"
)

// ErrCurveConfig is returned when curve parameters are outside their valid
// ranges at construction time.
var ErrCurveConfig = errors.New("yield: invalid rate curve configuration")

// TwoSlopeCurve is a piecewise-linear borrowing-rate model with a kink at the
// optimal utilization point. Below the kink the rate climbs gently toward the
// plateau rate; above it the rate climbs steeply toward the max rate, which
// is reached at 100% utilization. The lending rate is the borrowing rate
// scaled by utilization, minus the protocol's fee share of the spread.
type TwoSlopeCurve struct {
	OptimalUtilization float64
	PlateauRate        float64
	MaxRate            float64

	// ProtocolFeeShare is the fraction of gross interest diverted away from
	// lenders (insurance plus group fees combined), in [0, 1).
	ProtocolFeeShare float64
}

// NewTwoSlopeCurve validates the parameters and returns the curve.
func NewTwoSlopeCurve(optimal, plateau, max, feeShare float64) (*TwoSlopeCurve, error) {
	if optimal <= 0 || optimal >= 1 {
		return nil, fmt.Errorf("optimal utilization %f not in (0, 1): %w", optimal, ErrCurveConfig)
	}
	if plateau < 0 || max < plateau {
		return nil, fmt.Errorf("plateau %f, max %f: need 0 <= plateau <= max: %w", plateau, max, ErrCurveConfig)
	}
	if feeShare < 0 || feeShare >= 1 {
		return nil, fmt.Errorf("fee share %f not in [0, 1): %w", feeShare, ErrCurveConfig)
	}
	return &TwoSlopeCurve{
		OptimalUtilization: optimal,
		PlateauRate:        plateau,
		MaxRate:            max,
		ProtocolFeeShare:   feeShare,
	}, nil
}

// Rates implements RateCurve. Utilization outside [0, 1] is clamped: values
// above 1 can appear transiently when accrual outpaces deposits.
func (c *TwoSlopeCurve) Rates(utilization float64) (lendingApr, borrowingApr float64, err error) {
	u := utilization
	if u < 0 {
		u = 0
	}
	if u > 1 {
		u = 1
	}

	if u <= c.OptimalUtilization {
		borrowingApr = u / c.OptimalUtilization * c.PlateauRate
	} else {
		excess := (u - c.OptimalUtilization) / (1 - c.OptimalUtilization)
		borrowingApr = c.PlateauRate + excess*(c.MaxRate-c.PlateauRate)
	}

	lendingApr = borrowingApr * u * (1 - c.ProtocolFeeShare)
	return lendingApr, borrowingApr, nil
}
