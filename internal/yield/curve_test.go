package yield_test

import (
	"errors"
	"math"
	"testing"

	"PoolLedger/internal/yield"
)

func mustCurve(t *testing.T, optimal, plateau, max, feeShare float64) *yield.TwoSlopeCurve {
	t.Helper()
	c, err := yield.NewTwoSlopeCurve(optimal, plateau, max, feeShare)
	if err != nil {
		t.Fatalf("NewTwoSlopeCurve: %v", err)
	}
	return c
}

func TestTwoSlopeCurve_Anchors(t *testing.T) {
	c := mustCurve(t, 0.8, 0.10, 1.50, 0)

	_, atZero, err := c.Rates(0)
	if err != nil {
		t.Fatalf("Rates(0): %v", err)
	}
	if atZero != 0 {
		t.Errorf("borrowing at 0%% utilization: got %v, want 0", atZero)
	}

	_, atKink, _ := c.Rates(0.8)
	if math.Abs(atKink-0.10) > 1e-12 {
		t.Errorf("borrowing at the kink: got %v, want plateau 0.10", atKink)
	}

	_, atFull, _ := c.Rates(1.0)
	if math.Abs(atFull-1.50) > 1e-12 {
		t.Errorf("borrowing at full utilization: got %v, want max 1.50", atFull)
	}
}

func TestTwoSlopeCurve_SecondSlopeSteeper(t *testing.T) {
	c := mustCurve(t, 0.8, 0.10, 1.50, 0)

	_, below, _ := c.Rates(0.4)
	_, kink, _ := c.Rates(0.8)
	_, above, _ := c.Rates(0.9)

	firstSlope := (kink - below) / 0.4
	secondSlope := (above - kink) / 0.1
	if secondSlope <= firstSlope {
		t.Errorf("slope above the kink (%v) should exceed slope below (%v)", secondSlope, firstSlope)
	}
}

func TestTwoSlopeCurve_LendingBelowBorrowing(t *testing.T) {
	c := mustCurve(t, 0.8, 0.10, 1.50, 0.15)

	for _, u := range []float64{0, 0.25, 0.5, 0.8, 0.95, 1.0} {
		lending, borrowing, err := c.Rates(u)
		if err != nil {
			t.Fatalf("Rates(%v): %v", u, err)
		}
		if lending > borrowing {
			t.Errorf("at utilization %v: lending %v exceeds borrowing %v", u, lending, borrowing)
		}
		if lending < 0 || borrowing < 0 {
			t.Errorf("at utilization %v: negative rate (lending %v, borrowing %v)", u, lending, borrowing)
		}
	}
}

func TestTwoSlopeCurve_FeeShareReducesLending(t *testing.T) {
	noFee := mustCurve(t, 0.8, 0.10, 1.50, 0)
	withFee := mustCurve(t, 0.8, 0.10, 1.50, 0.25)

	gross, _, _ := noFee.Rates(0.6)
	net, _, _ := withFee.Rates(0.6)
	if math.Abs(net-gross*0.75) > 1e-12 {
		t.Errorf("lending with 25%% fee share: got %v, want %v", net, gross*0.75)
	}
}

func TestTwoSlopeCurve_ClampsUtilization(t *testing.T) {
	c := mustCurve(t, 0.8, 0.10, 1.50, 0)

	_, overFull, _ := c.Rates(1.3)
	_, atFull, _ := c.Rates(1.0)
	if overFull != atFull {
		t.Errorf("utilization above 1 should clamp: got %v, want %v", overFull, atFull)
	}

	_, negative, _ := c.Rates(-0.1)
	if negative != 0 {
		t.Errorf("negative utilization should clamp to 0: got %v", negative)
	}
}

func TestNewTwoSlopeCurve_RejectsBadParams(t *testing.T) {
	cases := []struct {
		name                            string
		optimal, plateau, max, feeShare float64
	}{
		{"optimal zero", 0, 0.1, 1.5, 0},
		{"optimal one", 1, 0.1, 1.5, 0},
		{"max below plateau", 0.8, 0.5, 0.1, 0},
		{"negative plateau", 0.8, -0.1, 1.5, 0},
		{"fee share one", 0.8, 0.1, 1.5, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := yield.NewTwoSlopeCurve(tc.optimal, tc.plateau, tc.max, tc.feeShare)
			if !errors.Is(err, yield.ErrCurveConfig) {
				t.Errorf("got %v, want ErrCurveConfig", err)
			}
		})
	}
}
