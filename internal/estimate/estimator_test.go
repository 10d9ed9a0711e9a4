package estimate

import (
	"math"
	"testing"
)

// syntheticSamples generates noiseless observations of a transmitter at
// (txE, txN) with the estimator's own path-loss model.
func syntheticSamples(txE, txN, txPower, exponent float64) []Sample {
	offsets := [][2]float64{
		{-120, -80}, {-60, 140}, {30, -150}, {100, 90},
		{160, -40}, {-170, 20}, {80, 170}, {-40, -180},
	}
	samples := make([]Sample, 0, len(offsets))
	for _, off := range offsets {
		s := Sample{
			Easting:  txE + off[0],
			Northing: txN + off[1],
			Alt:      30,
		}
		d := math.Sqrt(off[0]*off[0] + off[1]*off[1] + s.Alt*s.Alt)
		s.Power = txPower - 10*exponent*math.Log10(d)
		samples = append(samples, s)
	}
	return samples
}

func TestSolveNeedsFourSamples(t *testing.T) {
	e := NewLocationEstimator()
	samples := syntheticSamples(478000, 3638000, 40, 2.05)
	for i := 0; i < 3; i++ {
		e.AddSample(samples[i])
		if _, ok := e.Solve(); ok {
			t.Fatalf("Solve produced an estimate with %d samples", i+1)
		}
	}
	if _, ok := e.Estimate(); ok {
		t.Fatal("Estimate available before any solve")
	}
}

func TestSolveRecoversTransmitter(t *testing.T) {
	const (
		txE      = 478000.0
		txN      = 3638000.0
		txPower  = 40.0
		exponent = 2.05
	)
	e := NewLocationEstimator()
	for _, s := range syntheticSamples(txE, txN, txPower, exponent) {
		e.AddSample(s)
	}

	est, ok := e.Solve()
	if !ok {
		t.Fatal("Solve returned no estimate")
	}
	if est.Stale {
		t.Fatalf("estimate marked stale: %+v", e.LastResult())
	}
	if math.Abs(est.Easting-txE) > 5 || math.Abs(est.Northing-txN) > 5 {
		t.Fatalf("position = (%.1f, %.1f), want (%.1f, %.1f)", est.Easting, est.Northing, txE, txN)
	}
	if est.Exponent < 2.0 || est.Exponent > 2.1 {
		t.Fatalf("exponent %v escaped its bounds", est.Exponent)
	}

	res := e.LastResult()
	if res == nil || !res.Success {
		t.Fatalf("LastResult = %+v", res)
	}
	if len(res.Residuals) != e.NumSamples() {
		t.Fatalf("got %d residuals for %d samples", len(res.Residuals), e.NumSamples())
	}
	if res.Cost > 1e-2 {
		t.Fatalf("cost = %v on noiseless data", res.Cost)
	}
}

func TestSolveRespectsBounds(t *testing.T) {
	// Path loss generated with an exponent outside [2, 2.1]; the fit must
	// stay clamped to the bound rather than chase it.
	e := NewLocationEstimator()
	for _, s := range syntheticSamples(478000, 3638000, 40, 3.0) {
		e.AddSample(s)
	}
	est, ok := e.Solve()
	if !ok {
		t.Fatal("Solve returned no estimate")
	}
	if est.Exponent < 2.0-1e-9 || est.Exponent > 2.1+1e-9 {
		t.Fatalf("exponent %v escaped its bounds", est.Exponent)
	}
	if est.Easting < 0 || est.Easting > 833000 || est.Northing < 167000 || est.Northing > 1e7 {
		t.Fatalf("position (%v, %v) escaped its bounds", est.Easting, est.Northing)
	}
}

func TestSolveReinitializesEachCall(t *testing.T) {
	const (
		firstE = 478000.0
		txN    = 3638000.0
	)
	e := NewLocationEstimator()
	for _, s := range syntheticSamples(firstE, txN, 40, 2.05) {
		e.AddSample(s)
	}
	first, ok := e.Solve()
	if !ok {
		t.Fatal("first Solve failed")
	}

	// A second batch far from the first shifts the mean; a cold restart
	// must land on the combined-data optimum, not stay near the first fit.
	for _, s := range syntheticSamples(firstE, txN, 40, 2.05) {
		e.AddSample(s)
	}
	second, ok := e.Solve()
	if !ok {
		t.Fatal("second Solve failed")
	}
	if math.Abs(second.Easting-first.Easting) > 10 {
		t.Fatalf("duplicate data moved the estimate: %v -> %v", first.Easting, second.Easting)
	}
}

func TestDistanceFloor(t *testing.T) {
	s := Sample{Easting: 1000, Northing: 1000, Alt: 0}
	if d := distance3D(s, 1000, 1000); d != distanceFloor {
		t.Fatalf("distance at zero range = %v, want %v", d, distanceFloor)
	}
}
