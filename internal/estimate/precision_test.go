package estimate

import (
	"errors"
	"math"
	"testing"
)

func TestPrecisionSumsToOne(t *testing.T) {
	e := NewLocationEstimator()
	for _, s := range syntheticSamples(478000, 3638000, 40, 2.05) {
		e.AddSample(s)
	}
	if _, ok := e.Solve(); !ok {
		t.Fatal("Solve failed")
	}

	hm, err := e.Precision(DefaultGridSize, DefaultCellSize)
	if err != nil {
		t.Fatalf("Precision: %v", err)
	}

	rows, cols := hm.Prob.Dims()
	if rows != DefaultGridSize || cols != DefaultGridSize {
		t.Fatalf("grid is %dx%d, want %dx%d", rows, cols, DefaultGridSize, DefaultGridSize)
	}

	var sum float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := hm.Prob.At(i, j)
			if v < 0 || math.IsNaN(v) {
				t.Fatalf("cell (%d,%d) = %v", i, j, v)
			}
			sum += v
		}
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("probabilities sum to %v, want 1", sum)
	}
}

func TestPrecisionGridCentersOnEstimate(t *testing.T) {
	e := NewLocationEstimator()
	for _, s := range syntheticSamples(478000, 3638000, 40, 2.05) {
		e.AddSample(s)
	}
	est, ok := e.Solve()
	if !ok {
		t.Fatal("Solve failed")
	}

	hm, err := e.Precision(11, 2.0)
	if err != nil {
		t.Fatalf("Precision: %v", err)
	}
	centerE := hm.OriginEasting + 5*hm.CellSize
	centerN := hm.OriginNorthing + 5*hm.CellSize
	if math.Abs(centerE-est.Easting) > hm.CellSize || math.Abs(centerN-est.Northing) > hm.CellSize {
		t.Fatalf("grid center (%v, %v) far from estimate (%v, %v)", centerE, centerN, est.Easting, est.Northing)
	}
}

func TestPrecisionWithoutEstimate(t *testing.T) {
	e := NewLocationEstimator()
	if _, err := e.Precision(DefaultGridSize, DefaultCellSize); !errors.Is(err, ErrNoEstimate) {
		t.Fatalf("err = %v, want ErrNoEstimate", err)
	}
}
