package estimate

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Heatmap is a normalized probability surface for the transmitter location.
// Cell (row, col) covers the square whose southwest corner is at
// (OriginEasting + col·CellSize, OriginNorthing + row·CellSize); the grid
// sums to one.
type Heatmap struct {
	OriginEasting  float64
	OriginNorthing float64
	CellSize       float64
	Prob           *mat.Dense
}

// DefaultGridSize is the heatmap edge length in cells.
const DefaultGridSize = 25

// DefaultCellSize is the heatmap cell edge in meters.
const DefaultCellSize = 1.0

// sigmaFloor keeps the range-error deviation usable when the fit is exact
// (noiseless data makes the empirical sigma collapse to zero).
const sigmaFloor = 1e-3

// ErrNoEstimate reports a precision request before any successful solve.
var ErrNoEstimate = errors.New("estimate: no converged estimate for precision grid")

// Precision refines the point estimate into a probability surface. The
// fitted model is inverted to get each sample's modeled range; the spread
// of modeled-minus-true range becomes the error sigma. Each grid cell's
// relative likelihood is the product over samples of a Gaussian density
// (mean: the cell's modeled range to that sample, std: sigma) evaluated at
// the true range, and the grid is normalized to sum to one.
func (e *LocationEstimator) Precision(gridSize int, cellSize float64) (*Heatmap, error) {
	if !e.hasParams {
		return nil, ErrNoEstimate
	}
	if len(e.samples) == 0 {
		return nil, errors.New("estimate: no samples for precision grid")
	}
	if gridSize <= 0 {
		gridSize = DefaultGridSize
	}
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}

	txE, txN := e.params[0], e.params[1]
	power, exponent := e.params[2], e.params[3]

	// Model-inverted range vs geometric range, per sample. The modeled
	// range depends only on powers, so it is fixed per sample across the
	// whole grid.
	diffs := make([]float64, len(e.samples))
	modeled := make([]float64, len(e.samples))
	for i, s := range e.samples {
		modeled[i] = modeledRange(s.Power, power, exponent)
		diffs[i] = modeled[i] - distance3D(s, txE, txN)
	}
	sigma := stddev(diffs)
	if sigma < sigmaFloor {
		sigma = sigmaFloor
	}

	extent := float64(gridSize) * cellSize
	originE := txE - extent/2
	originN := txN - extent/2

	// Accumulate log densities so a tight sigma cannot underflow the
	// product to zero before normalization.
	logProb := mat.NewDense(gridSize, gridSize, nil)
	maxLog := math.Inf(-1)
	logNorm := math.Log(sigma * math.Sqrt(2*math.Pi))
	for row := 0; row < gridSize; row++ {
		cellN := originN + (float64(row)+0.5)*cellSize
		for col := 0; col < gridSize; col++ {
			cellE := originE + (float64(col)+0.5)*cellSize
			sum := 0.0
			for i, s := range e.samples {
				cellRange := distance3D(s, cellE, cellN)
				z := (cellRange - modeled[i]) / sigma
				sum += -z*z/2 - logNorm
			}
			logProb.Set(row, col, sum)
			if sum > maxLog {
				maxLog = sum
			}
		}
	}

	prob := mat.NewDense(gridSize, gridSize, nil)
	total := 0.0
	for row := 0; row < gridSize; row++ {
		for col := 0; col < gridSize; col++ {
			v := math.Exp(logProb.At(row, col) - maxLog)
			prob.Set(row, col, v)
			total += v
		}
	}
	prob.Scale(1/total, prob)

	return &Heatmap{
		OriginEasting:  originE,
		OriginNorthing: originN,
		CellSize:       cellSize,
		Prob:           prob,
	}, nil
}

// modeledRange inverts the path-loss model: the distance at which the
// fitted transmitter would produce the received power.
func modeledRange(received, power, exponent float64) float64 {
	return math.Pow(10, (power-received)/(10*exponent))
}

func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var v float64
	for _, x := range xs {
		d := x - mean
		v += d * d
	}
	return math.Sqrt(v / float64(len(xs)))
}
