package estimate

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Estimate is the published transmitter solution for one frequency.
type Estimate struct {
	// Easting and Northing locate the transmitter in the pinned UTM zone.
	Easting  float64
	Northing float64
	// TxPower is the fitted transmit power in dBm.
	TxPower float64
	// Exponent is the fitted path-loss exponent.
	Exponent float64
	// Stale marks parameters carried over from an earlier solve because
	// the latest one failed to converge.
	Stale bool
}

// SolveResult keeps the raw optimizer outcome for diagnostics.
type SolveResult struct {
	Success    bool
	Residuals  []float64
	Cost       float64
	Iterations int
}

// minSamplesForSolve is the sample count below which no estimate is
// attempted.
const minSamplesForSolve = 4

// distanceFloor avoids the log-domain singularity at zero range.
const distanceFloor = 0.01

// Parameter bounds for [easting, northing, power, exponent]. The exponent
// is pinned just above free space.
var (
	solveLower = [4]float64{0, 167000, math.Inf(-1), 2.0}
	solveUpper = [4]float64{833000, 10000000, math.Inf(1), 2.1}
)

// LocationEstimator accumulates the samples for one frequency and fits the
// log-distance path-loss model to them. It is driven from the packet
// receiver goroutine only and needs no locking of its own.
type LocationEstimator struct {
	samples []Sample

	params    [4]float64
	hasParams bool
	stale     bool
	result    *SolveResult
}

func NewLocationEstimator() *LocationEstimator {
	return &LocationEstimator{stale: true}
}

// AddSample appends one projected ping. The sample set only ever grows.
func (e *LocationEstimator) AddSample(s Sample) {
	e.samples = append(e.samples, s)
}

// Samples returns the accumulated sample set.
func (e *LocationEstimator) Samples() []Sample {
	return e.samples
}

// NumSamples returns the accumulated sample count.
func (e *LocationEstimator) NumSamples() int {
	return len(e.samples)
}

// Estimate returns the current solution, or ok=false before the first
// successful publish.
func (e *LocationEstimator) Estimate() (Estimate, bool) {
	if !e.hasParams {
		return Estimate{}, false
	}
	return Estimate{
		Easting:  e.params[0],
		Northing: e.params[1],
		TxPower:  e.params[2],
		Exponent: e.params[3],
		Stale:    e.stale,
	}, true
}

// LastResult returns the raw outcome of the most recent solve, or nil if
// none has run.
func (e *LocationEstimator) LastResult() *SolveResult {
	return e.result
}

// Solve re-fits the model to the full sample set. It returns ok=false while
// fewer than four samples exist. Each call re-initializes the parameter
// vector from the current samples (mean position, max power, exponent 2)
// rather than warm-starting from the previous fit. On optimizer failure the
// previous parameters are kept and the estimate is marked stale.
func (e *LocationEstimator) Solve() (Estimate, bool) {
	if len(e.samples) < minSamplesForSolve {
		return Estimate{}, false
	}

	var sumE, sumN float64
	maxPower := math.Inf(-1)
	for _, s := range e.samples {
		sumE += s.Easting
		sumN += s.Northing
		if s.Power > maxPower {
			maxPower = s.Power
		}
	}
	n := float64(len(e.samples))
	init := [4]float64{sumE / n, sumN / n, maxPower, 2.0}

	params, result := leastSquares(e.samples, clampParams(init))
	e.result = &result
	if result.Success {
		e.params = params
		e.hasParams = true
		e.stale = false
	} else {
		e.stale = true
	}

	est, ok := e.Estimate()
	return est, ok
}

// predictedPower evaluates the log-distance path-loss model at a sample
// location for parameters p = [easting, northing, power, exponent].
func predictedPower(s Sample, p [4]float64) float64 {
	d := distance3D(s, p[0], p[1])
	return p[2] - 10*p[3]*math.Log10(d)
}

func distance3D(s Sample, easting, northing float64) float64 {
	dx := s.Easting - easting
	dy := s.Northing - northing
	dz := s.Alt
	d := math.Sqrt(dx*dx + dy*dy + dz*dz)
	if d < distanceFloor {
		d = distanceFloor
	}
	return d
}

func residuals(samples []Sample, p [4]float64, out []float64) {
	for i, s := range samples {
		out[i] = s.Power - predictedPower(s, p)
	}
}

func costOf(r []float64) float64 {
	var c float64
	for _, v := range r {
		c += v * v
	}
	return 0.5 * c
}

func clampParams(p [4]float64) [4]float64 {
	for i := range p {
		if p[i] < solveLower[i] {
			p[i] = solveLower[i]
		}
		if p[i] > solveUpper[i] {
			p[i] = solveUpper[i]
		}
	}
	return p
}

const (
	lmMaxIterations = 200
	lmLambdaInit    = 1e-3
	lmLambdaGrow    = 10
	lmLambdaShrink  = 10
	lmLambdaMax     = 1e10
	lmStepTol       = 1e-10
	lmCostTol       = 1e-14
)

// leastSquares runs a bound-projected Levenberg-Marquardt fit with a
// forward-difference Jacobian, solving the damped normal equations with
// gonum. Steps that leave the feasible box are clamped back onto it.
func leastSquares(samples []Sample, init [4]float64) ([4]float64, SolveResult) {
	m := len(samples)
	p := init
	r := make([]float64, m)
	rTrial := make([]float64, m)
	residuals(samples, p, r)
	cost := costOf(r)

	lambda := lmLambdaInit
	converged := false
	iterations := 0

	jac := mat.NewDense(m, 4, nil)
	jtj := mat.NewDense(4, 4, nil)
	jtr := mat.NewVecDense(4, nil)
	step := mat.NewVecDense(4, nil)

	for iter := 0; iter < lmMaxIterations; iter++ {
		iterations = iter + 1
		numericJacobian(samples, p, r, jac)

		jtj.Mul(jac.T(), jac)
		rVec := mat.NewVecDense(m, r)
		jtr.MulVec(jac.T(), rVec)

		accepted := false
		for lambda <= lmLambdaMax {
			var damped mat.Dense
			damped.CloneFrom(jtj)
			for i := 0; i < 4; i++ {
				damped.Set(i, i, damped.At(i, i)+lambda)
			}
			if err := step.SolveVec(&damped, jtr); err != nil {
				lambda *= lmLambdaGrow
				continue
			}

			trial := p
			for i := 0; i < 4; i++ {
				// Gauss-Newton step is -(JtJ+λI)⁻¹ Jᵀr for residuals
				// defined as observed minus predicted with J = ∂r/∂p.
				trial[i] -= step.AtVec(i)
			}
			trial = clampParams(trial)

			residuals(samples, trial, rTrial)
			trialCost := costOf(rTrial)
			if trialCost < cost {
				stepNorm := 0.0
				for i := 0; i < 4; i++ {
					d := trial[i] - p[i]
					stepNorm += d * d
				}
				p = trial
				copy(r, rTrial)
				costDrop := cost - trialCost
				cost = trialCost
				lambda /= lmLambdaShrink
				if lambda < 1e-12 {
					lambda = 1e-12
				}
				accepted = true
				if stepNorm < lmStepTol || costDrop < lmCostTol {
					converged = true
				}
				break
			}
			lambda *= lmLambdaGrow
		}

		if !accepted {
			// No downhill step at any damping; we are at a (possibly
			// constrained) minimum.
			converged = true
		}
		if converged {
			break
		}
	}

	res := SolveResult{
		Success:    converged,
		Residuals:  append([]float64(nil), r...),
		Cost:       cost,
		Iterations: iterations,
	}
	return p, res
}

func numericJacobian(samples []Sample, p [4]float64, r []float64, jac *mat.Dense) {
	for j := 0; j < 4; j++ {
		h := 1e-6 * math.Max(math.Abs(p[j]), 1.0)
		pj := p
		pj[j] += h
		if pj[j] > solveUpper[j] {
			pj[j] = p[j] - h
			h = -h
		}
		for i, s := range samples {
			// J = ∂r/∂p, r = observed - predicted.
			ri := s.Power - predictedPower(s, pj)
			jac.Set(i, j, (ri-r[i])/h)
		}
	}
}
