package obl

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	_ LossModel = NewPoissonLoss()
	_ LossModel = NewGaussianLoss()
	_ LossModel = NewLaplaceLoss()
)

func uniformWeights(n int) []float64 {
	weight := make([]float64, n)
	for i := range weight {
		weight[i] = 1.0
	}
	return weight
}

func allInBag(n int) []bool {
	inBag := make([]bool, n)
	for i := range inBag {
		inBag[i] = true
	}
	return inBag
}

func TestPoissonWorkingResponseConcrete(t *testing.T) {
	loss := NewPoissonLoss()
	y := []float64{1, 2, 3}
	f := []float64{0, 0, 0}
	z := make([]float64, 3)

	loss.ComputeWorkingResponse(y, nil, f, z, uniformWeights(3), allInBag(3), 3)

	expected := []float64{0, 1, 2}
	for i := range expected {
		if math.Abs(z[i]-expected[i]) > 1e-12 {
			t.Fatalf("z[%d] = %.12f, want %.12f", i, z[i], expected[i])
		}
	}
}

func TestPoissonWorkingResponseOffset(t *testing.T) {
	loss := NewPoissonLoss()
	y := []float64{1, 2, 3}
	offset := []float64{math.Log(2), math.Log(2), math.Log(2)}
	f := []float64{0, 0, 0}
	z := make([]float64, 3)

	loss.ComputeWorkingResponse(y, offset, f, z, uniformWeights(3), allInBag(3), 3)

	for i := range y {
		expected := y[i] - 2.0
		if math.Abs(z[i]-expected) > 1e-12 {
			t.Fatalf("z[%d] = %.12f, want %.12f", i, z[i], expected)
		}
	}
}

func TestPoissonInitFConstantResponse(t *testing.T) {
	loss := NewPoissonLoss()
	for _, c := range []float64{0.5, 1, 7} {
		y := []float64{c, c, c, c}
		initF := loss.InitF(y, nil, uniformWeights(4), 4)
		if math.Abs(initF-math.Log(c)) > 1e-12 {
			t.Fatalf("InitF on constant %g = %.12f, want %.12f", c, initF, math.Log(c))
		}
	}
}

func TestPoissonInitFGolden(t *testing.T) {
	loss := NewPoissonLoss()
	y := []float64{1, 2, 3}
	initF := loss.InitF(y, nil, uniformWeights(3), 3)
	if math.Abs(initF-math.Log(2)) > 1e-12 {
		t.Fatalf("InitF = %.12f, want log(2) = %.12f", initF, math.Log(2))
	}
}

func TestPoissonInitFWithOffset(t *testing.T) {
	loss := NewPoissonLoss()
	//each response of 2 is fully explained by an exposure of 2
	y := []float64{2, 2}
	offset := []float64{math.Log(2), math.Log(2)}
	initF := loss.InitF(y, offset, uniformWeights(2), 2)
	if math.Abs(initF) > 1e-12 {
		t.Fatalf("InitF = %.12f, want 0", initF)
	}
}

func TestPoissonDevianceGolden(t *testing.T) {
	loss := NewPoissonLoss()
	y := []float64{1, 2, 3}
	f := []float64{math.Log(2), math.Log(2), math.Log(2)}
	deviance := loss.Deviance(y, nil, uniformWeights(3), f, 3, 0)
	expected := 4.0 - 4.0*math.Log(2)
	if math.Abs(deviance-expected) > 1e-12 {
		t.Fatalf("deviance = %.12f, want %.12f", deviance, expected)
	}
}

func TestPoissonDevianceShiftInvariance(t *testing.T) {
	loss := NewPoissonLoss()
	y := []float64{0, 1, 4, 2}
	weight := []float64{1, 2, 0.5, 1}
	f := []float64{0.1, -0.3, 1.2, 0.7}
	offset := []float64{0.5, 0.0, -0.2, 0.3}

	base := loss.Deviance(y, offset, weight, f, 4, 0)

	shift := 0.37
	fShifted := make([]float64, 4)
	offsetShifted := make([]float64, 4)
	for i := range f {
		fShifted[i] = f[i] + shift
		offsetShifted[i] = offset[i] - shift
	}
	shifted := loss.Deviance(y, offsetShifted, weight, fShifted, 4, 0)

	if math.Abs(base-shifted) > 1e-10 {
		t.Fatalf("deviance changed under compensating shift: %.12f vs %.12f", base, shifted)
	}
}

func TestPoissonDevianceIndexOffset(t *testing.T) {
	loss := NewPoissonLoss()
	y := []float64{1, 2, 3, 4, 5}
	weight := []float64{1, 1, 2, 1, 3}
	f := []float64{0.1, 0.2, 0.3, 0.4, 0.5}

	window := loss.Deviance(y, nil, weight, f, 3, 2)
	direct := loss.Deviance(y[2:], nil, weight[2:], f[2:], 3, 0)

	if math.Abs(window-direct) > 1e-12 {
		t.Fatalf("windowed deviance = %.12f, direct = %.12f", window, direct)
	}
}

func TestPoissonFitBestConstantZeroNumerator(t *testing.T) {
	loss := NewPoissonLoss()
	y := []float64{0, 0, 0}
	f := []float64{0, 0, 0}
	nodeAssign := []int{0, 0, 0}
	termNodes := []*TerminalNode{{}}

	loss.FitBestConstant(y, nil, uniformWeights(3), f, nodeAssign, 3,
		termNodes, 1, allInBag(3), nil, 0)

	if termNodes[0].Prediction != ZeroNumeratorPrediction {
		t.Fatalf("prediction = %v, want exactly %v", termNodes[0].Prediction, ZeroNumeratorPrediction)
	}
}

func TestPoissonFitBestConstantZeroDenominator(t *testing.T) {
	loss := NewPoissonLoss()
	//offset+f deep enough that exp underflows to zero while the numerator stays positive
	y := []float64{1}
	offset := []float64{-800}
	f := []float64{0}
	nodeAssign := []int{0}
	termNodes := []*TerminalNode{{}}

	loss.FitBestConstant(y, offset, uniformWeights(1), f, nodeAssign, 1,
		termNodes, 1, allInBag(1), nil, 0)

	if termNodes[0].Prediction != 0.0 {
		t.Fatalf("prediction = %v, want exactly 0", termNodes[0].Prediction)
	}
}

func TestPoissonFitBestConstantRatio(t *testing.T) {
	loss := NewPoissonLoss()
	y := []float64{4, 8}
	f := []float64{0, 0}
	nodeAssign := []int{0, 0}
	termNodes := []*TerminalNode{{}}

	loss.FitBestConstant(y, nil, uniformWeights(2), f, nodeAssign, 2,
		termNodes, 1, allInBag(2), nil, 0)

	expected := math.Log(6) // log((4+8)/(1+1))
	if math.Abs(termNodes[0].Prediction-expected) > 1e-12 {
		t.Fatalf("prediction = %.12f, want %.12f", termNodes[0].Prediction, expected)
	}
}

func TestPoissonFitBestConstantClampUpper(t *testing.T) {
	loss := NewPoissonLoss()
	y := []float64{1e9, 1e9}
	f := []float64{10, 15}
	nodeAssign := []int{0, 0}
	termNodes := []*TerminalNode{{}}

	loss.FitBestConstant(y, nil, uniformWeights(2), f, nodeAssign, 2,
		termNodes, 1, allInBag(2), nil, 0)

	if math.Abs(15.0+termNodes[0].Prediction-PredictionClipBound) > 1e-12 {
		t.Fatalf("f_max + prediction = %.12f, want %.12f", 15.0+termNodes[0].Prediction, PredictionClipBound)
	}
}

func TestPoissonFitBestConstantClampLower(t *testing.T) {
	loss := NewPoissonLoss()
	y := []float64{1e-9, 1e-9}
	f := []float64{-10, -15}
	nodeAssign := []int{0, 0}
	termNodes := []*TerminalNode{{}}

	loss.FitBestConstant(y, nil, uniformWeights(2), f, nodeAssign, 2,
		termNodes, 1, allInBag(2), nil, 0)

	if math.Abs(-15.0+termNodes[0].Prediction+PredictionClipBound) > 1e-12 {
		t.Fatalf("f_min + prediction = %.12f, want %.12f", -15.0+termNodes[0].Prediction, -PredictionClipBound)
	}
}

func TestPoissonFitBestConstantTracksOutOfBagRange(t *testing.T) {
	loss := NewPoissonLoss()
	//the out-of-bag row does not enter the ratio but still widens the clamp range
	y := []float64{1e9, 0}
	f := []float64{0, 18}
	nodeAssign := []int{0, 0}
	inBag := []bool{true, false}
	termNodes := []*TerminalNode{{}}

	loss.FitBestConstant(y, nil, uniformWeights(2), f, nodeAssign, 2,
		termNodes, 1, inBag, nil, 0)

	if math.Abs(termNodes[0].Prediction-1.0) > 1e-12 {
		t.Fatalf("prediction = %.12f, want clamp at 19-18 = 1", termNodes[0].Prediction)
	}
}

func TestPoissonFitBestConstantNilNode(t *testing.T) {
	loss := NewPoissonLoss()
	y := []float64{1, 2}
	f := []float64{0, 0}
	nodeAssign := []int{0, 1}
	termNodes := []*TerminalNode{nil, {}}

	loss.FitBestConstant(y, nil, uniformWeights(2), f, nodeAssign, 2,
		termNodes, 1, allInBag(2), nil, 0)

	if math.Abs(termNodes[1].Prediction-math.Log(2)) > 1e-12 {
		t.Fatalf("prediction = %.12f, want %.12f", termNodes[1].Prediction, math.Log(2))
	}
}

func TestPoissonFitBestConstantScratchReuse(t *testing.T) {
	loss := NewPoissonLoss()

	//first call with four nodes and extreme scores pollutes the scratch buffers
	y := []float64{1, 1, 1, 1}
	f := []float64{18, -18, 18, -18}
	loss.FitBestConstant(y, nil, uniformWeights(4), f, []int{0, 1, 2, 3}, 4,
		[]*TerminalNode{{}, {}, {}, {}}, 1, allInBag(4), nil, 0)

	//the second call with two nodes must see fully reset aggregates
	y2 := []float64{4, 8}
	f2 := []float64{0, 0}
	termNodes := []*TerminalNode{{}, {}}
	loss.FitBestConstant(y2, nil, uniformWeights(2), f2, []int{0, 1}, 2,
		termNodes, 1, allInBag(2), nil, 0)

	if math.Abs(termNodes[0].Prediction-math.Log(4)) > 1e-12 {
		t.Fatalf("node 0 prediction = %.12f, want %.12f", termNodes[0].Prediction, math.Log(4))
	}
	if math.Abs(termNodes[1].Prediction-math.Log(8)) > 1e-12 {
		t.Fatalf("node 1 prediction = %.12f, want %.12f", termNodes[1].Prediction, math.Log(8))
	}
}

func TestPoissonBagImprovementZeroStep(t *testing.T) {
	loss := NewPoissonLoss()
	y := []float64{1, 5, 2}
	f := []float64{0.3, -0.1, 1.0}
	fAdj := []float64{2, -3, 4}
	inBag := []bool{true, false, false}

	improvement := loss.BagImprovement(y, nil, uniformWeights(3), f, fAdj, inBag, 0.0, 3)
	if improvement != 0.0 {
		t.Fatalf("improvement = %v, want exactly 0", improvement)
	}
}

func TestPoissonBagImprovementGolden(t *testing.T) {
	loss := NewPoissonLoss()
	y := []float64{100, 3}
	f := []float64{5, math.Log(2)}
	fAdj := []float64{1000, 0.5}
	weight := []float64{1, 2}
	inBag := []bool{true, false}
	stepSize := 0.1

	improvement := loss.BagImprovement(y, nil, weight, f, fAdj, inBag, stepSize, 2)

	//only the out-of-bag row counts
	eta := math.Log(2)
	expected := 2.0 * (3*stepSize*0.5 - math.Exp(eta+stepSize*0.5) + math.Exp(eta)) / 2.0
	if math.Abs(improvement-expected) > 1e-12 {
		t.Fatalf("improvement = %.12f, want %.12f", improvement, expected)
	}
}

func TestPoissonWorkingResponseMeanNearZero(t *testing.T) {
	const n = 20000
	const lambda = 3.0

	poisson := distuv.Poisson{Lambda: lambda, Src: rand.NewSource(42)}
	y := make([]float64, n)
	f := make([]float64, n)
	for i := 0; i < n; i++ {
		y[i] = poisson.Rand()
		f[i] = math.Log(lambda)
	}

	z := make([]float64, n)
	loss := NewPoissonLoss()
	loss.ComputeWorkingResponse(y, nil, f, z, uniformWeights(n), allInBag(n), n)

	mean := 0.0
	for _, v := range z {
		mean += v
	}
	mean /= n

	//sd of the mean is sqrt(lambda/n) ~ 0.012
	if math.Abs(mean) > 0.05 {
		t.Fatalf("mean working response = %.6f, want near 0", mean)
	}
}
