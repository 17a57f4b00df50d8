package obl

import "math"

//PoissonLoss models counts through a log link: the score f predicts log of the
//expected count, an optional offset enters additively on the log scale.
//The per-node accumulators are scratch state reused between FitBestConstant
//calls, so a single instance must not run FitBestConstant from two goroutines
//at once; the other operations are pure.
type PoissonLoss struct {
	vecNum []float64
	vecDen []float64
	vecMax []float64
	vecMin []float64
}

func NewPoissonLoss() *PoissonLoss {
	return &PoissonLoss{}
}

func (*PoissonLoss) Name() string {
	return "poisson"
}

//ComputeWorkingResponse fills z with y - exp(f+offset), the negative gradient
//of the Poisson log likelihood in the linear predictor. weight and inBag are
//part of the shared signature and do not enter this distribution's gradient.
func (*PoissonLoss) ComputeWorkingResponse(y, offset, f, z, weight []float64, inBag []bool, n int) {
	for i := 0; i < n; i++ {
		z[i] = y[i] - math.Exp(f[i]+offsetAt(offset, i))
	}
}

//InitF returns log of the weighted count total over the weighted exposure
//total. The caller must ensure the ratio is positive; log of a non-positive
//ratio propagates as NaN/-Inf.
func (*PoissonLoss) InitF(y, offset, weight []float64, n int) float64 {
	sum := 0.0
	denom := 0.0
	if offset == nil {
		for i := 0; i < n; i++ {
			sum += weight[i] * y[i]
			denom += weight[i]
		}
	} else {
		for i := 0; i < n; i++ {
			sum += weight[i] * y[i]
			denom += weight[i] * math.Exp(offset[i])
		}
	}
	return math.Log(sum / denom)
}

//Deviance returns -2 times the mean weighted log likelihood over the window
//[idxOff, idxOff+n). Lower is better.
func (*PoissonLoss) Deviance(y, offset, weight, f []float64, n, idxOff int) float64 {
	l := 0.0
	w := 0.0
	if offset == nil {
		for i := idxOff; i < idxOff+n; i++ {
			l += weight[i] * (y[i]*f[i] - math.Exp(f[i]))
			w += weight[i]
		}
	} else {
		for i := idxOff; i < idxOff+n; i++ {
			eta := offset[i] + f[i]
			l += weight[i] * (y[i]*eta - math.Exp(eta))
			w += weight[i]
		}
	}
	return -2 * l / w
}

//FitBestConstant sets each terminal node's Prediction to the log of the ratio
//between the node's in-bag weighted count and its weighted predicted count.
//A node with a zero numerator gets ZeroNumeratorPrediction instead of -Inf; a
//zero denominator yields 0. The constant is then clamped so the combined
//score stays within ±PredictionClipBound for every row the node has seen.
//The f range needed for the clamp is only tracked on the offset-free path, so
//with an offset configured the bounds stay at ±Inf and the clamp is inert.
//minObsInNode, fAdj and idxOff belong to the shared signature and are ignored
//here.
func (p *PoissonLoss) FitBestConstant(y, offset, weight, f []float64, nodeAssign []int, n int,
	termNodes []*TerminalNode, minObsInNode int, inBag []bool, fAdj []float64, idxOff int) {
	cTermNodes := len(termNodes)
	p.vecNum = resizeFill(p.vecNum, cTermNodes, 0.0)
	p.vecDen = resizeFill(p.vecDen, cTermNodes, 0.0)
	p.vecMax = resizeFill(p.vecMax, cTermNodes, math.Inf(-1))
	p.vecMin = resizeFill(p.vecMin, cTermNodes, math.Inf(1))

	if offset == nil {
		for i := 0; i < n; i++ {
			node := nodeAssign[i]
			if inBag[i] {
				p.vecNum[node] += weight[i] * y[i]
				p.vecDen[node] += weight[i] * math.Exp(f[i])
			}
			p.vecMax[node] = math.Max(f[i], p.vecMax[node])
			p.vecMin[node] = math.Min(f[i], p.vecMin[node])
		}
	} else {
		for i := 0; i < n; i++ {
			if inBag[i] {
				node := nodeAssign[i]
				p.vecNum[node] += weight[i] * y[i]
				p.vecDen[node] += weight[i] * math.Exp(offset[i]+f[i])
			}
		}
	}

	for node := 0; node < cTermNodes; node++ {
		if termNodes[node] == nil {
			continue
		}
		if p.vecNum[node] == 0.0 {
			termNodes[node].Prediction = ZeroNumeratorPrediction
		} else if p.vecDen[node] == 0.0 {
			termNodes[node].Prediction = 0.0
		} else {
			termNodes[node].Prediction = math.Log(p.vecNum[node] / p.vecDen[node])
		}
		termNodes[node].Prediction = math.Min(termNodes[node].Prediction, PredictionClipBound-p.vecMax[node])
		termNodes[node].Prediction = math.Max(termNodes[node].Prediction, -PredictionClipBound-p.vecMin[node])
	}
}

//BagImprovement accumulates the likelihood gain of the step stepSize*fAdj on
//out-of-bag rows, normalized by their weight. With no out-of-bag weight the
//0/0 propagates as NaN.
func (*PoissonLoss) BagImprovement(y, offset, weight, f, fAdj []float64, inBag []bool, stepSize float64, n int) float64 {
	gain := 0.0
	w := 0.0
	for i := 0; i < n; i++ {
		if !inBag[i] {
			eta := f[i] + offsetAt(offset, i)
			gain += weight[i] * (y[i]*stepSize*fAdj[i] -
				math.Exp(eta+stepSize*fAdj[i]) +
				math.Exp(eta))
			w += weight[i]
		}
	}
	return gain / w
}
