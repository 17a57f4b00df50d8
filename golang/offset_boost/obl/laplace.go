package obl

import (
	"math"
	"sort"
)

//LaplaceLoss is absolute-error regression. Leaf constants are weighted
//medians, which makes the fit robust to heavy-tailed noise.
type LaplaceLoss struct {
	nodeSamples [][]weightedValue
}

type weightedValue struct {
	value  float64
	weight float64
}

func NewLaplaceLoss() *LaplaceLoss {
	return &LaplaceLoss{}
}

func (*LaplaceLoss) Name() string {
	return "laplace"
}

//ComputeWorkingResponse fills z with the sign of the residual, the negative
//gradient of absolute error.
func (*LaplaceLoss) ComputeWorkingResponse(y, offset, f, z, weight []float64, inBag []bool, n int) {
	for i := 0; i < n; i++ {
		if y[i]-offsetAt(offset, i)-f[i] > 0 {
			z[i] = 1.0
		} else {
			z[i] = -1.0
		}
	}
}

//InitF returns the weighted median of the offset-adjusted response.
func (*LaplaceLoss) InitF(y, offset, weight []float64, n int) float64 {
	samples := make([]weightedValue, n)
	for i := 0; i < n; i++ {
		samples[i] = weightedValue{y[i] - offsetAt(offset, i), weight[i]}
	}
	return weightedMedian(samples)
}

//Deviance is the weighted mean absolute residual over [idxOff, idxOff+n).
func (*LaplaceLoss) Deviance(y, offset, weight, f []float64, n, idxOff int) float64 {
	l := 0.0
	w := 0.0
	for i := idxOff; i < idxOff+n; i++ {
		l += weight[i] * math.Abs(y[i]-offsetAt(offset, i)-f[i])
		w += weight[i]
	}
	return l / w
}

//FitBestConstant sets each terminal node's Prediction to the weighted median
//residual of its in-bag rows. The per-node sample buffers are scratch state
//reused between calls.
func (lp *LaplaceLoss) FitBestConstant(y, offset, weight, f []float64, nodeAssign []int, n int,
	termNodes []*TerminalNode, minObsInNode int, inBag []bool, fAdj []float64, idxOff int) {
	cTermNodes := len(termNodes)
	if cap(lp.nodeSamples) < cTermNodes {
		lp.nodeSamples = make([][]weightedValue, cTermNodes)
	} else {
		lp.nodeSamples = lp.nodeSamples[:cTermNodes]
	}
	for node := range lp.nodeSamples {
		lp.nodeSamples[node] = lp.nodeSamples[node][:0]
	}

	for i := 0; i < n; i++ {
		if inBag[i] {
			node := nodeAssign[i]
			lp.nodeSamples[node] = append(lp.nodeSamples[node],
				weightedValue{y[i] - offsetAt(offset, i) - f[i], weight[i]})
		}
	}

	for node := 0; node < cTermNodes; node++ {
		if termNodes[node] == nil {
			continue
		}
		if len(lp.nodeSamples[node]) == 0 {
			termNodes[node].Prediction = 0.0
		} else {
			termNodes[node].Prediction = weightedMedian(lp.nodeSamples[node])
		}
	}
}

//BagImprovement is the out-of-bag drop in absolute error from the proposed
//step, normalized by the out-of-bag weight.
func (*LaplaceLoss) BagImprovement(y, offset, weight, f, fAdj []float64, inBag []bool, stepSize float64, n int) float64 {
	gain := 0.0
	w := 0.0
	for i := 0; i < n; i++ {
		if !inBag[i] {
			r := y[i] - offsetAt(offset, i) - f[i]
			gain += weight[i] * (math.Abs(r) - math.Abs(r-stepSize*fAdj[i]))
			w += weight[i]
		}
	}
	return gain / w
}

//weightedMedian returns the smallest value whose cumulative weight reaches
//half of the total. It sorts the slice in place.
func weightedMedian(samples []weightedValue) float64 {
	sort.Slice(samples, func(i, j int) bool { return samples[i].value < samples[j].value })
	total := 0.0
	for _, s := range samples {
		total += s.weight
	}
	cum := 0.0
	for _, s := range samples {
		cum += s.weight
		if cum >= total/2 {
			return s.value
		}
	}
	return samples[len(samples)-1].value
}
