package obl

//GaussianLoss is squared-error regression on the identity link. The offset is
//subtracted from the response before fitting, so the score models y-offset.
type GaussianLoss struct {
	vecSum    []float64
	vecWeight []float64
}

func NewGaussianLoss() *GaussianLoss {
	return &GaussianLoss{}
}

func (*GaussianLoss) Name() string {
	return "gaussian"
}

//ComputeWorkingResponse fills z with the plain residual y - offset - f.
func (*GaussianLoss) ComputeWorkingResponse(y, offset, f, z, weight []float64, inBag []bool, n int) {
	for i := 0; i < n; i++ {
		z[i] = y[i] - offsetAt(offset, i) - f[i]
	}
}

//InitF returns the weighted mean of the offset-adjusted response.
func (*GaussianLoss) InitF(y, offset, weight []float64, n int) float64 {
	sum := 0.0
	w := 0.0
	for i := 0; i < n; i++ {
		sum += weight[i] * (y[i] - offsetAt(offset, i))
		w += weight[i]
	}
	return sum / w
}

//Deviance is the weighted mean squared residual over [idxOff, idxOff+n).
func (*GaussianLoss) Deviance(y, offset, weight, f []float64, n, idxOff int) float64 {
	l := 0.0
	w := 0.0
	for i := idxOff; i < idxOff+n; i++ {
		r := y[i] - offsetAt(offset, i) - f[i]
		l += weight[i] * r * r
		w += weight[i]
	}
	return l / w
}

//FitBestConstant sets each terminal node's Prediction to the weighted mean
//residual of its in-bag rows, the closed-form optimum for squared error.
func (g *GaussianLoss) FitBestConstant(y, offset, weight, f []float64, nodeAssign []int, n int,
	termNodes []*TerminalNode, minObsInNode int, inBag []bool, fAdj []float64, idxOff int) {
	cTermNodes := len(termNodes)
	g.vecSum = resizeFill(g.vecSum, cTermNodes, 0.0)
	g.vecWeight = resizeFill(g.vecWeight, cTermNodes, 0.0)

	for i := 0; i < n; i++ {
		if inBag[i] {
			node := nodeAssign[i]
			g.vecSum[node] += weight[i] * (y[i] - offsetAt(offset, i) - f[i])
			g.vecWeight[node] += weight[i]
		}
	}

	for node := 0; node < cTermNodes; node++ {
		if termNodes[node] == nil {
			continue
		}
		if g.vecWeight[node] == 0.0 {
			termNodes[node].Prediction = 0.0
		} else {
			termNodes[node].Prediction = g.vecSum[node] / g.vecWeight[node]
		}
	}
}

//BagImprovement is the out-of-bag drop in squared error from the proposed
//step, normalized by the out-of-bag weight.
func (*GaussianLoss) BagImprovement(y, offset, weight, f, fAdj []float64, inBag []bool, stepSize float64, n int) float64 {
	gain := 0.0
	w := 0.0
	for i := 0; i < n; i++ {
		if !inBag[i] {
			r := y[i] - offsetAt(offset, i) - f[i]
			step := stepSize * fAdj[i]
			gain += weight[i] * step * (2.0*r - step)
			w += weight[i]
		}
	}
	return gain / w
}
