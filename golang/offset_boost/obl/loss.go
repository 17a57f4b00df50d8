package obl

//LossModel is the distributional contract the boosting driver programs against.
//Every distribution exposes the same five operations on caller-owned parallel
//arrays: the working response (negative gradient) the next tree is fit to, the
//intercept-only starting model, the deviance of the current model over an index
//window, the optimal per-leaf constant for a freshly grown tree, and the
//out-of-bag improvement of a proposed shrunken update.
//
//The signature is uniform across distributions, so a given variant may ignore
//some arguments (Poisson never reads weight or inBag in the working response,
//for example). A nil offset slice means "no offset configured" and is treated
//as all zeros without touching memory; it is not the same as a slice of zeros
//only in that no allocation is required.
//
//None of the operations report errors. Degenerate input (a non-positive ratio
//under a logarithm, a zero weight sum under a division) surfaces as NaN or Inf
//in the returned value and it is the caller's job to notice.
type LossModel interface {
	//Name reports the distribution name used in configs and saved models.
	Name() string

	//ComputeWorkingResponse fills z[0:n] with the pseudo-response the next
	//tree is fit against.
	ComputeWorkingResponse(y, offset, f, z, weight []float64, inBag []bool, n int)

	//InitF returns the constant score minimizing deviance over the first n
	//observations.
	InitF(y, offset, weight []float64, n int) float64

	//Deviance scores the model over the half-open window [idxOff, idxOff+n).
	//The window lets one contiguous layout serve both the train and the
	//validation partition.
	Deviance(y, offset, weight, f []float64, n, idxOff int) float64

	//FitBestConstant writes the optimal constant into the Prediction field of
	//every non-nil terminal node, accumulating over the in-bag rows of the
	//first n observations. nodeAssign routes each observation to its leaf.
	FitBestConstant(y, offset, weight, f []float64, nodeAssign []int, n int,
		termNodes []*TerminalNode, minObsInNode int, inBag []bool, fAdj []float64, idxOff int)

	//BagImprovement measures, on out-of-bag rows only, the gain of moving the
	//score by stepSize*fAdj. The result is normalized by the out-of-bag
	//weight sum.
	BagImprovement(y, offset, weight, f, fAdj []float64, inBag []bool, stepSize float64, n int) float64
}

//Score bounds protecting exp() evaluation. Leaf constants are clamped so the
//combined score f+prediction stays within [-PredictionClipBound,
//PredictionClipBound]; a leaf whose numerator vanished gets
//ZeroNumeratorPrediction instead of log(0).
const (
	PredictionClipBound     = 19.0
	ZeroNumeratorPrediction = -19.0
)

//offsetAt reads the offset of observation i, treating a nil slice as zero.
func offsetAt(offset []float64, i int) float64 {
	if offset == nil {
		return 0.0
	}
	return offset[i]
}

//resizeFill grows buf to length n, reusing its backing array when possible,
//and sets every element to fill.
func resizeFill(buf []float64, n int, fill float64) []float64 {
	if cap(buf) < n {
		buf = make([]float64, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = fill
	}
	return buf
}
