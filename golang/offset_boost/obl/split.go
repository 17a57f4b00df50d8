package obl

//BestSplit contains the result of the split selection for one feature column.
type BestSplit struct {
	bestValue             float64
	featureIndex          int
	threshold             float64
	leftCount, rightCount int
	validSplit            bool
}

//scanForSplit walks feature column q of dm in sorted order through the
//precomputed argsort table, keeping running left-side aggregates of the
//weighted working response, and returns the threshold with the largest
//weighted variance reduction. Rows outside the member mask (out of the bag or
//out of the current node) are skipped. A candidate is valid only between
//distinct feature values and with at least minObsInNode rows on each side.
func scanForSplit(dm *DMatrix, z, weight []float64, member []bool, q, minObsInNode int) (bestSplit BestSplit) {
	bestSplit.featureIndex = q
	h := Height(dm.Features)

	totalSum := 0.0
	totalWeight := 0.0
	totalCount := 0
	for i := 0; i < h; i++ {
		if member[i] {
			totalSum += weight[i] * z[i]
			totalWeight += weight[i]
			totalCount++
		}
	}
	if totalWeight == 0.0 || totalCount < 2*minObsInNode {
		return
	}
	parentValue := totalSum * totalSum / totalWeight

	leftSum := 0.0
	leftWeight := 0.0
	leftCount := 0
	prevValue := 0.0
	firstIter := true
	firstCandidate := true

	for i := 0; i < h; i++ {
		row := dm.gaxAt(i, q)
		if !member[row] {
			continue
		}
		value := dm.Features.At(row, q)

		//a boundary between two distinct values is a split candidate
		if !firstIter && value != prevValue &&
			leftCount >= minObsInNode && totalCount-leftCount >= minObsInNode &&
			leftWeight > 0.0 && totalWeight-leftWeight > 0.0 {
			rightSum := totalSum - leftSum
			rightWeight := totalWeight - leftWeight
			gain := leftSum*leftSum/leftWeight + rightSum*rightSum/rightWeight - parentValue
			if gain > 0.0 && (firstCandidate || gain > bestSplit.bestValue) {
				firstCandidate = false
				bestSplit.bestValue = gain
				bestSplit.threshold = (prevValue + value) / 2
				bestSplit.leftCount = leftCount
				bestSplit.rightCount = totalCount - leftCount
				bestSplit.validSplit = true
			}
		}

		leftSum += weight[row] * z[row]
		leftWeight += weight[row]
		leftCount++
		prevValue = value
		firstIter = false
	}
	return
}

//TheBestSplit scans every feature column and returns the strongest split, or
//nil when no column yields one. The per-column scans run on a worker pool
//when more than one thread is requested.
func TheBestSplit(dm *DMatrix, z, weight []float64, member []bool, minObsInNode, threadsNum int) *BestSplit {
	_, w := dm.Features.Dims()
	result := make([]BestSplit, w)

	if threadsNum <= 1 {
		for q := 0; q < w; q++ {
			result[q] = scanForSplit(dm, z, weight, member, q, minObsInNode)
		}
	} else {
		taskPool := NewPool(threadsNum)
		for q := 0; q < w; q++ {
			taskPool.AddTask(&TaskFindBestSplit{result, q, func(localQ int) BestSplit {
				return scanForSplit(dm, z, weight, member, localQ, minObsInNode)
			}})
		}
		taskPool.Close()
		taskPool.WaitAll()
	}

	bestIndex := 0
	firstTime := true
	for ind, currentSplit := range result {
		if currentSplit.validSplit && (firstTime || currentSplit.bestValue > result[bestIndex].bestValue) {
			firstTime = false
			bestIndex = ind
		}
	}
	if firstTime {
		return nil
	}
	return &result[bestIndex]
}
