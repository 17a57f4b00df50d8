package obl

//TreeParams collects the knobs of one tree fit.
type TreeParams struct {
	MaxDepth     int
	MinObsInNode int
	ThreadsNum   int
}

//NewTree grows one regression tree on the working response z over the rows
//marked in member (the in-bag rows of the current stage). Every leaf gets a
//TerminalNode preloaded with the weighted mean of z; the loss model replaces
//that with the deviance-optimal constant afterwards.
func NewTree(dm *DMatrix, z, weight []float64, member []bool, params TreeParams) (oneTree OneTree) {
	oneTree.TreeNodes = make([]TreeNode, 0)
	oneTree.LeafNodes = make([]*TerminalNode, 0)
	(&oneTree).buildTree(dm, z, weight, member, params, 0)
	return
}

//buildTree recurrently builds a tree node over the member rows and returns
//its index in the TreeNodes array.
func (oneTree *OneTree) buildTree(dm *DMatrix, z, weight []float64, member []bool, params TreeParams, currentDepth int) int {
	memberCount := 0
	for _, m := range member {
		if m {
			memberCount++
		}
	}

	if currentDepth < params.MaxDepth && memberCount >= 2*params.MinObsInNode {
		bestSplit := TheBestSplit(dm, z, weight, member, params.MinObsInNode, params.ThreadsNum)
		if bestSplit != nil {
			treeNodeId := len(oneTree.TreeNodes)
			currentTreeNode := NewTreeNode()
			currentTreeNode.TreeNodeId = treeNodeId
			currentTreeNode.FeatureNumber = bestSplit.featureIndex
			currentTreeNode.Threshold = bestSplit.threshold
			currentTreeNode.NumberOfObjects = memberCount
			oneTree.TreeNodes = append(oneTree.TreeNodes, currentTreeNode)

			leftMember, rightMember := splitMember(dm, member, bestSplit.featureIndex, bestSplit.threshold)

			leftNodeId := oneTree.buildTree(dm, z, weight, leftMember, params, currentDepth+1)
			oneTree.TreeNodes[treeNodeId].LeftIndex = leftNodeId

			rightNodeId := oneTree.buildTree(dm, z, weight, rightMember, params, currentDepth+1)
			oneTree.TreeNodes[treeNodeId].RightIndex = rightNodeId

			return treeNodeId
		}
	}

	treeNodeId := len(oneTree.TreeNodes)
	currentTreeNode := NewTreeNode()
	currentTreeNode.TreeNodeId = treeNodeId
	currentTreeNode.NumberOfObjects = memberCount
	oneTree.TreeNodes = append(oneTree.TreeNodes, currentTreeNode)

	leafNodeId := len(oneTree.LeafNodes)
	oneTree.TreeNodes[treeNodeId].LeafIndex = leafNodeId
	oneTree.LeafNodes = append(oneTree.LeafNodes, newTerminalNode(z, weight, member, memberCount))
	return treeNodeId
}

//newTerminalNode seeds a leaf with the weighted mean working response.
func newTerminalNode(z, weight []float64, member []bool, memberCount int) *TerminalNode {
	sum := 0.0
	w := 0.0
	for i, m := range member {
		if m {
			sum += weight[i] * z[i]
			w += weight[i]
		}
	}
	prediction := 0.0
	if w > 0 {
		prediction = sum / w
	}
	return &TerminalNode{Prediction: prediction, NumberOfObjects: memberCount, TotalWeight: w}
}

//splitMember partitions the member mask by a threshold on one feature.
func splitMember(dm *DMatrix, member []bool, featureIndex int, threshold float64) (left, right []bool) {
	left = make([]bool, len(member))
	right = make([]bool, len(member))
	for i, m := range member {
		if !m {
			continue
		}
		if dm.Features.At(i, featureIndex) < threshold {
			left[i] = true
		} else {
			right[i] = true
		}
	}
	return
}
