package obl

import (
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"gonum.org/v1/gonum/mat"
)

//TerminalNode is one leaf of a fitted tree. The tree grower creates it with
//the working-response mean of its rows; the loss model then overwrites
//Prediction with the deviance-optimal constant on the score scale. The handle
//is owned by the tree, and consumers must tolerate a nil handle for a pruned
//leaf slot.
type TerminalNode struct {
	Prediction      float64
	NumberOfObjects int
	TotalWeight     float64
}

//GraphDescription returns the label of a leaf for tree rendering.
func (node *TerminalNode) GraphDescription() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("pred: %6.4f\n", node.Prediction))
	sb.WriteString(fmt.Sprintln("#", node.NumberOfObjects))
	sb.WriteString(fmt.Sprintf("w: %6.2f", node.TotalWeight))
	return sb.String()
}

//TreeNode is a node of a tree. The tree is stored in an array. LeftIndex and
//RightIndex are -1 when the node is a leaf, otherwise they hold array indices
//of the children. A leaf node carries LeafIndex, an index into the tree's
//LeafNodes array.
type TreeNode struct {
	TreeNodeId            int
	FeatureNumber         int
	Threshold             float64
	LeftIndex, RightIndex int
	LeafIndex             int
	NumberOfObjects       int
}

func NewTreeNode() TreeNode {
	return TreeNode{0, 0, 0, -1, -1, -1, 0}
}

//IsLeaf reports whether this node routes to a terminal node.
func (node TreeNode) IsLeaf() bool {
	return node.LeafIndex != -1
}

//GraphDescription returns the label of an internal node for tree rendering.
func (node TreeNode) GraphDescription() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("id: ", node.TreeNodeId))
	sb.WriteString(fmt.Sprintln("#", node.NumberOfObjects))
	sb.WriteString(fmt.Sprintf("f_%d < %6.5f", node.FeatureNumber, node.Threshold))
	return sb.String()
}

//OneTree is a single regression tree of the boosted model. LeafNodes holds
//the terminal-node handles the loss model writes its constants into.
type OneTree struct {
	TreeNodes []TreeNode
	LeafNodes []*TerminalNode
}

//AssignRow routes one feature row down the tree and returns the index of its
//terminal node.
func (tree OneTree) AssignRow(features *mat.Dense, p int) int {
	ind := 0
	for tree.TreeNodes[ind].LeafIndex == -1 {
		if features.At(p, tree.TreeNodes[ind].FeatureNumber) < tree.TreeNodes[ind].Threshold {
			ind = tree.TreeNodes[ind].LeftIndex
		} else {
			ind = tree.TreeNodes[ind].RightIndex
		}
	}
	return tree.TreeNodes[ind].LeafIndex
}

//AssignNodes routes every row of features and stores the terminal-node index
//of row p into assign[base+p].
func (tree OneTree) AssignNodes(features *mat.Dense, assign []int, base int) {
	h := Height(features)
	for p := 0; p < h; p++ {
		assign[base+p] = tree.AssignRow(features, p)
	}
}

func recurrentDraw(g *cgraph.Graph, tree OneTree, nodeNumber int, parentNode *cgraph.Node) {
	currentNode, err := g.CreateNode(fmt.Sprint(tree.TreeNodes[nodeNumber].TreeNodeId))
	HandleError(err)

	if parentNode != nil {
		g.CreateEdge("", parentNode, currentNode)
	}

	if tree.TreeNodes[nodeNumber].IsLeaf() {
		currentNode.Set("label", tree.LeafNodes[tree.TreeNodes[nodeNumber].LeafIndex].GraphDescription())
		currentNode.Set("shape", "box")
	} else {
		currentNode.Set("label", tree.TreeNodes[nodeNumber].GraphDescription())
		recurrentDraw(g, tree, tree.TreeNodes[nodeNumber].LeftIndex, currentNode)
		recurrentDraw(g, tree, tree.TreeNodes[nodeNumber].RightIndex, currentNode)
	}
}

//DrawGraph renders the tree as a graphviz graph.
func (tree OneTree) DrawGraph() (*graphviz.Graphviz, *cgraph.Graph) {
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	HandleError(err)

	recurrentDraw(graph, tree, 0, nil)

	return graphViz, graph
}
