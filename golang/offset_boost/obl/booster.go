package obl

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path"

	"github.com/goccy/go-graphviz"
	"gonum.org/v1/gonum/mat"
)

//Booster is the boosted model: a shared intercept plus a sequence of trees
//whose leaf constants are applied with the step size.
type Booster struct {
	Trees          []OneTree
	InitFValue     float64
	StepSize       float64
	LossName       string
	TrainDeviance  []float64
	ValidDeviance  []float64
	OOBImprovement []float64
}

//BoosterParams collect the arguments required to train a booster. ValidMatrix
//is optional; when present its rows are laid out after the train rows in one
//contiguous score array, which is what lets Deviance address either partition
//through its index offset.
type BoosterParams struct {
	Matrix       *DMatrix
	ValidMatrix  *DMatrix
	NStages      int
	StepSize     float64
	BagFraction  float64
	MaxDepth     int
	MinObsInNode int
	ThreadsNum   int
	LossKind     LossModel
	Seed         int64
}

//NewBooster trains a new model. Each stage subsamples the bag, fits a tree to
//the working response of the in-bag rows, lets the loss model refit the leaf
//constants, scores the proposed step on the out-of-bag rows and applies it
//with the step size.
func NewBooster(params BoosterParams) (booster *Booster) {
	loss := params.LossKind
	booster = &Booster{
		Trees:    make([]OneTree, 0, params.NStages),
		StepSize: params.StepSize,
		LossName: loss.Name(),
	}

	nTrain := len(params.Matrix.Y)
	nValid := 0
	if params.ValidMatrix != nil {
		nValid = len(params.ValidMatrix.Y)
	}
	nTotal := nTrain + nValid

	y := concatArrays(params.Matrix.Y, validArray(params.ValidMatrix, func(dm *DMatrix) []float64 { return dm.Y }))
	weight := concatArrays(params.Matrix.Weight, validArray(params.ValidMatrix, func(dm *DMatrix) []float64 { return dm.Weight }))

	var offset []float64
	if params.Matrix.Offset != nil {
		if params.ValidMatrix != nil && params.ValidMatrix.Offset == nil {
			log.Panic("train matrix carries an offset but the validation matrix does not")
		}
		offset = concatArrays(params.Matrix.Offset, validArray(params.ValidMatrix, func(dm *DMatrix) []float64 { return dm.Offset }))
	} else if params.ValidMatrix != nil && params.ValidMatrix.Offset != nil {
		log.Panic("validation matrix carries an offset but the train matrix does not")
	}

	booster.InitFValue = loss.InitF(y, offset, weight, nTrain)

	f := make([]float64, nTotal)
	for i := range f {
		f[i] = booster.InitFValue
	}
	z := make([]float64, nTrain)
	fAdj := make([]float64, nTotal)
	nodeAssign := make([]int, nTotal)
	inBag := make([]bool, nTotal)

	rng := rand.New(rand.NewSource(params.Seed))

	for stage := 0; stage < params.NStages; stage++ {
		log.Printf("Tree number %d\n", stage+1)

		bagCount := 0
		for i := 0; i < nTrain; i++ {
			inBag[i] = rng.Float64() < params.BagFraction
			if inBag[i] {
				bagCount++
			}
		}
		if bagCount == 0 {
			inBag[rng.Intn(nTrain)] = true
		}

		loss.ComputeWorkingResponse(y, offset, f, z, weight, inBag, nTrain)

		tree := NewTree(params.Matrix, z, weight, inBag[:nTrain], TreeParams{
			MaxDepth:     params.MaxDepth,
			MinObsInNode: params.MinObsInNode,
			ThreadsNum:   params.ThreadsNum,
		})
		tree.AssignNodes(params.Matrix.Features, nodeAssign, 0)
		if params.ValidMatrix != nil {
			tree.AssignNodes(params.ValidMatrix.Features, nodeAssign, nTrain)
		}

		loss.FitBestConstant(y, offset, weight, f, nodeAssign, nTrain,
			tree.LeafNodes, params.MinObsInNode, inBag, fAdj, 0)

		for i := 0; i < nTotal; i++ {
			fAdj[i] = tree.LeafNodes[nodeAssign[i]].Prediction
		}

		improvement := loss.BagImprovement(y, offset, weight, f, fAdj, inBag, params.StepSize, nTrain)

		for i := 0; i < nTotal; i++ {
			f[i] += params.StepSize * fAdj[i]
		}

		trainDeviance := loss.Deviance(y, offset, weight, f, nTrain, 0)
		log.Print("train deviance = ", trainDeviance)
		booster.TrainDeviance = append(booster.TrainDeviance, trainDeviance)
		if params.ValidMatrix != nil {
			validDeviance := loss.Deviance(y, offset, weight, f, nValid, nTrain)
			log.Print("valid deviance = ", validDeviance)
			booster.ValidDeviance = append(booster.ValidDeviance, validDeviance)
		}
		booster.OOBImprovement = append(booster.OOBImprovement, improvement)

		booster.Trees = append(booster.Trees, tree)
	}
	return
}

//PredictLink infers the score f on the link scale for every feature row. Any
//configured offset is the caller's to add, mirroring how training keeps the
//offset outside the fitted score.
func (booster Booster) PredictLink(features *mat.Dense, treesNumber *int) *mat.Dense {
	n := len(booster.Trees)
	if treesNumber != nil {
		n = *treesNumber
	}

	h := Height(features)
	prediction := mat.NewDense(h, 1, nil)
	for p := 0; p < h; p++ {
		s := booster.InitFValue
		for treeInd := 0; treeInd < n; treeInd++ {
			leaf := booster.Trees[treeInd].AssignRow(features, p)
			s += booster.StepSize * booster.Trees[treeInd].LeafNodes[leaf].Prediction
		}
		prediction.Set(p, 0, s)
	}
	return prediction
}

//Save stores the model as indented JSON.
func (booster Booster) Save(filename string) {
	dest, err := os.Create(filename)
	if err != nil {
		log.Print("can't open file ", filename, " to write")
	}
	HandleError(err)
	defer func() { HandleError(dest.Close()) }()

	modelByteRepr, err := json.MarshalIndent(booster, "", "  ")
	HandleError(err)

	_, err = dest.Write(modelByteRepr)
	HandleError(err)
}

//LoadModel reads a model stored by Save.
func LoadModel(filename string) (booster Booster) {
	source, err := os.Open(filename)
	HandleError(err)
	defer func() { HandleError(source.Close()) }()

	decoder := json.NewDecoder(source)
	HandleError(decoder.Decode(&booster))
	return
}

//RenderTrees dumps every tree of the model as a figure.
func (booster Booster) RenderTrees(dumpPrefix, figureType, picturesDirectory string) {
	graphvizType := map[string]graphviz.Format{
		"png": graphviz.PNG,
		"svg": graphviz.SVG,
		"jpg": graphviz.JPG,
	}[figureType]

	for graphInd, currentTree := range booster.Trees {
		filename := fmt.Sprintf("%s_%05d.%s", dumpPrefix, graphInd, figureType)
		graphViz, graph := currentTree.DrawGraph()
		HandleError(graphViz.RenderFilename(graph, graphvizType, path.Join(picturesDirectory, filename)))
	}
}

func concatArrays(a, b []float64) []float64 {
	if b == nil {
		return a
	}
	out := make([]float64, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func validArray(dm *DMatrix, pick func(*DMatrix) []float64) []float64 {
	if dm == nil {
		return nil
	}
	return pick(dm)
}
