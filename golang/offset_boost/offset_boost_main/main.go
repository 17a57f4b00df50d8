package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/countfit/offset_bagged_boosting/golang/offset_boost/obl"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

func decodeConfig(srcConfig string, out interface{}) {
	file, err := os.Open(srcConfig)
	obl.HandleError(err)
	defer func() { obl.HandleError(file.Close()) }()

	decoder := json.NewDecoder(file)
	obl.HandleError(decoder.Decode(out))
}

func lossByName(name string) obl.LossModel {
	switch name {
	case "poisson", "":
		return obl.NewPoissonLoss()
	case "gaussian":
		return obl.NewGaussianLoss()
	case "laplace":
		return obl.NewLaplaceLoss()
	}
	log.Panic("unknown loss name: ", name)
	return nil
}

type DatasetConfig struct {
	Description      string `json:"description"`
	FileNameFeatures string `json:"filename_features"`
	FileNameResponse string `json:"filename_response"`
	FileNameOffset   string `json:"filename_offset"`
	FileNameWeight   string `json:"filename_weight"`
}

func readDataset(config DatasetConfig) *obl.DMatrix {
	dm, err := obl.ReadDMatrix(config.FileNameFeatures, config.FileNameResponse,
		config.FileNameOffset, config.FileNameWeight)
	obl.HandleError(err)
	if config.Description != "" {
		dm.SetDescription(config.Description)
	}
	return dm
}

type TrainConfig struct {
	Train         DatasetConfig  `json:"train"`
	Valid         *DatasetConfig `json:"valid"`
	FileNameModel string         `json:"filename_model"`
	Loss          string         `json:"loss"`
	NStages       int            `json:"n_stages"`
	StepSize      float64        `json:"step_size"`
	BagFraction   float64        `json:"bag_fraction"`
	MaxDepth      int            `json:"max_depth"`
	MinObsInNode  int            `json:"min_obs_in_node"`
	ThreadsNum    int            `json:"threads_num"`
	Seed          int64          `json:"seed"`
}

func train(srcConfig string) {
	var trainConfig TrainConfig
	decodeConfig(srcConfig, &trainConfig)

	log.Println("load train")
	dmTrain := readDataset(trainConfig.Train)

	var dmValid *obl.DMatrix
	if trainConfig.Valid != nil {
		log.Println("load valid")
		dmValid = readDataset(*trainConfig.Valid)
	}

	clf := obl.NewBooster(obl.BoosterParams{
		Matrix:       dmTrain,
		ValidMatrix:  dmValid,
		NStages:      trainConfig.NStages,
		StepSize:     trainConfig.StepSize,
		BagFraction:  trainConfig.BagFraction,
		MaxDepth:     trainConfig.MaxDepth,
		MinObsInNode: trainConfig.MinObsInNode,
		ThreadsNum:   trainConfig.ThreadsNum,
		LossKind:     lossByName(trainConfig.Loss),
		Seed:         trainConfig.Seed,
	})

	clf.Save(trainConfig.FileNameModel)
}

type PredictConfig struct {
	DataFileName       string `json:"filename_features"`
	ModelFileName      string `json:"filename_model"`
	PredictionFileName string `json:"filename_prediction"`
	TreesNumber        int    `json:"trees_number"`
}

func predict(srcConfig string) {
	var predictConfig PredictConfig
	decodeConfig(srcConfig, &predictConfig)

	features := obl.ReadNpy(predictConfig.DataFileName)
	clf := obl.LoadModel(predictConfig.ModelFileName)

	var optionalTreeNumber *int
	if predictConfig.TreesNumber != 0 {
		optionalTreeNumber = &predictConfig.TreesNumber
	}

	prediction := clf.PredictLink(features, optionalTreeNumber)
	dst, err := os.Create(predictConfig.PredictionFileName)
	obl.HandleError(err)
	defer func() { obl.HandleError(dst.Close()) }()
	obl.HandleError(npyio.Write(dst, prediction))
}

type LcurveConfig struct {
	Data                  DatasetConfig `json:"data"`
	ModelFileName         string        `json:"filename_model"`
	LearningCurveFileName string        `json:"filename_learning_curve"`
}

//lcurve replays a saved model tree by tree against a dataset and dumps the
//deviance after each stage.
func lcurve(srcConfig string) {
	var lcurveConfig LcurveConfig
	decodeConfig(srcConfig, &lcurveConfig)

	dm := readDataset(lcurveConfig.Data)
	clf := obl.LoadModel(lcurveConfig.ModelFileName)
	loss := lossByName(clf.LossName)

	h := obl.Height(dm.Features)
	f := make([]float64, h)
	for i := range f {
		f[i] = clf.InitFValue
	}

	learningCurve := mat.NewDense(len(clf.Trees), 1, nil)
	for currentTreeNumber, currentTree := range clf.Trees {
		for i := 0; i < h; i++ {
			leaf := currentTree.AssignRow(dm.Features, i)
			f[i] += clf.StepSize * currentTree.LeafNodes[leaf].Prediction
		}
		learningCurve.Set(currentTreeNumber, 0, loss.Deviance(dm.Y, dm.Offset, dm.Weight, f, h, 0))
	}

	dst, err := os.Create(lcurveConfig.LearningCurveFileName)
	obl.HandleError(err)
	defer func() { obl.HandleError(dst.Close()) }()
	obl.HandleError(npyio.Write(dst, learningCurve))
}

type GraphConfig struct {
	ModelFileName     string `json:"filename_model"`
	FigureType        string `json:"figure_type"`
	PicturesDirectory string `json:"pictures_directory"`
	DumpPrefix        string `json:"dump_prefix"`
}

func graph(srcConfig string) {
	var graphConfig GraphConfig
	decodeConfig(srcConfig, &graphConfig)

	clf := obl.LoadModel(graphConfig.ModelFileName)
	clf.RenderTrees(graphConfig.DumpPrefix, graphConfig.FigureType, graphConfig.PicturesDirectory)
}

func main() {
	runMode := flag.String("mode", "train", "you can select either 'train', 'graph', 'predict' or 'lcurve' modes")
	config := flag.String("config", "offset_config.json", "a config file for the run of the program")
	memprofile := flag.String("memprofile", "", "write memory profile to `file`")

	flag.Parse()

	map[string]func(string){
		"train":   train,
		"predict": predict,
		"graph":   graph,
		"lcurve":  lcurve,
	}[*runMode](*config)

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		obl.HandleError(err)
		defer func() { obl.HandleError(f.Close()) }()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal("could not write memory profile: ", err)
		}
	}
}
