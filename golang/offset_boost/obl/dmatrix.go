package obl

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

//DMatrix bundles one observation partition: the response, the optional
//log-scale offset, per-row weights and the feature matrix the trees split on.
//Gax is the precomputed per-column argsort table the split scan iterates over,
//built once per dataset so it survives all boosting stages.
type DMatrix struct {
	Y           []float64
	Offset      []float64
	Weight      []float64
	Features    *mat.Dense
	Gax         *tensor.Dense
	Description *string
}

//SetDescription attaches a human-readable name used in learning-curve logs.
func (dm *DMatrix) SetDescription(description string) {
	dm.Description = &description
}

//NewDMatrix validates alignment of the observation arrays, fills a nil weight
//slice with ones and precomputes the argsort table. A nil offset stays nil
//and means "no offset configured". The slices are retained, not copied.
func NewDMatrix(y, offset, weight []float64, features *mat.Dense) (*DMatrix, error) {
	h := Height(features)
	if len(y) != h {
		return nil, errors.New("response length does not match the feature height")
	}
	if offset != nil && len(offset) != h {
		return nil, errors.New("offset length does not match the feature height")
	}
	if weight == nil {
		weight = make([]float64, h)
		for i := range weight {
			weight[i] = 1.0
		}
	} else if len(weight) != h {
		return nil, errors.New("weight length does not match the feature height")
	}
	for i, w := range weight {
		if w < 0 {
			return nil, fmt.Errorf("negative weight at row %d", i)
		}
	}

	dm := &DMatrix{Y: y, Offset: offset, Weight: weight, Features: features}
	dm.buildGax()
	return dm, nil
}

//buildGax argsorts every feature column into an h x w integer tensor.
func (dm *DMatrix) buildGax() {
	h, w := dm.Features.Dims()
	dm.Gax = tensor.New(tensor.WithShape(h, w), tensor.Of(tensor.Int))
	for q := 0; q < w; q++ {
		order := columnArgsort(dm.Features.ColView(q))
		for i := 0; i < h; i++ {
			HandleError(dm.Gax.SetAt(order[i], i, q))
		}
	}
}

//gaxAt returns the row index at sorted position i of feature column q.
func (dm *DMatrix) gaxAt(i, q int) int {
	element, err := dm.Gax.At(i, q)
	HandleError(err)
	return element.(int)
}

//ReadDMatrix reads a dataset from npy files. fileNameOffset and
//fileNameWeight may be empty: a missing offset means none is configured, a
//missing weight means unit weights.
func ReadDMatrix(fileNameFeatures, fileNameResponse, fileNameOffset, fileNameWeight string) (*DMatrix, error) {
	log.Print("\ttry to load features <", fileNameFeatures, ">")
	features := ReadNpy(fileNameFeatures)
	log.Print("\ttry to load response <", fileNameResponse, ">")
	y := columnSlice(ReadNpy(fileNameResponse))

	var offset, weight []float64
	if fileNameOffset != "" {
		log.Print("\ttry to load offset <", fileNameOffset, ">")
		offset = columnSlice(ReadNpy(fileNameOffset))
	}
	if fileNameWeight != "" {
		log.Print("\ttry to load weight <", fileNameWeight, ">")
		weight = columnSlice(ReadNpy(fileNameWeight))
	}

	return NewDMatrix(y, offset, weight, features)
}

//ReadNpy reads the content of an npy file into a dense matrix.
func ReadNpy(fileName string) (denseMat *mat.Dense) {
	f, err := os.Open(fileName)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { HandleError(f.Close()) }()

	r, err := npyio.NewReader(f)
	if err != nil {
		log.Fatal(err)
	}

	denseMat = &mat.Dense{}
	HandleError(r.Read(denseMat))
	return
}

//WriteNpy writes a dense matrix into an npy file.
func WriteNpy(fileName string, m *mat.Dense) {
	f, err := os.Create(fileName)
	HandleError(err)
	defer func() { HandleError(f.Close()) }()
	HandleError(npyio.Write(f, m))
}

//columnSlice flattens a single-column matrix into a slice.
func columnSlice(m *mat.Dense) []float64 {
	h, w := m.Dims()
	if w != 1 {
		log.Panicf("expected a single column, got width %d", w)
	}
	out := make([]float64, h)
	for i := 0; i < h; i++ {
		out[i] = m.At(i, 0)
	}
	return out
}
