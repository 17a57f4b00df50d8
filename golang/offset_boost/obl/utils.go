package obl

import (
	"log"
	"sort"

	"gonum.org/v1/gonum/mat"
)

//HandleError panics on a non-nil error. Used at I/O and rendering boundaries
//where there is nothing sensible to do with a failure.
func HandleError(err error) {
	if err != nil {
		log.Panic(err)
	}
}

//Height returns the number of rows of a matrix.
func Height(m *mat.Dense) int {
	h, _ := m.Dims()
	return h
}

//columnArgsort returns the row indices of col in ascending value order. Ties
//keep the original row order.
func columnArgsort(col mat.Vector) []int {
	h := col.Len()
	order := make([]int, h)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return col.AtVec(order[i]) < col.AtVec(order[j])
	})
	return order
}
