package mathutil

// Mat is a 2D float64 matrix stored as row-major [][]float64.
type Mat = [][]float64

// NewMat creates a rows x cols matrix initialized to zero.
// Rows share one backing array.
func NewMat(rows, cols int) Mat {
	m := make(Mat, rows)
	data := make([]float64, rows*cols)
	for i := range m {
		m[i] = data[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return m
}

// FillMat fills all elements of an existing matrix with val.
func FillMat(m Mat, val float64) {
	for i := range m {
		FillVec(m[i], val)
	}
}

// FillVec fills all elements of an existing vector with val.
func FillVec(v []float64, val float64) {
	for i := range v {
		v[i] = val
	}
}

// MapMat returns a new matrix with f applied to each element of m.
// Ragged input keeps its shape.
func MapMat(m Mat, f func(float64) float64) Mat {
	out := make(Mat, len(m))
	for i, row := range m {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = f(v)
		}
	}
	return out
}
