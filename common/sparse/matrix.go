// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sparse

import (
	"github.com/juju/errors"
)

// Matrix is an immutable sparse matrix indexed both by rows and by columns.
type Matrix struct {
	nRows    int
	nColumns int
	rows     []*Vector
	columns  []*Vector
}

func (m *Matrix) NumRows() int {
	return m.nRows
}

func (m *Matrix) NumColumns() int {
	return m.nColumns
}

// Row returns nonzero entries of row i indexed by column.
func (m *Matrix) Row(i int) *Vector {
	return m.rows[i]
}

// Column returns nonzero entries of column j indexed by row.
func (m *Matrix) Column(j int) *Vector {
	return m.columns[j]
}

func (m *Matrix) Rows() []*Vector {
	return m.rows
}

func (m *Matrix) Columns() []*Vector {
	return m.columns
}

// Count returns the number of nonzero entries.
func (m *Matrix) Count() int {
	n := 0
	for _, row := range m.rows {
		n += row.Len()
	}
	return n
}

// MatrixBuilder collects (row, column, value) triplets.
type MatrixBuilder struct {
	rows    []int32
	columns []int32
	values  []float64
}

func NewMatrixBuilder() *MatrixBuilder {
	return &MatrixBuilder{}
}

// Add appends an entry. A later entry at the same position overwrites an earlier one.
func (b *MatrixBuilder) Add(row, column int, value float64) {
	b.rows = append(b.rows, int32(row))
	b.columns = append(b.columns, int32(column))
	b.values = append(b.values, value)
}

// Build creates a nRows x nColumns matrix. Zero entries are dropped.
func (b *MatrixBuilder) Build(nRows, nColumns int) (*Matrix, error) {
	rowIndices := make([][]int32, nRows)
	rowValues := make([][]float64, nRows)
	for k := range b.values {
		i, j := b.rows[k], b.columns[k]
		if i < 0 || int(i) >= nRows || j < 0 || int(j) >= nColumns {
			return nil, errors.NotFoundf("entry (%d, %d) in %dx%d matrix", i, j, nRows, nColumns)
		}
		rowIndices[i] = append(rowIndices[i], j)
		rowValues[i] = append(rowValues[i], b.values[k])
	}
	m := &Matrix{
		nRows:    nRows,
		nColumns: nColumns,
		rows:     make([]*Vector, nRows),
		columns:  make([]*Vector, nColumns),
	}
	columnIndices := make([][]int32, nColumns)
	columnValues := make([][]float64, nColumns)
	for i := range m.rows {
		m.rows[i] = NewVector(rowIndices[i], rowValues[i])
		m.rows[i].ForEach(func(j int32, value float64) {
			columnIndices[j] = append(columnIndices[j], int32(i))
			columnValues[j] = append(columnValues[j], value)
		})
	}
	for j := range m.columns {
		m.columns[j] = &Vector{indices: columnIndices[j], values: columnValues[j]}
	}
	return m, nil
}
