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
	"context"

	"github.com/gorse-io/bnslim/common/parallel"
	"github.com/juju/errors"
)

// SymmMatrix is a read-only symmetric sparse matrix without diagonal entries.
type SymmMatrix struct {
	rows []*Vector
}

func (m *SymmMatrix) Size() int {
	return len(m.rows)
}

// Get returns the value at (i, j). Diagonal and missing entries are zero.
func (m *SymmMatrix) Get(i, j int) float64 {
	if i == j {
		return 0
	}
	value, _ := m.rows[i].Get(int32(j))
	return value
}

// Row returns nonzero entries of row i in ascending order of column.
func (m *SymmMatrix) Row(i int) *Vector {
	return m.rows[i]
}

// SymmMatrixBuilder collects upper or lower entries of a symmetric matrix.
type SymmMatrixBuilder struct {
	n       int
	indices [][]int32
	values  [][]float64
}

func NewSymmMatrixBuilder(n int) *SymmMatrixBuilder {
	return &SymmMatrixBuilder{
		n:       n,
		indices: make([][]int32, n),
		values:  make([][]float64, n),
	}
}

// Set assigns value to both (i, j) and (j, i). Diagonal entries are ignored.
func (b *SymmMatrixBuilder) Set(i, j int, value float64) error {
	if i < 0 || i >= b.n || j < 0 || j >= b.n {
		return errors.NotFoundf("entry (%d, %d) in symmetric matrix of size %d", i, j, b.n)
	}
	if i == j {
		return nil
	}
	b.indices[i] = append(b.indices[i], int32(j))
	b.values[i] = append(b.values[i], value)
	b.indices[j] = append(b.indices[j], int32(i))
	b.values[j] = append(b.values[j], value)
	return nil
}

func (b *SymmMatrixBuilder) Build() *SymmMatrix {
	m := &SymmMatrix{rows: make([]*Vector, b.n)}
	for i := range m.rows {
		m.rows[i] = NewVector(b.indices[i], b.values[i])
	}
	return m
}

type similarityFunc func(a, b *Vector, normA, normB float64) float64

func cosine(a, b *Vector, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	return Dot(a, b) / (normA * normB)
}

func dot(a, b *Vector, _, _ float64) float64 {
	return Dot(a, b)
}

// Cosine computes the cosine similarity between every pair of vectors.
func Cosine(ctx context.Context, vectors []*Vector, jobs int) (*SymmMatrix, error) {
	return similarity(ctx, vectors, jobs, cosine)
}

// DotProduct computes the inner product between every pair of vectors.
func DotProduct(ctx context.Context, vectors []*Vector, jobs int) (*SymmMatrix, error) {
	return similarity(ctx, vectors, jobs, dot)
}

func similarity(ctx context.Context, vectors []*Vector, jobs int, f similarityFunc) (*SymmMatrix, error) {
	n := len(vectors)
	norms := make([]float64, n)
	for i, v := range vectors {
		norms[i] = v.Norm()
	}
	// row i keeps pairs (i, j) with j > i
	upperIndices := make([][]int32, n)
	upperValues := make([][]float64, n)
	err := parallel.For(ctx, n, jobs, func(i int) {
		for j := i + 1; j < n; j++ {
			if score := f(vectors[i], vectors[j], norms[i], norms[j]); score != 0 {
				upperIndices[i] = append(upperIndices[i], int32(j))
				upperValues[i] = append(upperValues[i], score)
			}
		}
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	builder := NewSymmMatrixBuilder(n)
	for i := range upperIndices {
		for k, j := range upperIndices[i] {
			if err = builder.Set(i, int(j), upperValues[i][k]); err != nil {
				return nil, errors.Trace(err)
			}
		}
	}
	return builder.Build(), nil
}

// Similarity computes a similarity matrix by name: "cosine" or "dot".
func Similarity(ctx context.Context, name string, vectors []*Vector, jobs int) (*SymmMatrix, error) {
	switch name {
	case "cosine":
		return Cosine(ctx, vectors, jobs)
	case "dot":
		return DotProduct(ctx, vectors, jobs)
	}
	return nil, errors.NotValidf("similarity %q", name)
}
