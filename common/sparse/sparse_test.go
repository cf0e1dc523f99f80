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
	"math"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector(t *testing.T) {
	v := NewVector([]int32{5, 1, 3, 1, 7}, []float64{5, 1, 3, 2, 0})
	assert.Equal(t, []int32{1, 3, 5}, v.Indices())
	assert.Equal(t, []float64{2, 3, 5}, v.Values())
	assert.Equal(t, 3, v.Len())
	value, ok := v.Get(3)
	assert.True(t, ok)
	assert.Equal(t, 3.0, value)
	_, ok = v.Get(4)
	assert.False(t, ok)
	_, ok = v.Get(7)
	assert.False(t, ok)
	var visited []int32
	v.ForEach(func(index int32, _ float64) {
		visited = append(visited, index)
	})
	assert.Equal(t, []int32{1, 3, 5}, visited)
	// nil vector
	var empty *Vector
	assert.Zero(t, empty.Len())
	assert.Zero(t, Dot(empty, v))
}

func TestDot(t *testing.T) {
	a := NewVector([]int32{0, 2, 4}, []float64{1, 2, 3})
	b := NewVector([]int32{1, 2, 4}, []float64{5, 6, 7})
	assert.Equal(t, 2.0*6+3*7, Dot(a, b))
	assert.InDelta(t, math.Sqrt(14), a.Norm(), 1e-12)
}

func TestMatrix(t *testing.T) {
	builder := NewMatrixBuilder()
	builder.Add(0, 1, 1)
	builder.Add(2, 0, 3)
	builder.Add(0, 0, 2)
	builder.Add(1, 1, 0)
	m, err := builder.Build(3, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, m.NumRows())
	assert.Equal(t, 2, m.NumColumns())
	assert.Equal(t, 3, m.Count())
	assert.Equal(t, []int32{0, 1}, m.Row(0).Indices())
	assert.Equal(t, []float64{2, 1}, m.Row(0).Values())
	assert.Zero(t, m.Row(1).Len())
	assert.Equal(t, []int32{0, 2}, m.Column(0).Indices())
	assert.Equal(t, []float64{2, 3}, m.Column(0).Values())
	assert.Equal(t, []int32{0}, m.Column(1).Indices())

	builder.Add(3, 0, 1)
	_, err = builder.Build(3, 2)
	assert.True(t, errors.IsNotFound(err))
}

func TestSymmMatrix(t *testing.T) {
	builder := NewSymmMatrixBuilder(3)
	assert.NoError(t, builder.Set(0, 1, 0.5))
	assert.NoError(t, builder.Set(2, 1, 0.25))
	assert.NoError(t, builder.Set(1, 1, 9))
	assert.True(t, errors.IsNotFound(builder.Set(0, 3, 1)))
	m := builder.Build()
	assert.Equal(t, 3, m.Size())
	assert.Equal(t, 0.5, m.Get(0, 1))
	assert.Equal(t, 0.5, m.Get(1, 0))
	assert.Equal(t, 0.25, m.Get(1, 2))
	assert.Zero(t, m.Get(1, 1))
	assert.Zero(t, m.Get(0, 2))
	assert.Equal(t, []int32{0, 2}, m.Row(1).Indices())
}

func TestCosine(t *testing.T) {
	vectors := []*Vector{
		NewVector([]int32{0, 1}, []float64{1, 1}),
		NewVector([]int32{0}, []float64{1}),
		NewVector([]int32{2}, []float64{4}),
		NewVector(nil, nil),
	}
	for _, jobs := range []int{1, 3} {
		m, err := Cosine(context.Background(), vectors, jobs)
		require.NoError(t, err)
		assert.InDelta(t, 1/math.Sqrt(2), m.Get(0, 1), 1e-12)
		assert.Zero(t, m.Get(0, 2))
		assert.Zero(t, m.Get(2, 3))
		assert.Equal(t, []int32{1}, m.Row(0).Indices())
		assert.Zero(t, m.Row(2).Len())
	}
}

func TestSimilarity(t *testing.T) {
	vectors := []*Vector{
		NewVector([]int32{0, 1}, []float64{1, 2}),
		NewVector([]int32{1}, []float64{3}),
	}
	m, err := Similarity(context.Background(), "dot", vectors, 2)
	require.NoError(t, err)
	assert.Equal(t, 6.0, m.Get(1, 0))
	_, err = Similarity(context.Background(), "jaccard", vectors, 2)
	assert.True(t, errors.IsNotValid(err))
}
