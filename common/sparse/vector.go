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
	"math"
	"sort"
)

// Vector is a sparse vector with indices in ascending order.
type Vector struct {
	indices []int32
	values  []float64
}

// NewVector creates a vector from indices and values. Both slices are sorted by
// index; entries with duplicated indices keep the last value.
func NewVector(indices []int32, values []float64) *Vector {
	v := &Vector{indices: indices, values: values}
	v.normalize()
	return v
}

func (v *Vector) normalize() {
	order := make([]int, len(v.indices))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return v.indices[order[a]] < v.indices[order[b]]
	})
	indices := make([]int32, 0, len(order))
	values := make([]float64, 0, len(order))
	for _, i := range order {
		if n := len(indices); n > 0 && indices[n-1] == v.indices[i] {
			values[n-1] = v.values[i]
			continue
		}
		indices = append(indices, v.indices[i])
		values = append(values, v.values[i])
	}
	// drop explicit zeros
	j := 0
	for i := range indices {
		if values[i] != 0 {
			indices[j], values[j] = indices[i], values[i]
			j++
		}
	}
	v.indices, v.values = indices[:j], values[:j]
}

// Len returns the number of nonzero entries.
func (v *Vector) Len() int {
	if v == nil {
		return 0
	}
	return len(v.indices)
}

func (v *Vector) Indices() []int32 {
	if v == nil {
		return nil
	}
	return v.indices
}

func (v *Vector) Values() []float64 {
	if v == nil {
		return nil
	}
	return v.values
}

// ForEach iterates nonzero entries in ascending order of index.
func (v *Vector) ForEach(f func(index int32, value float64)) {
	if v == nil {
		return
	}
	for i, index := range v.indices {
		f(index, v.values[i])
	}
}

// Get returns the value at index, or false if the entry is zero.
func (v *Vector) Get(index int32) (float64, bool) {
	if v == nil {
		return 0, false
	}
	i := sort.Search(len(v.indices), func(i int) bool {
		return v.indices[i] >= index
	})
	if i < len(v.indices) && v.indices[i] == index {
		return v.values[i], true
	}
	return 0, false
}

// Norm returns the L2 norm.
func (v *Vector) Norm() float64 {
	return math.Sqrt(Dot(v, v))
}

// Dot returns the inner product of two sparse vectors.
func Dot(a, b *Vector) float64 {
	var (
		sum  float64
		i, j int
	)
	for i < a.Len() && j < b.Len() {
		switch {
		case a.indices[i] < b.indices[j]:
			i++
		case a.indices[i] > b.indices[j]:
			j++
		default:
			sum += a.values[i] * b.values[j]
			i++
			j++
		}
	}
	return sum
}
