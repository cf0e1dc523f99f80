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

package slim

import (
	"iter"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/bnslim/common/heap"
	"github.com/gorse-io/bnslim/common/sparse"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// NeighborhoodIndex provides the neighbors of every entity. An entity is never a
// neighbor of itself.
type NeighborhoodIndex interface {
	// Neighbors yields neighbors of an entity in ascending order.
	Neighbors(entity int) iter.Seq[int32]
	// Contains returns true if candidate is a neighbor of entity.
	Contains(entity int, candidate int32) bool
}

// BuildNeighborhoods creates the neighborhood index of n entities. If k > 0, each
// entity keeps its k most similar entities (ties broken by ascending index).
// Otherwise, every other entity is a neighbor.
func BuildNeighborhoods(similarity *sparse.SymmMatrix, n, k int) (NeighborhoodIndex, error) {
	if k <= 0 {
		return newFullNeighborhood(n), nil
	}
	if similarity == nil {
		return nil, errors.NotValidf("missing similarity matrix with %d nearest neighbors", k)
	}
	if similarity.Size() != n {
		return nil, errors.NotFoundf("similarity matrix of size %d for %d entities", similarity.Size(), n)
	}
	index := &boundedNeighborhood{
		sets:  make([]mapset.Set[int32], n),
		lists: make([][]int32, n),
	}
	for i := 0; i < n; i++ {
		row := similarity.Row(i)
		var neighbors []int32
		if row.Len() > k {
			filter := heap.NewTopKFilter[int32, float64](k)
			row.ForEach(func(j int32, score float64) {
				if int(j) != i {
					filter.Push(j, score)
				}
			})
			neighbors = filter.PopAllValues()
		} else {
			neighbors = lo.Filter(row.Indices(), func(j int32, _ int) bool {
				return int(j) != i
			})
		}
		index.sets[i] = mapset.NewThreadUnsafeSet(neighbors...)
		index.lists[i] = index.sets[i].ToSlice()
		slices.Sort(index.lists[i])
	}
	return index, nil
}

type boundedNeighborhood struct {
	sets  []mapset.Set[int32]
	lists [][]int32
}

func (b *boundedNeighborhood) Neighbors(entity int) iter.Seq[int32] {
	return slices.Values(b.lists[entity])
}

func (b *boundedNeighborhood) Contains(entity int, candidate int32) bool {
	return b.sets[entity].Contains(candidate)
}

// fullNeighborhood shares one list of all entities across every entity.
type fullNeighborhood struct {
	all []int32
}

func newFullNeighborhood(n int) *fullNeighborhood {
	return &fullNeighborhood{all: lo.RangeFrom[int32](0, n)}
}

func (f *fullNeighborhood) Neighbors(entity int) iter.Seq[int32] {
	return func(yield func(int32) bool) {
		for _, neighbor := range f.all {
			if int(neighbor) != entity && !yield(neighbor) {
				return
			}
		}
	}
}

func (f *fullNeighborhood) Contains(entity int, candidate int32) bool {
	return int(candidate) != entity && candidate >= 0 && int(candidate) < len(f.all)
}
