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
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/bnslim/common/heap"
	"github.com/juju/errors"
)

// predict sums W[m][target]·r(m, index) over neighbors m of target rated at the
// other-axis index, leaving out excluded.
func (m *SLIM) predict(index, target, excluded int) float64 {
	var score float64
	coefficients := m.Coefficients[target]
	m.axis.RatersAt(index).ForEach(func(neighbor int32, rating float64) {
		if int(neighbor) != excluded && m.neighbors.Contains(target, neighbor) {
			score += rating * coefficients[neighbor]
		}
	})
	return score
}

// predictBalance sums p(m)·W[m][target] over the same neighbors as predict.
func (m *SLIM) predictBalance(index, target, excluded int) float64 {
	var balance float64
	coefficients := m.Coefficients[target]
	m.axis.RatersAt(index).ForEach(func(neighbor int32, _ float64) {
		if int(neighbor) != excluded && m.neighbors.Contains(target, neighbor) {
			balance += float64(m.membership.Get(int(neighbor))) * coefficients[neighbor]
		}
	})
	return balance
}

// predictBoth computes predict and predictBalance in one traversal.
func (m *SLIM) predictBoth(index, target, excluded int) (score, balance float64) {
	coefficients := m.Coefficients[target]
	m.axis.RatersAt(index).ForEach(func(neighbor int32, rating float64) {
		if int(neighbor) != excluded && m.neighbors.Contains(target, neighbor) {
			score += rating * coefficients[neighbor]
			balance += float64(m.membership.Get(int(neighbor))) * coefficients[neighbor]
		}
	})
	return
}

func (m *SLIM) ensureNeighbors() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.neighbors != nil {
		return nil
	}
	neighbors, err := BuildNeighborhoods(m.similarity, m.axis.NumEntities(), m.knn)
	if err != nil {
		return errors.Trace(err)
	}
	m.neighbors = neighbors
	return nil
}

func (m *SLIM) checkPredictable() error {
	if m.state < Training {
		return errors.NotValidf("predict in state %v", m.state)
	}
	if m.axis == nil {
		return errors.NotValidf("missing ratings")
	}
	return errors.Trace(m.ensureNeighbors())
}

// Predict returns the ranking score of an item for a user.
func (m *SLIM) Predict(userIndex, itemIndex int) (float64, error) {
	if err := m.checkPredictable(); err != nil {
		return 0, errors.Trace(err)
	}
	if userIndex < 0 || userIndex >= m.ratings.NumRows() {
		return 0, errors.NotFoundf("user %d", userIndex)
	}
	if itemIndex < 0 || itemIndex >= m.ratings.NumColumns() {
		return 0, errors.NotFoundf("item %d", itemIndex)
	}
	index, entity := m.axis.Locate(userIndex, itemIndex)
	return m.predict(index, entity, -1), nil
}

// Recommend returns the top n items with their scores for a user. Items rated by
// the user are left out if excludeRated is true.
func (m *SLIM) Recommend(userIndex, n int, excludeRated bool) ([]int32, []float64, error) {
	if err := m.checkPredictable(); err != nil {
		return nil, nil, errors.Trace(err)
	}
	if userIndex < 0 || userIndex >= m.ratings.NumRows() {
		return nil, nil, errors.NotFoundf("user %d", userIndex)
	}
	rated := mapset.NewThreadUnsafeSet(m.ratings.Row(userIndex).Indices()...)
	filter := heap.NewTopKFilter[int32, float64](n)
	for itemIndex := 0; itemIndex < m.ratings.NumColumns(); itemIndex++ {
		if excludeRated && rated.Contains(int32(itemIndex)) {
			continue
		}
		index, entity := m.axis.Locate(userIndex, itemIndex)
		filter.Push(int32(itemIndex), m.predict(index, entity, -1))
	}
	elems := filter.PopAll()
	items := make([]int32, len(elems))
	scores := make([]float64, len(elems))
	for i, elem := range elems {
		items[i], scores[i] = elem.Value, elem.Weight
	}
	return items, scores, nil
}
