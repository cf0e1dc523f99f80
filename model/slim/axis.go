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
	"github.com/gorse-io/bnslim/common/sparse"
	"github.com/juju/errors"
)

const (
	AxisItem = "item"
	AxisUser = "user"
)

// Axis views the rating matrix from the side of the entities whose coefficients are
// learned. Entities are items for the item-based model and users for the user-based model.
type Axis interface {
	Name() string
	// NumEntities returns the number of entities.
	NumEntities() int
	// OtherAxisSize returns the number of indices on the other axis.
	OtherAxisSize() int
	// RatingsFor returns ratings of an entity indexed by the other axis.
	RatingsFor(entity int) *sparse.Vector
	// RatersAt returns ratings at an other-axis index indexed by entity.
	RatersAt(index int) *sparse.Vector
	// EntityVectors returns rating vectors of all entities.
	EntityVectors() []*sparse.Vector
	// Locate maps a (user, item) pair to (other-axis index, entity).
	Locate(userIndex, itemIndex int) (index, entity int)
}

// NewAxis creates an axis over a user-item rating matrix.
func NewAxis(name string, ratings *sparse.Matrix) (Axis, error) {
	switch name {
	case AxisItem:
		return &itemAxis{ratings: ratings}, nil
	case AxisUser:
		return &userAxis{ratings: ratings}, nil
	}
	return nil, errors.NotValidf("axis %q", name)
}

type itemAxis struct {
	ratings *sparse.Matrix
}

func (a *itemAxis) Name() string {
	return AxisItem
}

func (a *itemAxis) NumEntities() int {
	return a.ratings.NumColumns()
}

func (a *itemAxis) OtherAxisSize() int {
	return a.ratings.NumRows()
}

func (a *itemAxis) RatingsFor(entity int) *sparse.Vector {
	return a.ratings.Column(entity)
}

func (a *itemAxis) RatersAt(index int) *sparse.Vector {
	return a.ratings.Row(index)
}

func (a *itemAxis) EntityVectors() []*sparse.Vector {
	return a.ratings.Columns()
}

func (a *itemAxis) Locate(userIndex, itemIndex int) (int, int) {
	return userIndex, itemIndex
}

type userAxis struct {
	ratings *sparse.Matrix
}

func (a *userAxis) Name() string {
	return AxisUser
}

func (a *userAxis) NumEntities() int {
	return a.ratings.NumRows()
}

func (a *userAxis) OtherAxisSize() int {
	return a.ratings.NumColumns()
}

func (a *userAxis) RatingsFor(entity int) *sparse.Vector {
	return a.ratings.Row(entity)
}

func (a *userAxis) RatersAt(index int) *sparse.Vector {
	return a.ratings.Column(index)
}

func (a *userAxis) EntityVectors() []*sparse.Vector {
	return a.ratings.Rows()
}

func (a *userAxis) Locate(userIndex, itemIndex int) (int, int) {
	return itemIndex, userIndex
}
