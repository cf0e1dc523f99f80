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
	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/bnslim/dataset"
	"github.com/juju/errors"
)

const (
	// MembershipLast labels an entity by the last set feature column in ascending
	// order: +1 if it is the protected feature, otherwise -1.
	MembershipLast = "last"
	// MembershipAny labels an entity +1 if the protected feature is set.
	MembershipAny = "any"
)

const (
	Protected   int8 = 1
	Unprotected int8 = -1
)

// GroupMembership labels every entity as protected (+1) or unprotected (-1).
type GroupMembership struct {
	labels    []int8
	protected *bitset.BitSet
}

// NewGroupMembership creates a membership of n unprotected entities.
func NewGroupMembership(n int) *GroupMembership {
	labels := make([]int8, n)
	for i := range labels {
		labels[i] = Unprotected
	}
	return &GroupMembership{
		labels:    labels,
		protected: bitset.New(uint(n)),
	}
}

// BuildGroupMembership derives the membership of entities from a feature matrix. Raw
// entity ids of feature rows are mapped to inner ids through entities.
func BuildGroupMembership(features *dataset.Features, protectedFeature string, entities *dataset.FreqDict, rule string) (*GroupMembership, error) {
	if rule != MembershipLast && rule != MembershipAny {
		return nil, errors.NotValidf("membership rule %q", rule)
	}
	column, ok := features.FeatureDict.Get(protectedFeature)
	if !ok {
		return nil, errors.NotValidf("protected feature %q", protectedFeature)
	}
	membership := NewGroupMembership(entities.Count())
	for row := 0; row < features.NumRows(); row++ {
		rawId, _ := features.EntityDict.String(row)
		entity, ok := entities.Get(rawId)
		if !ok {
			return nil, errors.NotFoundf("inner id of entity %q", rawId)
		}
		label := Unprotected
		for _, c := range features.Row(row) {
			if int(c) == column {
				label = Protected
			} else if rule == MembershipLast {
				label = Unprotected
			}
		}
		membership.set(entity, label)
	}
	return membership, nil
}

func (g *GroupMembership) set(entity int, label int8) {
	g.labels[entity] = label
	if label == Protected {
		g.protected.Set(uint(entity))
	} else {
		g.protected.Clear(uint(entity))
	}
}

// Get returns the label of an entity.
func (g *GroupMembership) Get(entity int) int8 {
	return g.labels[entity]
}

func (g *GroupMembership) IsProtected(entity int) bool {
	return g.protected.Test(uint(entity))
}

func (g *GroupMembership) Len() int {
	return len(g.labels)
}

// CountProtected returns the number of protected entities.
func (g *GroupMembership) CountProtected() int {
	return int(g.protected.Count())
}

func (g *GroupMembership) Labels() []int8 {
	return g.labels
}

// NewGroupMembershipFromLabels restores a membership from ±1 labels.
func NewGroupMembershipFromLabels(labels []int8) (*GroupMembership, error) {
	membership := NewGroupMembership(len(labels))
	for i, label := range labels {
		if label != Protected && label != Unprotected {
			return nil, errors.NotValidf("membership label %d of entity %d", label, i)
		}
		membership.set(i, label)
	}
	return membership, nil
}
