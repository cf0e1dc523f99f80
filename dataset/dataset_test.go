// Copyright 2025 gorse Project Authors
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

package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRatings(t *testing.T) {
	ratings, err := ReadRatings(strings.NewReader(`# user item rating
u1 i1 5
u1,i2,3

u2	i2
u3 i1 0
`))
	require.NoError(t, err)
	assert.Equal(t, 3, ratings.CountUsers())
	assert.Equal(t, 2, ratings.CountItems())
	assert.Equal(t, 3, ratings.Matrix.Count())
	assert.Equal(t, []float64{5, 3}, ratings.Matrix.Row(0).Values())
	assert.Equal(t, []float64{1}, ratings.Matrix.Row(1).Values())
	assert.Zero(t, ratings.Matrix.Row(2).Len())
	assert.Equal(t, []int32{0, 1}, ratings.Matrix.Column(1).Indices())

	_, err = ReadRatings(strings.NewReader("u1 i1 x\n"))
	assert.True(t, errors.IsNotValid(err))
	_, err = ReadRatings(strings.NewReader("u1\n"))
	assert.True(t, errors.IsNotValid(err))
}

func TestLoadRatings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratings.txt")
	require.NoError(t, os.WriteFile(path, []byte("1 10 4\n2 10 2\n"), 0644))
	ratings, err := LoadRatings(path)
	require.NoError(t, err)
	assert.Equal(t, 2, ratings.CountUsers())
	assert.Equal(t, 1, ratings.CountItems())

	_, err = LoadRatings(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestReadFeatures(t *testing.T) {
	features, err := ReadFeatures(strings.NewReader(`i1 female
i1 drama
i2 drama 1
i3 female 0
i1 drama
`))
	require.NoError(t, err)
	assert.Equal(t, 3, features.NumRows())
	assert.Equal(t, 2, features.FeatureDict.Count())
	female, ok := features.FeatureDict.Get("female")
	assert.True(t, ok)
	assert.Equal(t, 0, female)
	assert.Equal(t, []int32{0, 1}, features.Row(0))
	assert.Equal(t, []int32{1}, features.Row(1))
	assert.Empty(t, features.Row(2))

	_, err = ReadFeatures(strings.NewReader("i1 female yes\n"))
	assert.True(t, errors.IsNotValid(err))
}
