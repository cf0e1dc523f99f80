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
	"bufio"
	"io"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/bnslim/base/log"
	"github.com/gorse-io/bnslim/common/sparse"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

var separator = regexp.MustCompile(`[ \t,]+`)

// Ratings is a user-item rating matrix with raw id dictionaries.
type Ratings struct {
	UserDict *FreqDict
	ItemDict *FreqDict
	Matrix   *sparse.Matrix
}

func (r *Ratings) CountUsers() int {
	return r.UserDict.Count()
}

func (r *Ratings) CountItems() int {
	return r.ItemDict.Count()
}

// LoadRatings reads a rating file. Every line is "user item [rating]" separated by
// spaces, tabs or commas. A missing rating is 1.
func LoadRatings(path string) (*Ratings, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	return ReadRatings(file)
}

func ReadRatings(r io.Reader) (*Ratings, error) {
	ratings := &Ratings{
		UserDict: NewFreqDict(),
		ItemDict: NewFreqDict(),
	}
	builder := sparse.NewMatrixBuilder()
	err := readLines(r, func(lineNumber int, fields []string) error {
		value := 1.0
		if len(fields) >= 3 {
			var err error
			if value, err = strconv.ParseFloat(fields[2], 64); err != nil {
				return errors.NotValidf("rating %q at line %d", fields[2], lineNumber)
			}
		}
		builder.Add(ratings.UserDict.Id(fields[0]), ratings.ItemDict.Id(fields[1]), value)
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	ratings.Matrix, err = builder.Build(ratings.UserDict.Count(), ratings.ItemDict.Count())
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("load ratings",
		zap.Int("n_users", ratings.CountUsers()),
		zap.Int("n_items", ratings.CountItems()),
		zap.Int("n_ratings", ratings.Matrix.Count()))
	return ratings, nil
}

// Features is a binary entity-feature matrix keyed by raw entity ids.
type Features struct {
	EntityDict  *FreqDict
	FeatureDict *FreqDict
	rows        [][]int32
}

// NumRows returns the number of entities found in the feature file.
func (f *Features) NumRows() int {
	return len(f.rows)
}

// Row returns set feature columns of a row in ascending order.
func (f *Features) Row(i int) []int32 {
	return f.rows[i]
}

// LoadFeatures reads a feature file. Every line is "entity feature [value]" separated
// by spaces, tabs or commas. A missing value is 1 and a zero value leaves the feature unset.
func LoadFeatures(path string) (*Features, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	return ReadFeatures(file)
}

func ReadFeatures(r io.Reader) (*Features, error) {
	features := &Features{
		EntityDict:  NewFreqDict(),
		FeatureDict: NewFreqDict(),
	}
	var sets []mapset.Set[int32]
	err := readLines(r, func(lineNumber int, fields []string) error {
		value := 1.0
		if len(fields) >= 3 {
			var err error
			if value, err = strconv.ParseFloat(fields[2], 64); err != nil {
				return errors.NotValidf("feature value %q at line %d", fields[2], lineNumber)
			}
		}
		row := features.EntityDict.Id(fields[0])
		column := features.FeatureDict.Id(fields[1])
		for len(sets) <= row {
			sets = append(sets, mapset.NewThreadUnsafeSet[int32]())
		}
		if value != 0 {
			sets[row].Add(int32(column))
		} else {
			sets[row].Remove(int32(column))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	features.rows = make([][]int32, len(sets))
	for i, set := range sets {
		features.rows[i] = set.ToSlice()
		slices.Sort(features.rows[i])
	}
	log.Logger().Info("load features",
		zap.Int("n_entities", features.NumRows()),
		zap.Int("n_features", features.FeatureDict.Count()))
	return features, nil
}

func readLines(r io.Reader, handle func(lineNumber int, fields []string) error) error {
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := separator.Split(line, -1)
		if len(fields) < 2 {
			return errors.NotValidf("line %d %q", lineNumber, line)
		}
		if err := handle(lineNumber, fields); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(scanner.Err())
}
