// Copyright 2022 gorse Project Authors
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

package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"strconv"

	"github.com/gorse-io/bnslim/config"
	"github.com/gorse-io/bnslim/dataset"
	"github.com/gorse-io/bnslim/model/slim"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
)

func recommend(ctx context.Context, conf *config.Config, out io.Writer) error {
	file, err := os.Open(conf.Training.ModelPath)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	m := slim.NewSLIM(nil)
	if err = m.Unmarshal(bufio.NewReader(file)); err != nil {
		return errors.Trace(err)
	}
	ratings, err := dataset.LoadRatings(conf.Data.Ratings)
	if err != nil {
		return errors.Trace(err)
	}
	if err = attach(ctx, m, ratings, conf); err != nil {
		return errors.Trace(err)
	}

	users := conf.Recommend.Users
	if len(users) == 0 {
		users = ratings.UserDict.Strings()
	}
	table := tablewriter.NewWriter(out)
	table.Header("User", "Rank", "Item", "Score")
	for _, user := range users {
		userIndex, ok := ratings.UserDict.Get(user)
		if !ok {
			return errors.NotFoundf("user %s", user)
		}
		items, scores, err := m.Recommend(userIndex, conf.Recommend.N, conf.Recommend.ExcludeRated)
		if err != nil {
			return errors.Trace(err)
		}
		for i, item := range items {
			itemId, _ := ratings.ItemDict.String(int(item))
			if err = table.Append([]string{user, strconv.Itoa(i + 1), itemId, strconv.FormatFloat(scores[i], 'f', 6, 64)}); err != nil {
				return errors.Trace(err)
			}
		}
	}
	return errors.Trace(table.Render())
}
