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
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorse-io/bnslim/base/log"
	"github.com/gorse-io/bnslim/base/progress"
	"github.com/gorse-io/bnslim/config"
	"github.com/gorse-io/bnslim/model/slim"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ratingsText = `u0 i0 5
u0 i1 3
u1 i1 4
u1 i2 2
u2 i0 1
u2 i3 5
`

const featuresText = `# item feature
i0 female
i2 female
i3 male
`

func newTestConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	conf := config.GetDefaultConfig()
	conf.Data.Ratings = filepath.Join(dir, "ratings.txt")
	conf.Data.Features = filepath.Join(dir, "features.txt")
	conf.Data.ProtectedFeature = "female"
	conf.Model.KNN = 0
	conf.Model.MaxIterations = 5
	conf.Training.ModelPath = filepath.Join(dir, "model.bin")
	conf.Training.Jobs = 2
	require.NoError(t, os.WriteFile(conf.Data.Ratings, []byte(ratingsText), 0644))
	require.NoError(t, os.WriteFile(conf.Data.Features, []byte(featuresText), 0644))
	require.NoError(t, conf.Validate())
	return conf
}

func TestTrainAndRecommend(t *testing.T) {
	log.CloseLogger()
	conf := newTestConfig(t)
	require.NoError(t, train(context.Background(), conf, io.Discard))
	assert.FileExists(t, conf.Training.ModelPath)

	var out bytes.Buffer
	conf.Recommend.N = 2
	require.NoError(t, recommend(context.Background(), conf, &out))
	text := out.String()
	assert.Contains(t, text, "u0")
	assert.Contains(t, text, "u1")
	assert.Contains(t, text, "u2")

	out.Reset()
	conf.Recommend.Users = []string{"u1"}
	require.NoError(t, recommend(context.Background(), conf, &out))
	text = out.String()
	assert.Contains(t, text, "u1")
	assert.NotContains(t, text, "u0")
	assert.NotContains(t, text, "u2")
}

func TestTrainUserAxis(t *testing.T) {
	log.CloseLogger()
	conf := newTestConfig(t)
	conf.Model.Axis = "user"
	conf.Data.Features = ""
	conf.Data.ProtectedFeature = ""
	require.NoError(t, train(context.Background(), conf, io.Discard))

	var out bytes.Buffer
	conf.Recommend.Users = []string{"u2"}
	require.NoError(t, recommend(context.Background(), conf, &out))
	assert.Contains(t, out.String(), "u2")
}

func TestRecommendUnknownUser(t *testing.T) {
	log.CloseLogger()
	conf := newTestConfig(t)
	require.NoError(t, train(context.Background(), conf, io.Discard))
	conf.Recommend.Users = []string{"u9"}
	err := recommend(context.Background(), conf, io.Discard)
	assert.True(t, errors.IsNotFound(err))
}

func TestRecommendWithoutModel(t *testing.T) {
	log.CloseLogger()
	conf := newTestConfig(t)
	assert.Error(t, recommend(context.Background(), conf, io.Discard))
}

func TestTrainMissingRatings(t *testing.T) {
	log.CloseLogger()
	conf := newTestConfig(t)
	conf.Data.Ratings = filepath.Join(t.TempDir(), "missing.txt")
	assert.Error(t, train(context.Background(), conf, io.Discard))
	assert.NoFileExists(t, conf.Training.ModelPath)
}

func findProgress(list []progress.Progress, name string) (progress.Progress, bool) {
	for _, p := range list {
		if p.Name == name {
			return p, true
		}
	}
	return progress.Progress{}, false
}

func TestTrainProgress(t *testing.T) {
	log.CloseLogger()
	conf := newTestConfig(t)
	require.NoError(t, train(context.Background(), conf, io.Discard))
	p, ok := findProgress(tracer.List(), "train")
	require.True(t, ok)
	assert.Equal(t, progress.StatusComplete, p.Status)
	assert.Equal(t, trainStages, p.Count)

	conf.Data.Ratings = filepath.Join(t.TempDir(), "missing.txt")
	require.Error(t, train(context.Background(), conf, io.Discard))
	p, ok = findProgress(tracer.List(), "train")
	require.True(t, ok)
	assert.Equal(t, progress.StatusFailed, p.Status)
	assert.NotEmpty(t, p.Error)
	assert.Zero(t, p.Count)
}

func TestFitProgress(t *testing.T) {
	ctx, root := progress.NewTracer("test").Start(context.Background(), "train", trainStages)
	assert.Equal(t, progress.StatusPending, fitProgress(root).Status)
	_, span := progress.Start(ctx, slim.FitSpan, 5)
	span.Add(2)
	p := fitProgress(root)
	assert.Equal(t, progress.StatusRunning, p.Status)
	assert.Equal(t, 2, p.Count)
	assert.Equal(t, 5, p.Total)
}

func TestSaveModelFailure(t *testing.T) {
	log.CloseLogger()
	conf := newTestConfig(t)
	require.NoError(t, train(context.Background(), conf, io.Discard))
	m := slim.NewSLIM(nil)
	file, err := os.Open(conf.Training.ModelPath)
	require.NoError(t, err)
	require.NoError(t, m.Unmarshal(file))
	require.NoError(t, file.Close())

	// missing directory
	assert.Error(t, saveModel(m, filepath.Join(t.TempDir(), "missing", "model.bin")))
	// write-back failure
	if _, err := os.Stat("/dev/full"); err == nil {
		assert.Error(t, saveModel(m, "/dev/full"))
	}
	// untrained model
	path := filepath.Join(t.TempDir(), "model.bin")
	assert.True(t, errors.IsNotValid(saveModel(slim.NewSLIM(nil), path)))
}
