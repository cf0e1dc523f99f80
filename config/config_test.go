// Copyright 2020 gorse Project Authors
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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorse-io/bnslim/model"
	"github.com/juju/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal(t *testing.T) {
	config, err := LoadConfig("config.toml.template")
	require.NoError(t, err)

	// [data]
	assert.Equal(t, "ratings.txt", config.Data.Ratings)
	assert.Equal(t, "features.txt", config.Data.Features)
	assert.Equal(t, "female", config.Data.ProtectedFeature)
	// [model]
	assert.Equal(t, "item", config.Model.Axis)
	assert.Equal(t, 50, config.Model.KNN)
	assert.Equal(t, 20, config.Model.MaxIterations)
	assert.Equal(t, 0.5, config.Model.RegL1)
	assert.Equal(t, 1.0, config.Model.RegL2)
	assert.Equal(t, 2.0, config.Model.Lambda3)
	assert.Equal(t, 0.1, config.Model.MinSimilarity)
	assert.True(t, config.Model.EarlyStop)
	assert.Equal(t, "any", config.Model.MembershipRule)
	assert.Equal(t, "dot", config.Model.Similarity)
	// [training]
	assert.Equal(t, 4, config.Training.Jobs)
	assert.Equal(t, 2, config.Training.Verbose)
	assert.Equal(t, 30*time.Minute, config.Training.Timeout)
	assert.Equal(t, "slim.bin", config.Training.ModelPath)
	// [recommend]
	assert.Equal(t, 5, config.Recommend.N)
	assert.False(t, config.Recommend.ExcludeRated)
	assert.Equal(t, []string{"u1", "u2"}, config.Recommend.Users)
}

func TestSetDefault(t *testing.T) {
	v := viper.New()
	setDefault(v)
	config, err := unmarshal(v)
	require.NoError(t, err)
	assert.Empty(t, config.Recommend.Users)
	config.Recommend.Users = nil
	assert.Equal(t, GetDefaultConfig(), config)
	// max_iterations has no default
	assert.Zero(t, config.Model.MaxIterations)
	assert.True(t, errors.IsNotValid(config.Validate()))
}

func TestMissingMaxIterations(t *testing.T) {
	_, err := LoadConfig("")
	assert.True(t, errors.IsNotValid(err))
	assert.Contains(t, err.Error(), "MaxIterations is a required field")

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[model]\nknn = 10\n"), 0644))
	_, err = LoadConfig(path)
	assert.True(t, errors.IsNotValid(err))

	t.Setenv("BNSLIM_MODEL_MAX_ITERATIONS", "8")
	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, config.Model.MaxIterations)
	assert.Equal(t, 10, config.Model.KNN)
}

func TestBindEnv(t *testing.T) {
	t.Setenv("BNSLIM_DATA_RATINGS", "env_ratings.txt")
	t.Setenv("BNSLIM_MODEL_AXIS", "user")
	t.Setenv("BNSLIM_MODEL_KNN", "7")
	t.Setenv("BNSLIM_MODEL_LAMBDA3", "0.25")
	t.Setenv("BNSLIM_MODEL_EARLY_STOP", "false")
	t.Setenv("BNSLIM_TRAINING_JOBS", "3")
	t.Setenv("BNSLIM_TRAINING_TIMEOUT", "90s")
	t.Setenv("BNSLIM_RECOMMEND_USERS", "a,b,c")

	config, err := LoadConfig("config.toml.template")
	require.NoError(t, err)
	assert.Equal(t, "env_ratings.txt", config.Data.Ratings)
	assert.Equal(t, "user", config.Model.Axis)
	assert.Equal(t, 7, config.Model.KNN)
	assert.Equal(t, 0.25, config.Model.Lambda3)
	assert.False(t, config.Model.EarlyStop)
	assert.Equal(t, 3, config.Training.Jobs)
	assert.Equal(t, 90*time.Second, config.Training.Timeout)
	assert.Equal(t, []string{"a", "b", "c"}, config.Recommend.Users)
	// untouched keys come from the file
	assert.Equal(t, 20, config.Model.MaxIterations)
}

func TestLoadDefault(t *testing.T) {
	t.Setenv("BNSLIM_MODEL_MAX_ITERATIONS", "10")
	config, err := LoadConfig("")
	require.NoError(t, err)
	expected := GetDefaultConfig().Model
	expected.MaxIterations = 10
	assert.Equal(t, expected, config.Model)
	assert.Equal(t, GetDefaultConfig().Training, config.Training)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  ratings: train.csv
model:
  axis: user
  max_iterations: 3
training:
  timeout: 1m30s
`), 0644))
	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "train.csv", config.Data.Ratings)
	assert.Equal(t, "user", config.Model.Axis)
	assert.Equal(t, 3, config.Model.MaxIterations)
	assert.Equal(t, 90*time.Second, config.Training.Timeout)
	assert.Equal(t, 50, config.Model.KNN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func validConfig() *Config {
	config := GetDefaultConfig()
	config.Model.MaxIterations = 10
	return config
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	config := validConfig()
	config.Model.MaxIterations = -1
	err := config.Validate()
	assert.True(t, errors.IsNotValid(err))
	assert.Contains(t, err.Error(), "MaxIterations must be greater than 0")

	config = validConfig()
	config.Model.Axis = "session"
	err = config.Validate()
	assert.True(t, errors.IsNotValid(err))
	assert.Contains(t, err.Error(), "Axis must be one of [item user]")

	config = validConfig()
	config.Model.MembershipRule = "first"
	assert.True(t, errors.IsNotValid(config.Validate()))

	config = validConfig()
	config.Model.Similarity = "jaccard"
	assert.True(t, errors.IsNotValid(config.Validate()))

	config = validConfig()
	config.Training.Jobs = 0
	assert.True(t, errors.IsNotValid(config.Validate()))

	config = validConfig()
	config.Data.Features = "features.txt"
	assert.True(t, errors.IsNotValid(config.Validate()))
	config.Data.ProtectedFeature = "female"
	assert.NoError(t, config.Validate())
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("BNSLIM_MODEL_MAX_ITERATIONS", "-1")
	_, err := LoadConfig("")
	assert.True(t, errors.IsNotValid(err))
}

func TestGetParams(t *testing.T) {
	config, err := LoadConfig("config.toml.template")
	require.NoError(t, err)
	params := config.GetParams()
	assert.Equal(t, "item", params.GetString(model.Axis, ""))
	assert.Equal(t, 50, params.GetInt(model.KNN, 0))
	assert.Equal(t, 20, params.GetInt(model.MaxIterations, 0))
	assert.Equal(t, 0.5, params.GetFloat64(model.RegL1, 0))
	assert.Equal(t, 1.0, params.GetFloat64(model.RegL2, 0))
	assert.Equal(t, 2.0, params.GetFloat64(model.Lambda3, 0))
	assert.Equal(t, "female", params.GetString(model.ProtectedFeature, ""))
	assert.Equal(t, 0.1, params.GetFloat64(model.MinSimilarity, 0))
	assert.True(t, params.GetBool(model.EarlyStop, false))
	assert.Equal(t, "any", params.GetString(model.MembershipRule, ""))

	fitConfig := config.GetFitConfig()
	assert.Equal(t, 4, fitConfig.Jobs)
	assert.Equal(t, 2, fitConfig.Verbose)
}
