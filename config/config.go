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
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/bnslim/model"
	"github.com/gorse-io/bnslim/model/slim"
	jujuerrors "github.com/juju/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "BNSLIM"

// Config is the configuration for training and serving a balanced SLIM model.
type Config struct {
	Data      DataConfig      `mapstructure:"data"`
	Model     ModelConfig     `mapstructure:"model"`
	Training  TrainingConfig  `mapstructure:"training"`
	Recommend RecommendConfig `mapstructure:"recommend"`
}

// DataConfig locates input files.
type DataConfig struct {
	Ratings          string `mapstructure:"ratings" validate:"required"`
	Features         string `mapstructure:"features"`
	ProtectedFeature string `mapstructure:"protected_feature" validate:"required_with=Features"`
}

// ModelConfig holds hyper-parameters of the model.
type ModelConfig struct {
	Axis           string  `mapstructure:"axis" validate:"oneof=item user"`
	KNN            int     `mapstructure:"knn"`
	MaxIterations  int     `mapstructure:"max_iterations" validate:"required,gt=0"`
	RegL1          float64 `mapstructure:"reg_l1" validate:"gte=0"`
	RegL2          float64 `mapstructure:"reg_l2" validate:"gte=0"`
	Lambda3        float64 `mapstructure:"lambda3" validate:"gte=0"`
	MinSimilarity  float64 `mapstructure:"min_similarity"`
	EarlyStop      bool    `mapstructure:"early_stop"`
	MembershipRule string  `mapstructure:"membership_rule" validate:"oneof=last any"`
	Similarity     string  `mapstructure:"similarity" validate:"oneof=cosine dot"`
}

// TrainingConfig controls a training run.
type TrainingConfig struct {
	Jobs      int           `mapstructure:"jobs" validate:"gt=0"`
	Verbose   int           `mapstructure:"verbose" validate:"gte=0"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gte=0"`
	ModelPath string        `mapstructure:"model_path" validate:"required"`
}

// RecommendConfig controls recommendation output.
type RecommendConfig struct {
	N            int      `mapstructure:"n" validate:"gt=0"`
	ExcludeRated bool     `mapstructure:"exclude_rated"`
	Users        []string `mapstructure:"users"`
}

// GetDefaultConfig returns defaults of every optional key. Model.MaxIterations has
// no default and must be configured.
func GetDefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Ratings: "ratings.txt",
		},
		Model: ModelConfig{
			Axis:           slim.AxisItem,
			KNN:            50,
			RegL1:          1,
			RegL2:          1,
			Lambda3:        1,
			MinSimilarity:  -1,
			MembershipRule: slim.MembershipLast,
			Similarity:     "cosine",
		},
		Training: TrainingConfig{
			Jobs:      1,
			Verbose:   1,
			ModelPath: "model.bin",
		},
		Recommend: RecommendConfig{
			N:            10,
			ExcludeRated: true,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [data]
	v.SetDefault("data.ratings", defaultConfig.Data.Ratings)
	v.SetDefault("data.features", defaultConfig.Data.Features)
	v.SetDefault("data.protected_feature", defaultConfig.Data.ProtectedFeature)
	// [model]
	v.SetDefault("model.axis", defaultConfig.Model.Axis)
	v.SetDefault("model.knn", defaultConfig.Model.KNN)
	v.SetDefault("model.reg_l1", defaultConfig.Model.RegL1)
	v.SetDefault("model.reg_l2", defaultConfig.Model.RegL2)
	v.SetDefault("model.lambda3", defaultConfig.Model.Lambda3)
	v.SetDefault("model.min_similarity", defaultConfig.Model.MinSimilarity)
	v.SetDefault("model.early_stop", defaultConfig.Model.EarlyStop)
	v.SetDefault("model.membership_rule", defaultConfig.Model.MembershipRule)
	v.SetDefault("model.similarity", defaultConfig.Model.Similarity)
	// [training]
	v.SetDefault("training.jobs", defaultConfig.Training.Jobs)
	v.SetDefault("training.verbose", defaultConfig.Training.Verbose)
	v.SetDefault("training.timeout", defaultConfig.Training.Timeout)
	v.SetDefault("training.model_path", defaultConfig.Training.ModelPath)
	// [recommend]
	v.SetDefault("recommend.n", defaultConfig.Recommend.N)
	v.SetDefault("recommend.exclude_rated", defaultConfig.Recommend.ExcludeRated)
	v.SetDefault("recommend.users", defaultConfig.Recommend.Users)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// keys without defaults are unknown to AutomaticEnv
	_ = v.BindEnv("model.max_iterations")
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, jujuerrors.Trace(err)
	}
	return &config, nil
}

// LoadConfig reads a TOML or YAML file and overrides it with BNSLIM_* environment
// variables. An empty path loads defaults and environment variables only.
func LoadConfig(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, jujuerrors.Trace(err)
		}
	}
	config, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	if err = config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

var (
	validate   *validator.Validate
	translator ut.Translator
	once       sync.Once
)

func getValidator() (*validator.Validate, ut.Translator) {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		english := en.New()
		translator, _ = ut.New(english, english).GetTranslator("en")
		if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
			panic(err)
		}
	})
	return validate, translator
}

// Validate checks field constraints and reports the first violation in English.
func (config *Config) Validate() error {
	v, trans := getValidator()
	if err := v.Struct(config); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) && len(errs) > 0 {
			return jujuerrors.NewNotValid(nil, errs[0].Translate(trans))
		}
		return jujuerrors.Trace(err)
	}
	return nil
}

// GetParams converts the model section into hyper-parameters.
func (config *Config) GetParams() model.Params {
	return model.Params{
		model.Axis:             config.Model.Axis,
		model.KNN:              config.Model.KNN,
		model.MaxIterations:    config.Model.MaxIterations,
		model.RegL1:            config.Model.RegL1,
		model.RegL2:            config.Model.RegL2,
		model.Lambda3:          config.Model.Lambda3,
		model.ProtectedFeature: config.Data.ProtectedFeature,
		model.MinSimilarity:    config.Model.MinSimilarity,
		model.EarlyStop:        config.Model.EarlyStop,
		model.MembershipRule:   config.Model.MembershipRule,
	}
}

func (config *Config) GetFitConfig() *slim.FitConfig {
	return slim.NewFitConfig().
		SetJobs(config.Training.Jobs).
		SetVerbose(config.Training.Verbose)
}
