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
	"fmt"
	"os"

	"github.com/gorse-io/bnslim/base/log"
	"github.com/gorse-io/bnslim/cmd/version"
	"github.com/gorse-io/bnslim/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "bnslim",
	Short: "Balanced neighborhood SLIM recommender.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		_ = cmd.Help()
	},
}

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Train a model from rating and feature files.",
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig(cmd)
		if err := train(cmd.Context(), conf, os.Stderr); err != nil {
			log.Logger().Fatal("failed to train model", zap.Error(err))
		}
	},
}

var recommendCommand = &cobra.Command{
	Use:   "recommend [user...]",
	Short: "Recommend items with a trained model.",
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig(cmd)
		if len(args) > 0 {
			conf.Recommend.Users = args
		}
		if n, _ := cmd.Flags().GetInt("number"); cmd.Flags().Changed("number") {
			conf.Recommend.N = n
		}
		if err := recommend(cmd.Context(), conf, os.Stdout); err != nil {
			log.Logger().Fatal("failed to recommend", zap.Error(err))
		}
	},
}

func init() {
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.Flags().BoolP("version", "v", false, "show version")
	recommendCommand.Flags().IntP("number", "n", 10, "number of recommended items")
	rootCommand.AddCommand(trainCommand, recommendCommand)
}

func loadConfig(cmd *cobra.Command) *config.Config {
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		log.Logger().Fatal("failed to load config", zap.Error(err))
	}
	return conf
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute command", zap.Error(err))
	}
}
