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
	"fmt"
	"io"
	"os"

	"github.com/gorse-io/bnslim/base/log"
	"github.com/gorse-io/bnslim/base/progress"
	"github.com/gorse-io/bnslim/common/sparse"
	"github.com/gorse-io/bnslim/config"
	"github.com/gorse-io/bnslim/dataset"
	"github.com/gorse-io/bnslim/model/slim"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// attach binds ratings and entity similarities to a model.
func attach(ctx context.Context, m *slim.SLIM, ratings *dataset.Ratings, conf *config.Config) error {
	if err := m.SetRatings(ratings.Matrix); err != nil {
		return errors.Trace(err)
	}
	similarity, err := sparse.Similarity(ctx, conf.Model.Similarity, m.GetAxis().EntityVectors(), conf.Training.Jobs)
	if err != nil {
		return errors.Trace(err)
	}
	m.SetSimilarity(similarity)
	return nil
}

var tracer = progress.NewTracer("bnslim")

// trainStages are loading data, building neighbors and membership, fitting and saving.
const trainStages = 4

func train(ctx context.Context, conf *config.Config, progressWriter io.Writer) (err error) {
	if conf.Training.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, conf.Training.Timeout)
		defer cancel()
	}
	ctx, span := tracer.Start(ctx, "train", trainStages)
	defer func() {
		if err != nil {
			span.Fail(err)
		} else {
			span.End()
		}
		logProgress(span)
	}()

	ratings, err := dataset.LoadRatings(conf.Data.Ratings)
	if err != nil {
		return errors.Trace(err)
	}
	m := slim.NewSLIM(conf.GetParams())
	if err = attach(ctx, m, ratings, conf); err != nil {
		return errors.Trace(err)
	}
	span.Add(1)
	if err = m.BuildNeighbors(); err != nil {
		return errors.Trace(err)
	}
	if conf.Data.Features != "" {
		features, err := dataset.LoadFeatures(conf.Data.Features)
		if err != nil {
			return errors.Trace(err)
		}
		entities := lo.Ternary(m.GetAxis().Name() == slim.AxisUser, ratings.UserDict, ratings.ItemDict)
		if err = m.BuildMembership(features, entities); err != nil {
			return errors.Trace(err)
		}
	} else {
		log.Logger().Warn("no feature file, every entity is unprotected")
		if err = m.SetMembership(slim.NewGroupMembership(m.GetAxis().NumEntities())); err != nil {
			return errors.Trace(err)
		}
	}
	span.Add(1)

	bar := progressbar.NewOptions(conf.Model.MaxIterations,
		progressbar.OptionSetWriter(progressWriter),
		progressbar.OptionSetDescription("Training"),
		progressbar.OptionShowCount())
	result, err := m.Fit(ctx, conf.GetFitConfig().SetOnIteration(func(d slim.Diagnostics) {
		bar.Describe(fmt.Sprintf("Training (loss = %.6f)", d.Loss))
		_ = bar.Set(fitProgress(span).Count)
	}))
	_ = bar.Finish()
	if err != nil {
		return errors.Trace(err)
	}
	span.Add(1)
	log.Logger().Info("complete training",
		zap.String("state", result.State.String()),
		zap.Int("iterations", result.Iterations),
		zap.Float64("loss", result.Loss),
		zap.Float64("balance_weight", result.Weight))

	if err = saveModel(m, conf.Training.ModelPath); err != nil {
		return errors.Trace(err)
	}
	span.Add(1)
	return nil
}

// fitProgress returns the progress of the fit span under span.
func fitProgress(span *progress.Span) progress.Progress {
	for _, p := range span.Children() {
		if p.Name == slim.FitSpan {
			return p
		}
	}
	return progress.Progress{Name: slim.FitSpan, Status: progress.StatusPending}
}

func logProgress(span *progress.Span) {
	for _, p := range append([]progress.Progress{span.Progress()}, span.Children()...) {
		log.Logger().Info("progress",
			zap.String("name", p.Name),
			zap.String("status", string(p.Status)),
			zap.Int("count", p.Count),
			zap.Int("total", p.Total),
			zap.String("error", p.Error),
			zap.Duration("duration", p.FinishTime.Sub(p.StartTime)))
	}
}

func saveModel(m *slim.SLIM, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	w := bufio.NewWriter(file)
	if err = m.Marshal(w); err != nil {
		_ = file.Close()
		return errors.Trace(err)
	}
	if err = w.Flush(); err != nil {
		_ = file.Close()
		return errors.Trace(err)
	}
	if err = file.Close(); err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("save model", zap.String("path", path))
	return nil
}
