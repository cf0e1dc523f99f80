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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TrainingIteration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bnslim",
		Subsystem: "slim",
		Name:      "training_iteration",
	}, []string{"axis"})
	TrainingLoss = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bnslim",
		Subsystem: "slim",
		Name:      "training_loss",
	}, []string{"axis"})
	TrainingDeltaLoss = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bnslim",
		Subsystem: "slim",
		Name:      "training_delta_loss",
	}, []string{"axis"})
	TrainingBalanceWeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bnslim",
		Subsystem: "slim",
		Name:      "training_balance_weight",
	}, []string{"axis"})
	SkippedNeighbors = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bnslim",
		Subsystem: "slim",
		Name:      "skipped_neighbors",
	}, []string{"axis"})
	SweepSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bnslim",
		Subsystem: "slim",
		Name:      "sweep_seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"axis"})
)
