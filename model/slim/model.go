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
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/gorse-io/bnslim/base/encoding"
	"github.com/gorse-io/bnslim/base/log"
	"github.com/gorse-io/bnslim/base/progress"
	"github.com/gorse-io/bnslim/common/parallel"
	"github.com/gorse-io/bnslim/common/sparse"
	"github.com/gorse-io/bnslim/dataset"
	"github.com/gorse-io/bnslim/model"
	"github.com/juju/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// FitSpan is the name of the progress span of Fit. It counts finished sweeps and is
// attached to the span carried by the context of Fit.
const FitSpan = "SLIM.Fit"

// Tolerance is the minimum loss decrease between two sweeps to keep training when
// early stop is enabled.
const Tolerance = 1e-5

// State is the training state of a model.
type State int

const (
	Uninitialized State = iota
	NeighborsBuilt
	MembershipBuilt
	Training
	Converged
	MaxIterReached
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case NeighborsBuilt:
		return "NeighborsBuilt"
	case MembershipBuilt:
		return "MembershipBuilt"
	case Training:
		return "Training"
	case Converged:
		return "Converged"
	case MaxIterReached:
		return "MaxIterReached"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Diagnostics describes one sweep.
type Diagnostics struct {
	Iteration int
	Loss      float64
	DeltaLoss float64
	Weight    float64
	Skipped   int64
	Duration  time.Duration
}

type Result struct {
	Iterations int
	Loss       float64
	DeltaLoss  float64
	Weight     float64
	State      State
}

type FitConfig struct {
	Jobs        int
	Verbose     int
	OnIteration func(Diagnostics)
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 1,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

func (config *FitConfig) SetOnIteration(f func(Diagnostics)) *FitConfig {
	config.OnIteration = f
	return config
}

// SLIM is the balanced neighborhood sparse linear method. It learns a coefficient
// matrix W between entities (items or users) by coordinate descent on
//
//	½·E[(r − Σ w·r)²] + ½λ2·w² + λ1·|w| + ½λ3·(Σ p·w)²
//
// where p is the ±1 group membership of neighbors. The last term penalizes
// coefficients which favor one group over the other.
//
// Hyper-parameters:
//
//	KNN              - The number of neighbors. Non-positive means all entities. Default is 50.
//	MaxIterations    - The number of sweeps. Required.
//	RegL1            - The L1 regularization. Default is 1.0.
//	RegL2            - The L2 regularization. Default is 1.0.
//	Lambda3          - The weight of the balance regularizer. Default is 1.0.
//	ProtectedFeature - The feature marking protected entities.
//	MinSimilarity    - The minimum similarity of neighbors of the user-based model. Default is -1.0.
//	EarlyStop        - Stop once the loss decreases less than Tolerance. Default is false.
//	MembershipRule   - "last" or "any". Default is "last".
//	Axis             - "item" or "user". Default is "item".
type SLIM struct {
	model.BaseModel
	// Hyper parameters
	knn              int
	maxIterations    int
	regL1            float64
	regL2            float64
	lambda3          float64
	protectedFeature string
	minSimilarity    float64
	earlyStop        bool
	membershipRule   string
	axisName         string
	// Collaborators
	ratings    *sparse.Matrix
	axis       Axis
	similarity *sparse.SymmMatrix
	neighbors  NeighborhoodIndex
	membership *GroupMembership
	// Model parameters
	Coefficients [][]float64 // Coefficients[t][m] = W[m][t]
	state        State
	lastLoss     float64
	mu           sync.Mutex
}

// NewSLIM creates a SLIM model.
func NewSLIM(params model.Params) *SLIM {
	m := new(SLIM)
	m.SetParams(params)
	return m
}

// SetParams sets hyper-parameters of the SLIM model.
func (m *SLIM) SetParams(params model.Params) {
	m.BaseModel.SetParams(params)
	m.knn = m.Params.GetInt(model.KNN, 50)
	m.maxIterations = m.Params.GetInt(model.MaxIterations, 0)
	m.regL1 = m.Params.GetFloat64(model.RegL1, 1.0)
	m.regL2 = m.Params.GetFloat64(model.RegL2, 1.0)
	m.lambda3 = m.Params.GetFloat64(model.Lambda3, 1.0)
	m.protectedFeature = m.Params.GetString(model.ProtectedFeature, "")
	m.minSimilarity = m.Params.GetFloat64(model.MinSimilarity, -1.0)
	m.earlyStop = m.Params.GetBool(model.EarlyStop, false)
	m.membershipRule = m.Params.GetString(model.MembershipRule, MembershipLast)
	m.axisName = m.Params.GetString(model.Axis, AxisItem)
}

// Validate checks hyper-parameters.
func (m *SLIM) Validate() error {
	if !m.Params.Has(model.MaxIterations) {
		return errors.NotValidf("missing %s", model.MaxIterations)
	}
	if m.maxIterations <= 0 {
		return errors.NotValidf("%s %d", model.MaxIterations, m.maxIterations)
	}
	if m.axisName != AxisItem && m.axisName != AxisUser {
		return errors.NotValidf("axis %q", m.axisName)
	}
	if m.membershipRule != MembershipLast && m.membershipRule != MembershipAny {
		return errors.NotValidf("membership rule %q", m.membershipRule)
	}
	return nil
}

func (m *SLIM) GetState() State {
	return m.state
}

func (m *SLIM) GetAxis() Axis {
	return m.axis
}

func (m *SLIM) GetMembership() *GroupMembership {
	return m.membership
}

func (m *SLIM) GetNeighbors() NeighborhoodIndex {
	return m.neighbors
}

// SetRatings attaches a user-item rating matrix.
func (m *SLIM) SetRatings(ratings *sparse.Matrix) error {
	axis, err := NewAxis(m.axisName, ratings)
	if err != nil {
		return errors.Trace(err)
	}
	if m.Coefficients != nil && len(m.Coefficients) != axis.NumEntities() {
		return errors.NotFoundf("coefficients of %d entities for %d %ss",
			len(m.Coefficients), axis.NumEntities(), axis.Name())
	}
	m.ratings = ratings
	m.axis = axis
	m.neighbors = nil
	return nil
}

// SetSimilarity attaches the entity-entity similarity matrix.
func (m *SLIM) SetSimilarity(similarity *sparse.SymmMatrix) {
	m.similarity = similarity
	m.neighbors = nil
}

// BuildNeighbors builds the neighborhood index from the attached similarity.
func (m *SLIM) BuildNeighbors() error {
	if m.axis == nil {
		return errors.NotValidf("missing ratings")
	}
	neighbors, err := BuildNeighborhoods(m.similarity, m.axis.NumEntities(), m.knn)
	if err != nil {
		return errors.Trace(err)
	}
	m.neighbors = neighbors
	if m.state < NeighborsBuilt {
		m.state = NeighborsBuilt
	}
	return nil
}

// BuildMembership derives group membership from features. Raw ids of feature rows
// are resolved by entities, the dictionary of the entity axis.
func (m *SLIM) BuildMembership(features *dataset.Features, entities *dataset.FreqDict) error {
	if m.state < NeighborsBuilt || m.axis == nil {
		return errors.NotValidf("membership built in state %v", m.state)
	}
	if m.protectedFeature == "" {
		return errors.NotValidf("missing %s", model.ProtectedFeature)
	}
	if entities.Count() != m.axis.NumEntities() {
		return errors.NotFoundf("dictionary of %d entities for %d %ss",
			entities.Count(), m.axis.NumEntities(), m.axis.Name())
	}
	membership, err := BuildGroupMembership(features, m.protectedFeature, entities, m.membershipRule)
	if err != nil {
		return errors.Trace(err)
	}
	return m.SetMembership(membership)
}

// SetMembership attaches a precomputed group membership.
func (m *SLIM) SetMembership(membership *GroupMembership) error {
	if m.state < NeighborsBuilt || m.axis == nil {
		return errors.NotValidf("membership built in state %v", m.state)
	}
	if membership.Len() != m.axis.NumEntities() {
		return errors.NotFoundf("membership of %d entities for %d %ss",
			membership.Len(), m.axis.NumEntities(), m.axis.Name())
	}
	m.membership = membership
	log.Logger().Info("build group membership",
		zap.String("axis", m.axis.Name()),
		zap.Int("n_entities", membership.Len()),
		zap.Int("n_protected", membership.CountProtected()))
	if m.state < MembershipBuilt {
		m.state = MembershipBuilt
	}
	return nil
}

// Coefficient returns W[neighbor][target].
func (m *SLIM) Coefficient(neighbor, target int) float64 {
	return m.Coefficients[target][neighbor]
}

func (m *SLIM) init() {
	n := m.axis.NumEntities()
	m.Coefficients = make([][]float64, n)
	for i := range m.Coefficients {
		m.Coefficients[i] = make([]float64, n)
	}
	m.lastLoss = 0
}

// Fit trains coefficients by coordinate descent. Sweeps run until MaxIterations
// or, with early stop, until the loss decreases less than Tolerance.
func (m *SLIM) Fit(ctx context.Context, config *FitConfig) (Result, error) {
	if err := m.Validate(); err != nil {
		return Result{}, errors.Trace(err)
	}
	if m.axis == nil {
		return Result{}, errors.NotValidf("missing ratings")
	}
	if m.state < MembershipBuilt || m.membership == nil {
		return Result{}, errors.NotValidf("fit in state %v", m.state)
	}
	if m.membership.Len() != m.axis.NumEntities() {
		return Result{}, errors.NotFoundf("membership of %d entities for %d %ss",
			m.membership.Len(), m.axis.NumEntities(), m.axis.Name())
	}
	if err := m.ensureNeighbors(); err != nil {
		return Result{}, errors.Trace(err)
	}
	if config == nil {
		config = NewFitConfig()
	}
	jobs := max(config.Jobs, 1)
	log.Logger().Info("fit slim",
		zap.String("axis", m.axis.Name()),
		zap.Int("n_entities", m.axis.NumEntities()),
		zap.Int("n_other", m.axis.OtherAxisSize()),
		zap.Any("params", m.GetParams()),
		zap.Int("jobs", jobs))
	m.init()
	m.state = Training
	var result Result
	_, span := progress.Start(ctx, FitSpan, m.maxIterations)
	for iter := 1; iter <= m.maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			span.Fail(err)
			return result, errors.Trace(err)
		}
		start := time.Now()
		loss, weight, skipped, err := m.sweep(ctx, jobs)
		if err != nil {
			span.Fail(err)
			return result, errors.Trace(err)
		}
		delta := m.lastLoss - loss
		m.lastLoss = loss
		diagnostics := Diagnostics{
			Iteration: iter,
			Loss:      loss,
			DeltaLoss: delta,
			Weight:    weight,
			Skipped:   skipped,
			Duration:  time.Since(start),
		}
		span.Add(1)
		m.report(diagnostics, config)
		result = Result{
			Iterations: iter,
			Loss:       loss,
			DeltaLoss:  delta,
			Weight:     weight,
			State:      Training,
		}
		if iter > 1 && delta < Tolerance && m.earlyStop {
			m.state = Converged
			break
		}
	}
	if m.state == Training {
		m.state = MaxIterReached
	}
	result.State = m.state
	span.End()
	log.Logger().Info("fit slim complete",
		zap.String("axis", m.axis.Name()),
		zap.Int("iterations", result.Iterations),
		zap.Float64("loss", result.Loss),
		zap.Float64("delta_loss", result.DeltaLoss),
		zap.Stringer("state", m.state))
	return result, nil
}

func (m *SLIM) report(d Diagnostics, config *FitConfig) {
	axis := m.axis.Name()
	TrainingIteration.WithLabelValues(axis).Set(float64(d.Iteration))
	TrainingLoss.WithLabelValues(axis).Set(d.Loss)
	TrainingDeltaLoss.WithLabelValues(axis).Set(d.DeltaLoss)
	TrainingBalanceWeight.WithLabelValues(axis).Set(d.Weight)
	SkippedNeighbors.WithLabelValues(axis).Set(float64(d.Skipped))
	SweepSeconds.WithLabelValues(axis).Observe(d.Duration.Seconds())
	fields := []zap.Field{
		zap.Float64("loss", d.Loss),
		zap.Float64("delta_loss", d.DeltaLoss),
		zap.Float64("balance_weight", d.Weight),
		zap.Int64("skipped_neighbors", d.Skipped),
		zap.String("fit_time", d.Duration.String()),
	}
	if config.Verbose > 0 && (d.Iteration%config.Verbose == 0 || d.Iteration == m.maxIterations) {
		log.Logger().Info(fmt.Sprintf("fit slim %v/%v", d.Iteration, m.maxIterations), fields...)
	} else {
		log.Logger().Debug(fmt.Sprintf("fit slim %v/%v", d.Iteration, m.maxIterations), fields...)
	}
	if config.OnIteration != nil {
		config.OnIteration(d)
	}
}

// sweep updates every coefficient once. Updates for target t only read and write
// column t of W, so targets are distributed over workers. Per-target loss and weight
// are reduced in target order to keep results independent of the number of workers.
func (m *SLIM) sweep(ctx context.Context, jobs int) (float64, float64, int64, error) {
	n := m.axis.NumEntities()
	losses := make([]float64, n)
	weights := make([]float64, n)
	buffers := make([][]float64, jobs)
	for i := range buffers {
		buffers[i] = make([]float64, m.axis.OtherAxisSize())
	}
	skipped := atomic.NewInt64(0)
	err := parallel.Parallel(ctx, n, jobs, func(workerId, target int) error {
		var err error
		losses[target], weights[target], err = m.updateTarget(target, buffers[workerId], skipped)
		return err
	})
	if err != nil {
		return 0, 0, 0, errors.Trace(err)
	}
	var loss, weight float64
	for t := 0; t < n; t++ {
		loss += losses[t]
		weight += weights[t]
	}
	return loss, weight, skipped.Load(), nil
}

// updateTarget runs coordinate descent on W[·][target]. dense is a zeroed buffer
// over the other axis and is zeroed again before returning.
func (m *SLIM) updateTarget(target int, dense []float64, skipped *atomic.Int64) (loss, weight float64, err error) {
	ratings := m.axis.RatingsFor(target)
	ratings.ForEach(func(k int32, value float64) {
		dense[k] = value
	})
	defer ratings.ForEach(func(k int32, _ float64) {
		dense[k] = 0
	})
	membership := float64(m.membership.Get(target))
	fused := m.axis.Name() == AxisUser
	for neighbor := range m.neighbors.Neighbors(target) {
		if int(neighbor) == target {
			continue
		}
		if fused && m.similarity != nil && m.similarity.Get(int(neighbor), target) <= m.minSimilarity {
			continue
		}
		neighborRatings := m.axis.RatingsFor(int(neighbor))
		if neighborRatings.Len() == 0 {
			skipped.Inc()
			continue
		}
		var gradSum, rateSum, errorSumSq, balanceSumSq, balanceSum float64
		count := 0
		for i, k := range neighborRatings.Indices() {
			if int(k) >= len(dense) {
				return 0, 0, errors.NotFoundf("co-rated index %d of %s %d", k, m.axis.Name(), neighbor)
			}
			rating := neighborRatings.Values()[i]
			var prediction, balance float64
			if fused {
				prediction, balance = m.predictBoth(int(k), target, int(neighbor))
			} else {
				prediction = m.predict(int(k), target, int(neighbor))
				balance = m.predictBalance(int(k), target, int(neighbor))
			}
			e := dense[k] - prediction
			gradSum += rating * e
			rateSum += rating * rating
			errorSumSq += e * e
			balanceSumSq += balance * balance
			balanceSum += balance
			count++
		}
		c := float64(count)
		gradSum /= c
		rateSum /= c
		errorSumSq /= c
		balanceSumSq /= c
		balanceSum /= c
		beta := gradSum + m.lambda3*membership*balanceSum
		w := softThreshold(beta, m.regL1, m.regL2+rateSum+m.lambda3)
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return 0, 0, errors.Errorf("non-finite coefficient W[%d][%d] = %v (beta = %v)", neighbor, target, w, beta)
		}
		m.Coefficients[target][neighbor] = w
		loss += 0.5*errorSumSq + 0.5*m.regL2*w*w + m.regL1*math.Abs(w) + 0.5*m.lambda3*balanceSumSq
		weight += balanceSum
	}
	return loss, weight, nil
}

// softThreshold solves min_w ½·d·w² − β·w + λ·|w|.
func softThreshold(beta, lambda, denominator float64) float64 {
	if math.Abs(beta) <= lambda {
		return 0
	}
	if beta > 0 {
		return (beta - lambda) / denominator
	}
	return (beta + lambda) / denominator
}

func (m *SLIM) Clear() {
	m.Coefficients = nil
	m.neighbors = nil
	m.membership = nil
	m.state = Uninitialized
	m.lastLoss = 0
}

// Marshal model into byte stream.
func (m *SLIM) Marshal(w io.Writer) error {
	if m.state < Training || m.membership == nil {
		return errors.NotValidf("marshal model in state %v", m.state)
	}
	// write params
	if err := encoding.WriteGob(w, m.Params); err != nil {
		return errors.Trace(err)
	}
	// write axis and state
	if err := encoding.WriteString(w, m.axisName); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.LittleEndian, int64(m.state)); err != nil {
		return errors.Trace(err)
	}
	// write membership
	if err := encoding.WriteInt8s(w, m.membership.Labels()); err != nil {
		return errors.Trace(err)
	}
	// write coefficients
	return errors.Trace(encoding.WriteMatrix(w, m.Coefficients))
}

// Unmarshal model from byte stream. Ratings and similarity are attached afterwards
// by SetRatings and SetSimilarity.
func (m *SLIM) Unmarshal(r io.Reader) error {
	// read params
	var params model.Params
	if err := encoding.ReadGob(r, &params); err != nil {
		return errors.Trace(err)
	}
	m.SetParams(params)
	// read axis and state
	axis, err := encoding.ReadString(r)
	if err != nil {
		return errors.Trace(err)
	}
	if axis != m.axisName {
		return errors.NotValidf("axis %q with params %q", axis, m.axisName)
	}
	var state int64
	if err = binary.Read(r, binary.LittleEndian, &state); err != nil {
		return errors.Trace(err)
	}
	if state < int64(Training) || state > int64(MaxIterReached) {
		return errors.NotValidf("model state %v", State(state))
	}
	// read membership
	labels, err := encoding.ReadInt8s(r)
	if err != nil {
		return errors.Trace(err)
	}
	if m.membership, err = NewGroupMembershipFromLabels(labels); err != nil {
		return errors.Trace(err)
	}
	// read coefficients
	if m.Coefficients, err = encoding.ReadMatrix(r); err != nil {
		return errors.Trace(err)
	}
	if len(m.Coefficients) != len(labels) {
		return errors.NotValidf("coefficients of %d entities with %d labels", len(m.Coefficients), len(labels))
	}
	m.state = State(state)
	m.ratings = nil
	m.axis = nil
	m.neighbors = nil
	m.lastLoss = 0
	return nil
}
