/*
 *     Copyright 2023 The Dragonfly Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package training

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/sjwhitworth/golearn/base"
	"golang.org/x/exp/slices"

	"github.com/neuronetiq/marketplace-trainer/internal/mperrors"
	"github.com/neuronetiq/marketplace-trainer/trainer/dataset"
	"github.com/neuronetiq/marketplace-trainer/trainer/spec"
	"github.com/neuronetiq/marketplace-trainer/trainer/training/models"
)

const (
	// LinearModelFileName is the payload name of the linear step.
	LinearModelFileName = "model.json"

	// DefaultTargetColumn is the label column used when target_column is not set.
	DefaultTargetColumn = "target"

	// tradingDaysPerYear annualizes the sharpe ratio.
	tradingDaysPerYear = 252
)

// linear fits a linear regression with one gradient descent pass per epoch.
type linear struct {
	rand  *rand.Rand
	model *models.LinearRegression

	target   string
	features []string
	means    []float64
	stds     []float64
	binary   bool

	trainSet     *base.DenseInstances
	trainTargets []float64
	valSet       *base.DenseInstances
	valTargets   []float64
}

// linearPayload is the exported model with the feature scaling it was trained with.
type linearPayload struct {
	Target   string                   `json:"target"`
	Features []string                 `json:"features"`
	Means    []float64                `json:"means"`
	Stds     []float64                `json:"stds"`
	Model    *models.LinearRegression `json:"model"`
}

// NewLinear returns a linear regression step seeded for reproducible shuffling.
func NewLinear(seed int64) Step {
	return &linear{
		rand:  rand.New(rand.NewSource(seed)),
		model: models.NewLinearRegression(),
	}
}

func (l *linear) Name() string {
	return "linear"
}

func (l *linear) Train(ctx context.Context, epoch *Epoch) (Metrics, error) {
	if l.trainSet == nil {
		if err := l.prepare(epoch.Train, epoch.Validation, epoch.Hyperparams); err != nil {
			return nil, err
		}
	}

	if err := l.model.Fit(l.trainSet, epoch.LearningRate, l.rand); err != nil {
		return nil, errors.Wrap(err, "fit linear regression")
	}

	if l.model.Diverged() {
		return nil, mperrors.Newf(mperrors.CodeTraining, "training diverged at epoch %d: coefficients are not finite, lower the learning rate %v", epoch.Index, epoch.LearningRate)
	}

	trainPredictions, err := l.model.Predict(l.trainSet)
	if err != nil {
		return nil, errors.Wrap(err, "predict training set")
	}

	valPredictions, err := l.model.Predict(l.valSet)
	if err != nil {
		return nil, errors.Wrap(err, "predict validation set")
	}

	threshold := 0.0
	if l.binary {
		threshold = 0.5
	}

	returns := strategyReturns(valPredictions, l.valTargets, threshold)
	valAccuracy := directionalAccuracy(valPredictions, l.valTargets, threshold)
	m := Metrics{
		MetricTrainLoss:     meanSquaredError(trainPredictions, l.trainTargets),
		MetricTrainAccuracy: directionalAccuracy(trainPredictions, l.trainTargets, threshold),
		MetricValLoss:       meanSquaredError(valPredictions, l.valTargets),
		MetricValAccuracy:   valAccuracy,
		MetricSharpeRatio:   sharpeRatio(returns),
		MetricWinRate:       winRate(returns),
		MetricMaxDrawdown:   maxDrawdown(returns),
	}
	if name, ok := m.NonFinite(); ok {
		return nil, mperrors.Newf(mperrors.CodeTraining, "training diverged at epoch %d: %s is %v", epoch.Index, name, m[name])
	}

	return m, nil
}

// Export serializes the model with its feature scaling.
func (l *linear) Export() (*Model, error) {
	if !l.model.Fitted {
		return nil, errors.New("no fitted model")
	}

	data, err := json.MarshalIndent(&linearPayload{
		Target:   l.target,
		Features: l.features,
		Means:    l.means,
		Stds:     l.stds,
		Model:    l.model,
	}, "", "  ")
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &Model{FileName: LinearModelFileName, Data: data}, nil
}

// prepare selects the columns, fits the scaler on the training table and builds the instances.
func (l *linear) prepare(train, validation *dataset.Table, hyperparams spec.Hyperparams) error {
	if rows, _ := train.Shape(); rows == 0 {
		return errors.Errorf("training table %s has no rows", train.Name)
	}

	numeric := train.NumericColumns()
	l.target = hyperparams.String(spec.HyperparamTargetColumn, "")
	if l.target == "" {
		l.target = DefaultTargetColumn
		if !slices.Contains(numeric, l.target) && len(numeric) > 0 {
			l.target = numeric[len(numeric)-1]
		}
	}

	if !slices.Contains(numeric, l.target) {
		return errors.Errorf("target column %s is not numeric", l.target)
	}

	for _, column := range numeric {
		if column != l.target {
			l.features = append(l.features, column)
		}
	}

	if len(l.features) == 0 {
		return errors.Errorf("training table %s has no numeric feature columns", train.Name)
	}

	for _, column := range l.features {
		values, err := train.Float64Column(column)
		if err != nil {
			return err
		}

		mean, _ := stats.Mean(values)
		std, _ := stats.StandardDeviationPopulation(values)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		l.means = append(l.means, mean)
		l.stds = append(l.stds, std)
	}

	var err error
	if l.trainSet, l.trainTargets, err = l.instances(train); err != nil {
		return err
	}

	l.binary = isBinary(l.trainTargets)
	if validation == nil {
		l.valSet, l.valTargets = l.trainSet, l.trainTargets
		return nil
	}

	l.valSet, l.valTargets, err = l.instances(validation)
	return err
}

// instances converts the table into scaled golearn instances, the target is the class attribute.
func (l *linear) instances(table *dataset.Table) (*base.DenseInstances, []float64, error) {
	rows, _ := table.Shape()
	if rows == 0 {
		return nil, nil, errors.Errorf("table %s has no rows", table.Name)
	}

	inst := base.NewDenseInstances()
	specs := make([]base.AttributeSpec, 0, len(l.features))
	for _, name := range l.features {
		specs = append(specs, inst.AddAttribute(base.NewFloatAttribute(name)))
	}

	classAttr := base.NewFloatAttribute(l.target)
	classSpec := inst.AddAttribute(classAttr)
	if err := inst.AddClassAttribute(classAttr); err != nil {
		return nil, nil, errors.WithStack(err)
	}

	if err := inst.Extend(rows); err != nil {
		return nil, nil, errors.WithStack(err)
	}

	for i, name := range l.features {
		values, err := table.Float64Column(name)
		if err != nil {
			return nil, nil, err
		}

		for row, v := range values {
			inst.Set(specs[i], row, base.PackFloatToBytes((v-l.means[i])/l.stds[i]))
		}
	}

	targets, err := table.Float64Column(l.target)
	if err != nil {
		return nil, nil, err
	}

	for row, v := range targets {
		inst.Set(classSpec, row, base.PackFloatToBytes(v))
	}

	return inst, targets, nil
}

func isBinary(values []float64) bool {
	for _, v := range values {
		if v != 0 && v != 1 {
			return false
		}
	}

	return true
}

func meanSquaredError(predictions, targets []float64) float64 {
	var sum float64
	for i, p := range predictions {
		sum += (p - targets[i]) * (p - targets[i])
	}

	return sum / float64(len(predictions))
}

// directionalAccuracy is the share of predictions on the same side of threshold as the target.
func directionalAccuracy(predictions, targets []float64, threshold float64) float64 {
	var hits int
	for i, p := range predictions {
		if (p >= threshold) == (targets[i] >= threshold) {
			hits++
		}
	}

	return float64(hits) / float64(len(predictions))
}

// strategyReturns trades the sign of each prediction against the realized target.
func strategyReturns(predictions, targets []float64, threshold float64) []float64 {
	returns := make([]float64, len(predictions))
	for i, p := range predictions {
		position := 1.0
		if p < threshold {
			position = -1.0
		}
		returns[i] = position * (targets[i] - threshold)
	}

	return returns
}

func sharpeRatio(returns []float64) float64 {
	mean, err := stats.Mean(returns)
	if err != nil {
		return 0
	}

	std, err := stats.StandardDeviationSample(returns)
	if err != nil || std == 0 || math.IsNaN(std) {
		return 0
	}

	return mean / std * math.Sqrt(tradingDaysPerYear)
}

func winRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	var wins int
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}

	return float64(wins) / float64(len(returns))
}

// maxDrawdown is the largest drop of the cumulative return from its running peak.
func maxDrawdown(returns []float64) float64 {
	var equity, peak, drawdown float64
	for _, r := range returns {
		equity += r
		peak = math.Max(peak, equity)
		drawdown = math.Max(drawdown, peak-equity)
	}

	return drawdown
}
