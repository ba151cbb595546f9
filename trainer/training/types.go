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
	"math"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/neuronetiq/marketplace-trainer/trainer/dataset"
	"github.com/neuronetiq/marketplace-trainer/trainer/spec"
)

// Names of the metrics of an epoch snapshot.
const (
	MetricEpoch         = "epoch"
	MetricTrainLoss     = "train_loss"
	MetricTrainAccuracy = "train_accuracy"
	MetricValLoss       = "val_loss"
	MetricValAccuracy   = "val_accuracy"
	MetricSharpeRatio   = "sharpe_ratio"
	MetricWinRate       = "win_rate"
	MetricMaxDrawdown   = "max_drawdown"
)

// Metrics are the named measurements of one epoch.
type Metrics map[string]float64

// NonFinite returns the first metric in key order that is NaN or infinite.
func (m Metrics) NonFinite() (string, bool) {
	keys := maps.Keys(m)
	slices.Sort(keys)
	for _, k := range keys {
		if math.IsNaN(m[k]) || math.IsInf(m[k], 0) {
			return k, true
		}
	}

	return "", false
}

// Clone returns a copy of the metrics.
func (m Metrics) Clone() Metrics {
	c := make(Metrics, len(m))
	for k, v := range m {
		c[k] = v
	}

	return c
}

// Epoch is the input of one training step.
type Epoch struct {
	// Index is the 1-based epoch number.
	Index int

	// Total is the number of epochs of the run.
	Total int

	// LearningRate of the run.
	LearningRate float64

	// BatchSize of the run.
	BatchSize int

	// Train is the training table.
	Train *dataset.Table

	// Validation is the validation table, it may be nil.
	Validation *dataset.Table

	// Hyperparams of the job.
	Hyperparams spec.Hyperparams
}

// Result is the outcome of a training run.
type Result struct {
	// Best is the snapshot of the epoch with the highest validation accuracy.
	Best Metrics

	// Epochs is the number of epochs run.
	Epochs int

	// Model is the model payload, nil when the step does not export one.
	Model *Model
}

// Model is a serialized model payload.
type Model struct {
	// FileName is the name of the payload file in the model directory.
	FileName string

	// Data is the payload.
	Data []byte
}
