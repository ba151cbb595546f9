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
	"bytes"
	"context"
	"fmt"
	"math"
	"math/rand"
)

// SimulatedModelFileName is the payload name of the simulated step.
const SimulatedModelFileName = "model.bin"

// simulated produces metrics of a converging run without fitting anything.
type simulated struct {
	rand    *rand.Rand
	roundID string
	task    string
	epochs  int
}

// NewSimulated returns a simulated step, runs with the same seed produce the same metrics.
func NewSimulated(seed int64, roundID, task string) Step {
	return &simulated{
		rand:    rand.New(rand.NewSource(seed)),
		roundID: roundID,
		task:    task,
	}
}

func (s *simulated) Name() string {
	return "simulated"
}

func (s *simulated) Train(ctx context.Context, epoch *Epoch) (Metrics, error) {
	e := float64(epoch.Index)
	trainLoss := 0.5*math.Exp(-e*0.1) + 0.1 + s.normal(0, 0.02)
	trainAccuracy := 0.5 + 0.4*(1-math.Exp(-e*0.15)) + s.normal(0, 0.01)
	valLoss := trainLoss + s.normal(0, 0.01)
	valAccuracy := trainAccuracy - s.normal(0.02, 0.01)

	s.epochs = epoch.Index
	return Metrics{
		MetricTrainLoss:     trainLoss,
		MetricTrainAccuracy: trainAccuracy,
		MetricValLoss:       valLoss,
		MetricValAccuracy:   valAccuracy,
		MetricSharpeRatio:   s.uniform(0.8, 2.5),
		MetricWinRate:       valAccuracy,
		MetricMaxDrawdown:   s.uniform(0.05, 0.15),
	}, nil
}

// Export writes a placeholder payload naming the task and round.
func (s *simulated) Export() (*Model, error) {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# simulated model")
	fmt.Fprintf(&buf, "# task: %s\n", s.task)
	fmt.Fprintf(&buf, "# round: %s\n", s.roundID)
	fmt.Fprintf(&buf, "# epochs: %d\n", s.epochs)
	return &Model{FileName: SimulatedModelFileName, Data: buf.Bytes()}, nil
}

func (s *simulated) normal(mean, stddev float64) float64 {
	return s.rand.NormFloat64()*stddev + mean
}

func (s *simulated) uniform(min, max float64) float64 {
	return min + s.rand.Float64()*(max-min)
}
