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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neuronetiq/marketplace-trainer/trainer/config"
)

func TestSimulated_Deterministic(t *testing.T) {
	assert := assert.New(t)
	run := func(seed int64) []Metrics {
		step := NewSimulated(seed, "r1", "fx-signal")
		var snapshots []Metrics
		for i := 1; i <= 3; i++ {
			m, err := step.Train(context.Background(), &Epoch{Index: i, Total: 3})
			assert.NoError(err)
			snapshots = append(snapshots, m)
		}
		return snapshots
	}

	assert.Equal(run(7), run(7))
	assert.NotEqual(run(7), run(8))

	for _, m := range run(7) {
		assert.Equal(m[MetricValAccuracy], m[MetricWinRate])
		assert.GreaterOrEqual(m[MetricSharpeRatio], 0.8)
		assert.Less(m[MetricSharpeRatio], 2.5)
		assert.GreaterOrEqual(m[MetricMaxDrawdown], 0.05)
		assert.Less(m[MetricMaxDrawdown], 0.15)
	}
}

func TestNewStep(t *testing.T) {
	tests := []struct {
		name   string
		config *config.TrainingConfig
		expect func(t *testing.T, step Step, err error)
	}{
		{
			name:   "simulated",
			config: &config.TrainingConfig{Step: config.TrainingStepSimulated},
			expect: func(t *testing.T, step Step, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Equal("simulated", step.Name())
				_, ok := step.(Exporter)
				assert.True(ok)
			},
		},
		{
			name:   "linear",
			config: &config.TrainingConfig{Step: config.TrainingStepLinear, Seed: 1},
			expect: func(t *testing.T, step Step, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Equal("linear", step.Name())
			},
		},
		{
			name:   "unknown",
			config: &config.TrainingConfig{Step: "gnn"},
			expect: func(t *testing.T, step Step, err error) {
				assert.EqualError(t, err, "unknown training step gnn")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			step, err := NewStep(tc.config, "r1", "fx-signal")
			tc.expect(t, step, err)
		})
	}
}

func TestSeed(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(Seed("r1"), Seed("r1"))
	assert.NotEqual(Seed("r1"), Seed("r2"))
	assert.GreaterOrEqual(Seed("r1"), int64(0))
}
