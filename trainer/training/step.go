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

//go:generate mockgen -destination mocks/step_mock.go -source step.go -package mocks

package training

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/neuronetiq/marketplace-trainer/trainer/config"
)

// Step trains one epoch and reports its metrics.
type Step interface {
	// Name is the variant name of the step.
	Name() string

	// Train runs one epoch.
	Train(ctx context.Context, epoch *Epoch) (Metrics, error)
}

// Exporter is implemented by steps that produce a model payload.
type Exporter interface {
	// Export serializes the model trained so far.
	Export() (*Model, error)
}

// NewStep returns the configured step variant. A zero seed is derived from roundID.
func NewStep(cfg *config.TrainingConfig, roundID, task string) (Step, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = Seed(roundID)
	}

	switch cfg.Step {
	case config.TrainingStepSimulated:
		return NewSimulated(seed, roundID, task), nil
	case config.TrainingStepLinear:
		return NewLinear(seed), nil
	}

	return nil, fmt.Errorf("unknown training step %s", cfg.Step)
}

// Seed derives a deterministic seed from s.
func Seed(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}
