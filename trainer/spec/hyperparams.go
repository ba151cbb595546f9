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

package spec

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// HyperparamLearningRate is the learning rate, lr is accepted as alias.
	HyperparamLearningRate = "learning_rate"

	// HyperparamEpochCount is the number of epochs, epochs is accepted as alias.
	HyperparamEpochCount = "epoch_count"

	// HyperparamBatchSize is the batch size.
	HyperparamBatchSize = "batch_size"

	// HyperparamTargetColumn names the label column of the linear step.
	HyperparamTargetColumn = "target_column"
)

var (
	// LearningRateAliases are the accepted aliases of learning_rate.
	LearningRateAliases = []string{"lr"}

	// EpochCountAliases are the accepted aliases of epoch_count.
	EpochCountAliases = []string{"epochs"}

	numericHyperparams = []string{
		HyperparamLearningRate, "lr",
		HyperparamEpochCount, "epochs",
		HyperparamBatchSize,
	}
)

const (
	DefaultLearningRate = 0.001
	DefaultEpochCount   = 20
	DefaultBatchSize    = 256
)

// Hyperparams is the open map of named training parameters, values are
// any json value and keys the pipeline does not read are carried as is.
type Hyperparams map[string]any

func (h Hyperparams) lookup(name string, aliases []string) (any, bool) {
	for _, key := range append([]string{name}, aliases...) {
		if v, ok := h[key]; ok && v != nil {
			return v, true
		}
	}

	return nil, false
}

// Float returns the named value as float64, numeric strings are parsed.
// def is returned when neither name nor an alias holds a number.
func (h Hyperparams) Float(name string, def float64, aliases ...string) float64 {
	v, ok := h.lookup(name, aliases)
	if !ok {
		return def
	}

	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return def
		}
		return f
	}

	return def
}

// Int returns the named value as int, fractions are truncated toward zero.
func (h Hyperparams) Int(name string, def int, aliases ...string) int {
	v, ok := h.lookup(name, aliases)
	if !ok {
		return def
	}

	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case float32:
		return int(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return def
		}
		return int(f)
	}

	return def
}

// String returns the named value formatted as string.
func (h Hyperparams) String(name, def string, aliases ...string) string {
	v, ok := h.lookup(name, aliases)
	if !ok {
		return def
	}

	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprint(v)
}

// LearningRate returns learning_rate or lr, 0.001 by default.
func (h Hyperparams) LearningRate() float64 {
	return h.Float(HyperparamLearningRate, DefaultLearningRate, LearningRateAliases...)
}

// EpochCount returns epoch_count or epochs, 20 by default.
func (h Hyperparams) EpochCount() int {
	return h.Int(HyperparamEpochCount, DefaultEpochCount, EpochCountAliases...)
}

// BatchSize returns batch_size, 256 by default.
func (h Hyperparams) BatchSize() int {
	return h.Int(HyperparamBatchSize, DefaultBatchSize)
}

// Clone returns a shallow copy.
func (h Hyperparams) Clone() Hyperparams {
	c := make(Hyperparams, len(h))
	for k, v := range h {
		c[k] = v
	}

	return c
}

// isNumeric accepts numbers and numeric strings.
func isNumeric(v any) bool {
	switch t := v.(type) {
	case float64, float32, int, int64:
		return true
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return err == nil
	}

	return false
}
