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

package models

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/sjwhitworth/golearn/base"
)

// ErrNotFitted is returned when predicting with an untrained model.
var ErrNotFitted = errors.New("no fitted model")

// LinearRegression is an ordinary least squares model trained by stochastic
// gradient descent, one pass over the rows per Fit call.
type LinearRegression struct {
	Fitted       bool      `json:"fitted"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Features     []string  `json:"features"`
	Target       string    `json:"target"`
}

// NewLinearRegression returns an unfitted model.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// Fit runs one pass over inst in a random row order. Coefficients are kept
// between calls while the feature set is unchanged.
func (lr *LinearRegression) Fit(inst base.FixedDataGrid, learningRate float64, rng *rand.Rand) error {
	classAttrs := inst.AllClassAttributes()
	if len(classAttrs) != 1 {
		return fmt.Errorf("expected 1 class attribute, got %d", len(classAttrs))
	}

	features := floatAttributes(base.NonClassAttributes(inst))
	if len(features) == 0 {
		return errors.New("no float feature attributes")
	}

	featureSpecs := base.ResolveAttributes(inst, features)
	targetSpec := base.ResolveAttributes(inst, classAttrs)[0]

	names := attributeNames(features)
	if !lr.Fitted || !sameNames(lr.Features, names) {
		lr.Intercept = rng.Float64() * 0.01
		lr.Coefficients = make([]float64, len(features))
		for i := range lr.Coefficients {
			lr.Coefficients[i] = rng.Float64() * 0.01
		}
	}

	_, rows := inst.Size()
	x := make([]float64, len(features))
	for _, row := range rng.Perm(rows) {
		for j, spec := range featureSpecs {
			x[j] = base.UnpackBytesToFloat(inst.Get(spec, row))
		}

		residual := base.UnpackBytesToFloat(inst.Get(targetSpec, row)) - lr.predict(x)
		lr.Intercept += learningRate * residual
		for j := range lr.Coefficients {
			lr.Coefficients[j] += learningRate * residual * x[j]
		}
	}

	lr.Fitted = true
	lr.Features = names
	lr.Target = classAttrs[0].GetName()
	return nil
}

// Predict returns one prediction per row of inst, features are matched by name.
func (lr *LinearRegression) Predict(inst base.FixedDataGrid) ([]float64, error) {
	if !lr.Fitted {
		return nil, ErrNotFitted
	}

	byName := make(map[string]base.Attribute)
	for _, a := range inst.AllAttributes() {
		byName[a.GetName()] = a
	}

	attrs := make([]base.Attribute, len(lr.Features))
	for i, name := range lr.Features {
		a, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("feature %s not found", name)
		}
		attrs[i] = a
	}

	_, rows := inst.Size()
	predictions := make([]float64, rows)
	x := make([]float64, len(attrs))
	if err := inst.MapOverRows(base.ResolveAttributes(inst, attrs), func(row [][]byte, i int) (bool, error) {
		for j, cell := range row {
			x[j] = base.UnpackBytesToFloat(cell)
		}
		predictions[i] = lr.predict(x)
		return true, nil
	}); err != nil {
		return nil, err
	}

	return predictions, nil
}

// Diverged reports whether the intercept or a coefficient is NaN or infinite.
func (lr *LinearRegression) Diverged() bool {
	for _, v := range append([]float64{lr.Intercept}, lr.Coefficients...) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}

	return false
}

func (lr *LinearRegression) predict(x []float64) float64 {
	y := lr.Intercept
	for j, c := range lr.Coefficients {
		y += c * x[j]
	}

	return y
}

func floatAttributes(attrs []base.Attribute) []base.Attribute {
	var out []base.Attribute
	for _, a := range attrs {
		if _, ok := a.(*base.FloatAttribute); ok {
			out = append(out, a)
		}
	}

	return out
}

func attributeNames(attrs []base.Attribute) []string {
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.GetName()
	}

	return names
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
