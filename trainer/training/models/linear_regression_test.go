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
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/sjwhitworth/golearn/base"
	"github.com/stretchr/testify/assert"
)

func newInstances(t *testing.T, xs, ys []float64) *base.DenseInstances {
	inst := base.NewDenseInstances()
	xAttr := base.NewFloatAttribute("x")
	yAttr := base.NewFloatAttribute("y")
	xSpec := inst.AddAttribute(xAttr)
	ySpec := inst.AddAttribute(yAttr)
	assert.NoError(t, inst.AddClassAttribute(yAttr))
	assert.NoError(t, inst.Extend(len(xs)))
	for i := range xs {
		inst.Set(xSpec, i, base.PackFloatToBytes(xs[i]))
		inst.Set(ySpec, i, base.PackFloatToBytes(ys[i]))
	}
	return inst
}

func TestLinearRegression_FitPredict(t *testing.T) {
	assert := assert.New(t)
	xs := []float64{-1, -0.5, 0, 0.5, 1}
	ys := []float64{-1, 0, 1, 2, 3}
	inst := newInstances(t, xs, ys)

	lr := NewLinearRegression()
	_, err := lr.Predict(inst)
	assert.ErrorIs(err, ErrNotFitted)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		assert.NoError(lr.Fit(inst, 0.1, rng))
	}

	assert.InDelta(1.0, lr.Intercept, 0.05)
	assert.InDelta(2.0, lr.Coefficients[0], 0.05)
	assert.Equal([]string{"x"}, lr.Features)
	assert.Equal("y", lr.Target)

	values, err := lr.Predict(inst)
	assert.NoError(err)
	for i, v := range values {
		assert.InDelta(ys[i], v, 0.1)
	}

	data, err := json.Marshal(lr)
	assert.NoError(err)
	decoded := NewLinearRegression()
	assert.NoError(json.Unmarshal(data, decoded))
	assert.True(decoded.Fitted)
	assert.Equal(lr.Coefficients, decoded.Coefficients)

	predictions, err := decoded.Predict(inst)
	assert.NoError(err)
	assert.Equal(values, predictions)
}

func TestLinearRegression_FitErrors(t *testing.T) {
	assert := assert.New(t)
	rng := rand.New(rand.NewSource(1))

	noClass := base.NewDenseInstances()
	noClass.AddAttribute(base.NewFloatAttribute("x"))
	assert.EqualError(NewLinearRegression().Fit(noClass, 0.1, rng), "expected 1 class attribute, got 0")

	onlyClass := base.NewDenseInstances()
	y := base.NewFloatAttribute("y")
	onlyClass.AddAttribute(y)
	assert.NoError(onlyClass.AddClassAttribute(y))
	assert.EqualError(NewLinearRegression().Fit(onlyClass, 0.1, rng), "no float feature attributes")
}

func TestLinearRegression_PredictMissingFeature(t *testing.T) {
	lr := &LinearRegression{Fitted: true, Coefficients: []float64{1}, Features: []string{"z"}, Target: "y"}
	_, err := lr.Predict(newInstances(t, []float64{1}, []float64{1}))
	assert.EqualError(t, err, "feature z not found")
}
