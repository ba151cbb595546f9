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

//go:generate mockgen -destination mocks/tracking_mock.go -source tracking.go -package mocks

package tracking

import (
	"context"
	"net/http"

	"go.uber.org/atomic"

	"github.com/neuronetiq/marketplace-trainer/internal/mperrors"
	logger "github.com/neuronetiq/marketplace-trainer/internal/mplog"
	"github.com/neuronetiq/marketplace-trainer/trainer/config"
	"github.com/neuronetiq/marketplace-trainer/trainer/metrics"
)

// Run describes the tracked training run.
type Run struct {
	// Project groups runs, it is the experiment name of mlflow.
	Project string

	// Name is the display name of the run.
	Name string

	// Params are logged once when the run starts.
	Params map[string]string

	// Tags are attached to the run.
	Tags map[string]string
}

// Tracker sends training metrics to an experiment tracking backend.
type Tracker interface {
	// Start creates the run.
	Start(ctx context.Context, run *Run) error

	// Log sends the metrics of one step.
	Log(ctx context.Context, step int, metrics map[string]float64) error

	// Finish marks the run as finished or failed.
	Finish(ctx context.Context, success bool) error
}

// New returns the tracker of the configured backend, it degrades to
// a no-op tracker when the backend has no endpoint or no credential.
func New(cfg *config.TrackingConfig, options ...Option) Tracker {
	if cfg.Backend != config.TrackingBackendMLflow {
		return NewDisabled()
	}

	if cfg.Endpoint == "" || cfg.APIKey == "" {
		logger.Warnf("tracking endpoint or api key not provided, skip tracking")
		return NewDisabled()
	}

	return NewGuarded(NewMLflow(cfg.Endpoint, cfg.APIKey, options...))
}

// Option is a functional option for configuring the mlflow tracker.
type Option func(m *mlflow)

// WithHTTPClient sets the base http client, the bearer transport wraps its transport.
func WithHTTPClient(client *http.Client) Option {
	return func(m *mlflow) {
		m.baseClient = client
	}
}

type disabled struct{}

// NewDisabled returns a tracker dropping everything.
func NewDisabled() Tracker {
	return &disabled{}
}

func (d *disabled) Start(context.Context, *Run) error                 { return nil }
func (d *disabled) Log(context.Context, int, map[string]float64) error { return nil }
func (d *disabled) Finish(context.Context, bool) error                 { return nil }

// guarded swallows tracker errors and stops calling the tracker after the first one.
type guarded struct {
	tracker  Tracker
	disabled *atomic.Bool
}

// NewGuarded wraps tracker, errors are logged as TrackingError and never returned.
func NewGuarded(tracker Tracker) Tracker {
	return &guarded{
		tracker:  tracker,
		disabled: atomic.NewBool(false),
	}
}

func (g *guarded) Start(ctx context.Context, run *Run) error {
	return g.call(func() error { return g.tracker.Start(ctx, run) })
}

func (g *guarded) Log(ctx context.Context, step int, m map[string]float64) error {
	return g.call(func() error { return g.tracker.Log(ctx, step, m) })
}

func (g *guarded) Finish(ctx context.Context, success bool) error {
	return g.call(func() error { return g.tracker.Finish(ctx, success) })
}

func (g *guarded) call(f func() error) error {
	if g.disabled.Load() {
		return nil
	}

	if err := f(); err != nil {
		g.disabled.Store(true)
		metrics.TrackingFailureCount.Inc()
		logger.Warnf("tracking disabled for the rest of the run: %v", mperrors.Wrap(mperrors.CodeTracking, err, "tracking failed"))
	}

	return nil
}

// Disabled reports whether the guarded tracker stopped tracking.
func Disabled(t Tracker) bool {
	switch g := t.(type) {
	case *guarded:
		return g.disabled.Load()
	case *disabled:
		return true
	case multi:
		for _, t := range g {
			if !Disabled(t) {
				return false
			}
		}
		return true
	}

	return false
}
