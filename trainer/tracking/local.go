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

package tracking

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	logger "github.com/neuronetiq/marketplace-trainer/internal/mplog"
	"github.com/neuronetiq/marketplace-trainer/trainer/storage"
)

// local records epochs into csv files of the storage, keyed by run name.
type local struct {
	storage storage.Storage
	runKey  string
	log     *logger.Entry
}

// NewLocal returns a tracker writing the epoch history into s.
func NewLocal(s storage.Storage) Tracker {
	return &local{storage: s}
}

// Start drops the history of a previous run with the same name.
func (l *local) Start(_ context.Context, run *Run) error {
	if run.Name == "" {
		return errors.New("run name is empty")
	}

	l.runKey = run.Name
	l.log = logger.WithTrackingRun(run.Project, run.Name)
	return l.storage.ClearEpoch(l.runKey)
}

func (l *local) Log(_ context.Context, step int, metrics map[string]float64) error {
	if l.runKey == "" {
		return errors.New("local run not started")
	}

	epoch := storage.NewEpoch(step, metrics)
	l.log.Infof("epoch %d: train_loss %.4f, val_loss %.4f, val_accuracy %.4f", step, epoch.TrainLoss, epoch.ValLoss, epoch.ValAccuracy)
	return l.storage.CreateEpoch(l.runKey, epoch)
}

func (l *local) Finish(_ context.Context, success bool) error {
	if l.runKey == "" {
		return nil
	}

	epochs, err := l.storage.ListEpoch(l.runKey)
	if err != nil {
		return err
	}

	l.log.Infof("recorded %d epochs, success %t", len(epochs), success)
	return nil
}

// multi fans out every call, one failing tracker does not stop the others.
type multi []Tracker

// NewMulti returns a tracker calling every tracker in order.
func NewMulti(trackers ...Tracker) Tracker {
	return multi(trackers)
}

func (m multi) Start(ctx context.Context, run *Run) error {
	return m.each(func(t Tracker) error { return t.Start(ctx, run) })
}

func (m multi) Log(ctx context.Context, step int, metrics map[string]float64) error {
	return m.each(func(t Tracker) error { return t.Log(ctx, step, metrics) })
}

func (m multi) Finish(ctx context.Context, success bool) error {
	return m.each(func(t Tracker) error { return t.Finish(ctx, success) })
}

func (m multi) each(f func(t Tracker) error) error {
	var errs *multierror.Error
	for _, t := range m {
		if err := f(t); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return errs.ErrorOrNil()
}
