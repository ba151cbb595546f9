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

	"github.com/neuronetiq/marketplace-trainer/internal/mperrors"
	logger "github.com/neuronetiq/marketplace-trainer/internal/mplog"
	"github.com/neuronetiq/marketplace-trainer/trainer/dataset"
	"github.com/neuronetiq/marketplace-trainer/trainer/metrics"
	"github.com/neuronetiq/marketplace-trainer/trainer/spec"
	"github.com/neuronetiq/marketplace-trainer/trainer/tracking"
)

// Training runs the epochs of a job.
type Training interface {
	// Run trains epoch_count epochs and returns the best snapshot.
	Run(ctx context.Context, splits *dataset.Splits, hyperparams spec.Hyperparams) (*Result, error)
}

// loop implements Training interface.
type loop struct {
	step    Step
	tracker tracking.Tracker
}

// New returns a Training calling step once per epoch and sending every snapshot to tracker.
func New(step Step, tracker tracking.Tracker) Training {
	if tracker == nil {
		tracker = tracking.NewDisabled()
	}

	return &loop{
		step:    step,
		tracker: tracker,
	}
}

// Run trains exactly epoch_count epochs, there is no early stopping.
// The best snapshot is the first one or one with strictly greater val_accuracy.
func (l *loop) Run(ctx context.Context, splits *dataset.Splits, hyperparams spec.Hyperparams) (*Result, error) {
	var (
		learningRate = hyperparams.LearningRate()
		epochCount   = hyperparams.EpochCount()
		batchSize    = hyperparams.BatchSize()
	)
	logger.Infof("training with step %s, learning rate %v, epochs %d, batch size %d", l.step.Name(), learningRate, epochCount, batchSize)

	if epochCount < 1 {
		return nil, mperrors.Newf(mperrors.CodeTraining, "epoch count must be positive, got %d", epochCount)
	}

	var best Metrics
	for i := 1; i <= epochCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, mperrors.Wrapf(mperrors.CodeTraining, err, "training interrupted at epoch %d", i)
		}

		snapshot, err := l.step.Train(ctx, &Epoch{
			Index:        i,
			Total:        epochCount,
			LearningRate: learningRate,
			BatchSize:    batchSize,
			Train:        splits.Train,
			Validation:   splits.Validation,
			Hyperparams:  hyperparams,
		})
		if err != nil {
			if mperrors.CodeOf(err) != mperrors.CodeUnknown {
				return nil, err
			}
			return nil, mperrors.Wrapf(mperrors.CodeTraining, err, "epoch %d", i)
		}

		if name, ok := snapshot.NonFinite(); ok {
			return nil, mperrors.Newf(mperrors.CodeTraining, "training diverged at epoch %d: %s is %v", i, name, snapshot[name])
		}

		snapshot = snapshot.Clone()
		snapshot[MetricEpoch] = float64(i)
		metrics.EpochCount.WithLabelValues(l.step.Name()).Inc()
		logger.Infof("epoch %d/%d - loss: %.4f, accuracy: %.4f, val loss: %.4f, val accuracy: %.4f",
			i, epochCount, snapshot[MetricTrainLoss], snapshot[MetricTrainAccuracy], snapshot[MetricValLoss], snapshot[MetricValAccuracy])

		// Tracker errors are swallowed by the guarded tracker.
		if err := l.tracker.Log(ctx, i, snapshot); err != nil {
			logger.Warnf("track epoch %d failed: %v", i, err)
		}

		if best == nil || snapshot[MetricValAccuracy] > best[MetricValAccuracy] {
			best = snapshot
		}
	}

	metrics.BestValAccuracyGauge.Set(best[MetricValAccuracy])
	logger.Infof("training completed, best epoch %v with val accuracy %.4f", best[MetricEpoch], best[MetricValAccuracy])

	result := &Result{
		Best:   best,
		Epochs: epochCount,
	}

	if exporter, ok := l.step.(Exporter); ok {
		model, err := exporter.Export()
		if err != nil {
			return nil, mperrors.Wrap(mperrors.CodeTraining, err, "export model")
		}
		result.Model = model
	}

	return result, nil
}
