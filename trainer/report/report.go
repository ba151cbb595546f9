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

//go:generate mockgen -destination mocks/report_mock.go -source report.go -package mocks

package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/atomic"

	"github.com/neuronetiq/marketplace-trainer/internal/mperrors"
	logger "github.com/neuronetiq/marketplace-trainer/internal/mplog"
	"github.com/neuronetiq/marketplace-trainer/trainer/metrics"
	"github.com/neuronetiq/marketplace-trainer/trainer/publish"
	"github.com/neuronetiq/marketplace-trainer/trainer/spec"
	"github.com/neuronetiq/marketplace-trainer/trainer/training"
)

// ErrReported is returned when a record was already written by the reporter.
var ErrReported = mperrors.New(mperrors.CodeUnknown, "result record already written")

// Outcome is the terminal state of a run.
type Outcome struct {
	// Spec is the parsed job spec, nil when parsing failed.
	Spec *spec.JobSpec

	// Metrics are the best metrics of the run.
	Metrics training.Metrics

	// Artifacts are the publish receipts keyed by registry.
	Artifacts map[string]*publish.Receipt

	// Err is the fatal error, a nil Err reports success.
	Err error
}

// Success reports whether the outcome describes a successful run.
func (o *Outcome) Success() bool {
	return o.Err == nil
}

// SuccessRecord is the result record of a successful run.
type SuccessRecord struct {
	Success     bool                        `json:"success"`
	RoundID     string                      `json:"round_id"`
	Task        string                      `json:"task"`
	Metrics     training.Metrics            `json:"metrics"`
	Artifacts   map[string]*publish.Receipt `json:"artifacts"`
	Hyperparams spec.Hyperparams            `json:"hyperparams"`
	CompletedAt string                      `json:"completed_at"`
}

// FailureRecord is the result record of a failed run.
type FailureRecord struct {
	Success     bool   `json:"success"`
	Error       string `json:"error"`
	Traceback   string `json:"traceback"`
	CompletedAt string `json:"completed_at"`
}

// Reporter writes the result record of a run.
type Reporter interface {
	// Report writes the record of outcome, only the first call writes.
	Report(outcome *Outcome) error

	// Path returns the path of the result record.
	Path() string
}

type reporter struct {
	path     string
	now      func() time.Time
	reported *atomic.Bool
}

// Option is a functional option for configuring the reporter.
type Option func(r *reporter)

// WithNow sets the clock of completed_at.
func WithNow(now func() time.Time) Option {
	return func(r *reporter) {
		r.now = now
	}
}

// New returns a Reporter writing to path.
func New(path string, options ...Option) Reporter {
	r := &reporter{
		path:     path,
		now:      time.Now,
		reported: atomic.NewBool(false),
	}

	for _, opt := range options {
		opt(r)
	}

	return r
}

func (r *reporter) Path() string {
	return r.path
}

// Report writes the record through a temporary file renamed into place,
// readers never observe a partial record.
func (r *reporter) Report(outcome *Outcome) error {
	if !r.reported.CAS(false, true) {
		return ErrReported
	}

	completedAt := r.now().UTC().Format(time.RFC3339Nano)

	var record any
	if outcome.Success() {
		record = successRecord(outcome, completedAt)
	} else {
		record = &FailureRecord{
			Success:     false,
			Error:       outcome.Err.Error(),
			Traceback:   mperrors.Trace(outcome.Err),
			CompletedAt: completedAt,
		}
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return mperrors.Wrap(mperrors.CodeUnknown, err, "encode result record")
	}

	if err := writeFile(r.path, data); err != nil {
		return mperrors.Wrapf(mperrors.CodeUnknown, err, "write result record %s", r.path)
	}

	metrics.ResultCount.WithLabelValues(strconv.FormatBool(outcome.Success())).Inc()
	logger.Infof("training result written to %s, success %t", r.path, outcome.Success())
	return nil
}

func successRecord(outcome *Outcome, completedAt string) *SuccessRecord {
	record := &SuccessRecord{
		Success:     true,
		Metrics:     outcome.Metrics,
		Artifacts:   outcome.Artifacts,
		Hyperparams: spec.Hyperparams{},
		CompletedAt: completedAt,
	}

	if record.Metrics == nil {
		record.Metrics = training.Metrics{}
	}

	if record.Artifacts == nil {
		record.Artifacts = map[string]*publish.Receipt{}
	}

	if s := outcome.Spec; s != nil {
		record.RoundID = s.RoundID
		record.Task = s.Task
		if s.Hyperparams != nil {
			record.Hyperparams = s.Hyperparams
		}
	}

	return record
}

func writeFile(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}
