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

package trainer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/looplab/fsm"
	"github.com/pkg/errors"

	"github.com/neuronetiq/marketplace-trainer/internal/mperrors"
	logger "github.com/neuronetiq/marketplace-trainer/internal/mplog"
	"github.com/neuronetiq/marketplace-trainer/pkg/hostutil"
	"github.com/neuronetiq/marketplace-trainer/pkg/mppath"
	"github.com/neuronetiq/marketplace-trainer/trainer/artifact"
	"github.com/neuronetiq/marketplace-trainer/trainer/config"
	"github.com/neuronetiq/marketplace-trainer/trainer/dataset"
	"github.com/neuronetiq/marketplace-trainer/trainer/metrics"
	"github.com/neuronetiq/marketplace-trainer/trainer/publish"
	"github.com/neuronetiq/marketplace-trainer/trainer/report"
	"github.com/neuronetiq/marketplace-trainer/trainer/spec"
	"github.com/neuronetiq/marketplace-trainer/trainer/staging"
	"github.com/neuronetiq/marketplace-trainer/trainer/storage"
	"github.com/neuronetiq/marketplace-trainer/trainer/tracking"
	"github.com/neuronetiq/marketplace-trainer/trainer/training"
)

// Trainer runs one training job.
type Trainer struct {
	// Trainer configuration.
	config *config.Config

	// Scoped job paths.
	paths mppath.Mppath

	// HTTP client of the stager, tracker and publisher.
	httpClient *http.Client

	// Stager downloads datasets.
	stager staging.Stager

	// Loader parses staged datasets.
	loader dataset.Loader

	// Step is the training capability, built from the job spec when nil.
	step training.Step

	// Tracker receives epoch metrics.
	tracker tracking.Tracker

	// History records epoch metrics into the log directory.
	history tracking.Tracker

	// Writer persists artifacts.
	writer artifact.Writer

	// Publisher uploads artifacts.
	publisher publish.Publisher

	// Reporter writes the result record.
	reporter report.Reporter

	// Pusher pushes metrics at the end of the job.
	pusher metrics.Pusher

	// State machine of the job.
	fsm *fsm.FSM

	// Round id of the loaded job spec, empty before it is loaded.
	roundID string
}

// Option is a functional option for configuring the trainer.
type Option func(t *Trainer)

// WithHTTPClient sets the http client of every remote call.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Trainer) {
		t.httpClient = client
	}
}

// WithStager sets the dataset stager.
func WithStager(stager staging.Stager) Option {
	return func(t *Trainer) {
		t.stager = stager
	}
}

// WithLoader sets the dataset loader.
func WithLoader(loader dataset.Loader) Option {
	return func(t *Trainer) {
		t.loader = loader
	}
}

// WithStep sets the training step.
func WithStep(step training.Step) Option {
	return func(t *Trainer) {
		t.step = step
	}
}

// WithTracker sets the experiment tracker.
func WithTracker(tracker tracking.Tracker) Option {
	return func(t *Trainer) {
		t.tracker = tracker
	}
}

// WithWriter sets the artifact writer.
func WithWriter(writer artifact.Writer) Option {
	return func(t *Trainer) {
		t.writer = writer
	}
}

// WithPublisher sets the artifact publisher.
func WithPublisher(publisher publish.Publisher) Option {
	return func(t *Trainer) {
		t.publisher = publisher
	}
}

// WithReporter sets the result reporter.
func WithReporter(reporter report.Reporter) Option {
	return func(t *Trainer) {
		t.reporter = reporter
	}
}

// New returns a Trainer, stages that are not set by options are built from cfg.
func New(cfg *config.Config, paths mppath.Mppath, options ...Option) *Trainer {
	t := &Trainer{
		config: cfg,
		paths:  paths,
		fsm:    newJobFSM(),
	}

	for _, opt := range options {
		opt(t)
	}

	if t.stager == nil {
		stagingOptions := []staging.Option{
			staging.WithTimeout(cfg.Staging.Timeout),
			staging.WithRateLimit(cfg.Staging.RateLimit),
			staging.WithRetry(cfg.Staging.Retry.MaxAttempts, cfg.Staging.Retry.InitBackoff, cfg.Staging.Retry.MaxBackoff),
			staging.WithProgressBar(cfg.Console),
		}
		if t.httpClient != nil {
			stagingOptions = append(stagingOptions, staging.WithHTTPClient(t.httpClient))
		}
		t.stager = staging.New(paths.DataDir(), stagingOptions...)
	}

	if t.loader == nil {
		t.loader = dataset.New()
	}

	if t.tracker == nil {
		t.tracker = tracking.New(&cfg.Tracking, tracking.WithHTTPClient(t.clientWithTimeout(cfg.Tracking.Timeout)))
	}

	t.history = tracking.NewGuarded(tracking.NewLocal(storage.New(paths.LogDir())))

	if t.writer == nil {
		t.writer = artifact.New(paths.ModelDir())
	}

	if t.publisher == nil {
		t.publisher = publish.New(&cfg.Publish, publish.WithHTTPClient(t.clientWithTimeout(0)))
	}

	if t.reporter == nil {
		t.reporter = report.New(paths.ResultPath())
	}

	t.pusher = metrics.New(&cfg.Metrics)
	return t
}

// clientWithTimeout copies the http client with timeout, zero keeps the client timeout.
func (t *Trainer) clientWithTimeout(timeout time.Duration) *http.Client {
	client := &http.Client{}
	if t.httpClient != nil {
		*client = *t.httpClient
	}

	if timeout > 0 {
		client.Timeout = timeout
	}

	return client
}

// State returns the current job state.
func (t *Trainer) State() string {
	return t.fsm.Current()
}

// Run executes the job read from source, stages run strictly in order and
// the first fatal error skips the rest. The result record is written exactly
// once on every path, the returned error is the fatal error of the job.
func (t *Trainer) Run(ctx context.Context, source spec.Source) (err error) {
	outcome := &report.Outcome{}
	started := false

	defer func() {
		if r := recover(); r != nil {
			err = mperrors.Wrap(mperrors.CodeUnknown, errors.Errorf("%v", r), "job panicked")
		}

		outcome.Err = err
		if rerr := t.finish(ctx, outcome, started); rerr != nil && err == nil {
			err = rerr
		}
	}()

	var jobSpec *spec.JobSpec
	if err := t.stage(StageSpec, JobEventLoadSpec, func() (err error) {
		jobSpec, err = spec.Load(source)
		return err
	}); err != nil {
		return err
	}
	outcome.Spec = jobSpec
	t.roundID = jobSpec.RoundID

	log := logger.WithJob(jobSpec.RoundID, jobSpec.Task)
	log.Infof("job spec loaded with %d datasets, output format %s", len(jobSpec.DatasetURLs), jobSpec.Format())
	if b := jobSpec.Budget; b != nil {
		log.Infof("budget: max %v hours, max %v usd", b.MaxHours, b.MaxCostUSD)
	}

	if !jobSpec.TrackingEnabled() {
		t.tracker = tracking.NewDisabled()
	}

	remote := t.tracker
	if tracking.Disabled(remote) {
		log.Info("remote tracking disabled, epoch history is recorded locally")
	}
	t.tracker = tracking.NewMulti(remote, t.history)
	defer func() {
		if started && tracking.Disabled(remote) {
			log.Warnf("remote tracking was disabled during the run")
		}
	}()

	if err := t.tracker.Start(ctx, &tracking.Run{
		Project: jobSpec.TrackingProject(t.config.Tracking.Experiment),
		Name:    fmt.Sprintf("%s-%s", jobSpec.Task, jobSpec.RoundID),
		Params:  trackingParams(jobSpec.Hyperparams),
		Tags: map[string]string{
			"round_id": jobSpec.RoundID,
			"task":     jobSpec.Task,
			"host":     hostutil.FQDNHostname,
		},
	}); err != nil {
		log.Warnf("start tracking run failed: %v", err)
	}
	started = true

	var datasets []*staging.StagedDataset
	if err := t.stage(StageStaging, JobEventStage, func() (err error) {
		datasets, err = t.stager.Stage(ctx, jobSpec.DatasetURLs)
		return err
	}); err != nil {
		return err
	}

	var splits *dataset.Splits
	if err := t.stage(StageLoading, JobEventLoad, func() (err error) {
		splits, err = t.loader.Load(datasets)
		return err
	}); err != nil {
		return err
	}

	var result *training.Result
	if err := t.stage(StageTraining, JobEventTrain, func() error {
		step := t.step
		if step == nil {
			var err error
			if step, err = training.NewStep(&t.config.Training, jobSpec.RoundID, jobSpec.Task); err != nil {
				return mperrors.Wrap(mperrors.CodeConfiguration, err, "create training step")
			}
		}

		var err error
		result, err = training.New(step, t.tracker).Run(ctx, splits, jobSpec.Hyperparams)
		return err
	}); err != nil {
		return err
	}
	outcome.Metrics = result.Best

	var bundle *artifact.Bundle
	if err := t.stage(StageArtifact, JobEventSave, func() (err error) {
		bundle, err = t.writer.Write(&artifact.Artifact{
			Task:        jobSpec.Task,
			RoundID:     jobSpec.RoundID,
			Hyperparams: jobSpec.Hyperparams,
			Metrics:     result.Best,
			Model:       result.Model,
			Format:      jobSpec.Format(),
		})
		return err
	}); err != nil {
		return err
	}

	artifacts := map[string]*publish.Receipt{}
	if err := t.stage(StagePublish, JobEventPublish, func() error {
		if receipt := t.publisher.Publish(ctx, bundle, jobSpec.HFRepoID); receipt != nil {
			artifacts[t.publisher.Registry()] = receipt
		}
		return nil
	}); err != nil {
		return err
	}
	outcome.Artifacts = artifacts

	log.Infof("training completed, %d files written to %s", len(bundle.Files), t.paths.ModelDir())
	return nil
}

// stage runs f and moves the job to the next state.
func (t *Trainer) stage(name, event string, f func() error) error {
	log := logger.WithStage(t.roundID, name)
	metrics.StageStartedCount.WithLabelValues(name).Inc()
	log.Info("stage started")

	if err := f(); err != nil {
		if mperrors.CheckError(err, mperrors.CodeUnknown) {
			err = mperrors.Wrap(stageCodes[name], err, name)
		}

		metrics.StageFailureCount.WithLabelValues(name, string(mperrors.CodeOf(err))).Inc()
		log.Errorf("stage failed: %v", err)
		return err
	}

	if err := t.fsm.Event(event); err != nil {
		return mperrors.Wrapf(mperrors.CodeUnknown, err, "job state %s", t.fsm.Current())
	}

	return nil
}

// finish closes the tracking run, writes the result record and pushes metrics.
func (t *Trainer) finish(ctx context.Context, outcome *report.Outcome, started bool) error {
	event := JobEventSucceed
	if !outcome.Success() {
		event = JobEventFail
	}

	if err := t.fsm.Event(event); err != nil {
		logger.Warnf("job state %s: %v", t.fsm.Current(), err)
	}

	if started {
		if err := t.tracker.Finish(ctx, outcome.Success()); err != nil {
			logger.Warnf("finish tracking run failed: %v", err)
		}
	}

	metrics.StageStartedCount.WithLabelValues(StageReport).Inc()
	err := t.reporter.Report(outcome)
	if err != nil {
		metrics.StageFailureCount.WithLabelValues(StageReport, string(mperrors.CodeOf(err))).Inc()
		logger.Errorf("write result record failed: %v", err)
	}

	var roundID string
	if outcome.Spec != nil {
		roundID = outcome.Spec.RoundID
	}

	if perr := t.pusher.Push(ctx, roundID); perr != nil {
		logger.Warnf("push metrics failed: %v", perr)
	}

	if outcome.Success() {
		logger.Infof("job succeeded, result written to %s", t.reporter.Path())
	} else {
		logger.Errorf("job failed: %v", outcome.Err)
	}

	return err
}

// trackingParams formats hyperparams as tracking params.
func trackingParams(hyperparams spec.Hyperparams) map[string]string {
	params := make(map[string]string, len(hyperparams))
	for k := range hyperparams {
		params[k] = hyperparams.String(k, "")
	}

	return params
}
