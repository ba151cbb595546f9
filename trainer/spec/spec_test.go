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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neuronetiq/marketplace-trainer/internal/mperrors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		expect func(t *testing.T, s *JobSpec, err error)
	}{
		{
			name: "minimal spec",
			data: `{"round_id":"r1","task":"fx-signal","dataset_urls":["https://x/train.csv"]}`,
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Equal("r1", s.RoundID)
				assert.Equal("fx-signal", s.Task)
				assert.Equal([]string{"https://x/train.csv"}, s.DatasetURLs)
				assert.Equal(OutputFormatHuggingFace, s.Format())
				assert.False(s.TrackingEnabled())
				assert.Equal("default", s.TrackingProject("default"))
				assert.Empty(s.HFRepoID)
			},
		},
		{
			name: "unknown fields are ignored",
			data: `{"round_id":"r1","task":"signal","dataset_urls":["http://x/a.csv"],"foo":"bar"}`,
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "empty dataset_urls",
			data: `{"round_id":"r1","task":"fx-signal","dataset_urls":[]}`,
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert := assert.New(t)
				assert.Nil(s)
				assert.True(mperrors.CheckError(err, mperrors.CodeConfiguration))
				assert.Contains(err.Error(), "dataset_urls must not be empty")
			},
		},
		{
			name: "missing dataset_urls",
			data: `{"round_id":"r1","task":"fx-signal"}`,
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert := assert.New(t)
				assert.True(mperrors.CheckError(err, mperrors.CodeConfiguration))
				assert.Contains(err.Error(), "dataset_urls must not be empty")
			},
		},
		{
			name: "missing round_id and task",
			data: `{"dataset_urls":["https://x/train.csv"]}`,
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert := assert.New(t)
				assert.True(mperrors.CheckError(err, mperrors.CodeConfiguration))
				assert.Contains(err.Error(), "round_id is required")
				assert.Contains(err.Error(), "task is required")
			},
		},
		{
			name: "relative dataset url",
			data: `{"round_id":"r1","task":"t","dataset_urls":["https://x/train.csv","/local/val.csv"]}`,
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert := assert.New(t)
				assert.True(mperrors.CheckError(err, mperrors.CodeConfiguration))
				assert.Contains(err.Error(), `dataset_urls[1] must be an absolute http(s) url, got "/local/val.csv"`)
			},
		},
		{
			name: "unsupported dataset url scheme",
			data: `{"round_id":"r1","task":"t","dataset_urls":["ftp://x/train.csv"]}`,
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert := assert.New(t)
				assert.Contains(err.Error(), "dataset_urls[0] must be an absolute http(s) url")
			},
		},
		{
			name: "invalid output format",
			data: `{"round_id":"r1","task":"t","dataset_urls":["https://x/a.csv"],"output_format":"zip"}`,
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert := assert.New(t)
				assert.Contains(err.Error(), "output_format must be one of [huggingface tarball]")
			},
		},
		{
			name: "negative budget",
			data: `{"round_id":"r1","task":"t","dataset_urls":["https://x/a.csv"],"budget":{"max_hours":-1}}`,
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert := assert.New(t)
				assert.Contains(err.Error(), "budget.max_hours must be greater than or equal to 0")
			},
		},
		{
			name: "unknown hyperparams hold any value",
			data: `{"round_id":"r1","task":"t","dataset_urls":["https://x/a.csv"],"hyperparams":{"epochs":3,"layers":[64,32],"dropout":null,"optimizer":{"name":"adam"}}}`,
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Equal(3, s.Hyperparams.EpochCount())
				assert.Equal([]any{float64(64), float64(32)}, s.Hyperparams["layers"])
				assert.Nil(s.Hyperparams["dropout"])
				assert.Contains(s.Hyperparams, "dropout")
				assert.Equal(map[string]any{"name": "adam"}, s.Hyperparams["optimizer"])
			},
		},
		{
			name: "null known hyperparam falls back to the default",
			data: `{"round_id":"r1","task":"t","dataset_urls":["https://x/a.csv"],"hyperparams":{"learning_rate":null}}`,
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Equal(DefaultLearningRate, s.Hyperparams.LearningRate())
			},
		},
		{
			name: "non numeric learning rate",
			data: `{"round_id":"r1","task":"t","dataset_urls":["https://x/a.csv"],"hyperparams":{"lr":[0.1],"batch_size":"big"}}`,
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert := assert.New(t)
				assert.True(mperrors.CheckError(err, mperrors.CodeConfiguration))
				assert.Contains(err.Error(), "hyperparams.lr must be a number")
				assert.Contains(err.Error(), "hyperparams.batch_size must be a number")
			},
		},
		{
			name: "non string target column",
			data: `{"round_id":"r1","task":"t","dataset_urls":["https://x/a.csv"],"hyperparams":{"target_column":1}}`,
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert.Contains(t, err.Error(), "hyperparams.target_column must be a string")
			},
		},
		{
			name: "zero epochs",
			data: `{"round_id":"r1","task":"t","dataset_urls":["https://x/a.csv"],"hyperparams":{"epochs":0}}`,
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert := assert.New(t)
				assert.Contains(err.Error(), "hyperparams.epoch_count must be a positive integer")
			},
		},
		{
			name: "trailing content",
			data: `{"round_id":"r1","task":"t","dataset_urls":["https://x/a.csv"]} {"round_id":"r2"}`,
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert := assert.New(t)
				assert.Nil(s)
				assert.True(mperrors.CheckError(err, mperrors.CodeConfiguration))
				assert.Contains(err.Error(), "decode job spec")
			},
		},
		{
			name: "malformed json",
			data: `{"round_id":`,
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert := assert.New(t)
				assert.True(mperrors.CheckError(err, mperrors.CodeConfiguration))
				assert.Contains(err.Error(), "decode job spec")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Parse([]byte(tc.data))
			tc.expect(t, s, err)
		})
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		source Source
		expect func(t *testing.T, s *JobSpec, err error)
	}{
		{
			name:   "load from file",
			source: Source{File: filepath.Join("testdata", "spec.json"), Raw: "ignored"},
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Equal("r1", s.RoundID)
				assert.Equal("org/fx-signal", s.HFRepoID)
				assert.Equal(OutputFormatTarball, s.Format())
				assert.Equal("fx", s.TrackingProject("default"))
				assert.Equal(3, s.Hyperparams.EpochCount())
				assert.Equal(0.01, s.Hyperparams.LearningRate())
				assert.Equal(64, s.Hyperparams.BatchSize())
				assert.Equal(2.0, s.Budget.MaxHours)
				assert.Equal("ghcr.io/neuronetiq/trainer:latest", s.BaseImage)
			},
		},
		{
			name:   "load from raw",
			source: Source{Raw: `{"round_id":"r2","task":"t","dataset_urls":["https://x/a.csv"]}`},
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Equal("r2", s.RoundID)
			},
		},
		{
			name:   "no source",
			source: Source{},
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert := assert.New(t)
				assert.True(mperrors.CheckError(err, mperrors.CodeConfiguration))
				assert.Contains(err.Error(), "TRAINING_SPEC environment variable not found")
			},
		},
		{
			name:   "spec file does not exist",
			source: Source{File: filepath.Join("testdata", "missing.json")},
			expect: func(t *testing.T, s *JobSpec, err error) {
				assert := assert.New(t)
				assert.True(mperrors.CheckError(err, mperrors.CodeConfiguration))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Load(tc.source)
			tc.expect(t, s, err)
		})
	}
}

func TestJobSpec_Tracking(t *testing.T) {
	assert := assert.New(t)
	s := &JobSpec{Wandb: &Wandb{Enabled: false, Project: "fx"}}
	assert.False(s.TrackingEnabled())
	assert.Equal("fx", s.TrackingProject("default"))

	assert.False((&JobSpec{}).TrackingEnabled())
	assert.False((&JobSpec{Wandb: &Wandb{Project: "fx"}}).TrackingEnabled())
	assert.True((&JobSpec{Wandb: &Wandb{Enabled: true}}).TrackingEnabled())
}
