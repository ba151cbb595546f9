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

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"

	"github.com/neuronetiq/marketplace-trainer/cmd/dependency/base"
)

var (
	mockObjectStorageConfig = ObjectStorageConfig{
		Region:        "us-east-1",
		Endpoint:      "http://127.0.0.1:9000",
		SignURLExpire: time.Hour,
	}

	mockMetricsConfig = MetricsConfig{
		Enable:      true,
		PushGateway: "http://127.0.0.1:9091",
		JobName:     DefaultMetricsJobName,
	}
)

func TestConfig_Load(t *testing.T) {
	config := &Config{
		Options: base.Options{
			Console:   true,
			Verbose:   true,
			PProfPort: 8080,
		},
		SpecFile: "/etc/marketplace/spec.json",
		Server: ServerConfig{
			WorkHome:      "/var/lib/trainer",
			DataDir:       "/var/lib/trainer/data",
			ModelDir:      "/var/lib/trainer/model",
			LogDir:        "/var/log/trainer",
			ResultFile:    "/var/lib/trainer/training_result.json",
			LogMaxSize:    512,
			LogMaxAge:     5,
			LogMaxBackups: 3,
		},
		Staging: StagingConfig{
			Timeout:   time.Minute,
			RateLimit: 1048576,
			Retry: RetryConfig{
				MaxAttempts: 3,
				InitBackoff: 1,
				MaxBackoff:  5,
			},
		},
		Training: TrainingConfig{
			Step: TrainingStepLinear,
			Seed: 42,
		},
		Tracking: TrackingConfig{
			Backend:    TrackingBackendMLflow,
			Endpoint:   "http://127.0.0.1:5000",
			APIKey:     "foo",
			Experiment: "bar",
			Timeout:    5 * time.Second,
		},
		Publish: PublishConfig{
			Registry: PublishRegistryS3,
			Token:    "baz",
			Endpoint: "https://huggingface.co",
			Private:  true,
			Timeout:  2 * time.Minute,
			ObjectStorage: ObjectStorageConfig{
				Region:           "us-east-1",
				Endpoint:         "http://127.0.0.1:9000",
				AccessKey:        "ak",
				SecretKey:        "sk",
				S3ForcePathStyle: true,
				SignURLExpire:    time.Hour,
			},
		},
		Metrics: MetricsConfig{
			Enable:      true,
			PushGateway: "http://127.0.0.1:9091",
			JobName:     "trainer",
		},
	}

	trainerConfigYAML := &Config{}
	contentYAML, _ := os.ReadFile("./testdata/trainer.yaml")
	if err := yaml.Unmarshal(contentYAML, &trainerConfigYAML); err != nil {
		t.Fatal(err)
	}
	assert := assert.New(t)
	assert.EqualValues(config, trainerConfigYAML)
	assert.NoError(trainerConfigYAML.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		mock   func(cfg *Config)
		expect func(t *testing.T, err error)
	}{
		{
			name:   "valid config",
			config: New(),
			mock:   func(cfg *Config) {},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.NoError(err)
			},
		},
		{
			name:   "staging requires parameter timeout",
			config: New(),
			mock: func(cfg *Config) {
				cfg.Staging.Timeout = 0
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.EqualError(err, "staging requires parameter timeout")
			},
		},
		{
			name:   "staging requires parameter rateLimit to be non-negative",
			config: New(),
			mock: func(cfg *Config) {
				cfg.Staging.RateLimit = -1
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.EqualError(err, "staging requires parameter rateLimit to be non-negative")
			},
		},
		{
			name:   "retry requires parameter maxAttempts",
			config: New(),
			mock: func(cfg *Config) {
				cfg.Staging.Retry.MaxAttempts = 0
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.EqualError(err, "retry requires parameter maxAttempts")
			},
		},
		{
			name:   "retry requires parameter maxBackoff to be greater than initBackoff",
			config: New(),
			mock: func(cfg *Config) {
				cfg.Staging.Retry.MaxAttempts = 3
				cfg.Staging.Retry.MaxBackoff = 0.1
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.EqualError(err, "retry requires parameter maxBackoff to be greater than initBackoff")
			},
		},
		{
			name:   "training requires parameter step",
			config: New(),
			mock: func(cfg *Config) {
				cfg.Training.Step = "foo"
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.EqualError(err, "training requires parameter step")
			},
		},
		{
			name:   "tracking requires parameter backend",
			config: New(),
			mock: func(cfg *Config) {
				cfg.Tracking.Backend = "wandb"
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.EqualError(err, "tracking requires parameter backend")
			},
		},
		{
			name:   "tracking requires parameter timeout",
			config: New(),
			mock: func(cfg *Config) {
				cfg.Tracking.Timeout = 0
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.EqualError(err, "tracking requires parameter timeout")
			},
		},
		{
			name:   "publish requires parameter registry",
			config: New(),
			mock: func(cfg *Config) {
				cfg.Publish.Registry = "gcs"
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.EqualError(err, "publish requires parameter registry")
			},
		},
		{
			name:   "publish requires parameter timeout",
			config: New(),
			mock: func(cfg *Config) {
				cfg.Publish.Timeout = 0
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.EqualError(err, "publish requires parameter timeout")
			},
		},
		{
			name:   "publish requires parameter endpoint",
			config: New(),
			mock: func(cfg *Config) {
				cfg.Publish.Endpoint = ""
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.EqualError(err, "publish requires parameter endpoint")
			},
		},
		{
			name:   "objectStorage requires parameter endpoint",
			config: New(),
			mock: func(cfg *Config) {
				cfg.Publish.Registry = PublishRegistryOSS
				cfg.Publish.ObjectStorage = mockObjectStorageConfig
				cfg.Publish.ObjectStorage.Endpoint = ""
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.EqualError(err, "objectStorage requires parameter endpoint")
			},
		},
		{
			name:   "objectStorage requires parameter signURLExpire",
			config: New(),
			mock: func(cfg *Config) {
				cfg.Publish.Registry = PublishRegistryS3
				cfg.Publish.ObjectStorage = mockObjectStorageConfig
				cfg.Publish.ObjectStorage.SignURLExpire = 0
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.EqualError(err, "objectStorage requires parameter signURLExpire")
			},
		},
		{
			name:   "metrics requires parameter pushGateway",
			config: New(),
			mock: func(cfg *Config) {
				cfg.Metrics = mockMetricsConfig
				cfg.Metrics.PushGateway = ""
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.EqualError(err, "metrics requires parameter pushGateway")
			},
		},
		{
			name:   "metrics requires parameter jobName",
			config: New(),
			mock: func(cfg *Config) {
				cfg.Metrics = mockMetricsConfig
				cfg.Metrics.JobName = ""
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.EqualError(err, "metrics requires parameter jobName")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.mock(tc.config)
			tc.expect(t, tc.config.Validate())
		})
	}
}

func TestConfig_Convert(t *testing.T) {
	tests := []struct {
		name   string
		mock   func(cfg *Config)
		expect func(t *testing.T, cfg *Config)
	}{
		{
			name: "normalize names",
			mock: func(cfg *Config) {
				cfg.Training.Step = " Linear "
				cfg.Tracking.Backend = "MLflow"
				cfg.Publish.Registry = "S3"
				cfg.Publish.Endpoint = "https://huggingface.co/"
				cfg.Tracking.Endpoint = "http://127.0.0.1:5000/"
			},
			expect: func(t *testing.T, cfg *Config) {
				assert := assert.New(t)
				assert.Equal(TrainingStepLinear, cfg.Training.Step)
				assert.Equal(TrackingBackendMLflow, cfg.Tracking.Backend)
				assert.Equal(PublishRegistryS3, cfg.Publish.Registry)
				assert.Equal("https://huggingface.co", cfg.Publish.Endpoint)
				assert.Equal("http://127.0.0.1:5000", cfg.Tracking.Endpoint)
			},
		},
		{
			name: "empty names fall back",
			mock: func(cfg *Config) {
				cfg.Training.Step = ""
				cfg.Tracking.Backend = ""
				cfg.Publish.Registry = ""
			},
			expect: func(t *testing.T, cfg *Config) {
				assert := assert.New(t)
				assert.Equal(TrainingStepSimulated, cfg.Training.Step)
				assert.Equal(TrackingBackendDisabled, cfg.Tracking.Backend)
				assert.Equal(PublishRegistryDisabled, cfg.Publish.Registry)
				assert.NoError(cfg.Validate())
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := New()
			tc.mock(cfg)
			assert.NoError(t, cfg.Convert())
			tc.expect(t, cfg)
		})
	}
}
