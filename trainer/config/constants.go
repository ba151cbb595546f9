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
	"time"
)

const (
	// DefaultConfigFilePath is the default path of trainer configuration file.
	DefaultConfigFilePath = "/etc/marketplace/trainer.yaml"

	// EnvPrefix is the prefix of trainer environment variables.
	EnvPrefix = "trainer"
)

const (
	// EnvTrainingSpec is the environment variable carrying the job spec.
	EnvTrainingSpec = "TRAINING_SPEC"

	// EnvHFToken is the environment variable carrying the model registry token.
	EnvHFToken = "HF_TOKEN"

	// EnvTrackingAPIKey is the environment variable carrying the experiment tracking key.
	EnvTrackingAPIKey = "WANDB_API_KEY"
)

const (
	// DefaultLogRotateMaxSize is the default maximum size in megabytes of log files before rotation.
	DefaultLogRotateMaxSize = 200

	// DefaultLogRotateMaxAge is the default number of days to retain old log files.
	DefaultLogRotateMaxAge = 7

	// DefaultLogRotateMaxBackups is the default number of old log files to keep.
	DefaultLogRotateMaxBackups = 10
)

const (
	// DefaultStagingTimeout is the default timeout of a single dataset download.
	DefaultStagingTimeout = 300 * time.Second

	// DefaultStagingRetryMaxAttempts is the default number of download attempts.
	DefaultStagingRetryMaxAttempts = 1

	// DefaultStagingRetryInitBackoff is the default initial backoff in seconds.
	DefaultStagingRetryInitBackoff = 0.5

	// DefaultStagingRetryMaxBackoff is the default maximum backoff in seconds.
	DefaultStagingRetryMaxBackoff = 10.0
)

const (
	// TrainingStepSimulated trains with the seeded simulator.
	TrainingStepSimulated = "simulated"

	// TrainingStepLinear trains a linear regression model.
	TrainingStepLinear = "linear"
)

const (
	// TrackingBackendMLflow sends metrics to a mlflow tracking server.
	TrackingBackendMLflow = "mlflow"

	// TrackingBackendDisabled drops metrics.
	TrackingBackendDisabled = "disabled"

	// DefaultTrackingTimeout is the default timeout of tracking requests.
	DefaultTrackingTimeout = 10 * time.Second

	// DefaultTrackingExperiment is the default experiment of tracking runs.
	DefaultTrackingExperiment = "marketplace-training"
)

const (
	// PublishRegistryHuggingFace publishes to the hugging face hub.
	PublishRegistryHuggingFace = "huggingface"

	// PublishRegistryS3 publishes to a s3 bucket.
	PublishRegistryS3 = "s3"

	// PublishRegistryOSS publishes to an oss bucket.
	PublishRegistryOSS = "oss"

	// PublishRegistryDisabled skips publishing.
	PublishRegistryDisabled = "disabled"

	// DefaultPublishEndpoint is the default hugging face hub endpoint.
	DefaultPublishEndpoint = "https://huggingface.co"

	// DefaultPublishTimeout is the default timeout of publish requests.
	DefaultPublishTimeout = 5 * time.Minute

	// DefaultPublishSignURLExpire is the default expire time of object storage urls.
	DefaultPublishSignURLExpire = 7 * 24 * time.Hour
)

const (
	// DefaultMetricsJobName is the default job name of pushed metrics.
	DefaultMetricsJobName = "marketplace_trainer"
)
