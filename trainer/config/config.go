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
	"errors"
	"strings"
	"time"

	"golang.org/x/exp/slices"
	"golang.org/x/time/rate"

	"github.com/neuronetiq/marketplace-trainer/cmd/dependency/base"
	"github.com/neuronetiq/marketplace-trainer/pkg/objectstorage"
)

type Config struct {
	// Base options.
	base.Options `yaml:",inline" mapstructure:",squash"`

	// Spec is the raw job spec, usually bound to TRAINING_SPEC.
	Spec string `yaml:"spec" mapstructure:"spec"`

	// SpecFile is the path of the job spec, it takes precedence over Spec.
	SpecFile string `yaml:"specFile" mapstructure:"specFile"`

	// Server configuration.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Staging configuration.
	Staging StagingConfig `yaml:"staging" mapstructure:"staging"`

	// Training configuration.
	Training TrainingConfig `yaml:"training" mapstructure:"training"`

	// Tracking configuration.
	Tracking TrackingConfig `yaml:"tracking" mapstructure:"tracking"`

	// Publish configuration.
	Publish PublishConfig `yaml:"publish" mapstructure:"publish"`

	// Metrics configuration.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

type ServerConfig struct {
	// WorkHome is the working directory of the job.
	WorkHome string `yaml:"workHome" mapstructure:"workHome"`

	// DataDir is the directory of staged datasets.
	DataDir string `yaml:"dataDir" mapstructure:"dataDir"`

	// ModelDir is the directory of model artifacts.
	ModelDir string `yaml:"modelDir" mapstructure:"modelDir"`

	// LogDir is the directory of log files.
	LogDir string `yaml:"logDir" mapstructure:"logDir"`

	// ResultFile is the path of the result record.
	ResultFile string `yaml:"resultFile" mapstructure:"resultFile"`

	// Maximum size in megabytes of log files before rotation (default: 200)
	LogMaxSize int `yaml:"logMaxSize" mapstructure:"logMaxSize"`

	// Maximum number of days to retain old log files (default: 7)
	LogMaxAge int `yaml:"logMaxAge" mapstructure:"logMaxAge"`

	// Maximum number of old log files to keep (default: 10)
	LogMaxBackups int `yaml:"logMaxBackups" mapstructure:"logMaxBackups"`
}

type StagingConfig struct {
	// Timeout is the timeout of a single download.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// RateLimit is the download rate limit in bytes per second, zero means unlimited.
	RateLimit rate.Limit `yaml:"rateLimit" mapstructure:"rateLimit"`

	// Retry configuration of the download transport.
	Retry RetryConfig `yaml:"retry" mapstructure:"retry"`
}

type RetryConfig struct {
	// MaxAttempts is the number of attempts of a request, 1 disables retrying.
	MaxAttempts int `yaml:"maxAttempts" mapstructure:"maxAttempts"`

	// InitBackoff is the initial backoff in seconds.
	InitBackoff float64 `yaml:"initBackoff" mapstructure:"initBackoff"`

	// MaxBackoff is the maximum backoff in seconds.
	MaxBackoff float64 `yaml:"maxBackoff" mapstructure:"maxBackoff"`
}

type TrainingConfig struct {
	// Step is the training step variant, simulated or linear.
	Step string `yaml:"step" mapstructure:"step"`

	// Seed of the simulated step, zero derives it from the round id.
	Seed int64 `yaml:"seed" mapstructure:"seed"`
}

type TrackingConfig struct {
	// Backend is the tracking backend, mlflow or disabled.
	Backend string `yaml:"backend" mapstructure:"backend"`

	// Endpoint is the address of the tracking server.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`

	// APIKey is the credential of the tracking server, usually bound to WANDB_API_KEY.
	APIKey string `yaml:"apiKey" mapstructure:"apiKey"`

	// Experiment is used when the job spec names no project.
	Experiment string `yaml:"experiment" mapstructure:"experiment"`

	// Timeout is the timeout of a single tracking request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type PublishConfig struct {
	// Registry is the model registry, huggingface, s3, oss or disabled.
	Registry string `yaml:"registry" mapstructure:"registry"`

	// Token is the credential of the hub, usually bound to HF_TOKEN.
	Token string `yaml:"token" mapstructure:"token"`

	// Endpoint is the address of the hub.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`

	// Private creates private hub repositories.
	Private bool `yaml:"private" mapstructure:"private"`

	// Timeout is the timeout of the whole publish.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// ObjectStorage configuration used by the s3 and oss registries.
	ObjectStorage ObjectStorageConfig `yaml:"objectStorage" mapstructure:"objectStorage"`
}

type ObjectStorageConfig struct {
	// Region is storage region.
	Region string `yaml:"region" mapstructure:"region"`

	// Endpoint is datacenter endpoint.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`

	// AccessKey is access key ID.
	AccessKey string `yaml:"accessKey" mapstructure:"accessKey"`

	// SecretKey is access key secret.
	SecretKey string `yaml:"secretKey" mapstructure:"secretKey"`

	// S3ForcePathStyle sets force path style for s3.
	S3ForcePathStyle bool `yaml:"s3ForcePathStyle" mapstructure:"s3ForcePathStyle"`

	// SignURLExpire is the expire time of the published url.
	SignURLExpire time.Duration `yaml:"signURLExpire" mapstructure:"signURLExpire"`
}

type MetricsConfig struct {
	// Enable pushing metrics.
	Enable bool `yaml:"enable" mapstructure:"enable"`

	// PushGateway is the address of the prometheus pushgateway.
	PushGateway string `yaml:"pushGateway" mapstructure:"pushGateway"`

	// JobName is the job label of pushed metrics.
	JobName string `yaml:"jobName" mapstructure:"jobName"`
}

// New default configuration.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			LogMaxSize:    DefaultLogRotateMaxSize,
			LogMaxAge:     DefaultLogRotateMaxAge,
			LogMaxBackups: DefaultLogRotateMaxBackups,
		},
		Staging: StagingConfig{
			Timeout: DefaultStagingTimeout,
			Retry: RetryConfig{
				MaxAttempts: DefaultStagingRetryMaxAttempts,
				InitBackoff: DefaultStagingRetryInitBackoff,
				MaxBackoff:  DefaultStagingRetryMaxBackoff,
			},
		},
		Training: TrainingConfig{
			Step: TrainingStepSimulated,
		},
		Tracking: TrackingConfig{
			Backend:    TrackingBackendMLflow,
			Experiment: DefaultTrackingExperiment,
			Timeout:    DefaultTrackingTimeout,
		},
		Publish: PublishConfig{
			Registry: PublishRegistryHuggingFace,
			Endpoint: DefaultPublishEndpoint,
			Timeout:  DefaultPublishTimeout,
			ObjectStorage: ObjectStorageConfig{
				S3ForcePathStyle: objectstorage.DefaultS3ForcePathStyle,
				SignURLExpire:    DefaultPublishSignURLExpire,
			},
		},
		Metrics: MetricsConfig{
			Enable:  false,
			JobName: DefaultMetricsJobName,
		},
	}
}

// Validate config parameters.
func (cfg *Config) Validate() error {
	if cfg.Staging.Timeout <= 0 {
		return errors.New("staging requires parameter timeout")
	}

	if cfg.Staging.RateLimit < 0 {
		return errors.New("staging requires parameter rateLimit to be non-negative")
	}

	if cfg.Staging.Retry.MaxAttempts < 1 {
		return errors.New("retry requires parameter maxAttempts")
	}

	if cfg.Staging.Retry.MaxAttempts > 1 && cfg.Staging.Retry.MaxBackoff < cfg.Staging.Retry.InitBackoff {
		return errors.New("retry requires parameter maxBackoff to be greater than initBackoff")
	}

	if !slices.Contains([]string{TrainingStepSimulated, TrainingStepLinear}, cfg.Training.Step) {
		return errors.New("training requires parameter step")
	}

	if !slices.Contains([]string{TrackingBackendMLflow, TrackingBackendDisabled}, cfg.Tracking.Backend) {
		return errors.New("tracking requires parameter backend")
	}

	if cfg.Tracking.Backend == TrackingBackendMLflow && cfg.Tracking.Timeout <= 0 {
		return errors.New("tracking requires parameter timeout")
	}

	if !slices.Contains([]string{PublishRegistryHuggingFace, PublishRegistryS3, PublishRegistryOSS, PublishRegistryDisabled}, cfg.Publish.Registry) {
		return errors.New("publish requires parameter registry")
	}

	if cfg.Publish.Registry != PublishRegistryDisabled && cfg.Publish.Timeout <= 0 {
		return errors.New("publish requires parameter timeout")
	}

	if cfg.Publish.Registry == PublishRegistryHuggingFace && cfg.Publish.Endpoint == "" {
		return errors.New("publish requires parameter endpoint")
	}

	if cfg.Publish.Registry == PublishRegistryS3 || cfg.Publish.Registry == PublishRegistryOSS {
		if cfg.Publish.ObjectStorage.Endpoint == "" {
			return errors.New("objectStorage requires parameter endpoint")
		}

		if cfg.Publish.ObjectStorage.SignURLExpire <= 0 {
			return errors.New("objectStorage requires parameter signURLExpire")
		}
	}

	if cfg.Metrics.Enable {
		if cfg.Metrics.PushGateway == "" {
			return errors.New("metrics requires parameter pushGateway")
		}

		if cfg.Metrics.JobName == "" {
			return errors.New("metrics requires parameter jobName")
		}
	}

	return nil
}

// Convert normalizes config parameters before validation.
func (cfg *Config) Convert() error {
	cfg.Training.Step = strings.ToLower(strings.TrimSpace(cfg.Training.Step))
	cfg.Tracking.Backend = strings.ToLower(strings.TrimSpace(cfg.Tracking.Backend))
	cfg.Publish.Registry = strings.ToLower(strings.TrimSpace(cfg.Publish.Registry))
	cfg.Publish.Endpoint = strings.TrimSuffix(cfg.Publish.Endpoint, "/")
	cfg.Tracking.Endpoint = strings.TrimSuffix(cfg.Tracking.Endpoint, "/")

	if cfg.Training.Step == "" {
		cfg.Training.Step = TrainingStepSimulated
	}

	if cfg.Tracking.Backend == "" {
		cfg.Tracking.Backend = TrackingBackendDisabled
	}

	if cfg.Publish.Registry == "" {
		cfg.Publish.Registry = PublishRegistryDisabled
	}

	return nil
}
