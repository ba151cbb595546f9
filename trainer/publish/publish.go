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

//go:generate mockgen -destination mocks/publish_mock.go -source publish.go -package mocks

package publish

import (
	"context"
	"net/http"
	"time"

	"github.com/neuronetiq/marketplace-trainer/internal/mperrors"
	logger "github.com/neuronetiq/marketplace-trainer/internal/mplog"
	"github.com/neuronetiq/marketplace-trainer/pkg/objectstorage"
	"github.com/neuronetiq/marketplace-trainer/trainer/artifact"
	"github.com/neuronetiq/marketplace-trainer/trainer/config"
	"github.com/neuronetiq/marketplace-trainer/trainer/metrics"
)

// Receipt is the record of a published bundle.
type Receipt struct {
	// Repo is the registry repository id.
	Repo string `json:"repo"`

	// Commit is the revision created by the upload.
	Commit string `json:"commit"`

	// URL is the public address of the published model.
	URL string `json:"url"`
}

// Registry uploads bundles to an external model registry.
type Registry interface {
	// Name is the registry name used as key of the result artifacts.
	Name() string

	// Upload pushes every file of the bundle to repoID.
	Upload(ctx context.Context, bundle *artifact.Bundle, repoID string) (*Receipt, error)
}

// Publisher publishes bundles, it never fails the job.
type Publisher interface {
	// Registry returns the registry name, empty when publishing is disabled.
	Registry() string

	// Publish returns nil when publishing is not configured or failed.
	Publish(ctx context.Context, bundle *artifact.Bundle, repoID string) *Receipt
}

type publisher struct {
	registry Registry
	timeout  time.Duration
}

// Option is a functional option for configuring the registries.
type Option func(o *options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient sets the base http client of the registries.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// New returns the publisher of the configured registry. A registry
// without credentials degrades to a publisher that skips every bundle.
func New(cfg *config.PublishConfig, opts ...Option) Publisher {
	o := &options{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(o)
	}

	switch cfg.Registry {
	case config.PublishRegistryHuggingFace:
		if cfg.Token == "" {
			logger.Warn("HF_TOKEN not provided, skip publishing")
			return NewDisabled()
		}

		return NewPublisher(NewHuggingFace(cfg.Endpoint, cfg.Token, cfg.Private, o.httpClient), cfg.Timeout)
	case config.PublishRegistryS3, config.PublishRegistryOSS:
		if cfg.ObjectStorage.AccessKey == "" || cfg.ObjectStorage.SecretKey == "" {
			logger.Warnf("%s credentials not provided, skip publishing", cfg.Registry)
			return NewDisabled()
		}

		client, err := objectstorage.New(cfg.Registry, cfg.ObjectStorage.Region, cfg.ObjectStorage.Endpoint,
			cfg.ObjectStorage.AccessKey, cfg.ObjectStorage.SecretKey,
			objectstorage.WithS3ForcePathStyle(cfg.ObjectStorage.S3ForcePathStyle))
		if err != nil {
			logger.Errorf("create object storage failed, skip publishing: %v", err)
			return NewDisabled()
		}

		return NewPublisher(NewObjectStorage(cfg.Registry, client, cfg.ObjectStorage.SignURLExpire), cfg.Timeout)
	}

	return NewDisabled()
}

// NewPublisher returns a Publisher of registry, each publish is bounded by timeout.
func NewPublisher(registry Registry, timeout time.Duration) Publisher {
	return &publisher{
		registry: registry,
		timeout:  timeout,
	}
}

func (p *publisher) Registry() string {
	return p.registry.Name()
}

// Publish uploads the bundle, errors are logged as PublishError and swallowed.
func (p *publisher) Publish(ctx context.Context, bundle *artifact.Bundle, repoID string) *Receipt {
	if repoID == "" {
		logger.Warn("registry repo id not provided, skip publishing")
		return nil
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	logger.Infof("publishing %s to %s %s", bundle.Dir, p.registry.Name(), repoID)
	receipt, err := p.registry.Upload(ctx, bundle, repoID)
	if err != nil {
		metrics.PublishFailureCount.WithLabelValues(p.registry.Name()).Inc()
		logger.Errorf("publish failed: %v", mperrors.Wrapf(mperrors.CodePublish, err, "upload to %s", repoID))
		return nil
	}

	metrics.PublishCount.WithLabelValues(p.registry.Name()).Inc()
	logger.Infof("published %s at commit %s: %s", receipt.Repo, receipt.Commit, receipt.URL)
	return receipt
}

type disabled struct{}

// NewDisabled returns a Publisher skipping every bundle.
func NewDisabled() Publisher {
	return &disabled{}
}

func (d *disabled) Registry() string {
	return ""
}

func (d *disabled) Publish(context.Context, *artifact.Bundle, string) *Receipt {
	return nil
}
