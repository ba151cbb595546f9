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

package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/neuronetiq/marketplace-trainer/pkg/hostutil"
	"github.com/neuronetiq/marketplace-trainer/trainer/config"
	"github.com/neuronetiq/marketplace-trainer/version"
)

const (
	// Namespace is the namespace of all metrics.
	Namespace = "marketplace"

	// Subsystem is the subsystem of trainer metrics.
	Subsystem = "trainer"
)

// Variables declared for metrics.
var (
	StageStartedCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "stage_started_total",
		Help:      "Counter of the number of the stage started.",
	}, []string{"stage"})

	StageFailureCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "stage_failure_total",
		Help:      "Counter of the number of failed stages.",
	}, []string{"stage", "code"})

	DatasetDownloadBytesCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "dataset_download_bytes_total",
		Help:      "Counter of the number of bytes of staged datasets.",
	})

	DatasetDownloadCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "dataset_download_total",
		Help:      "Counter of the number of staged datasets.",
	}, []string{"role"})

	EpochCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "epoch_total",
		Help:      "Counter of the number of the training epochs.",
	}, []string{"step"})

	TrackingFailureCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "tracking_failure_total",
		Help:      "Counter of the number of failed tracking requests.",
	})

	PublishCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "publish_total",
		Help:      "Counter of the number of the publish trained model.",
	}, []string{"registry"})

	PublishFailureCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "publish_failure_total",
		Help:      "Counter of the number of failed of the publish trained model.",
	}, []string{"registry"})

	ResultCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "result_total",
		Help:      "Counter of the number of written result records.",
	}, []string{"success"})

	BestValAccuracyGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "best_val_accuracy",
		Help:      "Validation accuracy of the best epoch.",
	})

	VersionGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "version",
		Help:      "Version info of the service.",
	}, []string{"major", "minor", "git_version", "git_commit", "platform", "build_time", "go_version", "go_tags", "go_gcflags"})
)

// Pusher pushes the collected metrics once, the job is too short lived to be scraped.
type Pusher interface {
	Push(ctx context.Context, roundID string) error
}

type pusher struct {
	config *config.MetricsConfig
}

// New returns a Pusher, pushing is a no-op when metrics are disabled.
func New(cfg *config.MetricsConfig) Pusher {
	VersionGauge.WithLabelValues(version.Major, version.Minor, version.GitVersion, version.GitCommit, version.Platform, version.BuildTime, version.GoVersion, version.Gotags, version.Gogcflags).Set(1)
	return &pusher{config: cfg}
}

// Push sends every registered metric to the pushgateway grouped by host and round id.
func (p *pusher) Push(ctx context.Context, roundID string) error {
	if !p.config.Enable {
		return nil
	}

	pusher := push.New(p.config.PushGateway, p.config.JobName).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("instance", hostutil.FQDNHostname)
	if roundID != "" {
		pusher = pusher.Grouping("round_id", roundID)
	}

	return pusher.PushContext(ctx)
}
