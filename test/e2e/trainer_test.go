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

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint
	. "github.com/onsi/gomega"    //nolint

	"github.com/neuronetiq/marketplace-trainer/pkg/mppath"
	"github.com/neuronetiq/marketplace-trainer/trainer"
	"github.com/neuronetiq/marketplace-trainer/trainer/artifact"
	"github.com/neuronetiq/marketplace-trainer/trainer/config"
	"github.com/neuronetiq/marketplace-trainer/trainer/spec"
)

func newConfig() *config.Config {
	cfg := config.New()
	cfg.Tracking.Backend = config.TrackingBackendDisabled
	cfg.Publish.Registry = config.PublishRegistryDisabled
	cfg.Staging.Retry.MaxAttempts = 1
	return cfg
}

func runJob(raw string) (mppath.Mppath, map[string]any, error) {
	workHome, err := os.MkdirTemp("", "trainer-e2e-")
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(os.RemoveAll, workHome)

	paths, err := mppath.New(mppath.WithWorkHome(workHome))
	Expect(err).NotTo(HaveOccurred())

	runErr := trainer.New(newConfig(), paths).Run(context.Background(), spec.Source{Raw: raw})

	data, err := os.ReadFile(paths.ResultPath())
	Expect(err).NotTo(HaveOccurred())

	var record map[string]any
	Expect(json.Unmarshal(data, &record)).To(Succeed())
	return paths, record, runErr
}

var _ = Describe("Training job", func() {
	Context("with train and validation datasets", func() {
		It("should write artifacts and a success record", func() {
			raw := fmt.Sprintf(`{"round_id":"r7","task":"fx-signal","dataset_urls":["%s/fx/train.csv","%s/fx/val.csv"],"hyperparams":{"epochs":4,"optimizer":{"name":"adam"}}}`,
				datasetServer.URL, datasetServer.URL)

			paths, record, err := runJob(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(record["success"]).To(BeTrue())
			Expect(record["round_id"]).To(Equal("r7"))
			Expect(record["task"]).To(Equal("fx-signal"))
			Expect(record["artifacts"]).To(BeEmpty())
			Expect(record["metrics"]).To(HaveKey("val_accuracy"))
			Expect(record["metrics"]).To(HaveKeyWithValue("epoch", BeNumerically(">=", 1)))

			Expect(filepath.Join(paths.DataDir(), "train.csv")).To(BeARegularFile())
			Expect(filepath.Join(paths.DataDir(), "validation.csv")).To(BeARegularFile())
			Expect(filepath.Join(paths.ModelDir(), artifact.ConfigFileName)).To(BeARegularFile())
			Expect(filepath.Join(paths.ModelDir(), artifact.ReadmeFileName)).To(BeARegularFile())
		})

		It("should report the same metrics for the same round", func() {
			raw := fmt.Sprintf(`{"round_id":"r8","task":"fx-signal","dataset_urls":["%s/fx/train.csv","%s/fx/val.csv"],"hyperparams":{"epochs":3}}`,
				datasetServer.URL, datasetServer.URL)

			_, first, err := runJob(raw)
			Expect(err).NotTo(HaveOccurred())
			_, second, err := runJob(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(second["metrics"]).To(Equal(first["metrics"]))
		})
	})

	Context("without a train dataset", func() {
		It("should write a failure record with a data error", func() {
			raw := fmt.Sprintf(`{"round_id":"r9","task":"fx-signal","dataset_urls":["%s/fx/features.csv","%s/fx/val.csv"]}`,
				datasetServer.URL, datasetServer.URL)

			paths, record, err := runJob(raw)
			Expect(err).To(MatchError(ContainSubstring("DataError")))
			Expect(record["success"]).To(BeFalse())
			Expect(record["error"]).To(ContainSubstring("no training data found"))
			Expect(record["traceback"]).NotTo(BeEmpty())
			Expect(filepath.Join(paths.ModelDir(), artifact.ConfigFileName)).NotTo(BeAnExistingFile())
		})
	})

	Context("with an unreachable dataset", func() {
		It("should write a failure record with a fetch error", func() {
			_, record, err := runJob(`{"round_id":"r10","task":"fx-signal","dataset_urls":["http://127.0.0.1:1/train.csv"]}`)
			Expect(err).To(MatchError(ContainSubstring("FetchError")))
			Expect(record["success"]).To(BeFalse())
			Expect(record).To(HaveKey("completed_at"))
		})
	})
})
