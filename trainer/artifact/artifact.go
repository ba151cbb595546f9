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

//go:generate mockgen -destination mocks/artifact_mock.go -source artifact.go -package mocks

package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/neuronetiq/marketplace-trainer/internal/mperrors"
	logger "github.com/neuronetiq/marketplace-trainer/internal/mplog"
	"github.com/neuronetiq/marketplace-trainer/pkg/digest"
	"github.com/neuronetiq/marketplace-trainer/trainer/spec"
	"github.com/neuronetiq/marketplace-trainer/trainer/training"
)

const (
	// ConfigFileName is the name of the model config record.
	ConfigFileName = "config.json"

	// ReadmeFileName is the name of the generated summary.
	ReadmeFileName = "README.md"

	// TarballFileName is the name of the bundle of the tarball output format.
	TarballFileName = "model.tar.gz"

	// DefaultModelFileName is the payload name when the step exports no model.
	DefaultModelFileName = "model.bin"

	// ModelVersion is the schema version of the config record.
	ModelVersion = "1.0.0"
)

// artifactFileNames are the files owned by the writer, stale ones are removed on write.
var artifactFileNames = []string{
	ConfigFileName,
	ReadmeFileName,
	TarballFileName,
	DefaultModelFileName,
	training.SimulatedModelFileName,
	training.LinearModelFileName,
}

// Artifact is the trained model with its description.
type Artifact struct {
	Task        string
	RoundID     string
	Hyperparams spec.Hyperparams
	Metrics     training.Metrics
	Model       *training.Model
	Format      string
}

// Config is the model config record.
type Config struct {
	Task         string           `json:"task"`
	RoundID      string           `json:"round_id"`
	Hyperparams  spec.Hyperparams `json:"hyperparams"`
	Metrics      training.Metrics `json:"metrics"`
	ModelVersion string           `json:"model_version"`
	CreatedAt    string           `json:"created_at"`
	ModelDigest  string           `json:"model_digest"`
}

// Bundle is the written artifact.
type Bundle struct {
	// Dir is the model directory.
	Dir string

	// Files are the written file names relative to Dir, in upload order.
	Files []string

	// Digest identifies the content of all files.
	Digest digest.Digest

	// Tarball is the path of the bundle, empty unless the tarball format is requested.
	Tarball string
}

// Writer persists artifacts into the model directory.
type Writer interface {
	// Write replaces the artifact files of the model directory.
	Write(artifact *Artifact) (*Bundle, error)
}

type writer struct {
	dir string
	now func() time.Time
}

// Option is a functional option for configuring the writer.
type Option func(w *writer)

// WithNow sets the clock of created_at.
func WithNow(now func() time.Time) Option {
	return func(w *writer) {
		w.now = now
	}
}

// New returns a Writer of dir.
func New(dir string, options ...Option) Writer {
	w := &writer{dir: dir, now: time.Now}
	for _, opt := range options {
		opt(w)
	}

	return w
}

// Write replaces the artifact files of the model directory, nothing is merged.
func (w *writer) Write(artifact *Artifact) (*Bundle, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, mperrors.Wrapf(mperrors.CodeTraining, err, "create model directory %s", w.dir)
	}

	model := artifact.Model
	if model == nil {
		model = &training.Model{
			FileName: DefaultModelFileName,
			Data:     []byte(fmt.Sprintf("# task: %s\n# round: %s\n", artifact.Task, artifact.RoundID)),
		}
	}

	hyperparams := artifact.Hyperparams
	if hyperparams == nil {
		hyperparams = spec.Hyperparams{}
	}

	modelDigest := digest.FromBytes(model.Data)
	config, err := json.MarshalIndent(&Config{
		Task:         artifact.Task,
		RoundID:      artifact.RoundID,
		Hyperparams:  hyperparams,
		Metrics:      artifact.Metrics,
		ModelVersion: ModelVersion,
		CreatedAt:    w.now().UTC().Format(time.RFC3339Nano),
		ModelDigest:  modelDigest.String(),
	}, "", "  ")
	if err != nil {
		return nil, mperrors.Wrap(mperrors.CodeTraining, err, "encode model config")
	}

	files := []struct {
		name string
		data []byte
	}{
		{ConfigFileName, config},
		{model.FileName, model.Data},
		{ReadmeFileName, readme(artifact.Task, artifact.RoundID, artifact.Metrics, hyperparams)},
	}

	if err := w.removeStale(model.FileName); err != nil {
		return nil, err
	}

	bundle := &Bundle{Dir: w.dir}
	var digests []digest.Digest
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(w.dir, f.name), f.data, 0644); err != nil {
			return nil, mperrors.Wrapf(mperrors.CodeTraining, err, "write %s", f.name)
		}

		bundle.Files = append(bundle.Files, f.name)
		digests = append(digests, digest.FromBytes(f.data))
	}
	bundle.Digest = digest.Combine(digests...)

	if artifact.Format == spec.OutputFormatTarball {
		bundle.Tarball = filepath.Join(w.dir, TarballFileName)
		if err := Tarball(bundle.Tarball, w.dir, bundle.Files); err != nil {
			return nil, mperrors.Wrap(mperrors.CodeTraining, err, "write tarball")
		}
	}

	logger.Infof("model artifacts saved to %s, digest %s", w.dir, bundle.Digest)
	return bundle, nil
}

// removeStale deletes artifact files of a previous run that this write does not produce.
func (w *writer) removeStale(modelFileName string) error {
	for _, name := range artifactFileNames {
		if name == modelFileName || name == ConfigFileName || name == ReadmeFileName {
			continue
		}

		if err := os.Remove(filepath.Join(w.dir, name)); err != nil && !os.IsNotExist(err) {
			return mperrors.Wrapf(mperrors.CodeTraining, err, "remove %s", name)
		}
	}

	return nil
}

// readme renders the summary with sorted metric and hyperparam keys.
func readme(task, roundID string, metrics training.Metrics, hyperparams spec.Hyperparams) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s Model\n\n", cases.Title(language.Und).String(task))
	fmt.Fprintf(&buf, "Trained on round: %s\n\n", roundID)

	buf.WriteString("## Metrics\n\n")
	metricKeys := maps.Keys(metrics)
	slices.Sort(metricKeys)
	for _, k := range metricKeys {
		fmt.Fprintf(&buf, "- %s: %.4f\n", k, metrics[k])
	}

	buf.WriteString("\n## Hyperparameters\n\n")
	hyperparamKeys := maps.Keys(hyperparams)
	slices.Sort(hyperparamKeys)
	for _, k := range hyperparamKeys {
		fmt.Fprintf(&buf, "- %s: %v\n", k, hyperparams[k])
	}

	return buf.Bytes()
}
