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

const (
	// OutputFormatHuggingFace publishes the model directory as is.
	OutputFormatHuggingFace = "huggingface"

	// OutputFormatTarball additionally bundles the model directory.
	OutputFormatTarball = "tarball"
)

// JobSpec defines the declarative description of one training job.
type JobSpec struct {
	RoundID      string      `json:"round_id" validate:"required"`
	Task         string      `json:"task" validate:"required"`
	Hyperparams  Hyperparams `json:"hyperparams,omitempty" validate:"omitempty"`
	DatasetURLs  []string    `json:"dataset_urls" validate:"required,min=1,dive,httpurl"`
	HFRepoID     string      `json:"hf_repo_id,omitempty" validate:"omitempty"`
	Wandb        *Wandb      `json:"wandb,omitempty" validate:"omitempty"`
	Budget       *Budget     `json:"budget,omitempty" validate:"omitempty"`
	OutputFormat string      `json:"output_format,omitempty" validate:"omitempty,oneof=huggingface tarball"`
	BaseImage    string      `json:"base_image,omitempty" validate:"omitempty"`
}

// Wandb defines the experiment tracking options of the job.
type Wandb struct {
	Enabled bool   `json:"enabled"`
	Project string `json:"project,omitempty" validate:"omitempty"`
}

// Budget is informational, it is logged and never enforced.
type Budget struct {
	MaxHours   float64 `json:"max_hours,omitempty" validate:"gte=0"`
	MaxCostUSD float64 `json:"max_cost_usd,omitempty" validate:"gte=0"`
}

// TrackingEnabled reports whether the job asks for remote experiment
// tracking, it is off unless wandb.enabled is set.
func (s *JobSpec) TrackingEnabled() bool {
	return s.Wandb != nil && s.Wandb.Enabled
}

// TrackingProject returns the project named by the job, or def.
func (s *JobSpec) TrackingProject(def string) string {
	if s.Wandb != nil && s.Wandb.Project != "" {
		return s.Wandb.Project
	}

	return def
}

// Format returns the output format, defaulting to huggingface.
func (s *JobSpec) Format() string {
	if s.OutputFormat == "" {
		return OutputFormatHuggingFace
	}

	return s.OutputFormat
}
