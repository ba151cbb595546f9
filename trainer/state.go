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
	"github.com/looplab/fsm"

	"github.com/neuronetiq/marketplace-trainer/internal/mperrors"
	logger "github.com/neuronetiq/marketplace-trainer/internal/mplog"
)

const (
	// Job is created and the job spec is not loaded.
	JobStatePending = "Pending"

	// Job spec is parsed and validated.
	JobStateSpecLoaded = "SpecLoaded"

	// Datasets are downloaded into the data directory.
	JobStateStaged = "Staged"

	// Datasets are parsed into splits.
	JobStateLoaded = "Loaded"

	// Training loop completed.
	JobStateTrained = "Trained"

	// Artifacts are written into the model directory.
	JobStateSaved = "Saved"

	// Artifacts are published or publishing is skipped.
	JobStatePublished = "Published"

	// Job succeeded.
	JobStateSucceeded = "Succeeded"

	// Job failed.
	JobStateFailed = "Failed"
)

const (
	// Job loads the job spec.
	JobEventLoadSpec = "LoadSpec"

	// Job stages datasets.
	JobEventStage = "Stage"

	// Job loads datasets.
	JobEventLoad = "Load"

	// Job trains the model.
	JobEventTrain = "Train"

	// Job saves artifacts.
	JobEventSave = "Save"

	// Job publishes artifacts.
	JobEventPublish = "Publish"

	// Job succeeded.
	JobEventSucceed = "Succeed"

	// Job failed.
	JobEventFail = "Fail"
)

// Stage names used by metrics and logs.
const (
	StageSpec     = "spec"
	StageStaging  = "staging"
	StageLoading  = "loading"
	StageTraining = "training"
	StageArtifact = "artifact"
	StagePublish  = "publish"
	StageReport   = "report"
)

// stageCodes is the code of uncoded errors returned by a stage.
var stageCodes = map[string]mperrors.Code{
	StageSpec:     mperrors.CodeConfiguration,
	StageStaging:  mperrors.CodeFetch,
	StageLoading:  mperrors.CodeData,
	StageTraining: mperrors.CodeTraining,
	StageArtifact: mperrors.CodeTraining,
	StagePublish:  mperrors.CodePublish,
}

// newJobFSM returns the state machine of one job, every non terminal state may fail.
func newJobFSM() *fsm.FSM {
	return fsm.NewFSM(
		JobStatePending,
		fsm.Events{
			{Name: JobEventLoadSpec, Src: []string{JobStatePending}, Dst: JobStateSpecLoaded},
			{Name: JobEventStage, Src: []string{JobStateSpecLoaded}, Dst: JobStateStaged},
			{Name: JobEventLoad, Src: []string{JobStateStaged}, Dst: JobStateLoaded},
			{Name: JobEventTrain, Src: []string{JobStateLoaded}, Dst: JobStateTrained},
			{Name: JobEventSave, Src: []string{JobStateTrained}, Dst: JobStateSaved},
			{Name: JobEventPublish, Src: []string{JobStateSaved}, Dst: JobStatePublished},
			{Name: JobEventSucceed, Src: []string{JobStatePublished}, Dst: JobStateSucceeded},
			{Name: JobEventFail, Src: []string{
				JobStatePending, JobStateSpecLoaded, JobStateStaged, JobStateLoaded,
				JobStateTrained, JobStateSaved, JobStatePublished,
			}, Dst: JobStateFailed},
		},
		fsm.Callbacks{
			"enter_state": func(e *fsm.Event) {
				logger.Infof("job state is %s", e.Dst)
			},
		},
	)
}
