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


package mppath

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
)

const (
	// DefaultWorkHome is the working directory of the job.
	DefaultWorkHome = "."

	// DefaultDataDirName is the directory name of staged datasets.
	DefaultDataDirName = "data"

	// DefaultModelDirName is the directory name of model artifacts.
	DefaultModelDirName = "model"

	// DefaultLogDirName is the directory name of log files.
	DefaultLogDirName = "logs"

	// DefaultResultFileName is the file name of the result record.
	DefaultResultFileName = "training_result.json"

	// DefaultDirMode is the mode of created directories.
	DefaultDirMode = fs.FileMode(0755)
)

// ResultPath returns resultPath, or the default result file under workHome when it is empty.
func ResultPath(workHome, resultPath string) string {
	if resultPath != "" {
		return resultPath
	}

	if workHome == "" {
		workHome = DefaultWorkHome
	}

	return filepath.Join(workHome, DefaultResultFileName)
}

// Mppath is the interface used for scoped job paths.
type Mppath interface {
	WorkHome() string
	DataDir() string
	ModelDir() string
	LogDir() string
	ResultPath() string
	DirMode() fs.FileMode
}

type mppath struct {
	workHome   string
	dataDir    string
	modelDir   string
	logDir     string
	resultPath string
	dirMode    fs.FileMode
}

// Option is a functional option for configuring the mppath.
type Option func(d *mppath)

// WithWorkHome sets the working directory, other paths default to its children.
func WithWorkHome(dir string) Option {
	return func(d *mppath) {
		d.workHome = dir
	}
}

// WithDataDir sets the dataset directory.
func WithDataDir(dir string) Option {
	return func(d *mppath) {
		d.dataDir = dir
	}
}

// WithModelDir sets the artifact directory.
func WithModelDir(dir string) Option {
	return func(d *mppath) {
		d.modelDir = dir
	}
}

// WithLogDir sets the log directory.
func WithLogDir(dir string) Option {
	return func(d *mppath) {
		d.logDir = dir
	}
}

// WithResultPath sets the result record path.
func WithResultPath(path string) Option {
	return func(d *mppath) {
		d.resultPath = path
	}
}

// WithDirMode sets the mode of created directories.
func WithDirMode(mode fs.FileMode) Option {
	return func(d *mppath) {
		d.dirMode = mode
	}
}

// New returns a new mppath interface and creates the directories.
func New(options ...Option) (Mppath, error) {
	d := &mppath{
		workHome: DefaultWorkHome,
		dirMode:  DefaultDirMode,
	}

	for _, opt := range options {
		opt(d)
	}

	if d.dataDir == "" {
		d.dataDir = filepath.Join(d.workHome, DefaultDataDirName)
	}

	if d.modelDir == "" {
		d.modelDir = filepath.Join(d.workHome, DefaultModelDirName)
	}

	if d.logDir == "" {
		d.logDir = filepath.Join(d.workHome, DefaultLogDirName)
	}

	d.resultPath = ResultPath(d.workHome, d.resultPath)

	var errs *multierror.Error
	for _, dir := range []string{d.workHome, d.dataDir, d.modelDir, d.logDir, filepath.Dir(d.resultPath)} {
		if err := os.MkdirAll(dir, d.dirMode); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *mppath) WorkHome() string {
	return d.workHome
}

func (d *mppath) DataDir() string {
	return d.dataDir
}

func (d *mppath) ModelDir() string {
	return d.modelDir
}

func (d *mppath) LogDir() string {
	return d.logDir
}

func (d *mppath) ResultPath() string {
	return d.resultPath
}

func (d *mppath) DirMode() fs.FileMode {
	return d.dirMode
}
