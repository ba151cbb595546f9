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

//go:generate mockgen -destination mocks/dataset_mock.go -source dataset.go -package mocks

package dataset

import (
	"path/filepath"
	"strings"

	"github.com/neuronetiq/marketplace-trainer/internal/mperrors"
	logger "github.com/neuronetiq/marketplace-trainer/internal/mplog"
	"github.com/neuronetiq/marketplace-trainer/trainer/staging"
)

// Splits are the tables assigned to training and validation.
type Splits struct {
	// Train is the training table, never nil on success.
	Train *Table

	// Validation is the validation table, nil when absent.
	Validation *Table

	// Others are the loaded tables of the remaining roles.
	Others []*Table
}

// Loader parses staged datasets into tables.
type Loader interface {
	// Load parses datasets by extension and assigns them to splits by role.
	Load(datasets []*staging.StagedDataset) (*Splits, error)
}

type loader struct{}

// New returns a Loader.
func New() Loader {
	return &loader{}
}

// Load parses datasets by extension and assigns them to splits by role.
func (l *loader) Load(datasets []*staging.StagedDataset) (*Splits, error) {
	splits := &Splits{}
	for _, dataset := range datasets {
		table, err := Read(dataset.Path)
		if err != nil {
			return nil, err
		}

		if table == nil {
			logger.Warnf("skip dataset %s with unsupported format", dataset.Path)
			continue
		}

		rows, cols := table.Shape()
		logger.Infof("loaded %s as %s: %d rows, %d columns", table.Name, dataset.Role, rows, cols)

		switch dataset.Role {
		case staging.RoleTrain:
			if splits.Train, err = merge(splits.Train, table); err != nil {
				return nil, err
			}
		case staging.RoleValidation:
			if splits.Validation, err = merge(splits.Validation, table); err != nil {
				return nil, err
			}
		default:
			splits.Others = append(splits.Others, table)
		}
	}

	if splits.Train == nil {
		return nil, mperrors.New(mperrors.CodeData, "no training data found")
	}

	return splits, nil
}

// Read parses the file at path by its extension, unsupported formats return a nil table.
func Read(path string) (*Table, error) {
	var (
		table *Table
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case staging.ExtCSV:
		table, err = ReadCSV(path)
	case staging.ExtParquet:
		table, err = ReadParquet(path)
	default:
		return nil, nil
	}

	if err != nil {
		return nil, mperrors.Wrapf(mperrors.CodeData, err, "parse %s", filepath.Base(path))
	}

	return table, nil
}

func merge(dst, src *Table) (*Table, error) {
	if dst == nil {
		return src, nil
	}

	if err := dst.Append(src); err != nil {
		return nil, mperrors.Wrap(mperrors.CodeData, err, "concatenate tables")
	}

	return dst, nil
}
