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

package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"

	"github.com/neuronetiq/marketplace-trainer/internal/mperrors"
	"github.com/neuronetiq/marketplace-trainer/trainer/staging"
)

type featureRow struct {
	Date     string  `parquet:"date"`
	FeatureA float64 `parquet:"feature_a"`
	Target   float64 `parquet:"target"`
}

func writeParquet(t *testing.T, dir string) string {
	path := filepath.Join(dir, "features.parquet")
	err := parquet.WriteFile(path, []featureRow{
		{Date: "2023-01-02", FeatureA: 0.5, Target: 1},
		{Date: "2023-01-03", FeatureA: -0.25, Target: 0},
	})
	assert.NoError(t, err)
	return path
}

func TestReadParquet(t *testing.T) {
	assert := assert.New(t)
	table, err := ReadParquet(writeParquet(t, t.TempDir()))
	assert.NoError(err)
	assert.Equal("features.parquet", table.Name)
	assert.Equal([]string{"date", "feature_a", "target"}, table.Columns)

	rows, cols := table.Shape()
	assert.Equal(2, rows)
	assert.Equal(3, cols)
	assert.Equal("2023-01-02", table.Records[0][0])

	values, err := table.Float64Column("feature_a")
	assert.NoError(err)
	assert.Equal([]float64{0.5, -0.25}, values)
}

func TestReadCSV(t *testing.T) {
	assert := assert.New(t)
	table, err := ReadCSV("testdata/train.csv")
	assert.NoError(err)
	assert.Equal([]string{"date", "feature_a", "feature_b", "target"}, table.Columns)
	rows, _ := table.Shape()
	assert.Equal(4, rows)

	empty := filepath.Join(t.TempDir(), "empty.csv")
	assert.NoError(os.WriteFile(empty, nil, 0644))
	_, err = ReadCSV(empty)
	assert.ErrorContains(err, "is empty")
}

func TestLoader_Load(t *testing.T) {
	tests := []struct {
		name     string
		datasets func(t *testing.T, dir string) []*staging.StagedDataset
		expect   func(t *testing.T, splits *Splits, err error)
	}{
		{
			name: "train and validation",
			datasets: func(t *testing.T, dir string) []*staging.StagedDataset {
				return []*staging.StagedDataset{
					{Path: "testdata/train.csv", Role: staging.RoleTrain},
					{Path: "testdata/validation.csv", Role: staging.RoleValidation},
					{Path: writeParquet(t, dir), Role: staging.RoleFeatures},
				}
			},
			expect: func(t *testing.T, splits *Splits, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				rows, _ := splits.Train.Shape()
				assert.Equal(4, rows)
				rows, _ = splits.Validation.Shape()
				assert.Equal(2, rows)
				assert.Len(splits.Others, 1)
				assert.Equal("features.parquet", splits.Others[0].Name)
			},
		},
		{
			name: "train tables are concatenated",
			datasets: func(t *testing.T, dir string) []*staging.StagedDataset {
				return []*staging.StagedDataset{
					{Path: "testdata/train.csv", Role: staging.RoleTrain},
					{Path: "testdata/train.csv", Role: staging.RoleTrain},
				}
			},
			expect: func(t *testing.T, splits *Splits, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				rows, _ := splits.Train.Shape()
				assert.Equal(8, rows)
				assert.Nil(splits.Validation)
			},
		},
		{
			name: "mismatched train tables",
			datasets: func(t *testing.T, dir string) []*staging.StagedDataset {
				return []*staging.StagedDataset{
					{Path: "testdata/train.csv", Role: staging.RoleTrain},
					{Path: "testdata/mismatch.csv", Role: staging.RoleTrain},
				}
			},
			expect: func(t *testing.T, splits *Splits, err error) {
				assert := assert.New(t)
				assert.True(mperrors.CheckError(err, mperrors.CodeData))
				assert.EqualError(err, "DataError: concatenate tables: columns of mismatch.csv do not match train.csv")
				assert.Nil(splits)
			},
		},
		{
			name: "mismatched validation tables",
			datasets: func(t *testing.T, dir string) []*staging.StagedDataset {
				return []*staging.StagedDataset{
					{Path: "testdata/train.csv", Role: staging.RoleTrain},
					{Path: "testdata/validation.csv", Role: staging.RoleValidation},
					{Path: "testdata/mismatch.csv", Role: staging.RoleValidation},
				}
			},
			expect: func(t *testing.T, splits *Splits, err error) {
				assert := assert.New(t)
				assert.Equal(mperrors.CodeData, mperrors.CodeOf(err))
				assert.ErrorContains(err, "columns of mismatch.csv do not match validation.csv")
				assert.Nil(splits)
			},
		},
		{
			name: "no training data",
			datasets: func(t *testing.T, dir string) []*staging.StagedDataset {
				return []*staging.StagedDataset{
					{Path: "testdata/validation.csv", Role: staging.RoleValidation},
				}
			},
			expect: func(t *testing.T, splits *Splits, err error) {
				assert := assert.New(t)
				assert.True(mperrors.CheckError(err, mperrors.CodeData))
				assert.EqualError(err, "DataError: no training data found")
			},
		},
		{
			name: "unsupported format is skipped",
			datasets: func(t *testing.T, dir string) []*staging.StagedDataset {
				path := filepath.Join(dir, "train.json")
				assert.NoError(t, os.WriteFile(path, []byte("{}"), 0644))
				return []*staging.StagedDataset{
					{Path: path, Role: staging.RoleTrain},
					{Path: "testdata/train.csv", Role: staging.RoleTrain},
				}
			},
			expect: func(t *testing.T, splits *Splits, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Equal("train.csv", splits.Train.Name)
			},
		},
		{
			name: "corrupt parquet",
			datasets: func(t *testing.T, dir string) []*staging.StagedDataset {
				path := filepath.Join(dir, "train.parquet")
				assert.NoError(t, os.WriteFile(path, []byte("not parquet"), 0644))
				return []*staging.StagedDataset{{Path: path, Role: staging.RoleTrain}}
			},
			expect: func(t *testing.T, splits *Splits, err error) {
				assert := assert.New(t)
				assert.True(mperrors.CheckError(err, mperrors.CodeData))
				assert.ErrorContains(err, "parse train.parquet")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			splits, err := New().Load(tc.datasets(t, t.TempDir()))
			tc.expect(t, splits, err)
		})
	}
}
