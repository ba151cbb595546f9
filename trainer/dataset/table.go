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
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Table is a parsed tabular dataset, cells are kept as strings.
type Table struct {
	// Name is the source file name.
	Name string

	// Columns is the header row.
	Columns []string

	// Records are the data rows, each has len(Columns) cells.
	Records [][]string
}

// Shape returns the number of rows and columns.
func (t *Table) Shape() (int, int) {
	return len(t.Records), len(t.Columns)
}

// ColumnIndex returns the index of the named column, -1 if absent.
func (t *Table) ColumnIndex(name string) int {
	return slices.Index(t.Columns, name)
}

// Float64Column parses the named column, empty cells become 0.
func (t *Table) Float64Column(name string) ([]float64, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, errors.Errorf("column %s not found in %s", name, t.Name)
	}

	values := make([]float64, 0, len(t.Records))
	for i, record := range t.Records {
		cell := strings.TrimSpace(record[idx])
		if cell == "" {
			values = append(values, 0)
			continue
		}

		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d column %s", i, name)
		}
		values = append(values, v)
	}

	return values, nil
}

// NumericColumns returns the columns whose non-empty cells all parse as numbers.
func (t *Table) NumericColumns() []string {
	var columns []string
	for idx, name := range t.Columns {
		numeric, seen := true, false
		for _, record := range t.Records {
			cell := strings.TrimSpace(record[idx])
			if cell == "" {
				continue
			}

			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric = false
				break
			}
			seen = true
		}

		if numeric && seen {
			columns = append(columns, name)
		}
	}

	return columns
}

// Append concatenates the records of other, columns must match in order.
func (t *Table) Append(other *Table) error {
	if !slices.Equal(t.Columns, other.Columns) {
		return errors.Errorf("columns of %s do not match %s", other.Name, t.Name)
	}

	t.Records = append(t.Records, other.Records...)
	t.Name = t.Name + "+" + other.Name
	return nil
}
