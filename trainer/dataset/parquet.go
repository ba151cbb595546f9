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
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
)

// rowBatchSize is the number of rows read per batch.
const rowBatchSize = 128

// ReadParquet parses a parquet file, nested columns are named by their dotted path.
func ReadParquet(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	file, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, errors.Wrapf(err, "open parquet %s", path)
	}

	paths := file.Schema().Columns()
	table := &Table{
		Name:    filepath.Base(path),
		Columns: make([]string, 0, len(paths)),
		Records: make([][]string, 0, file.NumRows()),
	}
	for _, p := range paths {
		table.Columns = append(table.Columns, strings.Join(p, "."))
	}

	reader := parquet.NewReader(file)
	defer reader.Close()

	rows := make([]parquet.Row, rowBatchSize)
	for {
		n, err := reader.ReadRows(rows)
		for _, row := range rows[:n] {
			record := make([]string, len(table.Columns))
			for _, v := range row {
				if v.IsNull() || v.Column() < 0 || v.Column() >= len(record) {
					continue
				}

				record[v.Column()] = v.String()
			}
			table.Records = append(table.Records, record)
		}

		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, errors.Wrapf(err, "read parquet %s", path)
		}
	}

	return table, nil
}
