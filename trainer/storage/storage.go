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

//go:generate mockgen -destination mocks/storage_mock.go -source storage.go -package mocks

package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
)

const (
	// EpochFilePrefix is prefix of epoch file name.
	EpochFilePrefix = "epoch"

	// CSVFileExt is extension of file name.
	CSVFileExt = "csv"
)

// Epoch is the csv record of one training epoch.
type Epoch struct {
	Epoch         int     `csv:"epoch"`
	TrainLoss     float64 `csv:"train_loss"`
	TrainAccuracy float64 `csv:"train_accuracy"`
	ValLoss       float64 `csv:"val_loss"`
	ValAccuracy   float64 `csv:"val_accuracy"`
	SharpeRatio   float64 `csv:"sharpe_ratio"`
	WinRate       float64 `csv:"win_rate"`
	MaxDrawdown   float64 `csv:"max_drawdown"`
	CreatedAt     int64   `csv:"created_at"`
}

// NewEpoch returns the record of the metrics logged at step.
func NewEpoch(step int, metrics map[string]float64) Epoch {
	return Epoch{
		Epoch:         step,
		TrainLoss:     metrics["train_loss"],
		TrainAccuracy: metrics["train_accuracy"],
		ValLoss:       metrics["val_loss"],
		ValAccuracy:   metrics["val_accuracy"],
		SharpeRatio:   metrics["sharpe_ratio"],
		WinRate:       metrics["win_rate"],
		MaxDrawdown:   metrics["max_drawdown"],
		CreatedAt:     time.Now().UnixNano(),
	}
}

// Storage is the interface used for storage.
type Storage interface {
	// CreateEpoch appends the epoch to the csv file of the given run key.
	CreateEpoch(string, Epoch) error

	// ListEpoch returns epochs in the csv file of the given run key.
	ListEpoch(string) ([]Epoch, error)

	// OpenEpoch opens the epoch file of the given run key for read.
	OpenEpoch(string) (io.ReadCloser, error)

	// ClearEpoch removes the epoch file of the given run key.
	ClearEpoch(string) error

	// Clear removes all files created by the storage.
	Clear() error
}

type storage struct {
	baseDir string
	runKeys map[string]struct{}
}

// New returns a new Storage instance.
func New(baseDir string) Storage {
	return &storage{
		baseDir: baseDir,
		runKeys: make(map[string]struct{}),
	}
}

// CreateEpoch appends the epoch to the csv file of the given run key,
// the header is written with the first record.
func (s *storage) CreateEpoch(runKey string, epoch Epoch) error {
	filename := s.epochFilename(runKey)
	info, err := os.Stat(filename)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	withHeaders := err != nil || info.Size() == 0

	file, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	records := []*Epoch{&epoch}
	if withHeaders {
		err = gocsv.Marshal(records, file)
	} else {
		err = gocsv.MarshalWithoutHeaders(records, file)
	}
	if err != nil {
		return err
	}

	s.runKeys[runKey] = struct{}{}
	return nil
}

// ListEpoch returns epochs in the csv file of the given run key.
func (s *storage) ListEpoch(runKey string) ([]Epoch, error) {
	file, err := os.Open(s.epochFilename(runKey))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var epochs []Epoch
	if err := gocsv.Unmarshal(file, &epochs); err != nil {
		return nil, err
	}

	return epochs, nil
}

// OpenEpoch opens the epoch file of the given run key for read.
func (s *storage) OpenEpoch(runKey string) (io.ReadCloser, error) {
	file, err := os.Open(s.epochFilename(runKey))
	if err != nil {
		return nil, err
	}

	return file, nil
}

// ClearEpoch removes the epoch file of the given run key, a missing file is not an error.
func (s *storage) ClearEpoch(runKey string) error {
	if err := os.Remove(s.epochFilename(runKey)); err != nil && !os.IsNotExist(err) {
		return err
	}

	delete(s.runKeys, runKey)
	return nil
}

// Clear removes all files.
func (s *storage) Clear() error {
	for runKey := range s.runKeys {
		if err := os.Remove(s.epochFilename(runKey)); err != nil {
			return err
		}
	}

	s.runKeys = make(map[string]struct{})
	return nil
}

// epochFilename generates epoch file name based on the given run key.
func (s *storage) epochFilename(runKey string) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s-%s.%s", EpochFilePrefix, runKey, CSVFileExt))
}
