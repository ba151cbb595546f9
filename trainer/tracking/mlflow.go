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

package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/go-http-utils/headers"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	logger "github.com/neuronetiq/marketplace-trainer/internal/mplog"
)

const (
	// mlflowAPIPrefix is the path prefix of the mlflow rest api.
	mlflowAPIPrefix = "/api/2.0/mlflow"

	// mlflowResourceNotFound is the error code of missing experiments.
	mlflowResourceNotFound = "RESOURCE_DOES_NOT_EXIST"

	// TagRunUUID is the client generated id of the run.
	TagRunUUID = "marketplace.run_uuid"
)

const (
	mlflowRunStatusFinished = "FINISHED"
	mlflowRunStatusFailed   = "FAILED"
)

type mlflowTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type mlflowParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type mlflowMetric struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
	Step      int     `json:"step"`
}

type mlflowError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// mlflow is a tracker of the mlflow tracking server rest api.
type mlflow struct {
	endpoint   string
	baseClient *http.Client
	httpClient *http.Client
	runID      string
}

// NewMLflow returns a tracker of the mlflow server at endpoint, apiKey is sent as bearer token.
func NewMLflow(endpoint, apiKey string, options ...Option) Tracker {
	m := &mlflow{
		endpoint:   endpoint,
		baseClient: http.DefaultClient,
	}

	for _, opt := range options {
		opt(m)
	}

	base := m.baseClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	m.httpClient = &http.Client{
		Timeout: m.baseClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"}),
			Base:   base,
		},
	}
	return m
}

// Start resolves the experiment, creating it when missing, then creates the run.
func (m *mlflow) Start(ctx context.Context, run *Run) error {
	experimentID, err := m.experimentID(ctx, run.Project)
	if err != nil {
		return err
	}

	tags := []mlflowTag{{Key: TagRunUUID, Value: uuid.NewString()}}
	for _, k := range sortedKeys(run.Tags) {
		tags = append(tags, mlflowTag{Key: k, Value: run.Tags[k]})
	}

	var resp struct {
		Run struct {
			Info struct {
				RunID string `json:"run_id"`
			} `json:"info"`
		} `json:"run"`
	}
	if err := m.do(ctx, http.MethodPost, "/runs/create", map[string]any{
		"experiment_id": experimentID,
		"run_name":      run.Name,
		"start_time":    time.Now().UnixMilli(),
		"tags":          tags,
	}, &resp); err != nil {
		return err
	}

	if resp.Run.Info.RunID == "" {
		return errors.New("mlflow returned an empty run id")
	}
	m.runID = resp.Run.Info.RunID
	logger.Infof("tracking run %s created in experiment %s", m.runID, experimentID)

	if len(run.Params) == 0 {
		return nil
	}

	params := make([]mlflowParam, 0, len(run.Params))
	for _, k := range sortedKeys(run.Params) {
		params = append(params, mlflowParam{Key: k, Value: run.Params[k]})
	}

	return m.do(ctx, http.MethodPost, "/runs/log-batch", map[string]any{
		"run_id": m.runID,
		"params": params,
	}, nil)
}

// Log sends the metrics of one step in a single batch.
func (m *mlflow) Log(ctx context.Context, step int, metrics map[string]float64) error {
	if m.runID == "" {
		return errors.New("mlflow run not started")
	}

	now := time.Now().UnixMilli()
	batch := make([]mlflowMetric, 0, len(metrics))
	for _, k := range sortedKeys(metrics) {
		batch = append(batch, mlflowMetric{Key: k, Value: metrics[k], Timestamp: now, Step: step})
	}

	return m.do(ctx, http.MethodPost, "/runs/log-batch", map[string]any{
		"run_id":  m.runID,
		"metrics": batch,
	}, nil)
}

// Finish terminates the run.
func (m *mlflow) Finish(ctx context.Context, success bool) error {
	if m.runID == "" {
		return nil
	}

	status := mlflowRunStatusFinished
	if !success {
		status = mlflowRunStatusFailed
	}

	return m.do(ctx, http.MethodPost, "/runs/update", map[string]any{
		"run_id":   m.runID,
		"status":   status,
		"end_time": time.Now().UnixMilli(),
	}, nil)
}

func (m *mlflow) experimentID(ctx context.Context, name string) (string, error) {
	var got struct {
		Experiment struct {
			ExperimentID string `json:"experiment_id"`
		} `json:"experiment"`
	}
	err := m.do(ctx, http.MethodGet, "/experiments/get-by-name?experiment_name="+url.QueryEscape(name), nil, &got)
	if err == nil {
		return got.Experiment.ExperimentID, nil
	}

	var mlErr *mlflowError
	if !errors.As(err, &mlErr) || mlErr.ErrorCode != mlflowResourceNotFound {
		return "", err
	}

	var created struct {
		ExperimentID string `json:"experiment_id"`
	}
	if err := m.do(ctx, http.MethodPost, "/experiments/create", map[string]any{"name": name}, &created); err != nil {
		return "", err
	}

	return created.ExperimentID, nil
}

func (m *mlflow) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.WithStack(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.endpoint+mlflowAPIPrefix+path, reader)
	if err != nil {
		return errors.WithStack(err)
	}
	if body != nil {
		req.Header.Set(headers.ContentType, "application/json")
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WithStack(err)
	}

	if resp.StatusCode/100 != 2 {
		mlErr := &mlflowError{}
		if json.Unmarshal(data, mlErr) != nil || mlErr.ErrorCode == "" {
			mlErr.Message = fmt.Sprintf("unexpected status code: %d", resp.StatusCode)
		}
		return mlErr
	}

	if out == nil {
		return nil
	}

	return errors.WithStack(json.Unmarshal(data, out))
}

func (e *mlflowError) Error() string {
	if e.ErrorCode == "" {
		return e.Message
	}

	return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
