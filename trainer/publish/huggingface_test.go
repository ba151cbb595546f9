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

package publish

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-http-utils/headers"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/neuronetiq/marketplace-trainer/trainer/artifact"
	"github.com/neuronetiq/marketplace-trainer/trainer/spec"
	"github.com/neuronetiq/marketplace-trainer/trainer/training"
)

const testHubEndpoint = "https://hub.example.com"

func writeTestBundle(t *testing.T, format string) *artifact.Bundle {
	bundle, err := artifact.New(t.TempDir()).Write(&artifact.Artifact{
		Task:        "fx-signal",
		RoundID:     "r1",
		Hyperparams: spec.Hyperparams{"epochs": float64(3)},
		Metrics:     training.Metrics{"val_accuracy": 0.8},
		Model:       &training.Model{FileName: "model.bin", Data: []byte("weights")},
		Format:      format,
	})
	assert.NoError(t, err)
	return bundle
}

func TestHuggingFace_Upload(t *testing.T) {
	tests := []struct {
		name   string
		format string
		mock   func(m *httpmock.MockTransport, paths *[]string)
		expect func(t *testing.T, receipt *Receipt, err error, paths []string)
	}{
		{
			name: "create repo and commit",
			mock: func(m *httpmock.MockTransport, paths *[]string) {
				m.RegisterResponder(http.MethodPost, testHubEndpoint+"/api/repos/create", func(req *http.Request) (*http.Response, error) {
					if req.Header.Get(headers.Authorization) != "Bearer hf_token" {
						return httpmock.NewStringResponse(http.StatusUnauthorized, "invalid token"), nil
					}

					var body map[string]any
					if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
						return nil, err
					}
					if body["organization"] != "org" || body["name"] != "fx-signal" || body["type"] != "model" {
						return httpmock.NewStringResponse(http.StatusBadRequest, "bad repo"), nil
					}
					return httpmock.NewStringResponse(http.StatusOK, `{"url":"https://hub.example.com/org/fx-signal"}`), nil
				})
				m.RegisterResponder(http.MethodPost, testHubEndpoint+"/api/models/org/fx-signal/commit/main", commitResponder(paths))
			},
			expect: func(t *testing.T, receipt *Receipt, err error, paths []string) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Equal(&Receipt{Repo: "org/fx-signal", Commit: "c0ffee", URL: testHubEndpoint + "/org/fx-signal"}, receipt)
				assert.Equal([]string{"config.json", "model.bin", "README.md"}, paths)
			},
		},
		{
			name:   "existing repo with tarball",
			format: spec.OutputFormatTarball,
			mock: func(m *httpmock.MockTransport, paths *[]string) {
				m.RegisterResponder(http.MethodPost, testHubEndpoint+"/api/repos/create", httpmock.NewStringResponder(http.StatusConflict, "You already created this model repo"))
				m.RegisterResponder(http.MethodPost, testHubEndpoint+"/api/models/org/fx-signal/commit/main", commitResponder(paths))
			},
			expect: func(t *testing.T, receipt *Receipt, err error, paths []string) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Equal("c0ffee", receipt.Commit)
				assert.Equal([]string{"config.json", "model.bin", "README.md", "model.tar.gz"}, paths)
			},
		},
		{
			name: "unauthorized",
			mock: func(m *httpmock.MockTransport, paths *[]string) {
				m.RegisterResponder(http.MethodPost, testHubEndpoint+"/api/repos/create", httpmock.NewStringResponder(http.StatusUnauthorized, "invalid token"))
			},
			expect: func(t *testing.T, receipt *Receipt, err error, paths []string) {
				assert := assert.New(t)
				assert.EqualError(err, "create repo: unexpected status code: 401, body: invalid token")
				assert.Nil(receipt)
				assert.Empty(paths)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var paths []string
			m := httpmock.NewMockTransport()
			tc.mock(m, &paths)

			registry := NewHuggingFace(testHubEndpoint+"/", "hf_token", false, &http.Client{Transport: m})
			receipt, err := registry.Upload(context.Background(), writeTestBundle(t, tc.format), "org/fx-signal")
			tc.expect(t, receipt, err, paths)
		})
	}
}

func commitResponder(paths *[]string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		if req.Header.Get(headers.ContentType) != contentTypeNDJSON {
			return httpmock.NewStringResponse(http.StatusUnsupportedMediaType, ""), nil
		}

		scanner := bufio.NewScanner(req.Body)
		scanner.Buffer(make([]byte, 1<<20), 1<<20)
		for scanner.Scan() {
			var line struct {
				Key   string          `json:"key"`
				Value json.RawMessage `json:"value"`
			}
			if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
				return nil, err
			}

			if line.Key != "file" {
				continue
			}

			var file huggingFaceCommitFile
			if err := json.Unmarshal(line.Value, &file); err != nil {
				return nil, err
			}
			if _, err := base64.StdEncoding.DecodeString(file.Content); err != nil {
				return nil, err
			}
			*paths = append(*paths, file.Path)
		}

		return httpmock.NewStringResponse(http.StatusOK, `{"commitOid":"c0ffee","commitUrl":"https://hub.example.com/org/fx-signal/commit/c0ffee"}`), nil
	}
}
