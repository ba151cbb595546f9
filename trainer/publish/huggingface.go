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
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-http-utils/headers"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/neuronetiq/marketplace-trainer/trainer/artifact"
)

const (
	// huggingFaceRevision is the branch commits are pushed to.
	huggingFaceRevision = "main"

	contentTypeJSON   = "application/json"
	contentTypeNDJSON = "application/x-ndjson"
)

type huggingFaceCommitLine struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type huggingFaceCommitHeader struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

type huggingFaceCommitFile struct {
	Content  string `json:"content"`
	Path     string `json:"path"`
	Encoding string `json:"encoding"`
}

type huggingFace struct {
	endpoint   string
	private    bool
	httpClient *http.Client
}

// NewHuggingFace returns a Registry of the hub at endpoint, token is sent as bearer token.
func NewHuggingFace(endpoint, token string, private bool, client *http.Client) Registry {
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	return &huggingFace{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		private:  private,
		httpClient: &http.Client{
			Timeout: client.Timeout,
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
				Base:   base,
			},
		},
	}
}

func (h *huggingFace) Name() string {
	return "huggingface"
}

// Upload creates the repo when missing and pushes all files in one commit.
func (h *huggingFace) Upload(ctx context.Context, bundle *artifact.Bundle, repoID string) (*Receipt, error) {
	if err := h.createRepo(ctx, repoID); err != nil {
		return nil, err
	}

	body, err := h.commitBody(bundle)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/models/%s/commit/%s", h.endpoint, repoID, huggingFaceRevision)
	var resp struct {
		CommitOid string `json:"commitOid"`
		CommitURL string `json:"commitUrl"`
	}
	if err := h.do(ctx, http.MethodPost, url, contentTypeNDJSON, body, &resp); err != nil {
		return nil, errors.Wrap(err, "commit")
	}

	return &Receipt{
		Repo:   repoID,
		Commit: resp.CommitOid,
		URL:    fmt.Sprintf("%s/%s", h.endpoint, repoID),
	}, nil
}

// createRepo creates the model repo, an existing repo is not an error.
func (h *huggingFace) createRepo(ctx context.Context, repoID string) error {
	payload := map[string]any{
		"type":    "model",
		"name":    repoID,
		"private": h.private,
	}
	if organization, name, ok := strings.Cut(repoID, "/"); ok {
		payload["organization"] = organization
		payload["name"] = name
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return errors.WithStack(err)
	}

	err = h.do(ctx, http.MethodPost, h.endpoint+"/api/repos/create", contentTypeJSON, bytes.NewReader(data), nil)
	var statusErr *statusError
	if errors.As(err, &statusErr) && statusErr.code == http.StatusConflict {
		return nil
	}

	return errors.Wrap(err, "create repo")
}

// commitBody encodes the commit header and every file as ndjson lines.
func (h *huggingFace) commitBody(bundle *artifact.Bundle) (io.Reader, error) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	encoder := json.NewEncoder(w)

	summary := "Upload model"
	if encoded := bundle.Digest.Encoded(); len(encoded) >= 12 {
		summary = fmt.Sprintf("%s %s", summary, encoded[:12])
	}

	if err := encoder.Encode(&huggingFaceCommitLine{
		Key:   "header",
		Value: &huggingFaceCommitHeader{Summary: summary},
	}); err != nil {
		return nil, errors.WithStack(err)
	}

	names := bundle.Files
	if bundle.Tarball != "" {
		names = append(append([]string{}, names...), filepath.Base(bundle.Tarball))
	}

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(bundle.Dir, name))
		if err != nil {
			return nil, errors.WithStack(err)
		}

		if err := encoder.Encode(&huggingFaceCommitLine{
			Key: "file",
			Value: &huggingFaceCommitFile{
				Content:  base64.StdEncoding.EncodeToString(data),
				Path:     name,
				Encoding: "base64",
			},
		}); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	if err := w.Flush(); err != nil {
		return nil, errors.WithStack(err)
	}

	return &buf, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.code, e.body)
}

func (h *huggingFace) do(ctx context.Context, method, url, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set(headers.ContentType, contentType)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WithStack(err)
	}

	if resp.StatusCode/100 != 2 {
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}

	return errors.WithStack(json.Unmarshal(data, out))
}
