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

//go:generate mockgen -destination mocks/staging_mock.go -source staging.go -package mocks

package staging

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/go-http-utils/headers"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"

	"github.com/neuronetiq/marketplace-trainer/internal/mperrors"
	logger "github.com/neuronetiq/marketplace-trainer/internal/mplog"
	"github.com/neuronetiq/marketplace-trainer/pkg/digest"
	"github.com/neuronetiq/marketplace-trainer/trainer/metrics"
	"github.com/neuronetiq/marketplace-trainer/version"
)

const (
	// DefaultTimeout is the default timeout of a single download.
	DefaultTimeout = 300 * time.Second

	// chunkSize is the size of each streamed write.
	chunkSize = 8192
)

// StagedDataset is a dataset downloaded to local storage.
type StagedDataset struct {
	// URL is the source url.
	URL string

	// Path is the local file path.
	Path string

	// Role is the purpose of the dataset.
	Role Role

	// Size is the number of bytes written.
	Size int64

	// Digest is the sha256 digest of the content.
	Digest digest.Digest
}

// Stager downloads datasets into the data directory.
type Stager interface {
	// Stage downloads urls strictly in order, the first failure aborts.
	Stage(ctx context.Context, urls []string) ([]*StagedDataset, error)
}

type stager struct {
	dataDir     string
	httpClient  *http.Client
	timeout     time.Duration
	rateLimit   rate.Limit
	progressBar bool
	maxAttempts int
	initBackoff float64
	maxBackoff  float64
}

// Option is a functional option for configuring the stager.
type Option func(s *stager)

// WithHTTPClient sets the http client, its transport is wrapped by the retry policy.
func WithHTTPClient(client *http.Client) Option {
	return func(s *stager) {
		s.httpClient = client
	}
}

// WithTimeout sets the timeout of a single download.
func WithTimeout(timeout time.Duration) Option {
	return func(s *stager) {
		s.timeout = timeout
	}
}

// WithRateLimit limits the download rate in bytes per second.
func WithRateLimit(limit rate.Limit) Option {
	return func(s *stager) {
		s.rateLimit = limit
	}
}

// WithProgressBar shows a progress bar per download on stderr.
func WithProgressBar(enable bool) Option {
	return func(s *stager) {
		s.progressBar = enable
	}
}

// WithRetry sets the retry policy of the transport.
func WithRetry(maxAttempts int, initBackoff, maxBackoff float64) Option {
	return func(s *stager) {
		s.maxAttempts = maxAttempts
		s.initBackoff = initBackoff
		s.maxBackoff = maxBackoff
	}
}

// New returns a Stager writing into dataDir.
func New(dataDir string, options ...Option) Stager {
	s := &stager{
		dataDir:     dataDir,
		httpClient:  &http.Client{Transport: defaultTransport},
		timeout:     DefaultTimeout,
		maxAttempts: 1,
	}

	for _, opt := range options {
		opt(s)
	}

	next := s.httpClient.Transport
	if next == nil {
		next = defaultTransport
	}

	client := *s.httpClient
	client.Transport = newRetryTransport(next, s.maxAttempts, s.initBackoff, s.maxBackoff)
	s.httpClient = &client
	return s
}

// Stage downloads urls strictly in order, the first failure aborts.
func (s *stager) Stage(ctx context.Context, urls []string) ([]*StagedDataset, error) {
	if len(urls) == 0 {
		return nil, mperrors.New(mperrors.CodeConfiguration, "dataset_urls must not be empty")
	}

	var (
		datasets  = make([]*StagedDataset, 0, len(urls))
		usedNames = make(map[string]struct{}, len(urls))
		total     int64
	)
	for i, rawURL := range urls {
		role := Classify(rawURL, len(urls))
		name := FileName(rawURL, role, i)
		if _, ok := usedNames[name]; ok {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), i, ext)
		}
		usedNames[name] = struct{}{}

		log := logger.WithDataset(i, rawURL)
		log.Infof("downloading dataset as %s with role %s", name, role)

		dataset, err := s.download(ctx, rawURL, filepath.Join(s.dataDir, name))
		if err != nil {
			log.Errorf("download dataset failed: %v", err)
			return nil, err
		}
		dataset.Role = role

		metrics.DatasetDownloadCount.WithLabelValues(string(role)).Inc()
		metrics.DatasetDownloadBytesCount.Add(float64(dataset.Size))
		log.Infof("downloaded %s (%s), digest %s", dataset.Path, units.HumanSize(float64(dataset.Size)), dataset.Digest)

		datasets = append(datasets, dataset)
		total += dataset.Size
	}

	logger.Infof("staged %d datasets, total %s", len(datasets), units.HumanSize(float64(total)))
	return datasets, nil
}

// download streams one url into path, the body is never buffered whole.
func (s *stager) download(ctx context.Context, rawURL, path string) (*StagedDataset, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, mperrors.Wrapf(mperrors.CodeFetch, err, "create request %s", rawURL)
	}
	req.Header.Set(headers.UserAgent, fmt.Sprintf("marketplace-trainer/%s", version.GitVersion))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, mperrors.Wrapf(mperrors.CodeFetch, err, "download %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, mperrors.Newf(mperrors.CodeFetch, "download %s: unexpected status code: %d", rawURL, resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, mperrors.Wrapf(mperrors.CodeFetch, err, "create file %s", path)
	}
	defer f.Close()

	var (
		digester = digest.NewDigester()
		writers  = []io.Writer{f, digester.Hash()}
		body     io.Reader = resp.Body
	)

	if s.rateLimit > 0 {
		burst := int(s.rateLimit)
		if burst < chunkSize {
			burst = chunkSize
		}
		body = &limitedReader{ctx: ctx, r: body, limiter: rate.NewLimiter(s.rateLimit, burst)}
	}

	if s.progressBar {
		bar := progressbar.DefaultBytes(resp.ContentLength, "downloading "+filepath.Base(path))
		defer bar.Finish()
		writers = append(writers, bar)
	}

	size, err := io.CopyBuffer(io.MultiWriter(writers...), body, make([]byte, chunkSize))
	if err != nil {
		return nil, mperrors.Wrapf(mperrors.CodeFetch, err, "write %s", path)
	}

	if err := f.Sync(); err != nil {
		return nil, mperrors.Wrapf(mperrors.CodeFetch, err, "sync %s", path)
	}

	return &StagedDataset{
		URL:    rawURL,
		Path:   path,
		Size:   size,
		Digest: digester.Digest(),
	}, nil
}

// limitedReader waits on the limiter for every chunk read.
type limitedReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	if n > 0 {
		if werr := l.limiter.WaitN(l.ctx, n); werr != nil {
			return n, werr
		}
	}

	return n, err
}
