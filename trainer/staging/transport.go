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

package staging

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/neuronetiq/marketplace-trainer/pkg/retry"
)

var defaultTransport http.RoundTripper

func init() {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext
	defaultTransport = transport
}

// retryTransport retries idempotent requests on network errors and
// retriable status codes, the stager itself never loops.
type retryTransport struct {
	next        http.RoundTripper
	maxAttempts int
	initBackoff float64
	maxBackoff  float64
}

// newRetryTransport wraps next, maxAttempts below 2 returns next unchanged.
func newRetryTransport(next http.RoundTripper, maxAttempts int, initBackoff, maxBackoff float64) http.RoundTripper {
	if maxAttempts < 2 {
		return next
	}

	return &retryTransport{
		next:        next,
		maxAttempts: maxAttempts,
		initBackoff: initBackoff,
		maxBackoff:  maxBackoff,
	}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return t.next.RoundTrip(req)
	}

	res, _, err := retry.Run(req.Context(), t.initBackoff, t.maxBackoff, t.maxAttempts, func() (any, bool, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, req.Context().Err() != nil, err
		}

		if isRetriable(resp.StatusCode) {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return resp, false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		return resp, false, nil
	})

	if err != nil {
		if resp, ok := res.(*http.Response); ok && resp != nil {
			// The last retriable response is returned as is, its status is checked by the caller.
			resp.Body = http.NoBody
			return resp, nil
		}

		return nil, err
	}

	return res.(*http.Response), nil
}

func isRetriable(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
