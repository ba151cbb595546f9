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

package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff returns the sleep duration before the given attempt,
// exponential in the attempt number with jitter and capped at maxBackoff seconds.
func Backoff(initBackoff, maxBackoff float64, attempt int) time.Duration {
	if attempt <= 0 || initBackoff <= 0 {
		return 0
	}

	backoff := math.Min(initBackoff*math.Pow(2.0, float64(attempt-1)), maxBackoff)
	jitter := backoff / 2 * rand.Float64()
	return time.Duration((backoff/2 + jitter) * float64(time.Second))
}

// Run calls f up to maxAttempts times until it succeeds or asks to cancel.
// The backoff sleep is interrupted when ctx is done.
func Run(ctx context.Context,
	initBackoff float64,
	maxBackoff float64,
	maxAttempts int,
	f func() (data any, cancel bool, err error)) (any, bool, error) {
	var (
		res    any
		cancel bool
		cause  error
	)

	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			timer := time.NewTimer(Backoff(initBackoff, maxBackoff, i))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, cancel, ctx.Err()
			case <-timer.C:
			}
		}

		res, cancel, cause = f()
		if cause == nil || cancel {
			break
		}
	}

	return res, cancel, cause
}
