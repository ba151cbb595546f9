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

package hostutil

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostname(t *testing.T) {
	assert := assert.New(t)
	assert.NotEmpty(FQDNHostname)
	assert.Equal(FQDNHostname, hostname())

	if name, err := os.Hostname(); err == nil && FQDNHostname != "localhost" {
		short := strings.SplitN(FQDNHostname, ".", 2)[0]
		assert.True(strings.HasPrefix(name, short) || strings.HasPrefix(FQDNHostname, name), FQDNHostname)
	}
}
