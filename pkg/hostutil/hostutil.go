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

	"github.com/Showmax/go-fqdn"
)

// FQDNHostname is the fully qualified name of the host running the job.
var FQDNHostname = hostname()

func hostname() string {
	if name, err := fqdn.FqdnHostname(); err == nil && name != "" {
		return name
	}

	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}

	return "localhost"
}
