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
	"net/url"
	"path"
	"strings"
)

// Role is the purpose of a staged dataset.
type Role string

const (
	RoleTrain      Role = "train"
	RoleValidation Role = "validation"
	RoleTest       Role = "test"
	RoleFeatures   Role = "features"
	RoleUnlabeled  Role = "unlabeled"
)

const (
	ExtCSV     = ".csv"
	ExtParquet = ".parquet"
)

// Classify assigns a role from the lower-cased url, first match wins.
// An unlabeled url is the training set only when it is the sole url.
func Classify(rawURL string, total int) Role {
	u := strings.ToLower(rawURL)
	switch {
	case strings.Contains(u, "train"):
		return RoleTrain
	case strings.Contains(u, "validation"), strings.Contains(u, "val"):
		return RoleValidation
	case strings.Contains(u, "test"):
		return RoleTest
	case strings.Contains(u, "features"):
		return RoleFeatures
	case total == 1:
		return RoleTrain
	}

	return RoleUnlabeled
}

// FileName returns the local file name of the index-th url with the given role.
func FileName(rawURL string, role Role, index int) string {
	ext := ExtCSV
	if role == RoleFeatures {
		ext = ExtParquet
	}

	if e := urlExt(rawURL); e != "" {
		ext = e
	}

	if role == RoleUnlabeled {
		return fmt.Sprintf("dataset_%d%s", index, ext)
	}

	return string(role) + ext
}

// urlExt returns the extension of the url path when it is a supported format.
func urlExt(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}

	switch ext := strings.ToLower(path.Ext(p)); ext {
	case ExtCSV, ExtParquet:
		return ext
	}

	return ""
}
