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

package digest

import (
	"bufio"
	_ "crypto/sha256"
	"io"
	"os"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

const (
	// AlgorithmSHA256 is the algorithm of artifact digests.
	AlgorithmSHA256 = digest.SHA256

	readBufferSize = 4 << 20
)

// Digest is an algorithm-prefixed content hash, like sha256:2cf24d...
type Digest = digest.Digest

// NewDigester returns a sha256 digester for streaming writes.
func NewDigester() digest.Digester {
	return AlgorithmSHA256.Digester()
}

// FromBytes computes the sha256 digest of data.
func FromBytes(data []byte) Digest {
	return AlgorithmSHA256.FromBytes(data)
}

// FromReader computes the sha256 digest of everything readable from r.
func FromReader(r io.Reader) (Digest, error) {
	return AlgorithmSHA256.FromReader(bufio.NewReaderSize(r, readBufferSize))
}

// HashFile computes the sha256 digest of the regular file at path.
func HashFile(path string) (Digest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.WithStack(err)
	}

	if !info.Mode().IsRegular() {
		return "", errors.Errorf("%s is not a regular file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer f.Close()

	d, err := FromReader(f)
	if err != nil {
		return "", errors.Wrapf(err, "hash %s", path)
	}

	return d, nil
}

// Combine computes a digest over an ordered list of digests.
func Combine(digests ...Digest) Digest {
	digester := AlgorithmSHA256.Digester()
	for _, d := range digests {
		digester.Hash().Write([]byte(d.String()))
	}

	return digester.Digest()
}

// Parse validates s and returns it as a Digest.
func Parse(s string) (Digest, error) {
	return digest.Parse(s)
}
