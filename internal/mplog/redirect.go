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

package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// StdoutFileName is the file receiving stdout of a job without console logging.
	StdoutFileName = "stdout.log"

	// StderrFileName is the file receiving stderr of a job without console logging.
	StderrFileName = "stderr.log"
)

// RedirectStdoutAndStderr redirects stdout and stderr into logDir, console mode keeps them.
func RedirectStdoutAndStderr(console bool, logDir string) {
	if console {
		return
	}

	redirect(filepath.Join(logDir, StdoutFileName), os.Stdout)
	redirect(filepath.Join(logDir, StderrFileName), os.Stderr)
}

func redirect(path string, std *os.File) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND|os.O_SYNC, 0644)
	if err != nil {
		Warnf("open %s error: %s", path, err)
		return
	}

	if err := unix.Dup2(int(f.Fd()), int(std.Fd())); err != nil {
		Warnf("redirect %s error: %s", std.Name(), err)
		return
	}

	fmt.Fprintf(std, "%s redirect at %v\n", filepath.Base(std.Name()), time.Now())
}
