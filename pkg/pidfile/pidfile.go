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

package pidfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
)

// PIDFile stores the cmdline and process id of the job owning a work home.
type PIDFile struct {
	path    string
	pid     int
	cmdline string
	lock    *flock.Flock
}

// IsProcessExistsByPIDFile reports whether the process recorded in path is still running.
func IsProcessExistsByPIDFile(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	content := strings.TrimSpace(string(data))
	index := strings.LastIndex(content, "@")
	if index == -1 {
		return false, errors.New("pid file content is invalid")
	}

	pid, err := strconv.Atoi(content[index+1:])
	if err != nil {
		return false, errors.Wrap(err, "pid file content is invalid")
	}

	p, err := process.NewProcess(int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return false, nil
		}
		return false, err
	}

	cmdline, _ := p.Cmdline()
	return strings.TrimSpace(cmdline+"@"+strconv.Itoa(pid)) == content, nil
}

// New locks path+".lock" and writes the current process into path,
// it fails when another process holds the lock.
func New(path string) (*PIDFile, error) {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "lock %s", lock.Path())
	}

	if !ok {
		return nil, errors.Errorf("lock %s failed, another job is already running", lock.Path())
	}

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		lock.Unlock()
		return nil, errors.WithStack(err)
	}

	cmdline, _ := p.Cmdline()
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%s@%d", cmdline, p.Pid)), 0644); err != nil {
		lock.Unlock()
		return nil, errors.WithStack(err)
	}

	return &PIDFile{path: path, pid: int(p.Pid), cmdline: cmdline, lock: lock}, nil
}

// PID returns the recorded process id.
func (pf *PIDFile) PID() int {
	return pf.pid
}

// Remove removes the pid file and releases the lock.
func (pf *PIDFile) Remove() error {
	defer pf.lock.Unlock()

	if err := os.Remove(pf.path); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
