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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLogger_InitTrainer(t *testing.T) {
	tests := []struct {
		name    string
		console bool
		verbose bool
		expect  func(t *testing.T, dir string)
	}{
		{
			name:    "console logger",
			console: true,
			expect: func(t *testing.T, dir string) {
				assert := assert.New(t)
				Infof("hello %s", "world")
				assert.NoFileExists(filepath.Join(dir, "trainer", CoreLogFileName))
				assert.False(IsDebug())
			},
		},
		{
			name:    "verbose console logger",
			console: true,
			verbose: true,
			expect: func(t *testing.T, dir string) {
				assert := assert.New(t)
				assert.True(IsDebug())
			},
		},
		{
			name: "file logger",
			expect: func(t *testing.T, dir string) {
				assert := assert.New(t)
				WithJob("r1", "fx-signal").Infof("hello %s", "world")
				Sync()

				data, err := os.ReadFile(filepath.Join(dir, "trainer", CoreLogFileName))
				assert.NoError(err)
				assert.Contains(string(data), "hello world")
				assert.Contains(string(data), `"roundID":"r1"`)
			},
		},
		{
			name: "tracking run logs to the tracking file",
			expect: func(t *testing.T, dir string) {
				assert := assert.New(t)
				WithTrackingRun("signals", "fx-signal-r1").With("epoch", 1).Infof("val_accuracy %.2f", 0.5)
				Sync()

				data, err := os.ReadFile(filepath.Join(dir, "trainer", TrackingLogFileName))
				assert.NoError(err)
				assert.Contains(string(data), "val_accuracy 0.50")
				assert.Contains(string(data), `"run":"fx-signal-r1"`)
				assert.Contains(string(data), `"epoch":1`)

				data, err = os.ReadFile(filepath.Join(dir, "trainer", CoreLogFileName))
				if err == nil {
					assert.NotContains(string(data), "val_accuracy")
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, InitTrainer(tc.verbose, tc.console, dir, LogRotateConfig{}))
			tc.expect(t, dir)
		})
	}
}

func TestLogger_SetLevel(t *testing.T) {
	require.NoError(t, InitTrainer(false, true, t.TempDir(), LogRotateConfig{}))
	assert := assert.New(t)
	assert.False(IsDebug())
	SetLevel(zapcore.DebugLevel)
	assert.True(IsDebug())
	SetLevel(zapcore.InfoLevel)
}

func TestLogRotateConfig_withDefaults(t *testing.T) {
	assert := assert.New(t)
	c := LogRotateConfig{MaxSize: 1}.withDefaults()
	assert.Equal(1, c.MaxSize)
	assert.Equal(defaultRotateMaxAge, c.MaxAge)
	assert.Equal(defaultRotateMaxBackups, c.MaxBackups)
}

func TestLogger_RedirectStdoutAndStderr(t *testing.T) {
	tests := []struct {
		name   string
		run    func(t *testing.T, dir string)
		expect func(t *testing.T, dir string)
	}{
		{
			name: "console keeps stdout and stderr",
			run: func(t *testing.T, dir string) {
				RedirectStdoutAndStderr(true, dir)
			},
			expect: func(t *testing.T, dir string) {
				assert := assert.New(t)
				assert.NoFileExists(filepath.Join(dir, StdoutFileName))
				assert.NoFileExists(filepath.Join(dir, StderrFileName))
			},
		},
		{
			name: "redirect file descriptor",
			run: func(t *testing.T, dir string) {
				std, err := os.Create(filepath.Join(dir, "std"))
				require.NoError(t, err)
				defer std.Close()

				redirect(filepath.Join(dir, StdoutFileName), std)
				_, err = std.WriteString("epoch 1 done\n")
				require.NoError(t, err)
			},
			expect: func(t *testing.T, dir string) {
				assert := assert.New(t)
				data, err := os.ReadFile(filepath.Join(dir, StdoutFileName))
				assert.NoError(err)
				assert.Contains(string(data), "std redirect at")
				assert.Contains(string(data), "epoch 1 done")
			},
		},
		{
			name: "missing log dir",
			run: func(t *testing.T, dir string) {
				std, err := os.Create(filepath.Join(dir, "std"))
				require.NoError(t, err)
				defer std.Close()

				redirect(filepath.Join(dir, "missing", StdoutFileName), std)
			},
			expect: func(t *testing.T, dir string) {
				assert.NoFileExists(t, filepath.Join(dir, "missing", StdoutFileName))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			tc.run(t, dir)
			tc.expect(t, dir)
		})
	}
}
