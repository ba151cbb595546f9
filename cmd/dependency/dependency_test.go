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

package dependency

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Spec    string `mapstructure:"spec"`
	Console bool   `mapstructure:"console"`
	Staging struct {
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"staging"`
	Publish struct {
		Token string `mapstructure:"token"`
	} `mapstructure:"publish"`
}

func TestBindEnv(t *testing.T) {
	t.Setenv("TRAINING_SPEC", `{"round_id":"r1"}`)
	t.Setenv("HF_TOKEN", "foo")
	t.Setenv("TRAINER_CONSOLE", "true")

	v := viper.New()
	require.NoError(t, bindEnv(v, "trainer", []EnvBinding{
		{Key: "spec", Env: "TRAINING_SPEC"},
		{Key: "publish.token", Env: "HF_TOKEN"},
	}))

	assert := assert.New(t)
	assert.Equal(`{"round_id":"r1"}`, v.GetString("spec"))
	assert.Equal("foo", v.GetString("publish.token"))
	assert.True(v.GetBool("console"))

	cfg := &testConfig{}
	assert.NoError(v.Unmarshal(cfg, initDecoderConfig))
	assert.Equal(`{"round_id":"r1"}`, cfg.Spec)
	assert.Equal("foo", cfg.Publish.Token)
}

func TestReadConfigFile(t *testing.T) {
	tests := []struct {
		name   string
		mock   func(t *testing.T, dir string) string
		expect func(t *testing.T, v *viper.Viper, err error)
	}{
		{
			name: "read config file",
			mock: func(t *testing.T, dir string) string {
				path := filepath.Join(dir, "trainer.yaml")
				if err := os.WriteFile(path, []byte("staging:\n  timeout: 1m\n"), 0644); err != nil {
					t.Fatal(err)
				}
				return path
			},
			expect: func(t *testing.T, v *viper.Viper, err error) {
				assert := assert.New(t)
				assert.NoError(err)

				cfg := &testConfig{}
				assert.NoError(v.Unmarshal(cfg, initDecoderConfig))
				assert.Equal(time.Minute, cfg.Staging.Timeout)
			},
		},
		{
			name: "default config file does not exist",
			mock: func(t *testing.T, dir string) string {
				return filepath.Join(dir, "missing.yaml")
			},
			expect: func(t *testing.T, v *viper.Viper, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "empty config file path",
			mock: func(t *testing.T, dir string) string {
				return ""
			},
			expect: func(t *testing.T, v *viper.Viper, err error) {
				assert.NoError(t, err)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := viper.New()
			cmd := &cobra.Command{Use: "trainer"}
			err := readConfigFile(v, cmd, tc.mock(t, t.TempDir()))
			tc.expect(t, v, err)
		})
	}
}

func TestInitMonitor_Disabled(t *testing.T) {
	stop := InitMonitor(false, 0)
	assert.NotNil(t, stop)
	stop()

	stop = InitMonitor(true, -1)
	stop()
}

func TestVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	VersionCmd.SetOut(&buf)
	VersionCmd.Run(VersionCmd, nil)
	assert.Contains(t, buf.String(), "GitVersion")
}

func TestBindFlag(t *testing.T) {
	cmd := &cobra.Command{Use: "trainer"}
	cmd.Flags().String("spec-file", "", "")
	BindFlag(cmd, "specFile", "spec-file")

	require.NoError(t, cmd.Flags().Set("spec-file", "/tmp/spec.json"))
	assert.Equal(t, "/tmp/spec.json", viper.GetString("specFile"))
}
