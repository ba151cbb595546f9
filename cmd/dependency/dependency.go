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
	"fmt"
	"os"
	"strings"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/mitchellh/mapstructure"
	"github.com/phayes/freeport"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	logger "github.com/neuronetiq/marketplace-trainer/internal/mplog"
)

// EnvBinding binds a config key to an environment variable outside the env prefix.
type EnvBinding struct {
	Key string
	Env string
}

// InitCommandAndConfig initializes flags binding and common sub cmds.
// config is a pointer to the configuration struct, it is filled from
// the config file, the env bindings and the flags before the command runs.
func InitCommandAndConfig(cmd *cobra.Command, useConfigFile bool, defaultConfigFile, envPrefix string, config any, bindings ...EnvBinding) {
	var cfgFile string
	cobra.OnInitialize(func() { initConfig(cmd, useConfigFile, cfgFile, envPrefix, config, bindings) })

	if !cmd.HasParent() {
		// Add common flags.
		flags := cmd.PersistentFlags()
		flags.Bool("console", false, "whether logger output records to the stdout")
		flags.Bool("verbose", false, "whether logger use debug level")
		flags.Int("pprof-port", -1, "listen port for monitor service, 0 if random port, -1 if disable")

		if useConfigFile {
			flags.StringVarP(&cfgFile, "config", "f", "", fmt.Sprintf("the path of configuration file with yaml extension name, default is %s", defaultConfigFile))
		}

		// Bind common flags.
		if err := viper.BindPFlags(flags); err != nil {
			panic(errors.Wrap(err, "bind common flags to viper"))
		}

		// Add common cmds only on root cmd.
		cmd.AddCommand(VersionCmd)
	}

	if useConfigFile && cfgFile == "" {
		cfgFile = defaultConfigFile
	}
}

// BindFlag binds the local flag of cmd to the config key.
func BindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(errors.Wrapf(err, "bind flag %s to %s", flag, key))
	}
}

// initConfig reads in config file and env variables if set.
func initConfig(cmd *cobra.Command, useConfigFile bool, cfgFile, envPrefix string, config any, bindings []EnvBinding) {
	if err := bindEnv(viper.GetViper(), envPrefix, bindings); err != nil {
		panic(err)
	}

	if useConfigFile {
		if err := readConfigFile(viper.GetViper(), cmd, cfgFile); err != nil {
			panic(errors.Wrap(err, "read config file"))
		}
	}

	if err := viper.Unmarshal(config, initDecoderConfig); err != nil {
		panic(errors.Wrap(err, "unmarshal config to struct"))
	}
}

// bindEnv enables automatic env for the prefix, plus explicit env names
// that are read without the prefix.
func bindEnv(v *viper.Viper, envPrefix string, bindings []EnvBinding) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, b := range bindings {
		if err := v.BindEnv(b.Key, b.Env); err != nil {
			return errors.Wrapf(err, "bind %s to %s", b.Key, b.Env)
		}
	}

	return nil
}

// readConfigFile reads config file into the given viper instance. If we're
// reading the default configuration file and the file does not exist, nil will
// be returned.
func readConfigFile(v *viper.Viper, cmd *cobra.Command, cfgFile string) error {
	if f := cmd.Flag("config"); f != nil && f.Changed {
		cfgFile = f.Value.String()
	}

	if cfgFile == "" {
		return nil
	}

	v.SetConfigFile(cfgFile)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) && (cmd.Flag("config") == nil || !cmd.Flag("config").Changed) {
			return nil
		}

		return err
	}

	return nil
}

func initDecoderConfig(dc *mapstructure.DecoderConfig) {
	dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// InitMonitor starts the statsview monitor when verbose is set and
// pprofPort is not negative. The returned func stops it.
func InitMonitor(verbose bool, pprofPort int) func() {
	if !verbose || pprofPort < 0 {
		return func() {}
	}

	logger.SetLevel(zapcore.DebugLevel)

	if pprofPort == 0 {
		pprofPort, _ = freeport.GetFreePort()
	}

	debugAddr := fmt.Sprintf("localhost:%d", pprofPort)
	viewer.SetConfiguration(viewer.WithAddr(debugAddr))
	vm := statsview.New()

	go func() {
		logger.With("pprof", fmt.Sprintf("http://%s/debug/pprof", debugAddr),
			"statsview", fmt.Sprintf("http://%s/debug/statsview", debugAddr)).
			Infof("enable pprof at %s", debugAddr)

		if err := vm.Start(); err != nil {
			logger.Warnf("serve pprof error: %v", err)
		}
	}()

	return vm.Stop
}
