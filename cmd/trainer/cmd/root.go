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

package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neuronetiq/marketplace-trainer/cmd/dependency"
	"github.com/neuronetiq/marketplace-trainer/internal/mperrors"
	logger "github.com/neuronetiq/marketplace-trainer/internal/mplog"
	"github.com/neuronetiq/marketplace-trainer/pkg/mppath"
	"github.com/neuronetiq/marketplace-trainer/pkg/pidfile"
	"github.com/neuronetiq/marketplace-trainer/trainer"
	"github.com/neuronetiq/marketplace-trainer/trainer/config"
	"github.com/neuronetiq/marketplace-trainer/trainer/report"
	"github.com/neuronetiq/marketplace-trainer/trainer/spec"
	"github.com/neuronetiq/marketplace-trainer/version"
)

const pidFileName = "trainer.pid"

var (
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "trainer",
	Short: "the signal model trainer of the marketplace",
	Long: `Trainer runs one unattended training job per invocation. It reads the job spec from TRAINING_SPEC or --spec-file,
stages the datasets, trains the model, writes and optionally publishes the artifacts, and always writes training_result.json.`,
	Args:              cobra.NoArgs,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	SilenceErrors:     true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Failures before the job starts are reported to the configured result path.
		resultPath := mppath.ResultPath(cfg.Server.WorkHome, cfg.Server.ResultFile)

		// Convert config.
		if err := cfg.Convert(); err != nil {
			return reportFailure(resultPath, mperrors.Wrap(mperrors.CodeConfiguration, err, "convert config"))
		}

		// Validate config.
		if err := cfg.Validate(); err != nil {
			return reportFailure(resultPath, mperrors.Wrap(mperrors.CodeConfiguration, err, "validate config"))
		}

		// Initialize mppath.
		d, err := initMppath(&cfg.Server)
		if err != nil {
			return reportFailure(resultPath, mperrors.Wrap(mperrors.CodeConfiguration, err, "create job directories"))
		}

		// Initialize logger.
		if err := logger.InitTrainer(cfg.Verbose, cfg.Console, d.LogDir(), logger.LogRotateConfig{
			MaxSize:    cfg.Server.LogMaxSize,
			MaxAge:     cfg.Server.LogMaxAge,
			MaxBackups: cfg.Server.LogMaxBackups,
		}); err != nil {
			return reportFailure(d.ResultPath(), mperrors.Wrap(mperrors.CodeConfiguration, err, "init trainer logger"))
		}
		defer logger.Sync()

		// Keep output of training libraries next to the job logs.
		logger.RedirectStdoutAndStderr(cfg.Console, filepath.Join(d.LogDir(), "trainer"))

		return runTrainer(cmd.Context(), d)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error(err)
		stop()
		os.Exit(1)
	}
}

func init() {
	// Initialize default trainer config.
	cfg = config.New()

	flags := rootCmd.Flags()
	flags.String("spec-file", "", "the path of the job spec, it takes precedence over "+config.EnvTrainingSpec)
	flags.String("work-home", "", "the working directory of the job, default is the current directory")

	// Initialize command and config.
	dependency.InitCommandAndConfig(rootCmd, true, config.DefaultConfigFilePath, config.EnvPrefix, cfg,
		dependency.EnvBinding{Key: "spec", Env: config.EnvTrainingSpec},
		dependency.EnvBinding{Key: "publish.token", Env: config.EnvHFToken},
		dependency.EnvBinding{Key: "tracking.apiKey", Env: config.EnvTrackingAPIKey},
	)

	dependency.BindFlag(rootCmd, "specFile", "spec-file")
	dependency.BindFlag(rootCmd, "server.workHome", "work-home")
}

// reportFailure writes the failure record of err to path and returns err.
func reportFailure(path string, err error) error {
	if merr := os.MkdirAll(filepath.Dir(path), mppath.DefaultDirMode); merr != nil {
		logger.Errorf("create result directory failed: %v", merr)
	}

	if rerr := report.New(path).Report(&report.Outcome{Err: err}); rerr != nil {
		logger.Errorf("write result record failed: %v", rerr)
	}

	return err
}

func initMppath(cfg *config.ServerConfig) (mppath.Mppath, error) {
	var options []mppath.Option
	if cfg.WorkHome != "" {
		options = append(options, mppath.WithWorkHome(cfg.WorkHome))
	}

	if cfg.DataDir != "" {
		options = append(options, mppath.WithDataDir(cfg.DataDir))
	}

	if cfg.ModelDir != "" {
		options = append(options, mppath.WithModelDir(cfg.ModelDir))
	}

	if cfg.LogDir != "" {
		options = append(options, mppath.WithLogDir(cfg.LogDir))
	}

	if cfg.ResultFile != "" {
		options = append(options, mppath.WithResultPath(cfg.ResultFile))
	}

	return mppath.New(options...)
}

func runTrainer(ctx context.Context, d mppath.Mppath) error {
	logger.Infof("version:\n%s", version.Version())

	pid, err := pidfile.New(filepath.Join(d.WorkHome(), pidFileName))
	if err != nil {
		return reportFailure(d.ResultPath(), mperrors.Wrapf(mperrors.CodeConfiguration, err, "check pid failed, please check %s", d.WorkHome()))
	}
	defer pid.Remove()

	ff := dependency.InitMonitor(cfg.Verbose, cfg.PProfPort)
	defer ff()

	return trainer.New(cfg, d).Run(ctx, spec.Source{File: cfg.SpecFile, Raw: cfg.Spec})
}
