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

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// CoreLogger writes job events.
	CoreLogger *zap.SugaredLogger

	// TrackingLogger writes epoch metrics of the tracking run.
	TrackingLogger *zap.SugaredLogger

	coreLogLevelEnabler zapcore.LevelEnabler
	levels              []zap.AtomicLevel
)

func init() {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	log, err := config.Build(zap.AddCaller(), zap.AddStacktrace(zap.WarnLevel), zap.AddCallerSkip(1))
	if err == nil {
		sugar := log.Sugar()
		SetCoreLogger(sugar)
		SetTrackingLogger(sugar)
	}
	levels = append(levels, config.Level)
}

// SetLevel updates the level of every logger.
func SetLevel(level zapcore.Level) {
	Infof("change log level to %s", level.String())
	for _, l := range levels {
		l.SetLevel(level)
	}
}

func SetCoreLogger(log *zap.SugaredLogger) {
	CoreLogger = log
	coreLogLevelEnabler = log.Desugar().Core()
}

func SetTrackingLogger(log *zap.SugaredLogger) {
	TrackingLogger = log
}

// Entry is a logger carrying key value pairs.
type Entry struct {
	fields   []any
	tracking bool
}

func With(args ...any) *Entry {
	return &Entry{fields: args}
}

func WithJob(roundID, task string) *Entry {
	return With("roundID", roundID, "task", task)
}

func WithStage(roundID, stage string) *Entry {
	return With("roundID", roundID, "stage", stage)
}

func WithDataset(index int, url string) *Entry {
	return With("index", index, "url", url)
}

// WithTrackingRun writes to the tracking log instead of the core log.
func WithTrackingRun(project, name string) *Entry {
	return &Entry{fields: []any{"project", project, "run", name}, tracking: true}
}

func (e *Entry) With(args ...any) *Entry {
	fields := make([]any, 0, len(args)+len(e.fields))
	fields = append(append(fields, args...), e.fields...)
	return &Entry{fields: fields, tracking: e.tracking}
}

func (e *Entry) Infof(template string, args ...any) {
	e.write(zapcore.InfoLevel, fmt.Sprintf(template, args...))
}

func (e *Entry) Info(args ...any) {
	e.write(zapcore.InfoLevel, fmt.Sprint(args...))
}

func (e *Entry) Warnf(template string, args ...any) {
	e.write(zapcore.WarnLevel, fmt.Sprintf(template, args...))
}

func (e *Entry) Errorf(template string, args ...any) {
	e.write(zapcore.ErrorLevel, fmt.Sprintf(template, args...))
}

func (e *Entry) Debugf(template string, args ...any) {
	e.write(zapcore.DebugLevel, fmt.Sprintf(template, args...))
}

func (e *Entry) write(level zapcore.Level, msg string) {
	if !coreLogLevelEnabler.Enabled(level) {
		return
	}

	log := CoreLogger
	if e.tracking {
		log = TrackingLogger
	}

	switch level {
	case zapcore.DebugLevel:
		log.Debugw(msg, e.fields...)
	case zapcore.WarnLevel:
		log.Warnw(msg, e.fields...)
	case zapcore.ErrorLevel:
		log.Errorw(msg, e.fields...)
	default:
		log.Infow(msg, e.fields...)
	}
}

func Infof(template string, args ...any) {
	CoreLogger.Infof(template, args...)
}

func Info(args ...any) {
	CoreLogger.Info(args...)
}

func Warnf(template string, args ...any) {
	CoreLogger.Warnf(template, args...)
}

func Warn(args ...any) {
	CoreLogger.Warn(args...)
}

func Errorf(template string, args ...any) {
	CoreLogger.Errorf(template, args...)
}

func Error(args ...any) {
	CoreLogger.Error(args...)
}

func Debugf(template string, args ...any) {
	CoreLogger.Debugf(template, args...)
}

func IsDebug() bool {
	return coreLogLevelEnabler.Enabled(zap.DebugLevel)
}

// Sync flushes buffered log entries, it is called before the process exits.
func Sync() {
	_ = CoreLogger.Sync()
	_ = TrackingLogger.Sync()
}
