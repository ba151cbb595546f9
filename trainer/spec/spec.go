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

package spec

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/neuronetiq/marketplace-trainer/internal/mperrors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	if err := v.RegisterValidation("httpurl", isHTTPURL); err != nil {
		panic(err)
	}

	return v
}

// isHTTPURL accepts absolute http and https urls with a host.
func isHTTPURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Source is where the raw job spec is read from.
type Source struct {
	// File is the path of a spec file, it takes precedence over Raw.
	File string

	// Raw is the job spec content, usually from TRAINING_SPEC.
	Raw string
}

// Read returns the raw spec bytes.
func (s Source) Read() ([]byte, error) {
	if s.File != "" {
		data, err := os.ReadFile(s.File)
		if err != nil {
			return nil, mperrors.Wrapf(mperrors.CodeConfiguration, err, "read spec file %s", s.File)
		}

		return data, nil
	}

	if strings.TrimSpace(s.Raw) == "" {
		return nil, mperrors.New(mperrors.CodeConfiguration, "TRAINING_SPEC environment variable not found")
	}

	return []byte(s.Raw), nil
}

// Load reads the source and parses the job spec.
func Load(src Source) (*JobSpec, error) {
	data, err := src.Read()
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse decodes and validates a job spec, it performs no I/O.
func Parse(data []byte) (*JobSpec, error) {
	s := &JobSpec{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, mperrors.Wrap(mperrors.CodeConfiguration, err, "decode job spec")
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate checks the job spec, failures are ConfigurationError.
func (s *JobSpec) Validate() error {
	var messages []string
	if err := validate.Struct(s); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return mperrors.Wrap(mperrors.CodeConfiguration, err, "validate job spec")
		}

		for _, fe := range verrs {
			messages = append(messages, message(fe))
		}
	}

	messages = append(messages, s.validateHyperparams()...)
	if len(messages) > 0 {
		return mperrors.New(mperrors.CodeConfiguration, strings.Join(dedup(messages), "; "))
	}

	return nil
}

// validateHyperparams checks the keys read by the pipeline, other keys may hold any value.
func (s *JobSpec) validateHyperparams() []string {
	var messages []string
	for _, k := range numericHyperparams {
		if v, ok := s.Hyperparams[k]; ok && v != nil && !isNumeric(v) {
			messages = append(messages, fmt.Sprintf("hyperparams.%s must be a number", k))
		}
	}

	if v, ok := s.Hyperparams[HyperparamTargetColumn]; ok && v != nil {
		if _, ok := v.(string); !ok {
			messages = append(messages, fmt.Sprintf("hyperparams.%s must be a string", HyperparamTargetColumn))
		}
	}

	if len(messages) > 0 {
		return messages
	}

	if s.Hyperparams.EpochCount() < 1 {
		messages = append(messages, "hyperparams.epoch_count must be a positive integer")
	}

	if s.Hyperparams.LearningRate() <= 0 {
		messages = append(messages, "hyperparams.learning_rate must be positive")
	}

	if s.Hyperparams.BatchSize() < 1 {
		messages = append(messages, "hyperparams.batch_size must be a positive integer")
	}

	return messages
}

// message turns a field error into a human message naming the json field.
func message(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required", "min":
		if field == "dataset_urls" {
			return "dataset_urls must not be empty"
		}
		return fmt.Sprintf("%s is required", field)
	case "httpurl":
		return fmt.Sprintf("%s must be an absolute http(s) url, got %q", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	}

	return fmt.Sprintf("%s failed on %s", field, fe.Tag())
}

func dedup(messages []string) []string {
	seen := make(map[string]struct{}, len(messages))
	var result []string
	for _, m := range messages {
		if _, ok := seen[m]; ok {
			continue
		}

		seen[m] = struct{}{}
		result = append(result, m)
	}

	return result
}
