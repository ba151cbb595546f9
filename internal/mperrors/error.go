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

package mperrors

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Code classifies a pipeline failure.
type Code string

const (
	// CodeConfiguration is returned when the job spec or trainer config is missing or invalid.
	CodeConfiguration Code = "ConfigurationError"

	// CodeFetch is returned when a dataset can not be retrieved.
	CodeFetch Code = "FetchError"

	// CodeData is returned when staged data can not be parsed or has no training split.
	CodeData Code = "DataError"

	// CodeTraining is returned when the training step fails.
	CodeTraining Code = "TrainingError"

	// CodePublish is returned when the registry upload fails.
	CodePublish Code = "PublishError"

	// CodeTracking is returned when the experiment tracker can not be reached.
	CodeTracking Code = "TrackingError"

	// CodeUnknown is the code of errors that are not *Error.
	CodeUnknown Code = "UnknownError"
)

type Error struct {
	Code    Code
	Message string

	cause error
	stack error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Format prints the message and, with %+v, the stack recorded where the error was created.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s\n%+v", e.Error(), e.stack)
			return
		}
		fallthrough
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

func New(code Code, msg string) *Error {
	return &Error{
		Code:    code,
		Message: msg,
		stack:   errors.New(msg),
	}
}

func Newf(code Code, format string, a ...any) *Error {
	return New(code, fmt.Sprintf(format, a...))
}

func Wrap(code Code, err error, msg string) *Error {
	return &Error{
		Code:    code,
		Message: msg,
		cause:   err,
		stack:   errors.WithStack(err),
	}
}

func Wrapf(code Code, err error, format string, a ...any) *Error {
	return Wrap(code, err, fmt.Sprintf(format, a...))
}

// CodeOf returns the code of the first *Error in the chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return CodeUnknown
}

// CheckError reports whether err carries code, errors without a code are CodeUnknown.
func CheckError(err error, code Code) bool {
	if err == nil {
		return false
	}

	return CodeOf(err) == code
}

// Trace returns the diagnostic trace of err.
func Trace(err error) string {
	if err == nil {
		return ""
	}

	return fmt.Sprintf("%+v", err)
}
