/*
Copyright 2025 The DVSQL Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package dverrors provides the error taxonomy shared by the parser, planner
// and engine. Every error that crosses a package boundary carries a Code so
// callers can distinguish a syntax problem from a transport failure without
// string matching.
package dverrors

import (
	"context"
	"errors"
	"fmt"
)

// Code classifies an error.
type Code int

const (
	// Undefined is the code of errors that did not originate here.
	Undefined Code = iota

	// Syntax: the statement text did not parse.
	Syntax
	// Planning: the statement parsed but cannot be planned (unknown
	// function, arity mismatch, UNION column-count mismatch, unresolvable
	// subquery shape).
	Planning
	// DMLBlocked: the DML safety guard refused the statement.
	DMLBlocked
	// Evaluation: a row-level evaluation failure (cast overflow, division
	// by zero, type mismatch).
	Evaluation
	// RemoteLimit: a row cap was hit. Either the server's aggregate row cap
	// that partitioning could not get under, or the local cap a materializing
	// operator places on its input.
	RemoteLimit
	// Transport: a network or server failure bubbled up from a scan.
	Transport
	// Cancelled: the caller's context was cancelled.
	Cancelled
	// Internal: a bug in this module.
	Internal
)

var codeNames = map[Code]string{
	Undefined:   "UNDEFINED",
	Syntax:      "SYNTAX",
	Planning:    "PLANNING",
	DMLBlocked:  "DML_BLOCKED",
	Evaluation:  "EVALUATION",
	RemoteLimit: "REMOTE_LIMIT",
	Transport:   "TRANSPORT",
	Cancelled:   "CANCELLED",
	Internal:    "INTERNAL",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CODE(%d)", int(c))
}

type codedError struct {
	code Code
	err  error
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

// New returns an error with the given code.
func New(code Code, msg string) error {
	return &codedError{code: code, err: errors.New(msg)}
}

// Errorf formats an error with the given code.
func Errorf(code Code, format string, args ...any) error {
	return &codedError{code: code, err: fmt.Errorf(format, args...)}
}

// Wrap annotates err with msg, preserving err's code if it has one.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &codedError{code: CodeOf(err), err: fmt.Errorf("%s: %w", msg, err)}
}

// Wrapf annotates err, preserving its code.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode overrides the code on err.
func WithCode(code Code, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

// CodeOf returns the code carried by err or the nearest wrapped error.
// Context cancellation maps to Cancelled even when it was never wrapped.
func CodeOf(err error) Code {
	if err == nil {
		return Undefined
	}
	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Cancelled
	}
	return Undefined
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
