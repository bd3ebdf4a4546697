/*
Copyright 2026 jr42.

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

// Package pxlog wires up the structured logr.Logger this core and its
// external-collaborator packages log through: a zap logger adapted to
// logr.Logger via zapr, built directly since there is no surrounding
// manager to assemble one implicitly.
package pxlog

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// New returns a production zap logger adapted to logr.Logger and named
// name.
func New(name string) logr.Logger {
	zl, err := zap.NewProduction()
	if err != nil {
		zl = zap.NewNop()
	}
	return zapr.NewLogger(zl).WithName(name)
}

// NewDevelopment returns a development zap logger (human-readable, debug
// verbosity) adapted to logr.Logger, used by tests and local runs.
func NewDevelopment() logr.Logger {
	zl, err := zap.NewDevelopment()
	if err != nil {
		zl = zap.NewNop()
	}
	return zapr.NewLogger(zl)
}
