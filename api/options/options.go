// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package options specifies options for compile requests.
package options

import "github.com/gx-org/dynshape/build/lower"

type (
	// CompileOption is an option of a compile request.
	CompileOption interface {
		compileOption()
	}

	// FuncName overrides the name of the top-level function in the trace,
	// in error messages and in the lowered module.
	FuncName struct {
		Name string
	}

	// EmitTo streams the lowered functions to a target
	// in addition to recording them in the compiled artifact.
	EmitTo struct {
		Target lower.Target
	}
)

func (FuncName) compileOption() {}

func (EmitTo) compileOption() {}
