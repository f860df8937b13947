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

// Package fmterr defines the errors reported when tracing and lowering
// functions with symbolic axes, and how they are formatted.
//
// User errors (invalid axis specifications, operators that cannot be
// shape-polymorphic, incompatible call-time shapes) are distinct from
// internal errors, which are always wrapped with Internal.
package fmterr
