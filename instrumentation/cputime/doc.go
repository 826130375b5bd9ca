// Copyright The OpenTelemetry Authors
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

// Package cputime provides process-wide CPU time and uptime metrics,
// as observed by the process itself.  They complement the per-thread
// breakdown of the threads package: the sum over the thread CPU time
// groups approaches process.cpu.time, minus the time of threads that
// have already exited.
//
// The metrics produced are listed here with attribute dimensions.
//
//	Name			Attribute
//
// ----------------------------------------------------------------------
//
//	process.cpu.time           state=user|system
//	process.uptime
//
// See https://github.com/open-telemetry/oteps/blob/main/text/0119-standard-system-metrics.md
// for the definition of these metric instruments.
package cputime // import "github.com/lightstep/otel-threads-go/instrumentation/cputime"
