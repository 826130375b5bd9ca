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

// Package threads provides per-thread metrics for a running process,
// grouped so their cardinality stays bounded.  Runs of digits in
// thread names are collapsed to '#' before grouping, which folds the
// numbered workers of a pool ("pool-1-worker-7") into one timeseries
// per pool ("pool-#-worker-#").
//
// Threads are observed through a Provider.  On Linux the default
// Provider reads the proc filesystem; other processes than one's own
// can be observed with WithPID.  Platforms differ in what they can
// measure, so a Provider declares Capabilities once at construction:
// metrics and attributes whose facts a platform cannot measure are
// omitted rather than reported with made-up values.
//
// Each collection stands on its own.  Groups are recomputed from a
// fresh snapshot every time, an idle pool's groups simply disappear,
// and a failed snapshot reports nothing rather than stale values.
//
// The metrics produced are listed here with attribute dimensions.
//
//	Name			Attribute
//
// ----------------------------------------------------------------------
//
//	process.thread.count       thread.name, thread.state, thread.daemon
//	process.thread.cpu.time    thread.name, cpu.mode=user|system, thread.daemon
//
// The thread.daemon attribute appears only on platforms that
// distinguish daemon threads, and process.thread.cpu.time is reported
// only on platforms with per-thread CPU accounting.
package threads // import "github.com/lightstep/otel-threads-go/instrumentation/threads"
