// Copyright Lightstep Authors
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

package pipelines

import (
	"fmt"
	"sort"
	"strings"

	hostMetrics "go.opentelemetry.io/contrib/instrumentation/host"
	runtimeMetrics "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel/metric"

	"github.com/lightstep/otel-threads-go/instrumentation/cputime"
	"github.com/lightstep/otel-threads-go/instrumentation/threads"
)

// builtinMetric is one library of always-on instrumentation that a
// metrics pipeline can start against its own provider.
type builtinMetric struct {
	name  string
	start func(PipelineConfig, metric.MeterProvider) error
}

// builtinMetricsLibraries is keyed by qualified name.  The unversioned
// short name selects the default major version, ":v0".
var builtinMetricsLibraries = map[string]func(PipelineConfig, metric.MeterProvider) error{
	"threads:v0": startThreadsMetrics,
	"cputime:v0": startCputimeMetrics,
	"runtime:v0": startRuntimeMetrics,
	"host:v0":    startHostMetrics,
}

func resolveBuiltinMetrics(names []string) ([]builtinMetric, error) {
	builtins := make([]builtinMetric, 0, len(names))
	for _, name := range names {
		qualified := name
		if !strings.Contains(qualified, ":") {
			qualified += ":v0"
		}
		start, ok := builtinMetricsLibraries[qualified]
		if !ok {
			return nil, fmt.Errorf(
				"unsupported builtin metrics library: %q. Supported options: %s",
				name, strings.Join(supportedBuiltinMetrics(), ","))
		}
		builtins = append(builtins, builtinMetric{name: name, start: start})
	}
	return builtins, nil
}

func supportedBuiltinMetrics() []string {
	names := make([]string, 0, len(builtinMetricsLibraries))
	for name := range builtinMetricsLibraries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func startThreadsMetrics(c PipelineConfig, provider metric.MeterProvider) error {
	opts := []threads.Option{threads.WithMeterProvider(provider)}
	if c.ThreadsTargetPID != 0 {
		opts = append(opts, threads.WithPID(c.ThreadsTargetPID))
	}
	return threads.Start(opts...)
}

func startCputimeMetrics(_ PipelineConfig, provider metric.MeterProvider) error {
	return cputime.Start(cputime.WithMeterProvider(provider))
}

func startRuntimeMetrics(_ PipelineConfig, provider metric.MeterProvider) error {
	return runtimeMetrics.Start(runtimeMetrics.WithMeterProvider(provider))
}

func startHostMetrics(_ PipelineConfig, provider metric.MeterProvider) error {
	return hostMetrics.Start(hostMetrics.WithMeterProvider(provider))
}
