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
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"google.golang.org/grpc/encoding/gzip"
)

func NewMetricsPipeline(c PipelineConfig) (func() error, error) {
	var err error

	period := 30 * time.Second

	if c.ReportingPeriod != "" {
		period, err = time.ParseDuration(c.ReportingPeriod)
		if err != nil {
			return nil, fmt.Errorf("invalid metric reporting period: %v", err)
		}
		if period <= 0 {
			return nil, fmt.Errorf("invalid metric reporting period: %v", c.ReportingPeriod)
		}
	}

	// Resolve builtin names before constructing the exporter, so a
	// bad name fails without leaving a started reader behind.
	builtins, err := resolveBuiltinMetrics(c.MetricsBuiltinLibraries)
	if err != nil {
		return nil, err
	}

	tempo, err := tempoSelector(c)
	if err != nil {
		return nil, fmt.Errorf("invalid metric temporality configuration: %v", err)
	}

	if c.Logger.GetSink() != nil {
		otel.SetLogger(c.Logger)
	}

	metricExporter, err := c.newMetricsExporter(tempo)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %v", err)
	}

	sdk := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(c.Resource),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(period)),
		),
	)

	shutdown := func() error {
		return sdk.Shutdown(context.Background())
	}

	for _, builtin := range builtins {
		if err := builtin.start(c, sdk); err != nil {
			_ = shutdown()
			return nil, fmt.Errorf("failed to start %s metrics: %v", builtin.name, err)
		}
		c.Logger.V(1).Info("started builtin metrics", "library", builtin.name)
	}

	otel.SetMeterProvider(sdk)
	return shutdown, nil
}

func (c PipelineConfig) newMetricsExporter(tempo sdkmetric.TemporalitySelector) (*otlpmetricgrpc.Exporter, error) {
	return otlpmetricgrpc.New(
		context.Background(),
		c.secureMetricOption(),
		otlpmetricgrpc.WithEndpoint(c.Endpoint),
		otlpmetricgrpc.WithHeaders(c.Headers),
		otlpmetricgrpc.WithCompressor(gzip.Name),
		otlpmetricgrpc.WithTemporalitySelector(tempo),
	)
}

func tempoSelector(c PipelineConfig) (sdkmetric.TemporalitySelector, error) {
	syncPref := metricdata.CumulativeTemporality
	asyncPref := metricdata.CumulativeTemporality

	switch lower := strings.ToLower(c.TemporalityPreference); lower {
	case "delta":
		// Delta means exercising the cumulative-to-delta export
		// path.  This is an unusual setting to choose.
		syncPref = metricdata.DeltaTemporality
		asyncPref = metricdata.DeltaTemporality
	case "stateless":
		// asyncPref set above.
		syncPref = metricdata.DeltaTemporality
	case "", "cumulative":
		// syncPref, asyncPref set above.
	default:
		return nil, fmt.Errorf("invalid temporality preference: %v", c.TemporalityPreference)
	}
	return func(k sdkmetric.InstrumentKind) metricdata.Temporality {
		switch k {
		case sdkmetric.InstrumentKindUpDownCounter, sdkmetric.InstrumentKindObservableUpDownCounter:
			// Group sums that can shrink between observations only
			// make sense cumulative, whatever the preference.
			return metricdata.CumulativeTemporality
		case sdkmetric.InstrumentKindCounter, sdkmetric.InstrumentKindHistogram:
			return syncPref
		default:
			return asyncPref
		}
	}, nil
}
