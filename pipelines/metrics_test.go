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
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/go-logr/stdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/credentials"
	"google.golang.org/protobuf/encoding/prototext"

	"github.com/lightstep/otel-threads-go/pipelines/test"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestMain(m *testing.M) {
	// Surface OpenTelemetry internals while the pipeline tests run.
	stdr.SetVerbosity(5)
	otel.SetLogger(stdr.New(log.New(os.Stderr, "", log.LstdFlags|log.Lshortfile)))
	os.Exit(m.Run())
}

func newTLSConfig() *tls.Config {
	certPool := x509.NewCertPool()

	ok := certPool.AppendCertsFromPEM([]byte(test.TestCARootCertificate))

	if !ok {
		panic("could not parse certificate authority certificate")
	}
	return &tls.Config{
		RootCAs:    certPool,
		ServerName: test.ServerName,
	}
}

func TestInsecureMetrics(t *testing.T) {
	server := test.NewServer(t)
	defer server.Stop()

	shutdown, err := NewMetricsPipeline(PipelineConfig{
		Endpoint: fmt.Sprintf("%s:%d", test.ServerName, server.InsecureMetricsPort),
		Insecure: true,
		Headers: map[string]string{
			"test-header": "test-value",
		},
		Resource: resource.NewWithAttributes(
			semconv.SchemaURL,
			attribute.String("test-r1", "test-v1"),
		),
		ReportingPeriod: "24h",
	})
	assert.NoError(t, err)

	meter := otel.Meter("test-library")
	counter, err := meter.Float64Counter("test-counter")
	assert.NoError(t, err)
	counter.Add(context.Background(), 1)

	require.NoError(t, shutdown())

	require.Equal(t, 1, len(server.MetricsRequests()))
	txt, err := prototext.Marshal(server.MetricsRequests()[0])
	require.NoError(t, err)
	require.Contains(t, string(txt), "test-counter")
	require.Contains(t, string(txt), "test-r1")
	require.Contains(t, string(txt), "test-v1")
	require.Contains(t, string(txt), "test-library")

	require.Equal(t, []string{"test-value"}, server.MetricsMDs()[0]["test-header"])
}

func TestSecureMetrics(t *testing.T) {
	server := test.NewServer(t)
	defer server.Stop()

	shutdown, err := NewMetricsPipeline(PipelineConfig{
		Endpoint: fmt.Sprintf("%s:%d", test.ServerName, server.SecureMetricsPort),
		Headers: map[string]string{
			"test-header": "test-value",
		},
		Resource: resource.NewWithAttributes(
			semconv.SchemaURL,
			attribute.String("test-r1", "test-v1"),
		),
		ReportingPeriod: "24h",
		Credentials:     credentials.NewTLS(newTLSConfig()),
	})
	assert.NoError(t, err)

	meter := otel.Meter("test-library")
	counter, err := meter.Float64Counter("test-counter")
	assert.NoError(t, err)
	counter.Add(context.Background(), 1)

	require.NoError(t, shutdown())

	require.Equal(t, 1, len(server.MetricsRequests()))
	txt, err := prototext.Marshal(server.MetricsRequests()[0])
	require.NoError(t, err)
	require.Contains(t, string(txt), "test-counter")
	require.Contains(t, string(txt), "test-r1")
	require.Contains(t, string(txt), "test-v1")
	require.Contains(t, string(txt), "test-library")

	require.Equal(t, []string{"test-value"}, server.MetricsMDs()[0]["test-header"])
}

func TestBuiltinMetrics(t *testing.T) {
	server := test.NewServer(t)
	defer server.Stop()

	shutdown, err := NewMetricsPipeline(PipelineConfig{
		Endpoint:                fmt.Sprintf("%s:%d", test.ServerName, server.InsecureMetricsPort),
		Insecure:                true,
		Resource:                resource.Empty(),
		ReportingPeriod:         "24h",
		MetricsBuiltinLibraries: []string{"cputime:v0"},
	})
	require.NoError(t, err)
	require.NoError(t, shutdown())

	require.Equal(t, 1, len(server.MetricsRequests()))
	txt, err := prototext.Marshal(server.MetricsRequests()[0])
	require.NoError(t, err)
	require.Contains(t, string(txt), "process.cpu.time")
	require.Contains(t, string(txt), "process.uptime")
	require.Contains(t, string(txt), "otel_threads_go/cputime")
}

func TestUnknownBuiltinMetrics(t *testing.T) {
	// Builtin names are resolved before anything starts, so no
	// collector is needed.
	_, err := NewMetricsPipeline(PipelineConfig{
		Endpoint:                "127.0.0.1:1",
		Insecure:                true,
		MetricsBuiltinLibraries: []string{"bogus"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), `unsupported builtin metrics library: "bogus"`)
	require.Contains(t, err.Error(), "cputime:v0,host:v0,runtime:v0,threads:v0")
}

func TestInvalidReportingPeriod(t *testing.T) {
	for _, period := range []string{"-5s", "0s", "a week"} {
		_, err := NewMetricsPipeline(PipelineConfig{
			Endpoint:        "127.0.0.1:1",
			Insecure:        true,
			ReportingPeriod: period,
		})
		require.Error(t, err, "period %q", period)
		require.Contains(t, err.Error(), "invalid metric reporting period", "period %q", period)
	}
}

func TestInvalidTemporalityPreference(t *testing.T) {
	_, err := NewMetricsPipeline(PipelineConfig{
		Endpoint:              "127.0.0.1:1",
		Insecure:              true,
		TemporalityPreference: "sometimes",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid temporality preference: sometimes")
}

func TestTemporalitySelector(t *testing.T) {
	const (
		cumulative = metricdata.CumulativeTemporality
		delta      = metricdata.DeltaTemporality
	)
	for _, tt := range []struct {
		pref   string
		sync   metricdata.Temporality
		async  metricdata.Temporality
		updown metricdata.Temporality
	}{
		{"", cumulative, cumulative, cumulative},
		{"cumulative", cumulative, cumulative, cumulative},
		{"delta", delta, delta, cumulative},
		{"stateless", delta, cumulative, cumulative},
	} {
		selector, err := tempoSelector(PipelineConfig{TemporalityPreference: tt.pref})
		require.NoError(t, err, "preference %q", tt.pref)

		require.Equal(t, tt.sync, selector(sdkmetric.InstrumentKindCounter), "preference %q", tt.pref)
		require.Equal(t, tt.async, selector(sdkmetric.InstrumentKindObservableCounter), "preference %q", tt.pref)
		// Up/down instruments report shrinkable sums and stay
		// cumulative under every preference.
		require.Equal(t, tt.updown, selector(sdkmetric.InstrumentKindUpDownCounter), "preference %q", tt.pref)
		require.Equal(t, tt.updown, selector(sdkmetric.InstrumentKindObservableUpDownCounter), "preference %q", tt.pref)
	}
}
