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

package threads // import "github.com/lightstep/otel-threads-go/instrumentation/threads"

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// config contains optional settings for reporting thread metrics.
type config struct {
	// MeterProvider sets the metric.MeterProvider.  If nil, the global
	// Provider will be used.
	MeterProvider metric.MeterProvider

	// Provider enumerates the observed process's threads.  If nil, a
	// platform Provider observing PID is constructed.
	Provider Provider

	// PID selects the process observed by the platform Provider.
	// Zero means the current process.
	PID int
}

// Option supports configuring optional settings for thread metrics.
type Option interface {
	apply(*config)
}

// WithMeterProvider sets the Metric implementation to use for
// reporting.  If this option is not used, the global metric.MeterProvider
// will be used.  `provider` must be non-nil.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return metricProviderOption{provider}
}

type metricProviderOption struct{ metric.MeterProvider }

func (o metricProviderOption) apply(c *config) {
	if o.MeterProvider != nil {
		c.MeterProvider = o.MeterProvider
	}
}

// WithProvider sets the thread Provider to observe.  If this option is
// not used, threads are read from the operating system.  `provider`
// must be non-nil.
func WithProvider(provider Provider) Option {
	return providerOption{provider}
}

type providerOption struct{ Provider }

func (o providerOption) apply(c *config) {
	if o.Provider != nil {
		c.Provider = o.Provider
	}
}

// WithPID selects which process the platform Provider observes.  If
// this option is not used, the current process is observed.  The
// option has no effect combined with WithProvider.
func WithPID(pid int) Option {
	return pidOption(pid)
}

type pidOption int

func (o pidOption) apply(c *config) {
	c.PID = int(o)
}

// newConfig computes a config from a list of Options.
func newConfig(opts ...Option) config {
	c := config{
		MeterProvider: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt.apply(&c)
	}
	return c
}

// Start initializes reporting of thread metrics using the supplied
// config.  It fails when the configured process cannot be observed at
// all; transient trouble reading individual threads later is reported
// through the OpenTelemetry error handler without interrupting
// collection.
func Start(opts ...Option) error {
	cfg := newConfig(opts...)
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	t, err := newThreads(cfg)
	if err != nil {
		return err
	}
	return t.register()
}

type threads struct {
	meter    metric.Meter
	provider Provider
}

func newThreads(c config) (*threads, error) {
	provider := c.Provider
	if provider == nil {
		p, err := newProcProvider(c.PID)
		if err != nil {
			return nil, err
		}
		provider = p
	}
	return &threads{
		meter:    c.MeterProvider.Meter("otel_threads_go/threads"),
		provider: provider,
	}, nil
}

func (t *threads) register() error {
	var (
		err error

		threadCount   metric.Int64ObservableUpDownCounter
		threadCPUTime metric.Int64ObservableUpDownCounter
	)

	if threadCount, err = t.meter.Int64ObservableUpDownCounter(
		"process.thread.count",
		metric.WithUnit("{thread}"),
		metric.WithDescription(
			"Number of live threads attributed by normalized name and state",
		),
	); err != nil {
		return err
	}

	if threadCPUTime, err = t.meter.Int64ObservableUpDownCounter(
		"process.thread.cpu.time",
		metric.WithUnit("ns"),
		metric.WithDescription(
			"Accumulated CPU time of live threads attributed by normalized name and mode (User, System)",
		),
	); err != nil {
		return err
	}

	caps := t.provider.Capabilities()

	_, err = t.meter.RegisterCallback(
		func(ctx context.Context, obs metric.Observer) error {
			snapshots, err := t.provider.Snapshots(ctx)
			if err != nil {
				// Report nothing this round.  The groups reported on
				// the next successful round stand on their own.
				otel.Handle(fmt.Errorf("thread snapshots: %w", err))
				return nil
			}

			for set, count := range collectCounts(snapshots, caps) {
				obs.ObserveInt64(threadCount, count, metric.WithAttributeSet(set))
			}
			for set, nanos := range collectCPUTimes(snapshots, caps) {
				obs.ObserveInt64(threadCPUTime, nanos, metric.WithAttributeSet(set))
			}
			return nil
		},
		threadCount,
		threadCPUTime,
	)
	return err
}
