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

//go:build linux || darwin

package cputime // import "github.com/lightstep/otel-threads-go/instrumentation/cputime"

import (
	"context"
	"fmt"
	"math"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// cputime reports process-wide CPU time through getrusage.
type cputime struct {
	meter metric.Meter
}

func newCputime(c config) (*cputime, error) {
	// a trial, just to see if we get errors
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return nil, fmt.Errorf("cannot getrusage: %w", err)
	}
	return &cputime{
		meter: c.MeterProvider.Meter("otel_threads_go/cputime"),
	}, nil
}

// getProcessTimes reads user and system CPU time for the whole
// process.  User and system sum to 100% of CPU time; both are
// correlated with uptime.
func (_ *cputime) getProcessTimes(_ context.Context) (userSeconds, systemSeconds, uptimeSeconds float64) {
	uptimeSeconds = time.Since(processStartTime).Seconds()

	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		userSeconds = math.NaN()
		systemSeconds = math.NaN()
		otel.Handle(fmt.Errorf("getrusage: %w", err))
		return
	}

	utime := time.Duration(ru.Utime.Sec)*time.Second + time.Duration(ru.Utime.Usec)*time.Microsecond
	stime := time.Duration(ru.Stime.Sec)*time.Second + time.Duration(ru.Stime.Usec)*time.Microsecond

	userSeconds = utime.Seconds()
	systemSeconds = stime.Seconds()
	return
}
