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
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys reported by this package.
var (
	// ThreadNameKey carries the normalized thread name.
	ThreadNameKey = attribute.Key("thread.name")

	// ThreadStateKey carries State.String().
	ThreadStateKey = attribute.Key("thread.state")

	// ThreadDaemonKey marks daemon threads.  Present only when the
	// Provider reports HasDaemonFlag.
	ThreadDaemonKey = attribute.Key("thread.daemon")

	// CPUModeKey distinguishes user from system CPU time.
	CPUModeKey = attribute.Key("cpu.mode")
)

const (
	cpuModeUser   = "user"
	cpuModeSystem = "system"
)

// collectCounts groups the snapshots by normalized name, state, and,
// when caps.HasDaemonFlag, daemon flag, counting the threads in each
// group.  Snapshots missing a name or state are dropped: a thread
// that cannot be attributed to a group is not counted at all.  The
// result is computed fresh from the input alone.
func collectCounts(snapshots []Snapshot, caps Capabilities) map[attribute.Set]int64 {
	counts := make(map[attribute.Set]int64, len(snapshots))
	for _, s := range snapshots {
		if s.Name == "" || s.State == StateUnknown {
			continue
		}
		attrs := make([]attribute.KeyValue, 0, 3)
		attrs = append(attrs,
			ThreadNameKey.String(normalizeName(s.Name)),
			ThreadStateKey.String(s.State.String()),
		)
		if caps.HasDaemonFlag {
			attrs = append(attrs, ThreadDaemonKey.Bool(s.Daemon))
		}
		counts[attribute.NewSet(attrs...)]++
	}
	return counts
}

// collectCPUTimes groups the snapshots by normalized name, CPU mode,
// and, when caps.HasDaemonFlag, daemon flag, summing nanoseconds of
// CPU time in each group.  Snapshots missing a name or reporting a
// negative timer are dropped; a negative timer marks a thread the
// platform could not measure, and partial measurements would skew the
// group sums.  When a thread reports more user time than total time,
// the derived system time is clamped to zero.  Without per-thread CPU
// accounting the result is empty and no CPU metric is reported.
func collectCPUTimes(snapshots []Snapshot, caps Capabilities) map[attribute.Set]int64 {
	times := make(map[attribute.Set]int64)
	if !caps.HasCPUTimers {
		return times
	}
	for _, s := range snapshots {
		if s.Name == "" || s.TotalCPU < 0 || s.UserCPU < 0 {
			continue
		}
		system := s.TotalCPU - s.UserCPU
		if system < 0 {
			system = 0
		}
		name := normalizeName(s.Name)
		times[cpuTimeSet(name, cpuModeUser, s.Daemon, caps)] += int64(s.UserCPU)
		times[cpuTimeSet(name, cpuModeSystem, s.Daemon, caps)] += int64(system)
	}
	return times
}

func cpuTimeSet(name, mode string, daemon bool, caps Capabilities) attribute.Set {
	attrs := make([]attribute.KeyValue, 0, 3)
	attrs = append(attrs,
		ThreadNameKey.String(name),
		CPUModeKey.String(mode),
	)
	if caps.HasDaemonFlag {
		attrs = append(attrs, ThreadDaemonKey.Bool(daemon))
	}
	return attribute.NewSet(attrs...)
}
