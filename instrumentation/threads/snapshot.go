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
	"time"
)

// CPUTimeUnavailable is the timer value a Provider reports when the
// platform cannot measure CPU time for a thread.  Aggregation treats
// any negative timer the same way.
const CPUTimeUnavailable time.Duration = -1

// State is the scheduling state of a thread at the moment it was
// observed.  The zero value is StateUnknown.
type State int

const (
	// StateUnknown marks a thread whose state could not be read.
	StateUnknown State = iota
	// StateNew is a thread that has been created but not started.
	StateNew
	// StateRunnable is a thread that is running or ready to run.
	StateRunnable
	// StateBlocked is a thread stopped or in an uninterruptible wait.
	StateBlocked
	// StateWaiting is a thread sleeping until it is signaled.
	StateWaiting
	// StateTimedWaiting is a thread sleeping with a deadline.
	StateTimedWaiting
	// StateTerminated is a thread that has exited.
	StateTerminated
)

// String returns the attribute value reported for the state.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRunnable:
		return "runnable"
	case StateBlocked:
		return "blocked"
	case StateWaiting:
		return "waiting"
	case StateTimedWaiting:
		return "timed_waiting"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Snapshot is one thread as observed during a single collection.  A
// Provider fills in only the fields its platform can measure: Name is
// empty when the thread's name could not be read, State is
// StateUnknown when its state could not be read, and the CPU timers
// are negative when the platform keeps no per-thread CPU accounting.
type Snapshot struct {
	// ID identifies the thread within the observed process.
	ID int64

	// Name is the thread's raw name, before normalization.
	Name string

	// State is the thread's scheduling state.
	State State

	// Daemon reports whether the thread is a background thread.  It
	// is meaningful only when the Provider's Capabilities include
	// HasDaemonFlag.
	Daemon bool

	// TotalCPU is the combined user and system CPU time consumed by
	// the thread since it started.  Negative means unavailable.
	TotalCPU time.Duration

	// UserCPU is the user-mode portion of TotalCPU.  Negative means
	// unavailable.
	UserCPU time.Duration
}

// Capabilities describes which optional thread facts a Provider can
// measure on its platform.  A Provider resolves its capabilities once,
// at construction, and reports the same value for its lifetime.
type Capabilities struct {
	// HasDaemonFlag indicates Snapshot.Daemon carries real data.  When
	// false the daemon attribute is omitted from every metric.
	HasDaemonFlag bool

	// HasCPUTimers indicates the platform keeps per-thread CPU
	// accounting.  When false the CPU time metric is omitted entirely.
	HasCPUTimers bool
}

// Provider enumerates the threads of a process.  Implementations do
// not need to be consistent across calls: threads may appear, vanish,
// or change state between snapshots, and a snapshot may be internally
// torn.  Aggregation treats every call as a complete, independent
// observation.
type Provider interface {
	// Capabilities reports the optional facts this Provider measures.
	// It must be constant for the life of the Provider.
	Capabilities() Capabilities

	// Snapshots returns one Snapshot per live thread.  An error means
	// the process could not be observed at all this round.
	Snapshots(ctx context.Context) ([]Snapshot, error)
}
