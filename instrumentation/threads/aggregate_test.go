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

package threads

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel/attribute"
)

var allCaps = Capabilities{HasDaemonFlag: true, HasCPUTimers: true}

func countAttrs(name, state string, daemon bool) attribute.Set {
	return attribute.NewSet(
		ThreadNameKey.String(name),
		ThreadStateKey.String(state),
		ThreadDaemonKey.Bool(daemon),
	)
}

func cpuAttrs(name, mode string, daemon bool) attribute.Set {
	return attribute.NewSet(
		ThreadNameKey.String(name),
		CPUModeKey.String(mode),
		ThreadDaemonKey.Bool(daemon),
	)
}

func TestCollectCountsGrouping(t *testing.T) {
	snapshots := []Snapshot{
		{ID: 1, Name: "main", State: StateRunnable},
		{ID: 2, Name: "pool-1-worker-1", State: StateRunnable, Daemon: true},
		{ID: 3, Name: "pool-1-worker-2", State: StateRunnable, Daemon: true},
		{ID: 4, Name: "pool-2-worker-1", State: StateWaiting, Daemon: true},
	}

	require.Equal(t, map[attribute.Set]int64{
		countAttrs("main", "runnable", false):           1,
		countAttrs("pool-#-worker-#", "runnable", true): 2,
		countAttrs("pool-#-worker-#", "waiting", true):  1,
	}, collectCounts(snapshots, allCaps))
}

func TestCollectCountsSkipsUnattributable(t *testing.T) {
	snapshots := []Snapshot{
		{ID: 1, Name: "", State: StateRunnable},
		{ID: 2, Name: "main", State: StateUnknown},
		// Missing CPU timers do not affect counting.
		{ID: 3, Name: "main", State: StateRunnable,
			TotalCPU: CPUTimeUnavailable, UserCPU: CPUTimeUnavailable},
	}

	require.Equal(t, map[attribute.Set]int64{
		countAttrs("main", "runnable", false): 1,
	}, collectCounts(snapshots, allCaps))
}

func TestCollectCountsWithoutDaemonFlag(t *testing.T) {
	snapshots := []Snapshot{
		{ID: 1, Name: "worker-1", State: StateRunnable, Daemon: true},
		{ID: 2, Name: "worker-2", State: StateRunnable, Daemon: false},
	}

	counts := collectCounts(snapshots, Capabilities{HasCPUTimers: true})
	require.Equal(t, map[attribute.Set]int64{
		attribute.NewSet(
			ThreadNameKey.String("worker-#"),
			ThreadStateKey.String("runnable"),
		): 2,
	}, counts)

	for set := range counts {
		_, ok := set.Value(ThreadDaemonKey)
		require.False(t, ok)
	}
}

func TestCollectCountsEmpty(t *testing.T) {
	require.Empty(t, collectCounts(nil, allCaps))
	require.Empty(t, collectCounts([]Snapshot{}, allCaps))
}

func TestCollectCountsOrderInvariant(t *testing.T) {
	var snapshots []Snapshot
	for i := 0; i < 20; i++ {
		snapshots = append(snapshots, Snapshot{
			ID:     int64(i),
			Name:   "pool-1-worker-" + string(rune('0'+i%10)),
			State:  State(1 + i%6),
			Daemon: i%2 == 0,
		})
	}
	want := collectCounts(snapshots, allCaps)

	shuffled := make([]Snapshot, len(snapshots))
	copy(shuffled, snapshots)
	rand.New(rand.NewSource(1)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	require.Equal(t, want, collectCounts(shuffled, allCaps))
	// Identical input produces an identical result.
	require.Equal(t, want, collectCounts(snapshots, allCaps))
}

func TestCollectDisjointBatchesAdd(t *testing.T) {
	batchA := []Snapshot{
		{ID: 1, Name: "worker-1", State: StateRunnable,
			TotalCPU: 100 * time.Millisecond, UserCPU: 60 * time.Millisecond},
	}
	batchB := []Snapshot{
		{ID: 2, Name: "worker-2", State: StateRunnable,
			TotalCPU: 40 * time.Millisecond, UserCPU: 40 * time.Millisecond},
		{ID: 3, Name: "main", State: StateBlocked,
			TotalCPU: 10 * time.Millisecond, UserCPU: 5 * time.Millisecond},
	}
	union := append(append([]Snapshot{}, batchA...), batchB...)

	merge := func(a, b map[attribute.Set]int64) map[attribute.Set]int64 {
		out := make(map[attribute.Set]int64, len(a)+len(b))
		for set, v := range a {
			out[set] += v
		}
		for set, v := range b {
			out[set] += v
		}
		return out
	}

	require.Equal(t,
		collectCounts(union, allCaps),
		merge(collectCounts(batchA, allCaps), collectCounts(batchB, allCaps)))
	require.Equal(t,
		collectCPUTimes(union, allCaps),
		merge(collectCPUTimes(batchA, allCaps), collectCPUTimes(batchB, allCaps)))
}

func TestCollectCPUTimesGrouping(t *testing.T) {
	snapshots := []Snapshot{
		{ID: 1, Name: "pool-1-worker-1", State: StateRunnable, Daemon: true,
			TotalCPU: 100 * time.Millisecond, UserCPU: 60 * time.Millisecond},
		{ID: 2, Name: "pool-1-worker-2", State: StateWaiting, Daemon: true,
			TotalCPU: 200 * time.Millisecond, UserCPU: 150 * time.Millisecond},
		{ID: 3, Name: "main", State: StateRunnable,
			TotalCPU: 5 * time.Millisecond, UserCPU: 5 * time.Millisecond},
	}

	require.Equal(t, map[attribute.Set]int64{
		cpuAttrs("pool-#-worker-#", "user", true):   int64(210 * time.Millisecond),
		cpuAttrs("pool-#-worker-#", "system", true): int64(90 * time.Millisecond),
		cpuAttrs("main", "user", false):             int64(5 * time.Millisecond),
		cpuAttrs("main", "system", false):           int64(0),
	}, collectCPUTimes(snapshots, allCaps))
}

func TestCollectCPUTimesClampsSystem(t *testing.T) {
	// Timers read at slightly different instants can report more user
	// time than total time.
	snapshots := []Snapshot{
		{ID: 1, Name: "worker-1", State: StateRunnable,
			TotalCPU: 50 * time.Millisecond, UserCPU: 70 * time.Millisecond},
	}

	require.Equal(t, map[attribute.Set]int64{
		cpuAttrs("worker-#", "user", false):   int64(70 * time.Millisecond),
		cpuAttrs("worker-#", "system", false): int64(0),
	}, collectCPUTimes(snapshots, allCaps))
}

func TestCollectCPUTimesSkipsSentinels(t *testing.T) {
	snapshots := []Snapshot{
		{ID: 1, Name: "worker-1", State: StateRunnable,
			TotalCPU: CPUTimeUnavailable, UserCPU: 10 * time.Millisecond},
		{ID: 2, Name: "worker-2", State: StateRunnable,
			TotalCPU: 10 * time.Millisecond, UserCPU: CPUTimeUnavailable},
		{ID: 3, Name: "", State: StateRunnable,
			TotalCPU: 10 * time.Millisecond, UserCPU: 10 * time.Millisecond},
	}

	require.Empty(t, collectCPUTimes(snapshots, allCaps))
	// The same threads still count, sentinels or not.
	require.Equal(t, int64(2), func() (total int64) {
		for _, v := range collectCounts(snapshots, allCaps) {
			total += v
		}
		return
	}())
}

func TestCollectCPUTimesStateNotConsulted(t *testing.T) {
	// CPU time groups carry no state dimension, so a thread whose
	// state could not be read still contributes its measured time.
	snapshots := []Snapshot{
		{ID: 1, Name: "worker-1", State: StateUnknown,
			TotalCPU: 30 * time.Millisecond, UserCPU: 10 * time.Millisecond},
	}

	require.Equal(t, map[attribute.Set]int64{
		cpuAttrs("worker-#", "user", false):   int64(10 * time.Millisecond),
		cpuAttrs("worker-#", "system", false): int64(20 * time.Millisecond),
	}, collectCPUTimes(snapshots, allCaps))
	require.Empty(t, collectCounts(snapshots, allCaps))
}

func TestCollectCPUTimesWithoutTimers(t *testing.T) {
	snapshots := []Snapshot{
		{ID: 1, Name: "worker-1", State: StateRunnable,
			TotalCPU: 100 * time.Millisecond, UserCPU: 60 * time.Millisecond},
	}

	require.Empty(t, collectCPUTimes(snapshots, Capabilities{HasDaemonFlag: true}))
}
