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

//go:build linux

package threads // import "github.com/lightstep/otel-threads-go/instrumentation/threads"

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/procfs"
	"github.com/tklauser/go-sysconf"
)

// procProvider reads threads from the proc filesystem.  Linux does not
// expose a daemon notion, so HasDaemonFlag is always false here.  CPU
// timers are available when the kernel's clock tick can be resolved.
type procProvider struct {
	fs           procfs.FS
	pid          int
	nanosPerTick int64
	caps         Capabilities
}

func newProcProvider(pid int) (*procProvider, error) {
	if pid == 0 {
		pid = os.Getpid()
	}
	fs, err := procfs.NewFS(procfs.DefaultMountPoint)
	if err != nil {
		return nil, fmt.Errorf("cannot open procfs: %w", err)
	}
	if _, err := fs.Proc(pid); err != nil {
		return nil, fmt.Errorf("cannot observe process %d: %w", pid, err)
	}

	p := &procProvider{fs: fs, pid: pid}
	if clktck, err := sysconf.Sysconf(sysconf.SC_CLK_TCK); err == nil && clktck > 0 {
		p.nanosPerTick = int64(time.Second) / clktck
		p.caps.HasCPUTimers = true
	}
	return p, nil
}

func (p *procProvider) Capabilities() Capabilities {
	return p.caps
}

func (p *procProvider) Snapshots(_ context.Context) ([]Snapshot, error) {
	procs, err := p.fs.AllThreads(p.pid)
	if err != nil {
		return nil, fmt.Errorf("cannot list threads of process %d: %w", p.pid, err)
	}

	snapshots := make([]Snapshot, 0, len(procs))
	for _, proc := range procs {
		stat, err := proc.Stat()
		if err != nil {
			// The thread exited between the listing and this read.
			continue
		}
		snapshots = append(snapshots, Snapshot{
			ID:       int64(proc.PID),
			Name:     stat.Comm,
			State:    stateFromCode(stat.State),
			UserCPU:  p.ticks(stat.UTime),
			TotalCPU: p.ticks(stat.UTime + stat.STime),
		})
	}
	return snapshots, nil
}

func (p *procProvider) ticks(n uint) time.Duration {
	if !p.caps.HasCPUTimers {
		return CPUTimeUnavailable
	}
	return time.Duration(int64(n) * p.nanosPerTick)
}

// stateFromCode maps the single-letter state from /proc/[pid]/stat.
// Interruptible sleeps count as waiting; stops, traced stops, and
// uninterruptible sleeps count as blocked.
func stateFromCode(code string) State {
	switch code {
	case "R":
		return StateRunnable
	case "S", "I", "P", "W":
		return StateWaiting
	case "D", "T", "t":
		return StateBlocked
	case "Z", "X", "x":
		return StateTerminated
	default:
		return StateUnknown
	}
}
