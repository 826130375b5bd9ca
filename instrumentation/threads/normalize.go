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

import "strings"

const digits = "0123456789"

// normalizeName replaces each maximal run of ASCII digits in name with
// a single '#'.  Pools name their workers with incrementing counters,
// so without this every short-lived worker would mint a distinct
// timeseries.  Names that contain no digits are returned unchanged,
// including the empty string.
func normalizeName(name string) string {
	if !strings.ContainsAny(name, digits) {
		return name
	}
	var b strings.Builder
	b.Grow(len(name))
	inRun := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= '0' && c <= '9' {
			if !inRun {
				b.WriteByte('#')
				inRun = true
			}
			continue
		}
		inRun = false
		b.WriteByte(c)
	}
	return b.String()
}
