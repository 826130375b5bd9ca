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

//go:build !linux

package threads // import "github.com/lightstep/otel-threads-go/instrumentation/threads"

import (
	"fmt"
	"runtime"
)

// Thread enumeration requires the proc filesystem.  Other platforms
// can supply their own Provider through WithProvider.
func newProcProvider(int) (Provider, error) {
	return nil, fmt.Errorf("thread metrics are not supported on %s", runtime.GOOS)
}
