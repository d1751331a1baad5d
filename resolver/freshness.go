// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package resolver

import "time"

// DefaultStaleThreshold is how old a fundamentals record may be before a
// resolution triggers an upstream refresh.
const DefaultStaleThreshold = 24 * time.Hour

// IsStale reports whether a fundamentals record must be refreshed from
// upstream. A zero lastUpdated means the record was never fetched and is
// always stale. A record exactly at the threshold is still fresh; staleness
// requires the age to exceed it.
func IsStale(lastUpdated time.Time, threshold time.Duration, now time.Time) bool {
	if lastUpdated.IsZero() {
		return true
	}

	return now.Sub(lastUpdated) > threshold
}
