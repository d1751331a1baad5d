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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsStale(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		lastUpdated time.Time
		threshold   time.Duration
		want        bool
	}{
		{"just updated", now, DefaultStaleThreshold, false},
		{"one second inside the threshold", now.Add(-DefaultStaleThreshold + time.Second), DefaultStaleThreshold, false},
		{"exactly at the threshold", now.Add(-DefaultStaleThreshold), DefaultStaleThreshold, false},
		{"one second past the threshold", now.Add(-DefaultStaleThreshold - time.Second), DefaultStaleThreshold, true},
		{"never updated", time.Time{}, DefaultStaleThreshold, true},
		{"short custom threshold", now.Add(-2 * time.Hour), time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStale(tt.lastUpdated, tt.threshold, now))
		})
	}
}
