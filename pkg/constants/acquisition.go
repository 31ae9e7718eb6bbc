// Copyright 2025 UMH Systems GmbH
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

package constants

import "time"

const (
	// DefaultAcquisitionPeriod is the interval between two download cycles of the root downloader.
	DefaultAcquisitionPeriod = time.Second

	// MinimumSleep is the shortest pause between two cycles of a run loop.
	// A cycle that overran its period still yields for this long.
	MinimumSleep = time.Microsecond

	// StarvationThreshold defines when an acquisition loop is considered stalled.
	// If no cycle has completed for this duration, the starvation checker
	// logs warnings and records metrics.
	StarvationThreshold = 15 * time.Second

	// DefaultFailureBackoffMax caps the pause between cycles while transfers keep failing.
	DefaultFailureBackoffMax = 30 * time.Second

	// CycleTimeWarningRatio is the share of the period a cycle may take before a warning is logged.
	CycleTimeWarningRatio = 0.8

	// DefaultConcurrency is the number of transport groups transferred in parallel.
	DefaultConcurrency = 1

	// DefaultInstanceName is used for metric labels when nothing more specific is configured.
	DefaultInstanceName = "default"
)
