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

package backoff

import (
	"time"

	cbackoff "github.com/cenkalti/backoff"
)

// CycleBackoff computes the pause before the next cycle of a periodic loop.
// While cycles succeed the pause is the remaining part of the period.
// While they fail the pause grows exponentially from the period up to a maximum.
type CycleBackoff struct {
	exp     *cbackoff.ExponentialBackOff
	period  time.Duration
	minimum time.Duration
	failing bool
}

// NewCycleBackoff creates a backoff for a loop with the given period.
// maxInterval <= 0 disables the failure backoff.
func NewCycleBackoff(period, maxInterval, minimum time.Duration) *CycleBackoff {
	var exp *cbackoff.ExponentialBackOff

	if maxInterval > 0 {
		exp = cbackoff.NewExponentialBackOff()
		exp.InitialInterval = period
		if exp.InitialInterval <= 0 {
			exp.InitialInterval = minimum
		}
		exp.MaxInterval = maxInterval
		exp.MaxElapsedTime = 0
		exp.Reset()
	}

	return &CycleBackoff{exp: exp, period: period, minimum: minimum}
}

// Next returns how long to sleep after a cycle that took elapsed and ended with err.
func (b *CycleBackoff) Next(elapsed time.Duration, err error) time.Duration {
	if err == nil || b.exp == nil || IsIgnoredError(err) {
		if b.failing && b.exp != nil {
			b.exp.Reset()
		}
		b.failing = false

		return max(b.period-elapsed, b.minimum)
	}

	b.failing = true

	wait := b.exp.NextBackOff()
	if wait == cbackoff.Stop {
		wait = b.exp.MaxInterval
	}

	return max(wait-elapsed, b.minimum)
}

// Failing reports whether the last cycle passed to Next failed.
func (b *CycleBackoff) Failing() bool {
	return b.failing
}
