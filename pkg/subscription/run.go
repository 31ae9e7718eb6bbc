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

package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/backoff"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/constants"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/sentry"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/standarderrors"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/starvationchecker"
)

type runOptions struct {
	stop           func() bool
	starvation     *starvationchecker.StarvationChecker
	failureBackoff time.Duration
}

// RunOption configures Run and Runner.
type RunOption func(*runOptions)

// WithStopSignal ends the loop before the first cycle for which stop returns true.
func WithStopSignal(stop func() bool) RunOption {
	return func(o *runOptions) {
		o.stop = stop
	}
}

// WithFailureBackoff stretches the pause after failed cycles exponentially, up to maxInterval.
func WithFailureBackoff(maxInterval time.Duration) RunOption {
	return func(o *runOptions) {
		o.failureBackoff = maxInterval
	}
}

// WithStarvationChecker reports every completed cycle to checker.
func WithStarvationChecker(checker *starvationchecker.StarvationChecker) RunOption {
	return func(o *runOptions) {
		o.starvation = checker
	}
}

// Run downloads every period until ctx is done, the stop signal fires, a callback returns
// standarderrors.ErrStopRun, or a transfer fails with a permanent error, which is returned.
// Other failures are logged and retried in the next cycle.
func (d *downloadConn) Run(ctx context.Context, period time.Duration, opts ...RunOption) error {
	return d.run(ctx, period, "download", d.Download, opts)
}

// Runner returns Run bound to period and opts, to hand to a goroutine or an errgroup.
func (d *downloadConn) Runner(period time.Duration, opts ...RunOption) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return d.Run(ctx, period, opts...)
	}
}

// Run uploads every period. It stops under the same conditions as Downloader.Run.
func (u *uploadConn) Run(ctx context.Context, period time.Duration, opts ...RunOption) error {
	return u.run(ctx, period, "upload", u.Upload, opts)
}

func (u *uploadConn) Runner(period time.Duration, opts ...RunOption) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return u.Run(ctx, period, opts...)
	}
}

func (c *conn) run(ctx context.Context, period time.Duration, operation string, cycle func(context.Context) error, opts []RunOption) error {
	o := runOptions{stop: func() bool { return false }}
	for _, opt := range opts {
		opt(&o)
	}

	log := c.tree.log.With("operation", operation, "period", period)
	bo := backoff.NewCycleBackoff(period, o.failureBackoff, constants.MinimumSleep)

	timer := time.NewTimer(0)
	defer timer.Stop()

	log.Debugf("starting %s loop", operation)

	for {
		select {
		case <-ctx.Done():
			log.Debugf("%s loop stopped: %v", operation, ctx.Err())

			return nil
		case <-timer.C:
		}

		if o.stop() {
			log.Debugf("%s loop stopped by signal", operation)

			return nil
		}

		start := time.Now()
		err := cycle(ctx)
		elapsed := time.Since(start)

		if o.starvation != nil {
			o.starvation.UpdateLastCycleTime()
		}

		switch {
		case err == nil:
		case errors.Is(err, standarderrors.ErrStopRun):
			log.Debugf("%s loop stopped by callback", operation)

			return nil
		case errors.Is(err, standarderrors.ErrDisconnected), backoff.IsPermanentError(err):
			return err
		case ctx.Err() != nil:
			return nil
		case backoff.IsIgnoredError(err):
		default:
			sentry.ReportTransferError(log, c.tree.component, c.tree.opts.instance, operation, err)
		}

		if period > 0 && float64(elapsed) > constants.CycleTimeWarningRatio*float64(period) {
			log.Warnf("%s cycle took %s, %.0f%% of the period", operation, elapsed, 100*float64(elapsed)/float64(period))
		}

		timer.Reset(bo.Next(elapsed, err))
	}
}
