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

package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/constants"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/datalink"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/standarderrors"
)

type runnerOptions struct {
	maxIterations int
	download      bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*runnerOptions)

// WithMaxIterations ends the loop after n updates. n <= 0 means no limit.
func WithMaxIterations(n int) RunnerOption {
	return func(o *runnerOptions) {
		o.maxIterations = n
	}
}

// WithDownload downloads the monitor's data record before every update.
// Download errors are passed to Update.
func WithDownload() RunnerOption {
	return func(o *runnerOptions) {
		o.download = true
	}
}

// Runner updates a monitor in its own periodic loop. Stop, Pause and Resume may be
// called from other goroutines while Start runs.
type Runner[C, D any] struct {
	linker  *Linker[C, D]
	link    *datalink.Link
	wake    chan struct{}
	opts    runnerOptions
	period  time.Duration
	running atomic.Bool
	stopped atomic.Bool
	paused  atomic.Bool
}

func NewRunner[C, D any](linker *Linker[C, D], period time.Duration, opts ...RunnerOption) (*Runner[C, D], error) {
	r := &Runner[C, D]{
		linker: linker,
		period: period,
		wake:   make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(&r.opts)
	}

	if r.opts.download {
		link, err := linker.DataLink()
		if err != nil {
			return nil, err
		}

		r.link = link
	}

	return r, nil
}

// Start starts the monitor and updates it every period until Stop, ctx being done,
// the iteration limit, or the monitor ending itself. The monitor is stopped on return.
// Errors from Update other than ErrEndMonitor end the loop and are returned.
// A Stop issued before Start makes the next Start return without starting the monitor.
func (r *Runner[C, D]) Start(ctx context.Context) (err error) {
	if !r.running.CompareAndSwap(false, true) {
		return standarderrors.ErrAlreadyRunning
	}

	if r.stopped.Swap(false) {
		r.running.Store(false)

		return nil
	}

	defer func() {
		r.stopped.Store(false)
		r.running.Store(false)
		err = errors.Join(err, r.linker.Stop())
	}()

	if err := r.linker.Start(); err != nil {
		return err
	}

	for i := 0; r.opts.maxIterations <= 0 || i < r.opts.maxIterations; i++ {
		if r.stopped.Load() {
			return nil
		}

		if r.paused.Load() {
			if !r.waitPaused(ctx) {
				return nil
			}
		}

		start := time.Now()

		var transferErr error
		if r.link != nil {
			transferErr = r.link.Download(ctx)
		}

		if err := r.linker.Update(transferErr); err != nil {
			if errors.Is(err, ErrEndMonitor) {
				return nil
			}

			return err
		}

		if !r.sleep(ctx, max(r.period-time.Since(start), constants.MinimumSleep)) {
			return nil
		}
	}

	return nil
}

// waitPaused pauses the monitor until Resume. It returns false if the loop must end.
func (r *Runner[C, D]) waitPaused(ctx context.Context) bool {
	if err := r.linker.Pause(); err != nil {
		r.linker.logger.Warnf("failed to pause: %v", err)
	}

	for r.paused.Load() && !r.stopped.Load() {
		select {
		case <-ctx.Done():
			return false
		case <-r.wake:
		}
	}

	if r.stopped.Load() {
		return false
	}

	if err := r.linker.Resume(); err != nil {
		r.linker.logger.Warnf("failed to resume: %v", err)
	}

	return true
}

// sleep waits for d. It returns false if the loop must end.
func (r *Runner[C, D]) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case <-r.wake:
			if r.stopped.Load() {
				return false
			}
		}
	}
}

func (r *Runner[C, D]) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Stop ends the loop. The monitor is stopped by the returning Start.
func (r *Runner[C, D]) Stop() {
	r.stopped.Store(true)
	r.signal()
}

// Pause suspends updates from the next cycle on.
func (r *Runner[C, D]) Pause() {
	r.paused.Store(true)
	r.signal()
}

func (r *Runner[C, D]) Resume() {
	r.paused.Store(false)
	r.signal()
}

// IsRunning reports whether Start is executing.
func (r *Runner[C, D]) IsRunning() bool {
	return r.running.Load()
}
