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
	"fmt"
	"sync"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/constants"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/datalink"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/logger"
	"go.uber.org/zap"
)

type options struct {
	logger   *zap.SugaredLogger
	instance string
	priority int
	policy   datalink.Policy
}

// Option configures a Linker.
type Option func(*options)

// WithName sets the instance label used in metrics and logs.
func WithName(instance string) Option {
	return func(o *options) {
		o.instance = instance
	}
}

// WithLogger replaces the monitor component logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *options) {
		o.logger = log
	}
}

// WithPolicy selects how fields of the data record that the source cannot serve are
// handled. The default is datalink.Strict.
func WithPolicy(policy datalink.Policy) Option {
	return func(o *options) {
		o.policy = policy
	}
}

// WithPriority sets the priority of the update callback a Connection registers.
func WithPriority(priority int) Option {
	return func(o *options) {
		o.priority = priority
	}
}

// Linker ties a monitor to its container, its source object and its data record.
// It is safe for concurrent use.
type Linker[C, D any] struct {
	monitor   Monitor[C, D]
	container C
	data      D
	source    any
	state     *lifecycle
	logger    *zap.SugaredLogger
	opts      options
	mu        sync.Mutex
}

// NewLinker links monitor to source. data must be a pointer to a record struct.
// Monitors implementing Setupper are set up here.
func NewLinker[C, D any](monitor Monitor[C, D], container C, source any, data D, opts ...Option) (*Linker[C, D], error) {
	o := options{instance: constants.DefaultInstanceName, policy: datalink.Strict}
	for _, opt := range opts {
		opt(&o)
	}

	log := logger.OrDefault(o.logger, logger.ComponentMonitor).With("monitor", o.instance)

	if s, ok := monitor.(Setupper[C, D]); ok {
		if err := s.Setup(container, data, source); err != nil {
			return nil, fmt.Errorf("failed to set up monitor %s: %w", o.instance, err)
		}
	}

	return &Linker[C, D]{
		monitor:   monitor,
		container: container,
		data:      data,
		source:    source,
		state:     newLifecycle(o.instance, log),
		logger:    log,
		opts:      o,
	}, nil
}

func (l *Linker[C, D]) Container() C {
	return l.container
}

func (l *Linker[C, D]) Data() D {
	return l.data
}

// State returns the lifecycle state: idle, running, paused or stopped.
func (l *Linker[C, D]) State() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state.current()
}

// DataLink builds a link from the source to the data record.
func (l *Linker[C, D]) DataLink() (*datalink.Link, error) {
	return datalink.New(l.source, l.data, l.opts.policy, datalink.WithLogger(l.logger))
}

// Start starts the monitor. A monitor failing to start is stopped.
func (l *Linker[C, D]) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.state.send(EventStart); err != nil {
		return err
	}

	if err := l.monitor.Start(l.container, l.data); err != nil {
		_ = l.state.send(EventStop)

		return fmt.Errorf("failed to start monitor %s: %w", l.opts.instance, err)
	}

	return nil
}

// Update forwards one transfer outcome to a running monitor. Updates of monitors that
// are not running are dropped.
func (l *Linker[C, D]) Update(transferErr error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.current() != StateRunning {
		return nil
	}

	return l.monitor.Update(l.container, l.data, transferErr)
}

// Stop stops the monitor. Stopping a stopped monitor does nothing.
func (l *Linker[C, D]) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.current() == StateStopped {
		return nil
	}

	wasStarted := l.state.current() != StateIdle

	if err := l.state.send(EventStop); err != nil {
		return err
	}

	if !wasStarted {
		return nil
	}

	return l.monitor.Stop(l.container)
}

func (l *Linker[C, D]) Pause() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.state.send(EventPause); err != nil {
		return err
	}

	l.monitor.Pause()

	return nil
}

func (l *Linker[C, D]) Resume() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.state.send(EventResume); err != nil {
		return err
	}

	l.monitor.Resume()

	return nil
}
