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

// Package monitor runs user logic against data downloaded from a source object.
//
// A Monitor receives a container (anything it reports into, such as a log or a display)
// and a data record that is kept up to date from the source through a data link. It is
// driven either by a Downloader (Connection), by explicit polling (Poller) or by its own
// periodic loop (Runner).
package monitor

import "errors"

// ErrEndMonitor is returned by Update to end the monitor. It is a stop condition,
// never a failure.
var ErrEndMonitor = errors.New("end of monitor")

// ErrNotConnected is returned when starting a Connection before Connect.
var ErrNotConnected = errors.New("monitor is not connected")

// Monitor is user logic updated once per transfer.
type Monitor[C, D any] interface {
	// Start is called once before the first update.
	Start(container C, data D) error
	// Update is called after every transfer. err is the transfer error, if any.
	// Returning ErrEndMonitor stops the monitor.
	Update(container C, data D, err error) error
	Stop(container C) error
	Pause()
	Resume()
}

// Setupper is implemented by monitors that need to inspect the source once, when linked.
type Setupper[C, D any] interface {
	Setup(container C, data D, source any) error
}

// Base implements Monitor with no-ops. Embed it and override what is needed.
// Its Update ends the monitor at once.
type Base[C, D any] struct{}

func (Base[C, D]) Start(C, D) error {
	return nil
}

func (Base[C, D]) Update(C, D, error) error {
	return ErrEndMonitor
}

func (Base[C, D]) Stop(C) error {
	return nil
}

func (Base[C, D]) Pause() {}

func (Base[C, D]) Resume() {}
