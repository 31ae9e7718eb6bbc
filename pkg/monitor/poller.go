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

	"github.com/united-manufacturing-hub/acquisition-core/pkg/datalink"
)

// Poller downloads a monitor's data and updates it on demand.
type Poller[C, D any] struct {
	linker       *Linker[C, D]
	link         *datalink.Link
	catchFailure bool
}

// NewPoller builds the data link of linker. With catchFailure, download errors are passed
// to the monitor's Update instead of being returned.
func NewPoller[C, D any](linker *Linker[C, D], catchFailure bool) (*Poller[C, D], error) {
	link, err := linker.DataLink()
	if err != nil {
		return nil, err
	}

	return &Poller[C, D]{linker: linker, link: link, catchFailure: catchFailure}, nil
}

func (p *Poller[C, D]) Start() error {
	return p.linker.Start()
}

// Download downloads the data record and updates the monitor. When the monitor ends
// itself, it is stopped and ErrEndMonitor is returned.
func (p *Poller[C, D]) Download(ctx context.Context) error {
	transferErr := p.link.Download(ctx)
	if transferErr != nil && !p.catchFailure {
		return transferErr
	}

	err := p.linker.Update(transferErr)
	if errors.Is(err, ErrEndMonitor) {
		return errors.Join(err, p.linker.Stop())
	}

	return err
}

func (p *Poller[C, D]) Stop() error {
	return p.linker.Stop()
}

func (p *Poller[C, D]) Pause() error {
	return p.linker.Pause()
}

func (p *Poller[C, D]) Resume() error {
	return p.linker.Resume()
}
