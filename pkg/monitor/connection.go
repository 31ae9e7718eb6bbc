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
	"errors"
	"sync"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/datalink"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/subscription"
)

// Parent is a download tree node a Connection attaches below.
// *subscription.Downloader and *subscription.DownloaderConnection implement it.
type Parent interface {
	NewConnection() (*subscription.DownloaderConnection, error)
}

// Connection updates a monitor after every download of a parent node.
// While started, it owns a child connection of the parent holding the monitor's data
// link and its update callbacks. Pausing or stopping drops that child connection.
type Connection[C, D any] struct {
	linker *Linker[C, D]
	parent Parent
	link   *datalink.Link
	child  *subscription.DownloaderConnection
	mu     sync.Mutex
}

func NewConnection[C, D any](linker *Linker[C, D]) *Connection[C, D] {
	return &Connection[C, D]{linker: linker}
}

// Connect prepares the connection to parent. It does not start the monitor.
func (c *Connection[C, D]) Connect(parent Parent) error {
	link, err := c.linker.DataLink()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.detach(); err != nil {
		return err
	}

	c.parent = parent
	c.link = link

	return nil
}

// Start starts the monitor and attaches it to the parent.
func (c *Connection[C, D]) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.link == nil {
		return ErrNotConnected
	}

	if err := c.linker.Start(); err != nil {
		return err
	}

	return c.attach()
}

// Stop detaches from the parent and stops the monitor.
func (c *Connection[C, D]) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return errors.Join(c.detach(), c.linker.Stop())
}

// Pause detaches from the parent, keeping the monitor's state.
func (c *Connection[C, D]) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.detach(); err != nil {
		return err
	}

	return c.linker.Pause()
}

// Resume reattaches a paused monitor.
func (c *Connection[C, D]) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.link == nil {
		return ErrNotConnected
	}

	if err := c.linker.Resume(); err != nil {
		return err
	}

	return c.attach()
}

// Disconnect detaches from the parent without stopping the monitor.
func (c *Connection[C, D]) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.detach()
}

// IsAttached reports whether the monitor is currently updated by the parent's downloads.
func (c *Connection[C, D]) IsAttached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.child != nil && c.child.IsConnected()
}

func (c *Connection[C, D]) attach() error {
	child, err := c.parent.NewConnection()
	if err != nil {
		return err
	}

	register := func() error {
		if err := child.AddDatalink(c.link); err != nil {
			return err
		}

		if _, err := child.AddCallback(func() error { return c.update(child, nil) }, c.linker.opts.priority); err != nil {
			return err
		}

		_, err := child.AddFailureCallback(func(err error) {
			if err == nil {
				return
			}

			if uerr := c.update(child, err); uerr != nil {
				c.linker.logger.Warnf("monitor update after failed transfer: %v", uerr)
			}
		})

		return err
	}

	if err := register(); err != nil {
		_ = child.Disconnect()

		return err
	}

	c.child = child

	return nil
}

// detach is called with c.mu held.
func (c *Connection[C, D]) detach() error {
	if c.child == nil {
		return nil
	}

	child := c.child
	c.child = nil

	if !child.IsConnected() {
		return nil
	}

	return child.Disconnect()
}

// update runs in the callbacks of child. A monitor ending itself drops child and stops.
func (c *Connection[C, D]) update(child *subscription.DownloaderConnection, transferErr error) error {
	err := c.linker.Update(transferErr)
	if !errors.Is(err, ErrEndMonitor) {
		return err
	}

	c.linker.logger.Debugf("monitor ended")

	if child.IsConnected() {
		if err := child.Disconnect(); err != nil {
			return err
		}
	}

	return c.linker.Stop()
}
