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
	"slices"
	"time"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/datalink"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/metrics"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/standarderrors"
)

// conn holds what Downloaders, Uploaders and their connections have in common:
// a node of a tree and the operations that change its membership.
type conn struct {
	tree  *tree
	node  *node
	token Token
}

// Token returns the token of the node behind this handle.
func (c *conn) Token() Token {
	return c.token
}

// IsConnected reports whether the node is still part of its tree.
func (c *conn) IsConnected() bool {
	return !c.node.detached.Load()
}

// Endpoints returns the effective endpoint set of the node: its own endpoints, those of
// its links and those of all its descendants.
func (c *conn) Endpoints() []endpoint.Endpoint {
	return slices.Clone(c.node.plan.Load().endpoints)
}

func (c *conn) removeNode(eps []endpoint.Endpoint) error {
	return c.tree.mutate(c.token, func(n *node) (bool, error) {
		changed := false

		for _, ep := range eps {
			if _, ok := n.values[ep]; ok {
				delete(n.values, ep)
				changed = true
			}
		}

		if changed {
			n.order = slices.DeleteFunc(n.order, func(ep endpoint.Endpoint) bool {
				_, ok := n.values[ep]

				return !ok
			})
		}

		return changed, nil
	})
}

// AddDatalink adds a data link. Downloads apply their values to it, uploads collect from it.
func (c *conn) AddDatalink(l *datalink.Link) error {
	if l == nil {
		return errors.New("nil data link")
	}

	return c.tree.mutate(c.token, func(n *node) (bool, error) {
		if slices.Contains(n.links, l) {
			return false, nil
		}

		n.links = append(n.links, l)

		return true, nil
	})
}

func (c *conn) RemoveDatalink(l *datalink.Link) error {
	return c.tree.mutate(c.token, func(n *node) (bool, error) {
		before := len(n.links)
		n.links = slices.DeleteFunc(n.links, func(x *datalink.Link) bool { return x == l })

		return len(n.links) != before, nil
	})
}

// AddCallback registers fn to run after every successful transfer. Callbacks run in
// ascending priority, then in registration order. A callback returning
// standarderrors.ErrStopRun ends the loop running the transfers.
func (c *conn) AddCallback(fn func() error, priority int) (CallbackID, error) {
	if fn == nil {
		return 0, errors.New("nil callback")
	}

	id := c.tree.nextID()

	err := c.tree.mutate(c.token, func(n *node) (bool, error) {
		n.callbacks = append(n.callbacks, callback{fn: fn, id: id, priority: priority})

		return true, nil
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

func (c *conn) RemoveCallback(id CallbackID) error {
	return c.tree.mutate(c.token, func(n *node) (bool, error) {
		before := len(n.callbacks)
		n.callbacks = slices.DeleteFunc(n.callbacks, func(cb callback) bool { return cb.id == id })

		return len(n.callbacks) != before, nil
	})
}

// AddFailureCallback registers fn to receive transfer errors. Once failure callbacks are
// registered, transfer errors are no longer returned to the caller. After a failed
// transfer, the next successful one calls fn with nil.
func (c *conn) AddFailureCallback(fn func(err error)) (CallbackID, error) {
	if fn == nil {
		return 0, errors.New("nil failure callback")
	}

	id := c.tree.nextID()

	err := c.tree.mutate(c.token, func(n *node) (bool, error) {
		n.failures = append(n.failures, failureCallback{fn: fn, id: id})

		return true, nil
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

func (c *conn) RemoveFailureCallback(id CallbackID) error {
	return c.tree.mutate(c.token, func(n *node) (bool, error) {
		before := len(n.failures)
		n.failures = slices.DeleteFunc(n.failures, func(cb failureCallback) bool { return cb.id == id })

		return len(n.failures) != before, nil
	})
}

// cycle runs one transfer against the current plan and routes the outcome to the
// callbacks of the plan.
func (c *conn) cycle(ctx context.Context, transfer func(ctx context.Context, p *plan) error) error {
	if c.node.detached.Load() {
		return standarderrors.ErrDisconnected
	}

	p := c.node.plan.Load()
	start := time.Now()

	err := transfer(ctx, p)

	metrics.ObserveCycleTime(c.tree.component, c.tree.opts.instance, time.Since(start))

	if err != nil {
		c.node.failed.Store(true)
		metrics.IncErrorCount(c.tree.component, c.tree.opts.instance)

		if len(p.failures) == 0 {
			return err
		}

		c.tree.log.Debugf("transfer failed, notifying %d failure callbacks: %v", len(p.failures), err)

		for _, f := range p.failures {
			f.fn(err)
		}

		return nil
	}

	if c.node.failed.CompareAndSwap(true, false) {
		for _, f := range p.failures {
			f.fn(nil)
		}
	}

	for _, cb := range p.callbacks {
		if err := cb.fn(); err != nil {
			return err
		}
	}

	return nil
}
