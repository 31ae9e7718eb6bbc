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

// Package dispatch transfers sets of endpoints with one batch collector per transport group.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/metrics"
)

type group struct {
	id        endpoint.GroupID
	endpoints []endpoint.Endpoint
}

// Reader reads a fixed set of endpoints. Endpoints are partitioned by group id once,
// at registration. Every Read creates one fresh read collector per group.
//
// Derived endpoints pull their inputs into the set recursively. After all groups were
// read, derived endpoints are computed from the most recently registered to the least
// recently registered, each at most once per Read. Inputs are therefore resolved as long
// as every derived endpoint is registered before the derived endpoints it depends on,
// which recursive registration guarantees for a single registration path.
// A derived endpoint reached again through another path is queued again so it is
// computed before its newest dependent.
//
// Group ids are used as map keys and must be comparable.
// A Reader is not safe for concurrent Add; concurrent Read calls are fine once built.
type Reader struct {
	index   map[endpoint.GroupID]*group
	seen    map[endpoint.Endpoint]struct{}
	groups  []*group
	derived []endpoint.Derived
	order   []endpoint.Endpoint
	opts    options
}

func NewReader(endpoints []endpoint.Endpoint, opts ...Option) (*Reader, error) {
	r := &Reader{
		index: make(map[endpoint.GroupID]*group),
		seen:  make(map[endpoint.Endpoint]struct{}),
		opts:  newOptions(opts),
	}

	for _, ep := range endpoints {
		if err := r.Add(ep); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Add registers ep and, for derived endpoints, all of its inputs.
// An invalid endpoint anywhere below ep leaves the reader unchanged.
func (r *Reader) Add(ep endpoint.Endpoint) error {
	if err := validate(ep, make(map[endpoint.Endpoint]bool)); err != nil {
		return err
	}

	r.add(ep)

	return nil
}

// validate walks ep and its derived inputs depth first. visiting holds false for endpoints
// on the current path and true for finished ones, so a path reaching itself is a cycle.
func validate(ep endpoint.Endpoint, visiting map[endpoint.Endpoint]bool) error {
	if err := endpoint.Check(ep); err != nil {
		return err
	}

	if done, ok := visiting[ep]; ok {
		if !done {
			return fmt.Errorf("%w: %s", ErrDerivedCycle, ep.Key())
		}

		return nil
	}

	visiting[ep] = false

	if d, ok := ep.(endpoint.Derived); ok && endpoint.IsDerived(ep) {
		for _, in := range d.Inputs() {
			if err := validate(in, visiting); err != nil {
				return fmt.Errorf("input of %s: %w", ep.Key(), err)
			}
		}
	}

	visiting[ep] = true

	return nil
}

func (r *Reader) add(ep endpoint.Endpoint) {
	_, known := r.seen[ep]
	if !known {
		r.seen[ep] = struct{}{}
		r.order = append(r.order, ep)
	}

	if endpoint.IsDerived(ep) {
		d := ep.(endpoint.Derived)
		r.derived = append(r.derived, d)

		for _, in := range d.Inputs() {
			r.add(in)
		}

		return
	}

	if known {
		return
	}

	id := ep.GroupID()

	g, ok := r.index[id]
	if !ok {
		g = &group{id: id}
		r.index[id] = g
		r.groups = append(r.groups, g)
	}

	g.endpoints = append(g.endpoints, ep)
}

// Endpoints returns every registered endpoint once, derived inputs included, in registration order.
func (r *Reader) Endpoints() []endpoint.Endpoint {
	out := make([]endpoint.Endpoint, len(r.order))
	copy(out, r.order)

	return out
}

// Groups returns the number of transport groups, which is the number of collector
// executions per Read.
func (r *Reader) Groups() int {
	return len(r.groups)
}

// Read transfers every group and evaluates derived endpoints, storing all values in values.
// The first failing group aborts the read.
func (r *Reader) Read(ctx context.Context, values endpoint.Values) error {
	if r.opts.concurrency < 2 {
		err := runGroups(ctx, len(r.groups), 1, func(ctx context.Context, i int) error {
			return r.readGroup(ctx, r.groups[i], values)
		})
		if err != nil {
			return err
		}
	} else {
		shared := &lockedValues{values: values}

		err := runGroups(ctx, len(r.groups), r.opts.concurrency, func(ctx context.Context, i int) error {
			local := make(endpoint.Values, len(r.groups[i].endpoints))
			if err := r.readGroup(ctx, r.groups[i], local); err != nil {
				return err
			}

			shared.merge(local)

			return nil
		})
		if err != nil {
			return err
		}
	}

	return r.evaluate(values)
}

func (r *Reader) readGroup(ctx context.Context, g *group, values endpoint.Values) error {
	start := time.Now()

	collector := g.endpoints[0].ReadCollector()
	for _, ep := range g.endpoints {
		collector.Add(ep)
	}

	err := collector.Execute(ctx, values)
	metrics.ObserveCollectorExecution(metrics.ComponentReader, r.opts.instance, metrics.OperationRead, time.Since(start))

	if err != nil {
		r.opts.logger.Debugf("read of group %s failed: %v", endpoint.GroupName(g.id), err)

		return &TransferError{Operation: metrics.OperationRead, Group: g.id, Endpoints: len(g.endpoints), Err: err}
	}

	return nil
}

func (r *Reader) evaluate(values endpoint.Values) error {
	resolved := make(map[endpoint.Endpoint]struct{}, len(r.derived))

	for i := len(r.derived) - 1; i >= 0; i-- {
		d := r.derived[i]
		if _, done := resolved[d]; done {
			continue
		}

		inputs := d.Inputs()
		in := make([]any, len(inputs))

		for j, ep := range inputs {
			v, ok := values[ep]
			if !ok {
				return fmt.Errorf("%w: %s needs %s", ErrUnresolvedInput, d.Key(), ep.Key())
			}

			in[j] = v
		}

		v, err := d.Compute(in)
		if err != nil {
			return fmt.Errorf("failed to compute %s: %w", d.Key(), err)
		}

		values[d] = v
		resolved[d] = struct{}{}
	}

	return nil
}

// Read is a one-shot read of endpoints.
func Read(ctx context.Context, endpoints []endpoint.Endpoint, opts ...Option) (endpoint.Values, error) {
	r, err := NewReader(endpoints, opts...)
	if err != nil {
		return nil, err
	}

	values := make(endpoint.Values, len(r.order))
	if err := r.Read(ctx, values); err != nil {
		return nil, err
	}

	return values, nil
}
