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

package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/metrics"
)

type writeGroup struct {
	id        endpoint.GroupID
	endpoints []endpoint.Endpoint
	values    []any
}

// Writer writes a set of values with one batch write collector per transport group.
//
// Values for derived endpoints are decomposed first, recursively, into values for their
// inputs. A decomposed value replaces a value given directly for the same input. When two
// derived endpoints decompose into the same input, which one wins is unspecified.
// No ordering across groups is guaranteed.
type Writer struct {
	index  map[endpoint.GroupID]*writeGroup
	groups []*writeGroup
	opts   options
}

// NewWriter expands and groups values. The map is not retained.
func NewWriter(values endpoint.Values, opts ...Option) (*Writer, error) {
	w := &Writer{
		index: make(map[endpoint.GroupID]*writeGroup),
		opts:  newOptions(opts),
	}

	flat, err := expand(values)
	if err != nil {
		return nil, err
	}

	for ep, v := range flat {
		id := ep.GroupID()

		g, ok := w.index[id]
		if !ok {
			g = &writeGroup{id: id}
			w.index[id] = g
			w.groups = append(w.groups, g)
		}

		g.endpoints = append(g.endpoints, ep)
		g.values = append(g.values, v)
	}

	return w, nil
}

type pending struct {
	ep    endpoint.Derived
	value any
}

// expand replaces every derived target by the decomposition of its value.
func expand(values endpoint.Values) (endpoint.Values, error) {
	flat := make(endpoint.Values, len(values))

	var queue []pending

	for ep, v := range values {
		if err := validate(ep, make(map[endpoint.Endpoint]bool)); err != nil {
			return nil, err
		}

		if endpoint.IsDerived(ep) {
			queue = append(queue, pending{ep: ep.(endpoint.Derived), value: v})

			continue
		}

		flat[ep] = v
	}

	decomposed := make(endpoint.Values)

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		parts, err := next.ep.Decompose(next.value)
		if err != nil {
			return nil, fmt.Errorf("failed to decompose %s: %w", next.ep.Key(), err)
		}

		for i, in := range next.ep.Inputs() {
			if endpoint.IsDerived(in) {
				queue = append(queue, pending{ep: in.(endpoint.Derived), value: parts[i]})

				continue
			}

			decomposed[in] = parts[i]
		}
	}

	for ep, v := range decomposed {
		flat[ep] = v
	}

	return flat, nil
}

// Groups returns the number of write collector executions per Write.
func (w *Writer) Groups() int {
	return len(w.groups)
}

// Write executes one write collector per group. The first failing group aborts the write;
// groups already written stay written.
func (w *Writer) Write(ctx context.Context) error {
	return runGroups(ctx, len(w.groups), w.opts.concurrency, func(ctx context.Context, i int) error {
		return w.writeGroup(ctx, w.groups[i])
	})
}

func (w *Writer) writeGroup(ctx context.Context, g *writeGroup) error {
	start := time.Now()

	collector := g.endpoints[0].WriteCollector()
	for i, ep := range g.endpoints {
		collector.Add(ep, g.values[i])
	}

	err := collector.Execute(ctx)
	metrics.ObserveCollectorExecution(metrics.ComponentWriter, w.opts.instance, metrics.OperationWrite, time.Since(start))

	if err != nil {
		w.opts.logger.Debugf("write of group %s failed: %v", endpoint.GroupName(g.id), err)

		return &TransferError{Operation: metrics.OperationWrite, Group: g.id, Endpoints: len(g.endpoints), Err: err}
	}

	return nil
}

// Write is a one-shot write of values.
func Write(ctx context.Context, values endpoint.Values, opts ...Option) error {
	w, err := NewWriter(values, opts...)
	if err != nil {
		return err
	}

	return w.Write(ctx)
}
