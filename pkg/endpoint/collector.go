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

package endpoint

import (
	"context"
	"fmt"
)

// ReadCollector batches the reads of one transport group for one transfer.
// A collector is created per group and per transfer. It holds no state across transfers.
type ReadCollector interface {
	// Add registers an endpoint. Adding the same endpoint twice has no effect.
	Add(ep Endpoint)
	// Execute reads every registered endpoint in as few round trips as the transport
	// allows and stores the results in values.
	Execute(ctx context.Context, values Values) error
}

// WriteCollector batches the writes of one transport group for one transfer.
type WriteCollector interface {
	// Add registers a value to write. Adding the same endpoint again replaces its value.
	Add(ep Endpoint, value any)
	// Execute writes every registered value.
	Execute(ctx context.Context) error
}

// SequentialReadCollector reads its endpoints one by one with Get.
// It is the collector of endpoints whose transport has no batch operation.
type SequentialReadCollector struct {
	endpoints []Endpoint
	seen      map[Endpoint]struct{}
}

// NewSequentialReadCollector returns a collector that reads its endpoints one by one.
func NewSequentialReadCollector() *SequentialReadCollector {
	return &SequentialReadCollector{seen: make(map[Endpoint]struct{})}
}

func (c *SequentialReadCollector) Add(ep Endpoint) {
	if _, ok := c.seen[ep]; ok {
		return
	}

	c.seen[ep] = struct{}{}
	c.endpoints = append(c.endpoints, ep)
}

func (c *SequentialReadCollector) Execute(ctx context.Context, values Values) error {
	for _, ep := range c.endpoints {
		if err := ctx.Err(); err != nil {
			return err
		}

		value, err := ep.Get(ctx)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", ep.Key(), err)
		}

		values[ep] = value
	}

	return nil
}

// SequentialWriteCollector writes its endpoints one by one with Set, in registration order.
type SequentialWriteCollector struct {
	values    map[Endpoint]any
	endpoints []Endpoint
}

// NewSequentialWriteCollector returns a collector that writes its values one by one.
func NewSequentialWriteCollector() *SequentialWriteCollector {
	return &SequentialWriteCollector{values: make(map[Endpoint]any)}
}

func (c *SequentialWriteCollector) Add(ep Endpoint, value any) {
	if _, ok := c.values[ep]; !ok {
		c.endpoints = append(c.endpoints, ep)
	}

	c.values[ep] = value
}

func (c *SequentialWriteCollector) Execute(ctx context.Context) error {
	for _, ep := range c.endpoints {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := ep.Set(ctx, c.values[ep]); err != nil {
			return fmt.Errorf("failed to write %s: %w", ep.Key(), err)
		}
	}

	return nil
}
