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

// Package memory is a dictionary-backed transport. It simulates a device in tests and
// demos and serves values computed inside the process to the rest of the pipeline.
// All endpoints of one Store form one transport group: a batch takes the store lock once.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tiendc/go-deepcopy"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
)

// ErrMissingKey is returned when reading a key the store does not hold.
var ErrMissingKey = errors.New("key not found in store")

// Store holds the values of a simulated device.
type Store struct {
	data     map[string]any
	readErr  error
	writeErr error
	name     string
	reads    atomic.Int64
	writes   atomic.Int64
	mu       sync.RWMutex
}

// NewStore creates a store with a copy of initial.
func NewStore(name string, initial map[string]any) *Store {
	data := make(map[string]any, len(initial))
	for k, v := range initial {
		data[k] = v
	}

	return &Store{name: name, data: data}
}

func (s *Store) String() string {
	return "memory:" + s.name
}

// Endpoint returns an endpoint bound to key. Each call returns a new endpoint.
func (s *Store) Endpoint(key string, opts ...endpoint.Option) *Endpoint {
	return &Endpoint{Base: endpoint.NewBase(s.name+"."+key, opts...), store: s, field: key}
}

// Load returns the raw value stored under key.
func (s *Store) Load(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]

	return v, ok
}

// Put stores a raw value, bypassing endpoints and failure injection.
func (s *Store) Put(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
}

// Snapshot returns a deep copy of the stored data.
func (s *Store) Snapshot() (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out map[string]any
	if err := deepcopy.Copy(&out, &s.data); err != nil {
		return nil, fmt.Errorf("failed to copy store %s: %w", s.name, err)
	}

	return out, nil
}

// FailReads makes every following read return err. A nil err heals the store.
func (s *Store) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readErr = err
}

// FailWrites makes every following write return err. A nil err heals the store.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writeErr = err
}

// Reads returns the number of read round trips served, one per batch or single Get.
func (s *Store) Reads() int64 {
	return s.reads.Load()
}

// Writes returns the number of write round trips served, one per batch or single Set.
func (s *Store) Writes() int64 {
	return s.writes.Load()
}

func (s *Store) read(endpoints []*Endpoint, values endpoint.Values) error {
	s.reads.Add(1)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.readErr != nil {
		return s.readErr
	}

	for _, ep := range endpoints {
		v, ok := s.data[ep.field]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingKey, ep.Key())
		}

		values[ep] = v
	}

	return nil
}

func (s *Store) write(endpoints []*Endpoint, values []any) error {
	s.writes.Add(1)

	parsed := make([]any, len(values))
	for i, ep := range endpoints {
		v, err := endpoint.Parse(ep, values[i])
		if err != nil {
			return fmt.Errorf("failed to parse value for %s: %w", ep.Key(), err)
		}

		parsed[i] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return s.writeErr
	}

	for i, ep := range endpoints {
		s.data[ep.field] = parsed[i]
	}

	return nil
}

// Endpoint is a key of a Store.
type Endpoint struct {
	store *Store
	field string
	endpoint.Base
}

func (e *Endpoint) GroupID() endpoint.GroupID {
	return e.store
}

// Field returns the store key.
func (e *Endpoint) Field() string {
	return e.field
}

func (e *Endpoint) Get(_ context.Context) (any, error) {
	values := make(endpoint.Values, 1)
	if err := e.store.read([]*Endpoint{e}, values); err != nil {
		return nil, err
	}

	return values[e], nil
}

func (e *Endpoint) Set(_ context.Context, value any) error {
	return e.store.write([]*Endpoint{e}, []any{value})
}

func (e *Endpoint) ReadCollector() endpoint.ReadCollector {
	return &readCollector{store: e.store, seen: make(map[*Endpoint]struct{})}
}

func (e *Endpoint) WriteCollector() endpoint.WriteCollector {
	return &writeCollector{store: e.store, index: make(map[*Endpoint]int)}
}

type readCollector struct {
	store     *Store
	seen      map[*Endpoint]struct{}
	endpoints []*Endpoint
}

func (c *readCollector) Add(ep endpoint.Endpoint) {
	m, ok := ep.(*Endpoint)
	if !ok || m.store != c.store {
		panic(fmt.Sprintf("memory: endpoint %s does not belong to %s", ep.Key(), c.store))
	}

	if _, dup := c.seen[m]; dup {
		return
	}

	c.seen[m] = struct{}{}
	c.endpoints = append(c.endpoints, m)
}

func (c *readCollector) Execute(ctx context.Context, values endpoint.Values) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.store.read(c.endpoints, values)
}

type writeCollector struct {
	store     *Store
	index     map[*Endpoint]int
	endpoints []*Endpoint
	values    []any
}

func (c *writeCollector) Add(ep endpoint.Endpoint, value any) {
	m, ok := ep.(*Endpoint)
	if !ok || m.store != c.store {
		panic(fmt.Sprintf("memory: endpoint %s does not belong to %s", ep.Key(), c.store))
	}

	if i, dup := c.index[m]; dup {
		c.values[i] = value

		return
	}

	c.index[m] = len(c.endpoints)
	c.endpoints = append(c.endpoints, m)
	c.values = append(c.values, value)
}

func (c *writeCollector) Execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.store.write(c.endpoints, c.values)
}
