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

// Package device arranges endpoints in a named hierarchy. A Device is a datalink source:
// record locators such as "spindle.speed" resolve against its children and endpoints.
package device

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/datalink"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
)

var (
	// ErrDuplicateName is returned when a name is already taken by an endpoint or child.
	ErrDuplicateName = errors.New("name already in use")
	// ErrNotEndpoint is returned when a path names a device instead of an endpoint.
	ErrNotEndpoint = errors.New("path does not name an endpoint")
)

// Device is a node of the hierarchy holding endpoints and child devices.
type Device struct {
	endpoints map[string]endpoint.Endpoint
	children  map[string]*Device
	name      string
	order     []string
	mu        sync.RWMutex
}

func New(name string) *Device {
	return &Device{
		name:      name,
		endpoints: make(map[string]endpoint.Endpoint),
		children:  make(map[string]*Device),
	}
}

func (d *Device) Name() string {
	return d.name
}

// AddEndpoint adds ep under name. Names are unique across endpoints and children.
func (d *Device) AddEndpoint(name string, ep endpoint.Endpoint) error {
	if err := endpoint.Check(ep); err != nil {
		return fmt.Errorf("cannot add %s to %s: %w", name, d.name, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.claim(name); err != nil {
		return err
	}

	d.endpoints[name] = ep

	return nil
}

// AddChild adds child under its own name.
func (d *Device) AddChild(child *Device) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.claim(child.name); err != nil {
		return err
	}

	d.children[child.name] = child

	return nil
}

// claim must be called with the lock held.
func (d *Device) claim(name string) error {
	if _, ok := d.endpoints[name]; ok {
		return fmt.Errorf("%w: %s in %s", ErrDuplicateName, name, d.name)
	}

	if _, ok := d.children[name]; ok {
		return fmt.Errorf("%w: %s in %s", ErrDuplicateName, name, d.name)
	}

	d.order = append(d.order, name)

	return nil
}

// Child returns the endpoint or device named name. Names match datalink.MatchName,
// so "pos_actual" finds "PosActual".
func (d *Device) Child(name string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if ep, ok := d.endpoints[name]; ok {
		return ep, true
	}

	if c, ok := d.children[name]; ok {
		return c, true
	}

	for _, n := range d.order {
		if !datalink.MatchName(n, name) {
			continue
		}

		if ep, ok := d.endpoints[n]; ok {
			return ep, true
		}

		return d.children[n], true
	}

	return nil, false
}

// Endpoint resolves a dotted path such as "spindle.speed" below d.
func (d *Device) Endpoint(path string) (endpoint.Endpoint, error) {
	p, err := datalink.ParsePath(path)
	if err != nil {
		return nil, err
	}

	target, err := p.Resolve(d)
	if err != nil {
		return nil, err
	}

	ep, ok := target.(endpoint.Endpoint)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotEndpoint, path)
	}

	return ep, nil
}

// Children returns the child devices in the order they were added.
func (d *Device) Children() []*Device {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Device, 0, len(d.children))
	for _, n := range d.order {
		if c, ok := d.children[n]; ok {
			out = append(out, c)
		}
	}

	return out
}

// Endpoints returns the endpoints of d and all descendants, depth first in insertion order.
func (d *Device) Endpoints() []endpoint.Endpoint {
	var out []endpoint.Endpoint

	d.Walk(func(_ string, ep endpoint.Endpoint) {
		out = append(out, ep)
	})

	return out
}

// Walk calls fn for every endpoint below d with its dotted path relative to d.
func (d *Device) Walk(fn func(path string, ep endpoint.Endpoint)) {
	d.walk("", fn)
}

func (d *Device) walk(prefix string, fn func(string, endpoint.Endpoint)) {
	d.mu.RLock()
	order := slices.Clone(d.order)
	endpoints := maps.Clone(d.endpoints)
	children := maps.Clone(d.children)
	d.mu.RUnlock()

	for _, n := range order {
		path := n
		if prefix != "" {
			path = prefix + "." + n
		}

		if ep, ok := endpoints[n]; ok {
			fn(path, ep)

			continue
		}

		children[n].walk(path, fn)
	}
}
