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
	"sync"
)

type localGroup struct{}

func (localGroup) String() string {
	return "local"
}

// LocalGroup is the group of endpoints living in process memory. They need no round trip,
// so one sequential collector serves all of them.
var LocalGroup GroupID = localGroup{}

// Value is an in-memory endpoint holding the last value written to it.
type Value struct {
	initial any
	value   any
	Base
	mu sync.RWMutex
}

// NewValue creates a local endpoint starting at initial.
func NewValue(key string, initial any, opts ...Option) *Value {
	return &Value{Base: NewBase(key, opts...), initial: initial, value: initial}
}

func (v *Value) GroupID() GroupID {
	return LocalGroup
}

func (v *Value) Get(_ context.Context) (any, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.value, nil
}

func (v *Value) Set(_ context.Context, value any) error {
	parsed, err := v.Parse(value)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.value = parsed
	v.mu.Unlock()

	return nil
}

// Reset restores the initial value.
func (v *Value) Reset() {
	v.mu.Lock()
	v.value = v.initial
	v.mu.Unlock()
}

func (v *Value) ReadCollector() ReadCollector {
	return NewSequentialReadCollector()
}

func (v *Value) WriteCollector() WriteCollector {
	return NewSequentialWriteCollector()
}

// GetterFunc produces the value of a Func endpoint.
type GetterFunc func(ctx context.Context) (any, error)

// Func is a read-only local endpoint computing its value on every read.
type Func struct {
	get GetterFunc
	Base
}

func NewFunc(key string, get GetterFunc, opts ...Option) *Func {
	return &Func{Base: NewBase(key, opts...), get: get}
}

func (f *Func) GroupID() GroupID {
	return LocalGroup
}

func (f *Func) Get(ctx context.Context) (any, error) {
	return f.get(ctx)
}

func (f *Func) Set(_ context.Context, _ any) error {
	return ErrReadOnly
}

func (f *Func) ReadCollector() ReadCollector {
	return NewSequentialReadCollector()
}

func (f *Func) WriteCollector() WriteCollector {
	return NewSequentialWriteCollector()
}
