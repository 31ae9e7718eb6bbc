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
	"errors"
	"fmt"
)

// ComputeFunc derives a value from input values, given in input order.
type ComputeFunc func(inputs []any) (any, error)

// DecomposeFunc is the inverse of a ComputeFunc. It must return exactly one value per input.
type DecomposeFunc func(value any) ([]any, error)

// Alias is a derived endpoint defined by a forward function and an optional inverse.
type Alias struct {
	compute   ComputeFunc
	decompose DecomposeFunc
	inputs    []Endpoint
	Base
}

// NewAlias creates a derived endpoint over inputs. decompose may be nil for read-only aliases.
// The inputs slice is retained and must not be modified afterwards.
func NewAlias(key string, inputs []Endpoint, compute ComputeFunc, decompose DecomposeFunc, opts ...Option) *Alias {
	return &Alias{
		Base:      NewBase(key, opts...),
		inputs:    inputs,
		compute:   compute,
		decompose: decompose,
	}
}

// NewAlias1 creates a derived endpoint over a single input.
func NewAlias1(key string, input Endpoint, get func(any) (any, error), set func(any) (any, error), opts ...Option) *Alias {
	var decompose DecomposeFunc
	if set != nil {
		decompose = func(value any) ([]any, error) {
			v, err := set(value)
			if err != nil {
				return nil, err
			}

			return []any{v}, nil
		}
	}

	return NewAlias(key, []Endpoint{input}, func(inputs []any) (any, error) {
		return get(inputs[0])
	}, decompose, opts...)
}

// NewScaler exposes input*scale+offset as a float64. Writes are converted back.
func NewScaler(key string, input Endpoint, scale, offset float64, opts ...Option) *Alias {
	get := func(value any) (any, error) {
		f, err := ToFloat64(value)
		if err != nil {
			return nil, err
		}

		return f*scale + offset, nil
	}

	var set func(any) (any, error)
	if scale != 0 {
		set = func(value any) (any, error) {
			f, err := ToFloat64(value)
			if err != nil {
				return nil, err
			}

			return (f - offset) / scale, nil
		}
	}

	return NewAlias1(key, input, get, set, opts...)
}

func (a *Alias) GroupID() GroupID {
	return nil
}

func (a *Alias) Inputs() []Endpoint {
	return a.inputs
}

func (a *Alias) Compute(inputs []any) (any, error) {
	if len(inputs) != len(a.inputs) {
		return nil, arityError(a.Key(), len(a.inputs), len(inputs))
	}

	return a.compute(inputs)
}

func (a *Alias) Decompose(value any) ([]any, error) {
	if a.decompose == nil {
		return nil, fmt.Errorf("%w: %s", ErrReadOnly, a.Key())
	}

	parsed, err := a.Parse(value)
	if err != nil {
		return nil, err
	}

	out, err := a.decompose(parsed)
	if err != nil {
		return nil, err
	}

	if len(out) != len(a.inputs) {
		return nil, arityError(a.Key(), len(a.inputs), len(out))
	}

	return out, nil
}

// Get reads every input on its own and computes the value.
func (a *Alias) Get(ctx context.Context) (any, error) {
	values := make([]any, len(a.inputs))

	for i, in := range a.inputs {
		v, err := in.Get(ctx)
		if err != nil {
			return nil, err
		}

		values[i] = v
	}

	return a.Compute(values)
}

// Set decomposes value and writes each input on its own.
func (a *Alias) Set(ctx context.Context, value any) error {
	values, err := a.Decompose(value)
	if err != nil {
		return err
	}

	var errs []error
	for i, in := range a.inputs {
		if err := in.Set(ctx, values[i]); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (a *Alias) ReadCollector() ReadCollector {
	return NewSequentialReadCollector()
}

func (a *Alias) WriteCollector() WriteCollector {
	return NewSequentialWriteCollector()
}
