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

// Package endpoint defines the addressable data points the acquisition engine reads and writes,
// and the batch collectors that transfer many of them in one round trip.
//
// Every endpoint belongs to a transport group identified by its GroupID. Endpoints sharing a
// GroupID are transferred together by one collector. Derived endpoints have no group: their
// value is computed from other endpoints after those were read, and decomposed into writes of
// those endpoints when written.
package endpoint

import (
	"context"
	"errors"
	"fmt"
)

// GroupID identifies the physical channel (client, connection, store) serving an endpoint.
// It must be comparable. A nil GroupID marks a derived endpoint.
type GroupID any

// Endpoint is a single addressable data point. Implementations are pointer types so
// that an Endpoint value can serve as identity and map key.
type Endpoint interface {
	// Key is a human readable name used in logs and errors. It does not have to be unique.
	Key() string
	// GroupID returns the transport group, or nil for derived endpoints.
	GroupID() GroupID
	// Get reads the value on its own, outside any batch.
	Get(ctx context.Context) (any, error)
	// Set writes the value on its own, outside any batch.
	Set(ctx context.Context, value any) error
	// ReadCollector returns a fresh collector able to batch reads for this endpoint's group.
	ReadCollector() ReadCollector
	// WriteCollector returns a fresh collector able to batch writes for this endpoint's group.
	WriteCollector() WriteCollector
}

// Derived is an endpoint computed from other endpoints.
type Derived interface {
	Endpoint
	// Inputs are the endpoints the value is computed from, in the order Compute expects them.
	Inputs() []Endpoint
	// Compute returns the derived value from the input values.
	Compute(inputs []any) (any, error)
	// Decompose returns one value per input for writing value. It fails with ErrReadOnly
	// when the endpoint has no inverse and with ErrArityMismatch on a wrong count.
	Decompose(value any) ([]any, error)
}

// Resetter is implemented by endpoints holding state between transfers.
type Resetter interface {
	Reset()
}

// Values maps endpoints to the values read from or to be written to them.
type Values map[Endpoint]any

// Clone returns a shallow copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for ep, value := range v {
		out[ep] = value
	}

	return out
}

// IsDerived reports whether ep is evaluated from other endpoints.
func IsDerived(ep Endpoint) bool {
	return ep.GroupID() == nil
}

// Check validates that an endpoint can take part in a batch transfer.
func Check(ep Endpoint) error {
	if ep == nil {
		return ErrNilEndpoint
	}

	if !IsDerived(ep) {
		return nil
	}

	if _, ok := ep.(Derived); !ok {
		return fmt.Errorf("%w: %s", ErrNotDerived, ep.Key())
	}

	return nil
}

var (
	// ErrArityMismatch is returned when an inverse function produced the wrong number of values.
	ErrArityMismatch = errors.New("decomposed value count does not match input count")
	// ErrReadOnly is returned when writing an endpoint that cannot be written.
	ErrReadOnly = errors.New("endpoint is read only")
	// ErrNotDerived is returned for endpoints without a group that do not implement Derived.
	ErrNotDerived = errors.New("endpoint has no group and is not derived")
	// ErrNilEndpoint is returned when a nil endpoint is registered.
	ErrNilEndpoint = errors.New("nil endpoint")
)

// arityError reports an inverse function producing the wrong number of values.
func arityError(key string, want, got int) error {
	return fmt.Errorf("%w: %s expects %d values, got %d", ErrArityMismatch, key, want, got)
}

// GroupName returns a printable name for a group id, for logs and metric labels.
// Group ids implementing fmt.Stringer use their String method, others their type name.
func GroupName(id GroupID) string {
	switch g := id.(type) {
	case nil:
		return "derived"
	case fmt.Stringer:
		return g.String()
	case string:
		return g
	default:
		return fmt.Sprintf("%T", id)
	}
}
