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

// Package clock serves the current time as read-only endpoints. All endpoints of a Clock
// are read from the same instant within one batch, so timestamps taken together agree.
package clock

import (
	"context"
	"fmt"
	"time"

	"github.com/cactus/tai64"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
)

// Format selects the representation of the time served by an endpoint.
type Format string

const (
	// FormatUTC is a time.Time in UTC.
	FormatUTC Format = "utc"
	// FormatLocal is a time.Time in the local time zone.
	FormatLocal Format = "local"
	// FormatUnix is seconds since the Unix epoch as a float64.
	FormatUnix Format = "unix"
	// FormatRFC3339 is an RFC 3339 string with nanoseconds.
	FormatRFC3339 Format = "rfc3339"
	// FormatTAI64N is an external TAI64N label such as @4000000068f0a1b2...
	FormatTAI64N Format = "tai64n"
)

// Clock is a transport group of time endpoints.
type Clock struct {
	now  func() time.Time
	name string
}

// Option configures a Clock.
type Option func(*Clock)

// WithNow replaces the time source.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) {
		c.now = now
	}
}

func New(name string, opts ...Option) *Clock {
	c := &Clock{name: name, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Clock) String() string {
	return "clock:" + c.name
}

// Endpoint returns an endpoint serving the time in format.
func (c *Clock) Endpoint(format Format, opts ...endpoint.Option) (*Endpoint, error) {
	switch format {
	case FormatUTC, FormatLocal, FormatUnix, FormatRFC3339, FormatTAI64N:
	default:
		return nil, fmt.Errorf("unknown time format %q", format)
	}

	return &Endpoint{Base: endpoint.NewBase(c.name+"."+string(format), opts...), clock: c, format: format}, nil
}

// Endpoint is a read-only time endpoint of a Clock.
type Endpoint struct {
	clock  *Clock
	format Format
	endpoint.Base
}

func (e *Endpoint) GroupID() endpoint.GroupID {
	return e.clock
}

func (e *Endpoint) Format() Format {
	return e.format
}

func (e *Endpoint) Get(_ context.Context) (any, error) {
	return render(e.clock.now(), e.format), nil
}

func (e *Endpoint) Set(_ context.Context, _ any) error {
	return fmt.Errorf("%w: %s", endpoint.ErrReadOnly, e.Key())
}

func (e *Endpoint) ReadCollector() endpoint.ReadCollector {
	return &readCollector{clock: e.clock}
}

func (e *Endpoint) WriteCollector() endpoint.WriteCollector {
	return endpoint.NewSequentialWriteCollector()
}

func render(t time.Time, format Format) any {
	switch format {
	case FormatLocal:
		return t.Local()
	case FormatUnix:
		return float64(t.UnixNano()) / float64(time.Second)
	case FormatRFC3339:
		return t.UTC().Format(time.RFC3339Nano)
	case FormatTAI64N:
		return tai64.FormatNano(t)
	default:
		return t.UTC()
	}
}

type readCollector struct {
	clock     *Clock
	endpoints []*Endpoint
}

func (c *readCollector) Add(ep endpoint.Endpoint) {
	e, ok := ep.(*Endpoint)
	if !ok || e.clock != c.clock {
		panic(fmt.Sprintf("clock %s cannot read endpoint %s", c.clock.name, ep.Key()))
	}

	c.endpoints = append(c.endpoints, e)
}

func (c *readCollector) Execute(ctx context.Context, values endpoint.Values) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := c.clock.now()
	for _, e := range c.endpoints {
		values[e] = render(now, e.format)
	}

	return nil
}
