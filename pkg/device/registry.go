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

package device

import (
	"fmt"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/config"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/transport/clock"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/transport/host"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/transport/iolink"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/transport/memory"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/transport/prometheus"
)

// Transport creates the point endpoints of a device bound to one transport group.
type Transport interface {
	Point(cfg config.EndpointConfig, opts ...endpoint.Option) (endpoint.Endpoint, error)
}

// TransportFactory creates the transport of the device at path.
type TransportFactory func(path string, cfg config.TransportConfig) (Transport, error)

// DerivedFactory creates a derived endpoint from its resolved inputs.
type DerivedFactory func(key string, cfg config.EndpointConfig, inputs []endpoint.Endpoint, opts ...endpoint.Option) (endpoint.Endpoint, error)

// Registry maps config type names to factories.
type Registry struct {
	transports map[string]TransportFactory
	derived    map[string]DerivedFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		transports: make(map[string]TransportFactory),
		derived:    make(map[string]DerivedFactory),
	}
}

// DefaultRegistry knows the built-in transports and derived endpoint types.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterTransport(config.TransportMemory, newMemoryTransport)
	r.RegisterTransport(config.TransportIOLink, newIOLinkTransport)
	r.RegisterTransport(config.TransportClock, newClockTransport)
	r.RegisterTransport(config.TransportHost, newHostTransport)
	r.RegisterTransport(config.TransportPrometheus, newPrometheusTransport)

	r.RegisterDerived(config.EndpointBits, variadic(endpoint.NewBits))
	r.RegisterDerived(config.EndpointMax, variadic(endpoint.NewMaxOf))
	r.RegisterDerived(config.EndpointMin, variadic(endpoint.NewMinOf))
	r.RegisterDerived(config.EndpointMean, variadic(endpoint.NewMeanOf))
	r.RegisterDerived(config.EndpointAllTrue, variadic(endpoint.NewAllTrue))
	r.RegisterDerived(config.EndpointAnyTrue, variadic(endpoint.NewAnyTrue))
	r.RegisterDerived(config.EndpointAllFalse, variadic(endpoint.NewAllFalse))
	r.RegisterDerived(config.EndpointAnyFalse, variadic(endpoint.NewAnyFalse))
	r.RegisterDerived(config.EndpointScale, newScale)

	return r
}

// RegisterTransport makes f build the transport of config type typ, replacing any earlier factory.
func (r *Registry) RegisterTransport(typ string, f TransportFactory) {
	r.transports[typ] = f
}

func (r *Registry) RegisterDerived(typ string, f DerivedFactory) {
	r.derived[typ] = f
}

// variadic adapts the reducing constructors of package endpoint. Their parsers apply to
// writes only, and reductions are read-only, so opts are dropped.
func variadic(fn func(key string, inputs ...endpoint.Endpoint) *endpoint.Alias) DerivedFactory {
	return func(key string, _ config.EndpointConfig, inputs []endpoint.Endpoint, _ ...endpoint.Option) (endpoint.Endpoint, error) {
		return fn(key, inputs...), nil
	}
}

func newScale(key string, cfg config.EndpointConfig, inputs []endpoint.Endpoint, opts ...endpoint.Option) (endpoint.Endpoint, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("scale takes one input, got %d", len(inputs))
	}

	scale := 1.0
	if cfg.Scale != nil {
		scale = *cfg.Scale
	}

	return endpoint.NewScaler(key, inputs[0], scale, cfg.Offset, opts...), nil
}

type memoryTransport struct {
	store *memory.Store
}

func newMemoryTransport(path string, cfg config.TransportConfig) (Transport, error) {
	return memoryTransport{store: memory.NewStore(path, cfg.Initial)}, nil
}

func (t memoryTransport) Point(cfg config.EndpointConfig, opts ...endpoint.Option) (endpoint.Endpoint, error) {
	if _, ok := t.store.Load(cfg.Address); !ok && cfg.Initial != nil {
		t.store.Put(cfg.Address, cfg.Initial)
	}

	return t.store.Endpoint(cfg.Address, opts...), nil
}

type iolinkTransport struct {
	master *iolink.Master
}

func newIOLinkTransport(path string, cfg config.TransportConfig) (Transport, error) {
	var opts []iolink.Option
	if cfg.Timeout > 0 {
		opts = append(opts, iolink.WithTimeout(cfg.Timeout))
	}

	return iolinkTransport{master: iolink.NewMaster(path, cfg.URL, opts...)}, nil
}

func (t iolinkTransport) Point(cfg config.EndpointConfig, opts ...endpoint.Option) (endpoint.Endpoint, error) {
	if cfg.Port > 0 {
		return t.master.PortEndpoint(cfg.Port, cfg.Address, opts...), nil
	}

	return t.master.Endpoint(cfg.Address, opts...), nil
}

type clockTransport struct {
	clock *clock.Clock
}

func newClockTransport(path string, _ config.TransportConfig) (Transport, error) {
	return clockTransport{clock: clock.New(path)}, nil
}

func (t clockTransport) Point(cfg config.EndpointConfig, opts ...endpoint.Option) (endpoint.Endpoint, error) {
	ep, err := t.clock.Endpoint(clock.Format(cfg.Address), opts...)
	if err != nil {
		return nil, err
	}

	return ep, nil
}

type hostTransport struct {
	host *host.Host
}

func newHostTransport(path string, _ config.TransportConfig) (Transport, error) {
	return hostTransport{host: host.New(path)}, nil
}

func (t hostTransport) Point(cfg config.EndpointConfig, opts ...endpoint.Option) (endpoint.Endpoint, error) {
	ep, err := t.host.Endpoint(host.Metric(cfg.Address), opts...)
	if err != nil {
		return nil, err
	}

	return ep, nil
}

type prometheusTransport struct {
	target *prometheus.Target
}

func newPrometheusTransport(path string, cfg config.TransportConfig) (Transport, error) {
	var opts []prometheus.Option
	if cfg.Timeout > 0 {
		opts = append(opts, prometheus.WithTimeout(cfg.Timeout))
	}

	if cfg.FastParse {
		opts = append(opts, prometheus.WithFastParser())
	}

	return prometheusTransport{target: prometheus.NewTarget(path, cfg.URL, opts...)}, nil
}

func (t prometheusTransport) Point(cfg config.EndpointConfig, opts ...endpoint.Option) (endpoint.Endpoint, error) {
	ep, err := t.target.Endpoint(cfg.Address, opts...)
	if err != nil {
		return nil, err
	}

	return ep, nil
}
