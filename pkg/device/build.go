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
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/config"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/datalink"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/logger"
)

var (
	// ErrUnknownType is returned for transport or endpoint types without a registered factory.
	ErrUnknownType = errors.New("unknown type")
	// ErrUnresolvedInput is returned when a derived endpoint names an input that does not exist.
	ErrUnresolvedInput = errors.New("unresolved input")
)

type Option func(*builder)

// WithRegistry builds with r instead of DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(b *builder) {
		b.registry = r
	}
}

// WithLogger sets the logger used while building the device tree.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(b *builder) {
		b.log = log
	}
}

type builder struct {
	registry *Registry
	log      *zap.SugaredLogger
	root     *Device
	pending  []pendingDerived
}

type pendingDerived struct {
	device *Device
	path   string
	cfg    config.EndpointConfig
}

// Build creates the hierarchy declared by devices below an unnamed root.
// Derived endpoints may reference inputs declared anywhere in the hierarchy, also
// other derived endpoints, by their dotted path from the root.
func Build(devices []config.DeviceConfig, opts ...Option) (*Device, error) {
	b := &builder{registry: DefaultRegistry(), root: New("")}
	for _, opt := range opts {
		opt(b)
	}

	b.log = logger.OrDefault(b.log, logger.ComponentDevice)

	for _, cfg := range devices {
		if err := b.device(b.root, "", cfg); err != nil {
			return nil, err
		}
	}

	if err := b.resolve(); err != nil {
		return nil, err
	}

	b.log.Debugw("Device hierarchy built", "devices", len(devices), "endpoints", len(b.root.Endpoints()))

	return b.root, nil
}

func (b *builder) device(parent *Device, prefix string, cfg config.DeviceConfig) error {
	path := join(prefix, cfg.Name)
	d := New(cfg.Name)

	if err := parent.AddChild(d); err != nil {
		return err
	}

	var transport Transport

	if cfg.Transport != nil {
		factory, ok := b.registry.transports[cfg.Transport.Type]
		if !ok {
			return fmt.Errorf("%w: transport %q of %s", ErrUnknownType, cfg.Transport.Type, path)
		}

		var err error
		if transport, err = factory(path, *cfg.Transport); err != nil {
			return fmt.Errorf("failed to create transport of %s: %w", path, err)
		}
	}

	for _, e := range cfg.Endpoints {
		if err := b.endpoint(d, transport, path, e); err != nil {
			return err
		}
	}

	for _, c := range cfg.Devices {
		if err := b.device(d, path, c); err != nil {
			return err
		}
	}

	return nil
}

func (b *builder) endpoint(d *Device, transport Transport, prefix string, cfg config.EndpointConfig) error {
	path := join(prefix, cfg.Name)

	opts, err := parserOptions(cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	var ep endpoint.Endpoint

	switch {
	case cfg.Type == config.EndpointValue:
		ep = endpoint.NewValue(path, cfg.Initial, opts...)
	case cfg.Type == config.EndpointPoint:
		if transport == nil {
			return fmt.Errorf("point %s needs a transport", path)
		}

		if ep, err = transport.Point(cfg, opts...); err != nil {
			return fmt.Errorf("failed to create point %s: %w", path, err)
		}
	case cfg.Derived():
		b.pending = append(b.pending, pendingDerived{device: d, path: path, cfg: cfg})

		return nil
	default:
		return fmt.Errorf("%w: endpoint %q of %s", ErrUnknownType, cfg.Type, path)
	}

	return d.AddEndpoint(cfg.Name, ep)
}

// resolve builds derived endpoints in passes until every input is known.
func (b *builder) resolve() error {
	for len(b.pending) > 0 {
		var (
			waiting []pendingDerived
			lastErr error
		)

		for _, p := range b.pending {
			inputs, err := b.inputs(p)

			switch {
			case errors.Is(err, datalink.ErrNotFound):
				waiting = append(waiting, p)
				lastErr = err

				continue
			case err != nil:
				return err
			}

			if err := b.derived(p, inputs); err != nil {
				return err
			}
		}

		if len(waiting) == len(b.pending) {
			return fmt.Errorf("%w: %w", ErrUnresolvedInput, lastErr)
		}

		b.pending = waiting
	}

	return nil
}

func (b *builder) inputs(p pendingDerived) ([]endpoint.Endpoint, error) {
	inputs := make([]endpoint.Endpoint, 0, len(p.cfg.Inputs))

	for _, in := range p.cfg.Inputs {
		ep, err := b.root.Endpoint(in)
		if err != nil {
			return nil, fmt.Errorf("input %s of %s: %w", in, p.path, err)
		}

		inputs = append(inputs, ep)
	}

	return inputs, nil
}

func (b *builder) derived(p pendingDerived, inputs []endpoint.Endpoint) error {
	factory, ok := b.registry.derived[p.cfg.Type]
	if !ok {
		return fmt.Errorf("%w: endpoint %q of %s", ErrUnknownType, p.cfg.Type, p.path)
	}

	opts, err := parserOptions(p.cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", p.path, err)
	}

	ep, err := factory(p.path, p.cfg, inputs, opts...)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", p.path, err)
	}

	return p.device.AddEndpoint(p.cfg.Name, ep)
}

func parserOptions(cfg config.EndpointConfig) ([]endpoint.Option, error) {
	var parsers []endpoint.Parser

	switch strings.ToLower(cfg.Parser) {
	case "":
	case "bool":
		parsers = append(parsers, endpoint.Bool)
	case "int":
		parsers = append(parsers, endpoint.Int)
	case "float":
		parsers = append(parsers, endpoint.Float)
	case "string":
		parsers = append(parsers, endpoint.String)
	default:
		return nil, fmt.Errorf("%w: parser %q", ErrUnknownType, cfg.Parser)
	}

	if len(cfg.Clip) == 2 {
		parsers = append(parsers, endpoint.Clip(cfg.Clip[0], cfg.Clip[1]))
	}

	if cfg.Round != nil {
		parsers = append(parsers, endpoint.Round(*cfg.Round))
	}

	if cfg.Validate != "" {
		parsers = append(parsers, endpoint.Validate(cfg.Validate))
	}

	switch len(parsers) {
	case 0:
		return nil, nil
	case 1:
		return []endpoint.Option{endpoint.WithParser(parsers[0])}, nil
	default:
		return []endpoint.Option{endpoint.WithParser(endpoint.Chain(parsers...))}, nil
	}
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}

	return prefix + "." + name
}
