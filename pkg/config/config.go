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

// Package config loads the agent configuration: acquisition timing, device hierarchy,
// transports and endpoint declarations.
package config

import (
	"time"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/constants"
)

// Endpoint types understood by the device builders.
const (
	EndpointValue    = "value"
	EndpointPoint    = "point"
	EndpointBits     = "bits"
	EndpointMax      = "max"
	EndpointMin      = "min"
	EndpointMean     = "mean"
	EndpointAllTrue  = "all_true"
	EndpointAnyTrue  = "any_true"
	EndpointAllFalse = "all_false"
	EndpointAnyFalse = "any_false"
	EndpointScale    = "scale"
)

// Transport types a device can be bound to.
const (
	TransportMemory     = "memory"
	TransportIOLink     = "iolink"
	TransportClock      = "clock"
	TransportHost       = "host"
	TransportPrometheus = "prometheus"
)

type FullConfig struct {
	Version     string            `yaml:"version" validate:"required"`
	Agent       AgentConfig       `yaml:"agent"`
	Devices     []DeviceConfig    `yaml:"devices" validate:"dive"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
}

type AgentConfig struct {
	LogLevel    string `yaml:"logLevel,omitempty" validate:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	MetricsPort int    `yaml:"metricsPort" validate:"gte=0,lte=65535"`
}

// AcquisitionConfig controls the root downloader.
type AcquisitionConfig struct {
	Period              time.Duration `yaml:"period" validate:"gt=0"`
	StarvationThreshold time.Duration `yaml:"starvationThreshold" validate:"gt=0"`
	ValueTTL            time.Duration `yaml:"valueTTL,omitempty" validate:"gte=0"`
	FailureBackoffMax   time.Duration `yaml:"failureBackoffMax" validate:"gt=0"`
	Concurrency         int           `yaml:"concurrency" validate:"gte=1"`
}

// DeviceConfig declares one node of the device hierarchy.
type DeviceConfig struct {
	Transport *TransportConfig `yaml:"transport,omitempty"`
	Name      string           `yaml:"name" validate:"required,excludesall=.[]"`
	Endpoints []EndpointConfig `yaml:"endpoints,omitempty" validate:"dive"`
	Devices   []DeviceConfig   `yaml:"devices,omitempty" validate:"dive"`
}

// TransportConfig binds the point endpoints of a device to a transport group.
//
// FastParse selects the streaming series parser of a prometheus transport.
type TransportConfig struct {
	Initial   map[string]any `yaml:"initial,omitempty"`
	Type      string         `yaml:"type" validate:"required,oneof=memory iolink clock host prometheus"`
	URL       string         `yaml:"url,omitempty" validate:"required_if=Type iolink,required_if=Type prometheus,omitempty,url"`
	Timeout   time.Duration  `yaml:"timeout,omitempty" validate:"gte=0"`
	FastParse bool           `yaml:"fastParse,omitempty"`
}

// EndpointConfig declares an endpoint of a device.
//
// Point endpoints use Address as the memory key, the IO-Link data point (or the field of
// Port when Port is set), the clock format, the host metric or the series selector of a
// prometheus target. Derived endpoints take
// Inputs as paths from the root of the hierarchy, e.g. "press.spindle.speed".
type EndpointConfig struct {
	Initial  any       `yaml:"initial,omitempty"`
	Scale    *float64  `yaml:"scale,omitempty"`
	Round    *int      `yaml:"round,omitempty" validate:"omitempty,gte=0"`
	Name     string    `yaml:"name" validate:"required,excludesall=.[]"`
	Type     string    `yaml:"type" validate:"required,oneof=value point bits max min mean all_true any_true all_false any_false scale"`
	Address  string    `yaml:"address,omitempty" validate:"required_if=Type point"`
	Parser   string    `yaml:"parser,omitempty" validate:"omitempty,oneof=bool int float string"`
	Validate string    `yaml:"validate,omitempty"`
	Inputs   []string  `yaml:"inputs,omitempty"`
	Clip     []float64 `yaml:"clip,omitempty" validate:"omitempty,len=2"`
	Offset   float64   `yaml:"offset,omitempty"`
	Port     int       `yaml:"port,omitempty" validate:"gte=0"`
}

// Derived reports whether the endpoint is computed from inputs.
func (e EndpointConfig) Derived() bool {
	return e.Type != EndpointValue && e.Type != EndpointPoint
}

// DefaultConfig returns the settings used for everything a file leaves out.
func DefaultConfig() FullConfig {
	return FullConfig{
		Agent: AgentConfig{
			MetricsPort: constants.DefaultMetricsPort,
		},
		Acquisition: AcquisitionConfig{
			Period:              constants.DefaultAcquisitionPeriod,
			Concurrency:         constants.DefaultConcurrency,
			StarvationThreshold: constants.StarvationThreshold,
			FailureBackoffMax:   constants.DefaultFailureBackoffMax,
		},
	}
}
