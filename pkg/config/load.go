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

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/constants"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/env"
)

var (
	// ErrUnsupportedVersion is returned when the version field does not satisfy SupportedConfigVersions.
	ErrUnsupportedVersion = errors.New("unsupported config version")
	// ErrInvalidConfig is returned for configs that parse but describe an impossible setup.
	ErrInvalidConfig = errors.New("invalid config")
)

// Environment variables that override file settings.
const (
	EnvPeriod      = "ACQ_PERIOD"
	EnvConcurrency = "ACQ_CONCURRENCY"
	EnvValueTTL    = "ACQ_VALUE_TTL"
	EnvMetricsPort = "METRICS_PORT"
	EnvLogLevel    = "LOGGING_LEVEL"
)

// Load reads the file at path, applies environment overrides and validates the result.
func Load(path string) (FullConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FullConfig{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return FullConfig{}, fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes a YAML document on top of DefaultConfig. Unknown fields are rejected.
func Parse(data []byte) (FullConfig, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return FullConfig{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return FullConfig{}, err
	}

	if err := Validate(cfg); err != nil {
		return FullConfig{}, err
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *FullConfig) error {
	var err error

	if cfg.Acquisition.Period, err = env.GetAsDuration(EnvPeriod, false, cfg.Acquisition.Period); err != nil {
		return err
	}

	if cfg.Acquisition.ValueTTL, err = env.GetAsDuration(EnvValueTTL, false, cfg.Acquisition.ValueTTL); err != nil {
		return err
	}

	if cfg.Acquisition.Concurrency, err = env.GetAsInt(EnvConcurrency, false, cfg.Acquisition.Concurrency); err != nil {
		return err
	}

	if cfg.Agent.MetricsPort, err = env.GetAsInt(EnvMetricsPort, false, cfg.Agent.MetricsPort); err != nil {
		return err
	}

	if cfg.Agent.LogLevel, err = env.GetAsString(EnvLogLevel, false, cfg.Agent.LogLevel); err != nil {
		return err
	}

	cfg.Agent.LogLevel = strings.ToUpper(cfg.Agent.LogLevel)

	return nil
}

// Validate checks field constraints, the version and the device hierarchy.
func Validate(cfg FullConfig) error {
	if err := checkVersion(cfg.Version); err != nil {
		return err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return checkDevices("", cfg.Devices)
}

func checkVersion(version string) error {
	if version == "" {
		return fmt.Errorf("%w: version is missing", ErrUnsupportedVersion)
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrUnsupportedVersion, version, err)
	}

	c, err := semver.NewConstraint(constants.SupportedConfigVersions)
	if err != nil {
		return err
	}

	if !c.Check(v) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrUnsupportedVersion, v, constants.SupportedConfigVersions)
	}

	return nil
}

func checkDevices(prefix string, devices []DeviceConfig) error {
	seen := make(map[string]bool, len(devices))

	for _, d := range devices {
		path := join(prefix, d.Name)
		if seen[d.Name] {
			return fmt.Errorf("%w: duplicate device %s", ErrInvalidConfig, path)
		}

		seen[d.Name] = true

		if err := checkEndpoints(path, d); err != nil {
			return err
		}

		if err := checkDevices(path, d.Devices); err != nil {
			return err
		}
	}

	return nil
}

func checkEndpoints(path string, d DeviceConfig) error {
	seen := make(map[string]bool, len(d.Endpoints))

	for _, c := range d.Devices {
		seen[c.Name] = true
	}

	for _, e := range d.Endpoints {
		name := join(path, e.Name)
		if seen[e.Name] {
			return fmt.Errorf("%w: duplicate name %s", ErrInvalidConfig, name)
		}

		seen[e.Name] = true

		switch {
		case e.Type == EndpointPoint && d.Transport == nil:
			return fmt.Errorf("%w: point %s needs a transport on device %s", ErrInvalidConfig, name, path)
		case e.Derived() && len(e.Inputs) == 0:
			return fmt.Errorf("%w: %s endpoint %s has no inputs", ErrInvalidConfig, e.Type, name)
		case e.Type == EndpointScale && len(e.Inputs) != 1:
			return fmt.Errorf("%w: scale endpoint %s needs exactly one input", ErrInvalidConfig, name)
		}
	}

	return nil
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}

	return prefix + "." + name
}
