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

// Package env reads typed settings from environment variables. Unset variables yield the
// default; malformed ones are an error so that a typo never silently falls back.
package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	utilsenv "github.com/united-manufacturing-hub/umh-utils/env"
)

// Lookup returns the variable and whether it is set to a non-empty value.
func Lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}

	return strings.TrimSpace(value), true
}

// GetAsString returns the trimmed variable. Blank values count as unset.
func GetAsString(key string, required bool, defaultValue string) (string, error) {
	if _, ok := Lookup(key); !ok {
		if required {
			return "", fmt.Errorf("required environment variable %s is not set", key)
		}

		return defaultValue, nil
	}

	value, err := utilsenv.GetAsString(key, required, defaultValue)
	if err != nil {
		return "", fmt.Errorf("failed to read environment variable %s: %w", key, err)
	}

	return strings.TrimSpace(value), nil
}

func GetAsInt(key string, required bool, defaultValue int) (int, error) {
	value, ok := Lookup(key)
	if !ok {
		if required {
			return 0, fmt.Errorf("required environment variable %s is not set", key)
		}

		return defaultValue, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be an integer: %w", key, err)
	}

	return n, nil
}

// GetAsBool accepts true/false, 1/0, yes/no and on/off in any case.
func GetAsBool(key string, required bool, defaultValue bool) (bool, error) {
	value, ok := Lookup(key)
	if !ok {
		if required {
			return false, fmt.Errorf("required environment variable %s is not set", key)
		}

		return defaultValue, nil
	}

	switch strings.ToLower(value) {
	case "true", "1", "yes", "y", "on":
		return true, nil
	case "false", "0", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("environment variable %s must be a boolean value, got %q", key, value)
	}
}

// GetAsDuration parses values like "250ms" or "2s".
func GetAsDuration(key string, required bool, defaultValue time.Duration) (time.Duration, error) {
	value, ok := Lookup(key)
	if !ok {
		if required {
			return 0, fmt.Errorf("required environment variable %s is not set", key)
		}

		return defaultValue, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be a duration: %w", key, err)
	}

	return d, nil
}
