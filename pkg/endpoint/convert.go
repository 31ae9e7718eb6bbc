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
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// ToFloat64 converts numeric, boolean and numeric string values.
func ToFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	}

	var out float64
	if err := weakDecode(value, &out); err != nil {
		return 0, err
	}

	return out, nil
}

// ToInt converts numeric, boolean and numeric string values. Floats are truncated.
func ToInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case int32:
		return int(v), nil
	case bool:
		if v {
			return 1, nil
		}

		return 0, nil
	}

	var out int
	if err := weakDecode(value, &out); err != nil {
		return 0, err
	}

	return out, nil
}

// ToBool converts booleans, numbers (non zero is true) and strings like "true" or "0".
func ToBool(value any) (bool, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}

	var out bool
	if err := weakDecode(value, &out); err != nil {
		return false, err
	}

	return out, nil
}

func weakDecode(value any, out any) error {
	if value == nil {
		return fmt.Errorf("%w: nil", ErrInvalidValue)
	}

	if err := mapstructure.WeakDecode(value, out); err != nil {
		return fmt.Errorf("%w: %v: %w", ErrInvalidValue, value, err)
	}

	return nil
}
