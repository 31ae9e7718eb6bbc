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
)

// NewBits packs boolean inputs into an integer, the first input being the least
// significant bit. Writing an integer sets every input to its bit.
func NewBits(key string, inputs ...Endpoint) *Alias {
	return NewAlias(key, inputs, func(values []any) (any, error) {
		out := 0

		for i, v := range values {
			bit, err := ToBool(v)
			if err != nil {
				return nil, fmt.Errorf("bit %d of %s: %w", i, key, err)
			}

			if bit {
				out |= 1 << i
			}
		}

		return out, nil
	}, func(value any) ([]any, error) {
		n, err := ToInt(value)
		if err != nil {
			return nil, err
		}

		out := make([]any, len(inputs))
		for i := range inputs {
			out[i] = n&(1<<i) != 0
		}

		return out, nil
	})
}

func NewMaxOf(key string, inputs ...Endpoint) *Alias {
	return newFloatReduction(key, inputs, func(acc, v float64) float64 { return max(acc, v) }, false)
}

func NewMinOf(key string, inputs ...Endpoint) *Alias {
	return newFloatReduction(key, inputs, func(acc, v float64) float64 { return min(acc, v) }, false)
}

func NewMeanOf(key string, inputs ...Endpoint) *Alias {
	return newFloatReduction(key, inputs, func(acc, v float64) float64 { return acc + v }, true)
}

func newFloatReduction(key string, inputs []Endpoint, reduce func(acc, v float64) float64, mean bool) *Alias {
	return NewAlias(key, inputs, func(values []any) (any, error) {
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: %s has no inputs", ErrInvalidValue, key)
		}

		var acc float64

		for i, v := range values {
			f, err := ToFloat64(v)
			if err != nil {
				return nil, fmt.Errorf("input %d of %s: %w", i, key, err)
			}

			if i == 0 {
				acc = f

				continue
			}

			acc = reduce(acc, f)
		}

		if mean {
			acc /= float64(len(values))
		}

		return acc, nil
	}, nil)
}

// NewAllTrue is true when every input is true.
func NewAllTrue(key string, inputs ...Endpoint) *Alias {
	return newBoolReduction(key, inputs, true, true)
}

// NewAnyTrue is true when at least one input is true.
func NewAnyTrue(key string, inputs ...Endpoint) *Alias {
	return newBoolReduction(key, inputs, true, false)
}

// NewAllFalse is true when every input is false.
func NewAllFalse(key string, inputs ...Endpoint) *Alias {
	return newBoolReduction(key, inputs, false, true)
}

// NewAnyFalse is true when at least one input is false.
func NewAnyFalse(key string, inputs ...Endpoint) *Alias {
	return newBoolReduction(key, inputs, false, false)
}

// newBoolReduction counts inputs equal to target; all requires every input to match.
func newBoolReduction(key string, inputs []Endpoint, target, all bool) *Alias {
	return NewAlias(key, inputs, func(values []any) (any, error) {
		for i, v := range values {
			b, err := ToBool(v)
			if err != nil {
				return nil, fmt.Errorf("input %d of %s: %w", i, key, err)
			}

			if all && b != target {
				return false, nil
			}

			if !all && b == target {
				return true, nil
			}
		}

		return all, nil
	}, nil)
}
