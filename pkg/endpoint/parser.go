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
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidValue is returned by parsers rejecting a value.
var ErrInvalidValue = errors.New("invalid value")

// Parser converts or validates a value before it is written.
type Parser interface {
	Parse(value any) (any, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(value any) (any, error)

func (f ParserFunc) Parse(value any) (any, error) {
	return f(value)
}

var (
	Bool = ParserFunc(func(value any) (any, error) {
		return ToBool(value)
	})

	Int = ParserFunc(func(value any) (any, error) {
		return ToInt(value)
	})

	Float = ParserFunc(func(value any) (any, error) {
		return ToFloat64(value)
	})

	String = ParserFunc(func(value any) (any, error) {
		if s, ok := value.(string); ok {
			return s, nil
		}

		var out string
		if err := weakDecode(value, &out); err != nil {
			return nil, err
		}

		return out, nil
	})
)

// Clip converts to float64 and limits the value to [low, high].
func Clip(low, high float64) Parser {
	return ParserFunc(func(value any) (any, error) {
		f, err := ToFloat64(value)
		if err != nil {
			return nil, err
		}

		return math.Min(math.Max(f, low), high), nil
	})
}

// Round converts to float64 and rounds to the given number of decimal digits.
func Round(digits int) Parser {
	scale := math.Pow(10, float64(digits))

	return ParserFunc(func(value any) (any, error) {
		f, err := ToFloat64(value)
		if err != nil {
			return nil, err
		}

		return math.Round(f*scale) / scale, nil
	})
}

// OneOf accepts only the listed values.
func OneOf(allowed ...any) Parser {
	return ParserFunc(func(value any) (any, error) {
		for _, a := range allowed {
			if a == value {
				return value, nil
			}
		}

		return nil, fmt.Errorf("%w: %v is not one of %v", ErrInvalidValue, value, allowed)
	})
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validate checks the value against a validator tag such as "gte=0,lte=100" or "oneof=AUTO MANUAL".
func Validate(tag string) Parser {
	validateOnce.Do(func() {
		validate = validator.New()
	})

	return ParserFunc(func(value any) (any, error) {
		if err := validate.Var(value, tag); err != nil {
			return nil, fmt.Errorf("%w: %v: %w", ErrInvalidValue, value, err)
		}

		return value, nil
	})
}

// Chain runs parsers in order, feeding each the output of the previous one.
func Chain(parsers ...Parser) Parser {
	return ParserFunc(func(value any) (any, error) {
		var err error
		for _, p := range parsers {
			value, err = p.Parse(value)
			if err != nil {
				return nil, err
			}
		}

		return value, nil
	})
}
