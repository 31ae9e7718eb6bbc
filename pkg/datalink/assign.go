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

package datalink

import (
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/tiendc/go-deepcopy"
)

// assign stores value into an addressable field, converting between numeric kinds
// directly and falling back to weak decoding (strings to numbers, maps to structs).
func assign(field reflect.Value, value any) error {
	if value == nil {
		field.Set(reflect.Zero(field.Type()))

		return nil
	}

	v := reflect.ValueOf(value)

	if v.Type().AssignableTo(field.Type()) {
		field.Set(v)

		return nil
	}

	if isNumeric(v.Kind()) && isNumeric(field.Kind()) {
		field.Set(v.Convert(field.Type()))

		return nil
	}

	target := reflect.New(field.Type())
	if err := mapstructure.WeakDecode(value, target.Interface()); err != nil {
		return fmt.Errorf("cannot store %T in %s: %w", value, field.Type(), err)
	}

	field.Set(target.Elem())

	return nil
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// snapshot returns the field's value. Slices, maps and pointers are deep-copied so the
// record can be modified while the value is being written.
func snapshot(field reflect.Value) (any, error) {
	if field.Kind() == reflect.Interface {
		if field.IsNil() {
			return nil, nil
		}

		field = field.Elem()
	}

	switch field.Kind() {
	case reflect.Slice, reflect.Map, reflect.Pointer:
		if field.IsNil() {
			return field.Interface(), nil
		}

		src := reflect.New(field.Type())
		src.Elem().Set(field)

		out := reflect.New(field.Type())
		if err := deepcopy.Copy(out.Interface(), src.Interface()); err != nil {
			return nil, fmt.Errorf("failed to copy %s: %w", field.Type(), err)
		}

		return out.Elem().Interface(), nil
	default:
		return field.Interface(), nil
	}
}
