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
	"strconv"
	"strings"
	"unicode"
)

// StepKind selects how a Step looks up its child.
type StepKind int

const (
	// StepAttr looks up a named child: a struct field, a string map key, or a Navigable child.
	// Fields and string keys that differ only in case or underscores match when no exact
	// name exists.
	StepAttr StepKind = iota
	// StepIndex looks up a slice or array element. Negative indexes count from the end.
	StepIndex
	// StepKey looks up a map entry by exactly equal key.
	StepKey
)

// Step is one lookup of a Path.
type Step struct {
	Key   any
	Name  string
	Index int
	Kind  StepKind
}

func Attr(name string) Step {
	return Step{Kind: StepAttr, Name: name}
}

func Index(i int) Step {
	return Step{Kind: StepIndex, Index: i}
}

func Key(k any) Step {
	return Step{Kind: StepKey, Key: k}
}

func (s Step) String() string {
	switch s.Kind {
	case StepIndex:
		return "[" + strconv.Itoa(s.Index) + "]"
	case StepKey:
		if k, ok := s.Key.(string); ok {
			return "[" + strconv.Quote(k) + "]"
		}

		return fmt.Sprintf("[%v]", s.Key)
	default:
		return s.Name
	}
}

// Path locates an object below a source object. The empty path is the source itself.
type Path []Step

func (p Path) String() string {
	if len(p) == 0 {
		return "."
	}

	var b strings.Builder
	for i, s := range p {
		if s.Kind == StepAttr && i > 0 {
			b.WriteByte('.')
		}

		b.WriteString(s.String())
	}

	return b.String()
}

// Navigable objects resolve attribute steps themselves instead of through reflection.
type Navigable interface {
	Child(name string) (any, bool)
}

// ParsePath parses dotted attribute paths with optional index and key suffixes,
// e.g. `stat.pos_actual`, `axes[2].pos` or `cfg["velocity"]`. "" and "." are the empty path.
// Keys must not contain ']'.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return Path{}, nil
	}

	var p Path

	for i := 0; i < len(s); {
		switch s[i] {
		case '.':
			i++
			if i == len(s) || s[i] == '.' || s[i] == '[' {
				return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, s)
			}
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed bracket in %q", ErrInvalidPath, s)
			}

			step, err := parseBracket(s[i+1 : i+end])
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPath, s, err)
			}

			p = append(p, step)
			i += end + 1
		default:
			j := i
			for j < len(s) && s[j] != '.' && s[j] != '[' {
				j++
			}

			p = append(p, Attr(s[i:j]))
			i = j
		}
	}

	return p, nil
}

// MustParsePath is like ParsePath but panics on malformed paths.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}

	return p
}

func parseBracket(inner string) (Step, error) {
	inner = strings.TrimSpace(inner)
	if len(inner) >= 2 && (inner[0] == '"' || inner[0] == '\'') && inner[len(inner)-1] == inner[0] {
		if inner[0] == '"' {
			k, err := strconv.Unquote(inner)
			if err != nil {
				return Step{}, err
			}

			return Key(k), nil
		}

		return Key(inner[1 : len(inner)-1]), nil
	}

	n, err := strconv.Atoi(inner)
	if err != nil {
		return Step{}, fmt.Errorf("bracket %q is neither a quoted key nor an index", inner)
	}

	return Index(n), nil
}

// Resolve walks p from root.
func (p Path) Resolve(root any) (any, error) {
	current := root

	for i, step := range p {
		next, err := resolveStep(current, step)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p[:i+1], err)
		}

		current = next
	}

	return current, nil
}

func resolveStep(obj any, step Step) (any, error) {
	if obj == nil {
		return nil, fmt.Errorf("%w: nil parent", ErrNotFound)
	}

	if n, ok := obj.(Navigable); ok {
		name, isName := step.Name, step.Kind == StepAttr
		if k, isString := step.Key.(string); step.Kind == StepKey && isString {
			name, isName = k, true
		}

		if isName {
			if child, found := n.Child(name); found {
				return child, nil
			}

			return nil, fmt.Errorf("%w: %s", ErrNotFound, step)
		}
	}

	v := reflect.ValueOf(obj)
	outer := v

	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: nil parent", ErrNotFound)
		}

		v = v.Elem()
	}

	switch step.Kind {
	case StepAttr:
		switch v.Kind() {
		case reflect.Struct:
			if idx, ok := fieldIndex(v.Type(), step.Name); ok {
				return v.FieldByIndex(idx).Interface(), nil
			}
		case reflect.Map:
			return attrLookup(v, step)
		}

		if getter, ok := getterMethod(outer, step.Name); ok {
			return getter.Call(nil)[0].Interface(), nil
		}

		return nil, fmt.Errorf("%w: no field %s in %s", ErrNotFound, step.Name, v.Type())
	case StepIndex:
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return nil, fmt.Errorf("%w: cannot index %s", ErrNotFound, v.Type())
		}

		i := step.Index
		if i < 0 {
			i += v.Len()
		}

		if i < 0 || i >= v.Len() {
			return nil, fmt.Errorf("%w: index %d out of range", ErrNotFound, step.Index)
		}

		return v.Index(i).Interface(), nil
	case StepKey:
		if v.Kind() != reflect.Map {
			return nil, fmt.Errorf("%w: %s is not a map", ErrNotFound, v.Type())
		}

		return mapLookup(v, step.Key, step)
	}

	return nil, fmt.Errorf("%w: unknown step kind %d", ErrInvalidPath, step.Kind)
}

func mapLookup(m reflect.Value, key any, step Step) (any, error) {
	k := reflect.ValueOf(key)
	keyType := m.Type().Key()

	switch {
	case !k.IsValid():
		return nil, fmt.Errorf("%w: nil key", ErrNotFound)
	case k.Type().AssignableTo(keyType):
	case k.Type().ConvertibleTo(keyType) && k.Kind() == keyType.Kind():
		k = k.Convert(keyType)
	default:
		return nil, fmt.Errorf("%w: key %s does not fit %s", ErrNotFound, step, m.Type())
	}

	value := m.MapIndex(k)
	if !value.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, step)
	}

	return value.Interface(), nil
}

// attrLookup finds a string map key by exact name, then by MatchName. Among several loose
// matches the lexically smallest key wins.
func attrLookup(m reflect.Value, step Step) (any, error) {
	value, err := mapLookup(m, step.Name, step)
	if err == nil || m.Type().Key().Kind() != reflect.String {
		return value, err
	}

	var (
		found reflect.Value
		best  string
	)

	iter := m.MapRange()
	for iter.Next() {
		k := iter.Key().String()
		if !MatchName(k, step.Name) {
			continue
		}

		if !found.IsValid() || k < best {
			found, best = iter.Value(), k
		}
	}

	if !found.IsValid() {
		return nil, err
	}

	return found.Interface(), nil
}

// fieldIndex finds an exported field by exact name, then by MatchName.
func fieldIndex(t reflect.Type, name string) ([]int, bool) {
	if f, ok := t.FieldByName(name); ok && f.IsExported() {
		return f.Index, true
	}

	for i := range t.NumField() {
		f := t.Field(i)
		if f.IsExported() && MatchName(f.Name, name) {
			return f.Index, true
		}
	}

	return nil, false
}

// getterMethod finds a method taking no arguments and returning one value, such as Key.
func getterMethod(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()

	for i := range t.NumMethod() {
		m := t.Method(i)
		if !MatchName(m.Name, name) {
			continue
		}

		method := v.Method(i)
		if method.Type().NumIn() == 0 && method.Type().NumOut() == 1 {
			return method, true
		}
	}

	return reflect.Value{}, false
}

// MatchName compares names ignoring case and underscores, so that pos_actual matches PosActual.
func MatchName(a, b string) bool {
	return normalize(a) == normalize(b)
}

func normalize(s string) string {
	var b strings.Builder

	b.Grow(len(s))

	for _, r := range s {
		if r == '_' || r == '-' {
			continue
		}

		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}
