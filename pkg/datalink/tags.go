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
	"strconv"
	"strings"
)

// Mode is the direction of a binding.
type Mode int

const (
	ModeRead Mode = 1 << iota
	ModeWrite

	ModeReadWrite = ModeRead | ModeWrite
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "r"
	case ModeWrite:
		return "w"
	case ModeReadWrite:
		return "rw"
	default:
		return "?"
	}
}

type fieldKind int

const (
	kindSkip fieldKind = iota
	kindValue
	kindStatic
	kindSub
)

type fieldSpec struct {
	path Path
	kind fieldKind
	mode Mode
	// located is set when the tag names a locator, otherwise the field name is used.
	located bool
}

const tagName = "link"

// parseTag reads a `link:"<kind>[,name=x|path=a.b|key=k|index=n]"` tag.
// Kinds are r, w, rw, static, sub and -.
func parseTag(tag string) (fieldSpec, error) {
	if tag == "" || tag == "-" {
		return fieldSpec{kind: kindSkip}, nil
	}

	parts := strings.Split(tag, ",")

	var spec fieldSpec

	switch strings.TrimSpace(parts[0]) {
	case "r":
		spec.kind, spec.mode = kindValue, ModeRead
	case "w":
		spec.kind, spec.mode = kindValue, ModeWrite
	case "rw":
		spec.kind, spec.mode = kindValue, ModeReadWrite
	case "static":
		spec.kind = kindStatic
	case "sub":
		spec.kind = kindSub
	default:
		return spec, fmt.Errorf("%w: unknown kind %q", ErrInvalidTag, parts[0])
	}

	for _, opt := range parts[1:] {
		key, value, ok := strings.Cut(strings.TrimSpace(opt), "=")
		if !ok {
			return spec, fmt.Errorf("%w: option %q is not key=value", ErrInvalidTag, opt)
		}

		if spec.located {
			return spec, fmt.Errorf("%w: more than one locator in %q", ErrInvalidTag, tag)
		}

		spec.located = true

		switch key {
		case "name":
			spec.path = Path{Attr(value)}
		case "path":
			p, err := ParsePath(value)
			if err != nil {
				return spec, err
			}

			spec.path = p
		case "key":
			spec.path = Path{Key(value)}
		case "index":
			n, err := strconv.Atoi(value)
			if err != nil {
				return spec, fmt.Errorf("%w: index %q: %w", ErrInvalidTag, value, err)
			}

			spec.path = Path{Index(n)}
		default:
			return spec, fmt.Errorf("%w: unknown option %q", ErrInvalidTag, key)
		}
	}

	return spec, nil
}
