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

// Base carries what every endpoint kind has in common: its key and an optional parser
// applied to values before they are written.
type Base struct {
	parser Parser
	key    string
}

// Option configures a Base.
type Option func(*Base)

// WithParser sets the parser applied to every value written to the endpoint.
func WithParser(p Parser) Option {
	return func(b *Base) {
		b.parser = p
	}
}

// NewBase returns the embeddable part of an endpoint identified by key.
func NewBase(key string, opts ...Option) Base {
	b := Base{key: key}
	for _, opt := range opts {
		opt(&b)
	}

	return b
}

func (b *Base) Key() string {
	return b.key
}

// Parse runs the configured parser, or returns value unchanged without one.
func (b *Base) Parse(value any) (any, error) {
	if b.parser == nil {
		return value, nil
	}

	return b.parser.Parse(value)
}

// Parse applies ep's parser to value if ep has one. Batch write collectors call it
// for every value they send, single writes parse inside Set.
func Parse(ep Endpoint, value any) (any, error) {
	if p, ok := ep.(Parser); ok {
		return p.Parse(value)
	}

	return value, nil
}
