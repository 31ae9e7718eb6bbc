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

// Package datalink binds the fields of a plain data record to endpoints found below a
// source object, so that a whole record can be downloaded or uploaded in one transfer.
//
// Record fields declare their binding with a struct tag:
//
//	type AxisData struct {
//		Pos    float64 `link:"r,path=stat.pos_actual"`
//		Target float64 `link:"rw,name=target_pos"`
//		Unit   string  `link:"static"`
//		Stat   Status  `link:"sub,name=stat"`
//	}
//
// r, w and rw fields are bound to the endpoint their locator resolves to. Without a
// locator, the field name is looked up on the source. static fields receive the resolved
// value once, when the link is built. sub fields are nested records linked against the
// resolved object. Untagged fields are ignored.
package datalink

import (
	"context"
	"fmt"
	"reflect"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/dispatch"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/logger"
	"go.uber.org/zap"
)

// Policy decides what happens to record fields whose locator cannot be resolved.
type Policy int

const (
	// Strict fails link construction with a *MatchError.
	Strict Policy = iota
	// Lenient leaves the field unbound.
	Lenient
)

type options struct {
	endpoints map[string]endpoint.Endpoint
	logger    *zap.SugaredLogger
	dispatch  []dispatch.Option
}

// Option configures a Link.
type Option func(*options)

// WithEndpoint binds the record field at fieldPath (Go field names joined by dots,
// e.g. "Stat.Pos") directly to ep, bypassing locator resolution.
func WithEndpoint(fieldPath string, ep endpoint.Endpoint) Option {
	return func(o *options) {
		o.endpoints[fieldPath] = ep
	}
}

// WithDispatchOptions configures the transfers made by Download and Upload.
func WithDispatchOptions(opts ...dispatch.Option) Option {
	return func(o *options) {
		o.dispatch = append(o.dispatch, opts...)
	}
}

// WithLogger sets the logger of the link and of the transfers it makes.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *options) {
		o.logger = log
	}
}

type binding struct {
	field reflect.Value
	name  string
}

// Link is the resolved binding between a record and endpoints.
// The set of bindings is fixed at construction. A Link is not safe for concurrent use.
type Link struct {
	source        any
	record        any
	readBindings  map[endpoint.Endpoint][]binding
	writeBindings map[endpoint.Endpoint][]binding
	reader        *dispatch.Reader
	readable      []endpoint.Endpoint
	writable      []endpoint.Endpoint
	opts          options
	policy        Policy
}

// New links record, a non-nil pointer to a struct, to endpoints below source.
// If source is itself an endpoint, the record must have exactly one value field
// (tagged r, w or rw, or else named Value), which is bound to source.
func New(source, record any, policy Policy, opts ...Option) (*Link, error) {
	o := options{endpoints: make(map[string]endpoint.Endpoint)}
	for _, opt := range opts {
		opt(&o)
	}

	o.logger = logger.OrDefault(o.logger, logger.ComponentDataLink)

	rv := reflect.ValueOf(record)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: got %T", ErrInvalidRecord, record)
	}

	l := &Link{
		source:        source,
		record:        record,
		readBindings:  make(map[endpoint.Endpoint][]binding),
		writeBindings: make(map[endpoint.Endpoint][]binding),
		opts:          o,
		policy:        policy,
	}

	var err error
	if ep, ok := source.(endpoint.Endpoint); ok {
		err = l.linkSingle(ep, rv.Elem())
	} else {
		err = l.walk(source, rv.Elem(), "")
	}

	if err != nil {
		return nil, err
	}

	return l, nil
}

func (l *Link) walk(source any, rec reflect.Value, prefix string) error {
	t := rec.Type()

	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		name := prefix + sf.Name
		field := rec.Field(i)

		spec, err := parseTag(sf.Tag.Get(tagName))
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}

		if ep, ok := l.opts.endpoints[name]; ok {
			mode := spec.mode
			if spec.kind != kindValue {
				mode = ModeReadWrite
			}

			l.bind(ep, field, name, mode)

			continue
		}

		path := spec.path
		if !spec.located {
			path = Path{Attr(sf.Name)}
		}

		switch spec.kind {
		case kindSkip:
			continue
		case kindValue:
			ep, err := resolveEndpoint(source, path)
			if err != nil {
				if err := l.mismatch(name, path, err); err != nil {
					return err
				}

				continue
			}

			l.bind(ep, field, name, spec.mode)
		case kindStatic:
			obj, err := path.Resolve(source)
			if err == nil {
				err = assign(field, obj)
			}

			if err != nil {
				if err := l.mismatch(name, path, err); err != nil {
					return err
				}
			}
		case kindSub:
			sub, err := subRecord(field)
			if err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}

			obj, err := path.Resolve(source)
			if err != nil {
				if err := l.mismatch(name, path, err); err != nil {
					return err
				}

				continue
			}

			if err := l.walk(obj, sub, name+"."); err != nil {
				return err
			}
		}
	}

	return nil
}

func (l *Link) linkSingle(ep endpoint.Endpoint, rec reflect.Value) error {
	t := rec.Type()
	valueField, mode, count := -1, ModeReadWrite, 0

	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		spec, err := parseTag(sf.Tag.Get(tagName))
		if err != nil {
			return fmt.Errorf("field %s: %w", sf.Name, err)
		}

		switch spec.kind {
		case kindValue:
			valueField, mode = i, spec.mode
			count++
		case kindSub:
			return fmt.Errorf("%w: %s has nested record %s", ErrValueField, t, sf.Name)
		case kindStatic:
			path := spec.path
			if !spec.located {
				path = Path{Attr(sf.Name)}
			}

			obj, err := path.Resolve(ep)
			if err == nil {
				err = assign(rec.Field(i), obj)
			}

			if err != nil {
				if err := l.mismatch(sf.Name, path, err); err != nil {
					return err
				}
			}
		case kindSkip:
		}
	}

	if count == 0 {
		if sf, ok := t.FieldByName("Value"); ok && sf.IsExported() && len(sf.Index) == 1 {
			valueField, count = sf.Index[0], 1
		}
	}

	if count != 1 {
		return fmt.Errorf("%w: %s has %d", ErrValueField, t, count)
	}

	l.bind(ep, rec.Field(valueField), t.Field(valueField).Name, mode)

	return nil
}

func resolveEndpoint(source any, path Path) (endpoint.Endpoint, error) {
	obj, err := path.Resolve(source)
	if err != nil {
		return nil, err
	}

	ep, ok := obj.(endpoint.Endpoint)
	if !ok || ep == nil {
		return nil, fmt.Errorf("%w: %T", ErrNotEndpoint, obj)
	}

	return ep, nil
}

// subRecord returns the struct a sub field links into, allocating nil pointers.
func subRecord(field reflect.Value) (reflect.Value, error) {
	if field.Kind() == reflect.Pointer {
		if field.Type().Elem().Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("%w: sub field must be a struct or pointer to struct", ErrInvalidTag)
		}

		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}

		field = field.Elem()
	}

	if field.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w: sub field must be a struct or pointer to struct", ErrInvalidTag)
	}

	return field, nil
}

func (l *Link) mismatch(field string, path Path, err error) error {
	if l.policy == Strict {
		return &MatchError{Field: field, Path: path, Err: err}
	}

	l.opts.logger.Debugf("leaving field %s unbound: %v", field, err)

	return nil
}

func (l *Link) bind(ep endpoint.Endpoint, field reflect.Value, name string, mode Mode) {
	b := binding{field: field, name: name}

	if mode&ModeRead != 0 {
		if _, ok := l.readBindings[ep]; !ok {
			l.readable = append(l.readable, ep)
		}

		l.readBindings[ep] = append(l.readBindings[ep], b)
	}

	if mode&ModeWrite != 0 {
		if _, ok := l.writeBindings[ep]; !ok {
			l.writable = append(l.writable, ep)
		}

		l.writeBindings[ep] = append(l.writeBindings[ep], b)
	}
}

// Record returns the linked record.
func (l *Link) Record() any {
	return l.record
}

// Readable returns the endpoints downloaded into the record, in field order.
func (l *Link) Readable() []endpoint.Endpoint {
	return append([]endpoint.Endpoint(nil), l.readable...)
}

// Writable returns the endpoints uploaded from the record, in field order.
func (l *Link) Writable() []endpoint.Endpoint {
	return append([]endpoint.Endpoint(nil), l.writable...)
}

// Fields returns the record fields bound to ep.
func (l *Link) Fields(ep endpoint.Endpoint) []string {
	var out []string

	seen := make(map[string]struct{})

	for _, bs := range [][]binding{l.readBindings[ep], l.writeBindings[ep]} {
		for _, b := range bs {
			if _, ok := seen[b.name]; !ok {
				seen[b.name] = struct{}{}
				out = append(out, b.name)
			}
		}
	}

	return out
}

// Apply stores the value of every readable endpoint in each field bound to it.
// It fails if values lacks a readable endpoint.
func (l *Link) Apply(values endpoint.Values) error {
	return l.apply(values, false)
}

// ApplyPartial is like Apply but leaves fields of endpoints missing from values untouched.
func (l *Link) ApplyPartial(values endpoint.Values) error {
	return l.apply(values, true)
}

func (l *Link) apply(values endpoint.Values, partial bool) error {
	for _, ep := range l.readable {
		v, ok := values[ep]
		if !ok {
			if partial {
				continue
			}

			return fmt.Errorf("%w: %s", ErrMissingValue, ep.Key())
		}

		for _, b := range l.readBindings[ep] {
			if err := assign(b.field, v); err != nil {
				return fmt.Errorf("field %s: %w", b.name, err)
			}
		}
	}

	return nil
}

// Collect puts the value of every writable endpoint into into. When several fields are
// bound to the same endpoint, the last one in field order wins.
func (l *Link) Collect(into endpoint.Values) error {
	for _, ep := range l.writable {
		bs := l.writeBindings[ep]

		v, err := snapshot(bs[len(bs)-1].field)
		if err != nil {
			return fmt.Errorf("field %s: %w", bs[len(bs)-1].name, err)
		}

		into[ep] = v
	}

	return nil
}

// Download reads every readable endpoint and applies the values to the record.
func (l *Link) Download(ctx context.Context) error {
	if l.reader == nil {
		r, err := dispatch.NewReader(l.readable, l.opts.dispatch...)
		if err != nil {
			return err
		}

		l.reader = r
	}

	values := make(endpoint.Values, len(l.readable))
	if err := l.reader.Read(ctx, values); err != nil {
		return err
	}

	return l.Apply(values)
}

// Upload writes the record's writable fields to their endpoints.
func (l *Link) Upload(ctx context.Context) error {
	values := make(endpoint.Values, len(l.writable))
	if err := l.Collect(values); err != nil {
		return err
	}

	return dispatch.Write(ctx, values, l.opts.dispatch...)
}

// Reset resets every linked endpoint that holds state.
func (l *Link) Reset() {
	seen := make(map[endpoint.Endpoint]struct{})

	for _, eps := range [][]endpoint.Endpoint{l.readable, l.writable} {
		for _, ep := range eps {
			if _, ok := seen[ep]; ok {
				continue
			}

			seen[ep] = struct{}{}

			if r, ok := ep.(endpoint.Resetter); ok {
				r.Reset()
			}
		}
	}
}
