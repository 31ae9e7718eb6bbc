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

// Package subscription maintains trees of subscribers that share one physical transfer.
//
// A Downloader (or Uploader) is the root of a tree. Independent parts of a program obtain
// child connections with NewConnection, register endpoints, data links and callbacks on
// them, and disconnect when done. Every membership change recompiles the changed node and
// its ancestors, so one Download of the root reads the union of all endpoints below it in
// one batch per transport group.
package subscription

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/datalink"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/dispatch"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/metrics"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/standarderrors"
	"go.uber.org/zap"
)

// Token identifies a node of a subscription tree.
type Token = uuid.UUID

// RootToken is the token of every tree's root node.
var RootToken = uuid.Nil

// CallbackID identifies a registered callback for removal.
type CallbackID uint64

type callback struct {
	fn       func() error
	id       CallbackID
	priority int
}

type failureCallback struct {
	fn func(error)
	id CallbackID
}

// node is one subscriber. Children are referenced by token only, parents are found by
// walking down from the root.
type node struct {
	plan      atomic.Pointer[plan]
	values    endpoint.Values
	order     []endpoint.Endpoint
	links     []*datalink.Link
	callbacks []callback
	failures  []failureCallback
	children  []Token
	failed    atomic.Bool
	detached  atomic.Bool
}

// plan is the immutable compiled view of a node and all of its descendants.
// Transfers only ever read a plan, rebuilds replace it.
type plan struct {
	reader      *dispatch.Reader
	values      endpoint.Values
	endpoints   []endpoint.Endpoint
	links       []*datalink.Link
	callbacks   []callback
	failures    []failureCallback
	fingerprint uint64
}

type tree struct {
	nodes     map[Token]*node
	cache     valueCache
	log       *zap.SugaredLogger
	component string
	opts      options
	ids       atomic.Uint64
	mu        sync.Mutex
	reads     bool
}

func newTree(component string, reads bool, o options) *tree {
	t := &tree{
		nodes:     map[Token]*node{RootToken: {values: endpoint.Values{}}},
		component: component,
		opts:      o,
		reads:     reads,
		log:       o.logger.With("instance", o.instance),
	}

	if reads {
		t.cache = newValueCache(o.valueTTL)
	}

	metrics.InitErrorCounter(component, o.instance)

	if err := t.rebuild([]Token{RootToken}); err != nil {
		t.log.Errorf("failed to compile empty plan: %v", err)
	}

	return t
}

func (t *tree) nextID() CallbackID {
	return CallbackID(t.ids.Add(1))
}

func (t *tree) dispatchOptions() []dispatch.Option {
	return []dispatch.Option{
		dispatch.WithName(t.opts.instance),
		dispatch.WithLogger(t.log),
		dispatch.WithConcurrency(t.opts.concurrency),
	}
}

// pathTo returns the tokens from the root down to token, or nil if token is not in the tree.
// The caller holds t.mu.
func (t *tree) pathTo(token Token) []Token {
	var walk func(current Token, path []Token) []Token

	walk = func(current Token, path []Token) []Token {
		path = append(path, current)
		if current == token {
			return path
		}

		n, ok := t.nodes[current]
		if !ok {
			return nil
		}

		for _, child := range n.children {
			if found := walk(child, path); found != nil {
				return found
			}
		}

		return nil
	}

	return walk(RootToken, nil)
}

// mutate runs fn on the node of token under the tree lock and rebuilds it and its ancestors.
// fn reports whether it changed anything.
func (t *tree) mutate(token Token, fn func(n *node) (bool, error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[token]
	if !ok {
		return standarderrors.ErrDisconnected
	}

	changed, err := fn(n)
	if err != nil || !changed {
		return err
	}

	return t.rebuild(t.pathTo(token))
}

// rebuild recompiles the nodes of path bottom-up, so every parent compiles against
// the fresh plans of its children. The caller holds t.mu.
func (t *tree) rebuild(path []Token) error {
	for i := len(path) - 1; i >= 0; i-- {
		n := t.nodes[path[i]]

		p, err := t.compile(n)
		if err != nil {
			return fmt.Errorf("failed to rebuild node %s: %w", path[i], err)
		}

		n.plan.Store(p)
		metrics.IncRebuildCount(t.component, t.opts.instance)

		if path[i] == RootToken {
			metrics.SetEffectiveEndpoints(t.component, t.opts.instance, len(p.endpoints))
		}

		t.log.Debugf("rebuilt node %s: %d endpoints, %d links, %d callbacks (fingerprint %016x)",
			path[i], len(p.endpoints), len(p.links), len(p.callbacks), p.fingerprint)
	}

	return nil
}

func (t *tree) compile(n *node) (*plan, error) {
	p := &plan{values: make(endpoint.Values, len(n.values))}
	seen := make(map[endpoint.Endpoint]struct{})

	addEndpoint := func(ep endpoint.Endpoint) {
		if _, ok := seen[ep]; !ok {
			seen[ep] = struct{}{}
			p.endpoints = append(p.endpoints, ep)
		}
	}

	addNode := func(order []endpoint.Endpoint, values endpoint.Values) {
		for _, ep := range order {
			addEndpoint(ep)

			if v, ok := values[ep]; ok {
				p.values[ep] = v
			}
		}
	}

	addNode(n.order, n.values)
	p.links = append(p.links, n.links...)
	p.callbacks = append(p.callbacks, n.callbacks...)
	p.failures = append(p.failures, n.failures...)

	for _, token := range n.children {
		child := t.nodes[token].plan.Load()

		addNode(child.endpoints, child.values)
		p.links = append(p.links, child.links...)
		p.callbacks = append(p.callbacks, child.callbacks...)
		p.failures = append(p.failures, child.failures...)
	}

	for _, l := range p.links {
		eps := l.Writable()
		if t.reads {
			eps = l.Readable()
		}

		for _, ep := range eps {
			addEndpoint(ep)
		}
	}

	// a link shared by two nodes runs once
	p.links = uniqueLinks(p.links)

	slices.SortStableFunc(p.callbacks, func(a, b callback) int {
		return cmp.Or(cmp.Compare(a.priority, b.priority), cmp.Compare(a.id, b.id))
	})
	slices.SortStableFunc(p.failures, func(a, b failureCallback) int {
		return cmp.Compare(a.id, b.id)
	})

	if t.reads {
		r, err := dispatch.NewReader(p.endpoints, t.dispatchOptions()...)
		if err != nil {
			return nil, err
		}

		p.reader = r
	}

	p.fingerprint = fingerprint(p.endpoints)

	return p, nil
}

func uniqueLinks(links []*datalink.Link) []*datalink.Link {
	seen := make(map[*datalink.Link]struct{}, len(links))
	out := links[:0]

	for _, l := range links {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}

	return out
}

func fingerprint(endpoints []endpoint.Endpoint) uint64 {
	h := xxhash.New()

	for _, ep := range endpoints {
		_, _ = h.WriteString(endpoint.GroupName(ep.GroupID()))
		_, _ = h.WriteString("/")
		_, _ = h.WriteString(ep.Key())
		_, _ = h.Write([]byte{0})
	}

	return h.Sum64()
}

// addChild registers a fresh node below parent and returns its token.
func (t *tree) addChild(parent Token) (Token, *node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.nodes[parent]
	if !ok {
		return uuid.Nil, nil, standarderrors.ErrDisconnected
	}

	token := uuid.New()
	n := &node{values: endpoint.Values{}}
	n.plan.Store(&plan{values: endpoint.Values{}})

	t.nodes[token] = n
	p.children = append(p.children, token)

	if err := t.rebuild(t.pathTo(token)); err != nil {
		return uuid.Nil, nil, err
	}

	return token, n, nil
}

// detach removes token and everything below it from the tree. The subtree is dropped
// top-down in one pass; its members are not notified.
func (t *tree) detach(token Token) error {
	if token == RootToken {
		return fmt.Errorf("the root of a tree cannot be disconnected")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	path := t.pathTo(token)
	if path == nil {
		return standarderrors.ErrDisconnected
	}

	parent := t.nodes[path[len(path)-2]]
	parent.children = slices.DeleteFunc(parent.children, func(c Token) bool { return c == token })

	var drop func(Token)

	drop = func(current Token) {
		n := t.nodes[current]
		delete(t.nodes, current)
		n.detached.Store(true)

		for _, child := range n.children {
			drop(child)
		}
	}

	drop(token)

	return t.rebuild(path[:len(path)-1])
}
