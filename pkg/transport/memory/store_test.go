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

package memory_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/transport/memory"
)

var _ = Describe("Store", func() {
	var (
		ctx   context.Context
		store *memory.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = memory.NewStore("motor", map[string]any{"pos": 1.5, "state": 2})
	})

	load := func(key string) any {
		v, _ := store.Load(key)

		return v
	}

	It("groups its endpoints under the store", func() {
		pos := store.Endpoint("pos")
		state := store.Endpoint("state")
		Expect(pos.GroupID()).To(Equal(state.GroupID()))
		Expect(pos.Key()).To(Equal("motor.pos"))
		Expect(endpoint.GroupName(pos.GroupID())).To(Equal("memory:motor"))
	})

	It("reads a batch in one round trip", func() {
		pos := store.Endpoint("pos")
		state := store.Endpoint("state")

		c := pos.ReadCollector()
		c.Add(pos)
		c.Add(state)
		c.Add(pos)

		values := endpoint.Values{}
		Expect(c.Execute(ctx, values)).To(Succeed())
		Expect(values).To(HaveKeyWithValue(endpoint.Endpoint(pos), 1.5))
		Expect(values).To(HaveKeyWithValue(endpoint.Endpoint(state), 2))
		Expect(store.Reads()).To(Equal(int64(1)))
	})

	It("parses and writes a batch in one round trip", func() {
		target := store.Endpoint("target", endpoint.WithParser(endpoint.Float))
		state := store.Endpoint("state")

		c := target.WriteCollector()
		c.Add(target, "3")
		c.Add(state, 4)
		c.Add(state, 5)
		Expect(c.Execute(ctx)).To(Succeed())

		Expect(load("target")).To(Equal(3.0))
		Expect(load("state")).To(Equal(5))
		Expect(store.Writes()).To(Equal(int64(1)))
	})

	It("fails on missing keys", func() {
		_, err := store.Endpoint("nope").Get(ctx)
		Expect(err).To(MatchError(memory.ErrMissingKey))
	})

	It("injects and heals failures", func() {
		boom := errors.New("cable unplugged")
		store.FailReads(boom)
		_, err := store.Endpoint("pos").Get(ctx)
		Expect(err).To(MatchError(boom))

		store.FailReads(nil)
		Expect(store.Endpoint("pos").Get(ctx)).To(Equal(1.5))

		store.FailWrites(boom)
		Expect(store.Endpoint("pos").Set(ctx, 2.0)).To(MatchError(boom))
		Expect(load("pos")).To(Equal(1.5))
	})

	It("snapshots without sharing state", func() {
		store.Put("list", []int{1, 2})

		snap, err := store.Snapshot()
		Expect(err).NotTo(HaveOccurred())

		snap["list"].([]int)[0] = 99
		Expect(load("list")).To(Equal([]int{1, 2}))
	})

	It("refuses endpoints of another store", func() {
		other := memory.NewStore("other", nil)
		c := store.Endpoint("pos").ReadCollector()
		Expect(func() { c.Add(other.Endpoint("pos")) }).To(Panic())
	})
})
