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

package endpoint_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
)

// orphan reports no group but cannot be evaluated.
type orphan struct {
	endpoint.Base
}

func (o *orphan) GroupID() endpoint.GroupID {
	return nil
}

func (o *orphan) Get(context.Context) (any, error) {
	return nil, nil
}

func (o *orphan) Set(context.Context, any) error {
	return nil
}

func (o *orphan) ReadCollector() endpoint.ReadCollector {
	return endpoint.NewSequentialReadCollector()
}

func (o *orphan) WriteCollector() endpoint.WriteCollector {
	return endpoint.NewSequentialWriteCollector()
}

var _ = Describe("Local endpoints", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("stores, parses and resets values", func() {
		v := endpoint.NewValue("speed", 1.0, endpoint.WithParser(endpoint.Float))
		Expect(v.Key()).To(Equal("speed"))
		Expect(v.GroupID()).To(Equal(endpoint.LocalGroup))

		Expect(v.Set(ctx, "2.5")).To(Succeed())
		Expect(v.Get(ctx)).To(Equal(2.5))

		v.Reset()
		Expect(v.Get(ctx)).To(Equal(1.0))
	})

	It("rejects values refused by the parser", func() {
		v := endpoint.NewValue("mode", "AUTO", endpoint.WithParser(endpoint.OneOf("AUTO", "MANUAL")))
		err := v.Set(ctx, "BROKEN")
		Expect(err).To(MatchError(endpoint.ErrInvalidValue))
		Expect(v.Get(ctx)).To(Equal("AUTO"))
	})

	It("keeps Func endpoints read only", func() {
		f := endpoint.NewFunc("answer", func(context.Context) (any, error) { return 42, nil })
		Expect(f.Get(ctx)).To(Equal(42))
		Expect(f.Set(ctx, 1)).To(MatchError(endpoint.ErrReadOnly))
	})

	Describe("Check", func() {
		It("accepts grouped and derived endpoints", func() {
			a := endpoint.NewValue("a", 1)
			Expect(endpoint.Check(a)).To(Succeed())
			Expect(endpoint.Check(endpoint.NewMaxOf("max", a))).To(Succeed())
		})

		It("rejects endpoints without group that cannot be derived", func() {
			Expect(endpoint.Check(&orphan{Base: endpoint.NewBase("lost")})).To(MatchError(endpoint.ErrNotDerived))
			Expect(endpoint.Check(nil)).To(MatchError(endpoint.ErrNilEndpoint))
		})
	})
})

var _ = Describe("Sequential collectors", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("reads every endpoint once", func() {
		calls := 0
		f := endpoint.NewFunc("counter", func(context.Context) (any, error) {
			calls++

			return calls, nil
		})

		c := endpoint.NewSequentialReadCollector()
		c.Add(f)
		c.Add(f)

		values := endpoint.Values{}
		Expect(c.Execute(ctx, values)).To(Succeed())
		Expect(calls).To(Equal(1))
		Expect(values).To(HaveKeyWithValue(f, 1))
	})

	It("wraps read failures with the endpoint key", func() {
		f := endpoint.NewFunc("broken", func(context.Context) (any, error) {
			return nil, errors.New("no signal")
		})

		c := endpoint.NewSequentialReadCollector()
		c.Add(f)
		err := c.Execute(ctx, endpoint.Values{})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("broken"))
	})

	It("writes the last value added for an endpoint", func() {
		v := endpoint.NewValue("target", 0)

		c := endpoint.NewSequentialWriteCollector()
		c.Add(v, 1)
		c.Add(v, 2)
		Expect(c.Execute(ctx)).To(Succeed())
		Expect(v.Get(ctx)).To(Equal(2))
	})

	It("stops on a cancelled context", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		c := endpoint.NewSequentialWriteCollector()
		c.Add(endpoint.NewValue("x", 0), 1)
		Expect(c.Execute(cancelled)).To(MatchError(context.Canceled))
	})
})

type namedGroup struct{}

func (namedGroup) String() string {
	return "plc-1"
}

var _ = Describe("GroupName", func() {
	It("names groups for logs", func() {
		Expect(endpoint.GroupName(nil)).To(Equal("derived"))
		Expect(endpoint.GroupName(namedGroup{})).To(Equal("plc-1"))
		Expect(endpoint.GroupName("bus")).To(Equal("bus"))
		Expect(endpoint.GroupName(endpoint.LocalGroup)).To(Equal("local"))
	})
})
