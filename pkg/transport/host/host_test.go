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

package host_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/dispatch"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/transport/host"
)

type fakeSampler struct {
	memErr error
	calls  map[string]int
}

func (f *fakeSampler) CPU(context.Context) ([]float64, int, error) {
	f.calls["cpu"]++

	return []float64{12.5}, 8, nil
}

func (f *fakeSampler) Memory(context.Context) (*mem.VirtualMemoryStat, error) {
	f.calls["memory"]++

	if f.memErr != nil {
		return nil, f.memErr
	}

	return &mem.VirtualMemoryStat{Total: 1 << 30, Available: 1 << 29, UsedPercent: 50}, nil
}

func (f *fakeSampler) Load(context.Context) (*load.AvgStat, error) {
	f.calls["load"]++

	return &load.AvgStat{Load1: 0.5, Load5: 0.25, Load15: 0.125}, nil
}

func (f *fakeSampler) Uptime(context.Context) (uint64, error) {
	f.calls["uptime"]++

	return 3600, nil
}

var _ = Describe("Host", func() {
	var (
		ctx     context.Context
		sampler *fakeSampler
		h       *host.Host
	)

	BeforeEach(func() {
		ctx = context.Background()
		sampler = &fakeSampler{calls: map[string]int{}}
		h = host.New("edge", host.WithSampler(sampler))
	})

	endpoints := func(metrics ...host.Metric) []endpoint.Endpoint {
		out := make([]endpoint.Endpoint, 0, len(metrics))

		for _, m := range metrics {
			ep, err := h.Endpoint(m)
			Expect(err).NotTo(HaveOccurred())

			out = append(out, ep)
		}

		return out
	}

	It("samples each requested family once per batch", func() {
		eps := endpoints(host.MemoryTotal, host.MemoryUsedPercent, host.Load1, host.Load15, host.Uptime)

		values, err := dispatch.Read(ctx, eps)
		Expect(err).NotTo(HaveOccurred())
		Expect(sampler.calls).To(Equal(map[string]int{"memory": 1, "load": 1, "uptime": 1}))

		Expect(values[eps[0]]).To(Equal(uint64(1 << 30)))
		Expect(values[eps[1]]).To(Equal(50.0))
		Expect(values[eps[2]]).To(Equal(0.5))
		Expect(values[eps[3]]).To(Equal(0.125))
		Expect(values[eps[4]]).To(Equal(time.Hour))
	})

	It("reads a single endpoint", func() {
		eps := endpoints(host.CPUCount)
		Expect(eps[0].Get(ctx)).To(Equal(8))
	})

	It("fails the batch when a family cannot be sampled", func() {
		sampler.memErr = errors.New("no /proc")

		_, err := dispatch.Read(ctx, endpoints(host.CPUPercent, host.MemoryAvailable))
		Expect(err).To(MatchError(sampler.memErr))
	})

	It("rejects unknown metrics and writes", func() {
		_, err := h.Endpoint("temperature")
		Expect(err).To(HaveOccurred())
		Expect(endpoints(host.Load5)[0].Set(ctx, 1.0)).To(MatchError(endpoint.ErrReadOnly))
	})

	It("samples the real machine", func() {
		local := host.New("local")
		total, err := local.Endpoint(host.MemoryTotal)
		Expect(err).NotTo(HaveOccurred())

		v, err := total.Get(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(BeNumerically(">", 0))
	})
})
