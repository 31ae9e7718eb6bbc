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

package device_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/config"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/datalink"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/device"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/transport/prometheus"
)

func ptr[T any](v T) *T {
	return &v
}

func pressDevices() []config.DeviceConfig {
	return []config.DeviceConfig{
		{
			Name:      "press",
			Transport: &config.TransportConfig{Type: config.TransportMemory, Initial: map[string]any{"rpm": 30.0}},
			Endpoints: []config.EndpointConfig{
				// declared before its input to exercise multi-pass resolution
				{Name: "hot", Type: config.EndpointAnyTrue, Inputs: []string{"press.spindle.overheat", "press.door_open"}},
				{Name: "door_open", Type: config.EndpointValue, Initial: false},
				{Name: "rpm", Type: config.EndpointPoint, Address: "rpm", Parser: "float"},
				{Name: "hz", Type: config.EndpointScale, Inputs: []string{"press.rpm"}, Scale: ptr(1.0 / 60)},
			},
			Devices: []config.DeviceConfig{
				{
					Name: "spindle",
					Endpoints: []config.EndpointConfig{
						{Name: "overheat", Type: config.EndpointAllTrue, Inputs: []string{"press.spindle.t1", "press.spindle.t2"}},
						{Name: "t1", Type: config.EndpointValue, Initial: true},
						{Name: "t2", Type: config.EndpointValue, Initial: true, Parser: "bool"},
						{Name: "speed", Type: config.EndpointValue, Initial: 0.0, Clip: []float64{0, 100}, Round: ptr(1)},
					},
				},
			},
		},
	}
}

var _ = Describe("Device", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("hierarchy", func() {
		var (
			root *device.Device
			a, b *endpoint.Value
		)

		BeforeEach(func() {
			root = device.New("cell")
			a = endpoint.NewValue("a", 1)
			b = endpoint.NewValue("b", 2)

			axis := device.New("axis")
			Expect(axis.AddEndpoint("PosActual", b)).To(Succeed())
			Expect(root.AddEndpoint("enabled", a)).To(Succeed())
			Expect(root.AddChild(axis)).To(Succeed())
		})

		It("rejects names already in use", func() {
			Expect(root.AddEndpoint("axis", a)).To(MatchError(device.ErrDuplicateName))
			Expect(root.AddChild(device.New("enabled"))).To(MatchError(device.ErrDuplicateName))
		})

		It("rejects nil endpoints", func() {
			Expect(root.AddEndpoint("nothing", nil)).To(MatchError(endpoint.ErrNilEndpoint))
		})

		It("resolves dotted paths with relaxed name matching", func() {
			Expect(root.Endpoint("axis.pos_actual")).To(BeIdenticalTo(b))
			Expect(root.Endpoint("enabled")).To(BeIdenticalTo(a))

			_, err := root.Endpoint("axis")
			Expect(err).To(MatchError(device.ErrNotEndpoint))

			_, err = root.Endpoint("axis.missing")
			Expect(err).To(MatchError(datalink.ErrNotFound))
		})

		It("walks endpoints in insertion order", func() {
			var paths []string

			root.Walk(func(path string, _ endpoint.Endpoint) {
				paths = append(paths, path)
			})

			Expect(paths).To(Equal([]string{"enabled", "axis.PosActual"}))
			Expect(root.Endpoints()).To(Equal([]endpoint.Endpoint{a, b}))
			Expect(root.Children()).To(HaveLen(1))
		})

		It("serves as a datalink source", func() {
			type axisRecord struct {
				Pos float64 `link:"r,path=pos_actual"`
			}

			type cellRecord struct {
				Axis    axisRecord `link:"sub"`
				Enabled int        `link:"rw"`
			}

			var rec cellRecord

			link, err := datalink.New(root, &rec, datalink.Strict)
			Expect(err).NotTo(HaveOccurred())
			Expect(link.Download(ctx)).To(Succeed())

			Expect(rec.Enabled).To(Equal(1))
			Expect(rec.Axis.Pos).To(Equal(2.0))
		})
	})

	Describe("Build", func() {
		It("creates devices, transports and derived endpoints", func() {
			root, err := device.Build(pressDevices())
			Expect(err).NotTo(HaveOccurred())

			hot, err := root.Endpoint("press.hot")
			Expect(err).NotTo(HaveOccurred())
			Expect(endpoint.IsDerived(hot)).To(BeTrue())
			Expect(hot.Get(ctx)).To(BeTrue())

			hz, err := root.Endpoint("press.hz")
			Expect(err).NotTo(HaveOccurred())
			Expect(hz.Get(ctx)).To(BeNumerically("~", 0.5, 1e-9))

			Expect(hz.Set(ctx, 2.0)).To(Succeed())

			rpm, err := root.Endpoint("press.rpm")
			Expect(err).NotTo(HaveOccurred())
			Expect(rpm.Get(ctx)).To(BeNumerically("~", 120.0, 1e-9))
		})

		It("applies configured parsers on write", func() {
			root, err := device.Build(pressDevices())
			Expect(err).NotTo(HaveOccurred())

			speed, err := root.Endpoint("press.spindle.speed")
			Expect(err).NotTo(HaveOccurred())

			Expect(speed.Set(ctx, 123.456)).To(Succeed())
			Expect(speed.Get(ctx)).To(Equal(100.0))

			Expect(speed.Set(ctx, 12.34)).To(Succeed())
			Expect(speed.Get(ctx)).To(Equal(12.3))
		})

		It("fails on unresolvable inputs", func() {
			devices := []config.DeviceConfig{{
				Name: "a",
				Endpoints: []config.EndpointConfig{
					{Name: "x", Type: config.EndpointMax, Inputs: []string{"a.y"}},
					{Name: "y", Type: config.EndpointMin, Inputs: []string{"a.x"}},
				},
			}}

			_, err := device.Build(devices)
			Expect(err).To(MatchError(device.ErrUnresolvedInput))
		})

		It("fails on inputs naming a device", func() {
			devices := []config.DeviceConfig{{
				Name: "a",
				Endpoints: []config.EndpointConfig{
					{Name: "x", Type: config.EndpointMean, Inputs: []string{"a.b"}},
				},
				Devices: []config.DeviceConfig{{Name: "b"}},
			}}

			_, err := device.Build(devices)
			Expect(err).To(MatchError(device.ErrNotEndpoint))
		})

		It("reports unknown types", func() {
			devices := []config.DeviceConfig{{
				Name:      "a",
				Transport: &config.TransportConfig{Type: "modbus"},
			}}

			_, err := device.Build(devices)
			Expect(err).To(MatchError(device.ErrUnknownType))
		})

		It("reports invalid points of the transport", func() {
			devices := []config.DeviceConfig{{
				Name:      "edge",
				Transport: &config.TransportConfig{Type: config.TransportHost},
				Endpoints: []config.EndpointConfig{
					{Name: "gpu", Type: config.EndpointPoint, Address: "gpu_percent"},
				},
			}}

			_, err := device.Build(devices)
			Expect(err).To(MatchError(ContainSubstring("gpu_percent")))
		})

		It("binds clock and io-link points to their transport groups", func() {
			devices := []config.DeviceConfig{
				{
					Name:      "time",
					Transport: &config.TransportConfig{Type: config.TransportClock},
					Endpoints: []config.EndpointConfig{
						{Name: "utc", Type: config.EndpointPoint, Address: "utc"},
						{Name: "unix", Type: config.EndpointPoint, Address: "unix"},
					},
				},
				{
					Name:      "sensors",
					Transport: &config.TransportConfig{Type: config.TransportIOLink, URL: "http://10.0.0.17/"},
					Endpoints: []config.EndpointConfig{
						{Name: "temperature", Type: config.EndpointPoint, Port: 1, Address: "iolinkdevice/pdin"},
					},
				},
			}

			root, err := device.Build(devices)
			Expect(err).NotTo(HaveOccurred())

			utc, err := root.Endpoint("time.utc")
			Expect(err).NotTo(HaveOccurred())
			unix, err := root.Endpoint("time.unix")
			Expect(err).NotTo(HaveOccurred())
			Expect(utc.GroupID()).To(BeIdenticalTo(unix.GroupID()))

			temperature, err := root.Endpoint("sensors.temperature")
			Expect(err).NotTo(HaveOccurred())
			Expect(temperature.Key()).To(Equal("sensors/iolinkmaster/port[1]/iolinkdevice/pdin"))
		})

		It("binds series of a prometheus target to one group", func() {
			devices := []config.DeviceConfig{{
				Name:      "node",
				Transport: &config.TransportConfig{Type: config.TransportPrometheus, URL: "http://10.0.0.21:9100/metrics", FastParse: true},
				Endpoints: []config.EndpointConfig{
					{Name: "cpu", Type: config.EndpointPoint, Address: "process_cpu_seconds_total"},
					{Name: "errors", Type: config.EndpointPoint, Address: `http_requests_total{code="500"}`},
				},
			}}

			root, err := device.Build(devices)
			Expect(err).NotTo(HaveOccurred())

			cpu, err := root.Endpoint("node.cpu")
			Expect(err).NotTo(HaveOccurred())
			errs, err := root.Endpoint("node.errors")
			Expect(err).NotTo(HaveOccurred())
			Expect(cpu.GroupID()).To(BeIdenticalTo(errs.GroupID()))
			Expect(errs.Key()).To(Equal(`node/http_requests_total{code="500"}`))
			Expect(cpu.Set(context.Background(), 1.0)).To(MatchError(endpoint.ErrReadOnly))
		})

		It("rejects series selectors without a metric name", func() {
			devices := []config.DeviceConfig{{
				Name:      "node",
				Transport: &config.TransportConfig{Type: config.TransportPrometheus, URL: "http://10.0.0.21:9100/metrics"},
				Endpoints: []config.EndpointConfig{
					{Name: "any", Type: config.EndpointPoint, Address: `{job="node"}`},
				},
			}}

			_, err := device.Build(devices)
			Expect(err).To(MatchError(prometheus.ErrInvalidSelector))
		})

		It("accepts custom factories", func() {
			registry := device.DefaultRegistry()
			registry.RegisterDerived("sum", func(key string, _ config.EndpointConfig, inputs []endpoint.Endpoint, _ ...endpoint.Option) (endpoint.Endpoint, error) {
				return endpoint.NewAlias(key, inputs, func(values []any) (any, error) {
					total := 0.0

					for _, v := range values {
						f, err := endpoint.ToFloat64(v)
						if err != nil {
							return nil, err
						}

						total += f
					}

					return total, nil
				}, nil), nil
			})

			devices := []config.DeviceConfig{{
				Name: "a",
				Endpoints: []config.EndpointConfig{
					{Name: "x", Type: config.EndpointValue, Initial: 1.5},
					{Name: "y", Type: config.EndpointValue, Initial: 2},
					{Name: "total", Type: "sum", Inputs: []string{"a.x", "a.y"}},
				},
			}}

			root, err := device.Build(devices, device.WithRegistry(registry))
			Expect(err).NotTo(HaveOccurred())

			total, err := root.Endpoint("a.total")
			Expect(err).NotTo(HaveOccurred())
			Expect(total.Get(ctx)).To(Equal(3.5))
		})
	})
})
