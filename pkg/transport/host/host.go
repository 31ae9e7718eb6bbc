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

// Package host serves metrics of the machine running the engine as read-only endpoints.
// Within one batch every metric family (cpu, memory, load, uptime) is sampled once.
package host

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
)

// Metric names a value served by a Host.
type Metric string

const (
	CPUPercent        Metric = "cpu_percent"
	CPUCount          Metric = "cpu_count"
	MemoryTotal       Metric = "memory_total"
	MemoryAvailable   Metric = "memory_available"
	MemoryUsedPercent Metric = "memory_used_percent"
	Load1             Metric = "load1"
	Load5             Metric = "load5"
	Load15            Metric = "load15"
	Uptime            Metric = "uptime"
)

type family int

const (
	familyCPU family = iota
	familyMemory
	familyLoad
	familyUptime
)

var families = map[Metric]family{
	CPUPercent:        familyCPU,
	CPUCount:          familyCPU,
	MemoryTotal:       familyMemory,
	MemoryAvailable:   familyMemory,
	MemoryUsedPercent: familyMemory,
	Load1:             familyLoad,
	Load5:             familyLoad,
	Load15:            familyLoad,
	Uptime:            familyUptime,
}

// reading holds one sampling of the metric families requested in a batch.
type reading struct {
	Memory    *mem.VirtualMemoryStat
	Load      *load.AvgStat
	CPU       []float64
	CPUCount  int
	UptimeSec uint64
}

// Sampler reads metric families of a machine.
type Sampler interface {
	CPU(ctx context.Context) ([]float64, int, error)
	Memory(ctx context.Context) (*mem.VirtualMemoryStat, error)
	Load(ctx context.Context) (*load.AvgStat, error)
	Uptime(ctx context.Context) (uint64, error)
}

type psutilSampler struct{}

func (psutilSampler) CPU(ctx context.Context) ([]float64, int, error) {
	percent, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, 0, err
	}

	count, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, 0, err
	}

	return percent, count, nil
}

func (psutilSampler) Memory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	return mem.VirtualMemoryWithContext(ctx)
}

func (psutilSampler) Load(ctx context.Context) (*load.AvgStat, error) {
	return load.AvgWithContext(ctx)
}

func (psutilSampler) Uptime(ctx context.Context) (uint64, error) {
	return host.UptimeWithContext(ctx)
}

// Host is the transport group of the local machine's metrics.
type Host struct {
	sampler Sampler
	name    string
}

// Option configures a Host.
type Option func(*Host)

// WithSampler replaces the gopsutil based sampler.
func WithSampler(s Sampler) Option {
	return func(h *Host) {
		h.sampler = s
	}
}

func New(name string, opts ...Option) *Host {
	h := &Host{name: name, sampler: psutilSampler{}}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *Host) String() string {
	return "host:" + h.name
}

// Endpoint returns an endpoint serving metric.
func (h *Host) Endpoint(metric Metric, opts ...endpoint.Option) (*Endpoint, error) {
	if _, ok := families[metric]; !ok {
		return nil, fmt.Errorf("unknown host metric %q", metric)
	}

	return &Endpoint{Base: endpoint.NewBase(h.name+"."+string(metric), opts...), host: h, metric: metric}, nil
}

// Endpoint is a read-only metric of a Host.
type Endpoint struct {
	host   *Host
	metric Metric
	endpoint.Base
}

func (e *Endpoint) GroupID() endpoint.GroupID {
	return e.host
}

func (e *Endpoint) Metric() Metric {
	return e.metric
}

func (e *Endpoint) Get(ctx context.Context) (any, error) {
	values := endpoint.Values{}

	c := e.ReadCollector()
	c.Add(e)

	if err := c.Execute(ctx, values); err != nil {
		return nil, err
	}

	return values[e], nil
}

func (e *Endpoint) Set(_ context.Context, _ any) error {
	return fmt.Errorf("%w: %s", endpoint.ErrReadOnly, e.Key())
}

func (e *Endpoint) ReadCollector() endpoint.ReadCollector {
	return &readCollector{host: e.host}
}

func (e *Endpoint) WriteCollector() endpoint.WriteCollector {
	return endpoint.NewSequentialWriteCollector()
}

type readCollector struct {
	host      *Host
	endpoints []*Endpoint
}

func (c *readCollector) Add(ep endpoint.Endpoint) {
	e, ok := ep.(*Endpoint)
	if !ok || e.host != c.host {
		panic(fmt.Sprintf("host %s cannot read endpoint %s", c.host.name, ep.Key()))
	}

	c.endpoints = append(c.endpoints, e)
}

func (c *readCollector) Execute(ctx context.Context, values endpoint.Values) error {
	needed := make(map[family]bool, len(c.endpoints))
	for _, e := range c.endpoints {
		needed[families[e.metric]] = true
	}

	s, err := c.sample(ctx, needed)
	if err != nil {
		return err
	}

	for _, e := range c.endpoints {
		values[e] = s.value(e.metric)
	}

	return nil
}

func (c *readCollector) sample(ctx context.Context, needed map[family]bool) (reading, error) {
	var (
		s   reading
		err error
	)

	if needed[familyCPU] {
		if s.CPU, s.CPUCount, err = c.host.sampler.CPU(ctx); err != nil {
			return s, fmt.Errorf("failed to sample cpu: %w", err)
		}
	}

	if needed[familyMemory] {
		if s.Memory, err = c.host.sampler.Memory(ctx); err != nil {
			return s, fmt.Errorf("failed to sample memory: %w", err)
		}
	}

	if needed[familyLoad] {
		if s.Load, err = c.host.sampler.Load(ctx); err != nil {
			return s, fmt.Errorf("failed to sample load: %w", err)
		}
	}

	if needed[familyUptime] {
		if s.UptimeSec, err = c.host.sampler.Uptime(ctx); err != nil {
			return s, fmt.Errorf("failed to sample uptime: %w", err)
		}
	}

	return s, nil
}

func (s reading) value(m Metric) any {
	switch m {
	case CPUPercent:
		if len(s.CPU) == 0 {
			return 0.0
		}

		return s.CPU[0]
	case CPUCount:
		return s.CPUCount
	case MemoryTotal:
		return s.Memory.Total
	case MemoryAvailable:
		return s.Memory.Available
	case MemoryUsedPercent:
		return s.Memory.UsedPercent
	case Load1:
		return s.Load.Load1
	case Load5:
		return s.Load.Load5
	case Load15:
		return s.Load.Load15
	case Uptime:
		return time.Duration(s.UptimeSec) * time.Second
	default:
		return nil
	}
}
