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

package monitor_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/endpoint"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/monitor"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/standarderrors"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/subscription"
	"github.com/united-manufacturing-hub/acquisition-core/pkg/transport/memory"
)

type journal struct {
	lines []string
	mu    sync.Mutex
}

func (j *journal) add(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.lines = append(j.lines, fmt.Sprintf(format, args...))
}

func (j *journal) Lines() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	return append([]string(nil), j.lines...)
}

type reading struct {
	Value float64
}

// printer logs every update and ends itself after limit updates.
type printer struct {
	monitor.Base[*journal, *reading]
	limit   int
	updates int
}

func (p *printer) Setup(j *journal, _ *reading, source any) error {
	j.add("setup %s", source.(endpoint.Endpoint).Key())

	return nil
}

func (p *printer) Start(j *journal, _ *reading) error {
	p.updates = 0
	j.add("start")

	return nil
}

func (p *printer) Update(j *journal, data *reading, err error) error {
	if p.limit > 0 && p.updates >= p.limit {
		return monitor.ErrEndMonitor
	}

	p.updates++

	if err != nil {
		j.add("failed: %v", err)

		return nil
	}

	j.add("value %v", data.Value)

	return nil
}

func (p *printer) Stop(j *journal) error {
	j.add("stop")

	return nil
}

var _ = Describe("Monitor", func() {
	var (
		ctx   context.Context
		store *memory.Store
		temp  *memory.Endpoint
		log   *journal
		data  *reading
		nop   monitor.Option
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = memory.NewStore("oven", map[string]any{"temp": 180.0})
		temp = store.Endpoint("temp")
		log = &journal{}
		data = &reading{}
		nop = monitor.WithLogger(zap.NewNop().Sugar())
	})

	newLinker := func(limit int) *monitor.Linker[*journal, *reading] {
		l, err := monitor.NewLinker[*journal, *reading](&printer{limit: limit}, log, temp, data, nop, monitor.WithName("oven"))
		Expect(err).NotTo(HaveOccurred())

		return l
	}

	It("ends at the first update by default", func() {
		var base monitor.Base[*journal, *reading]
		Expect(base.Update(log, data, nil)).To(MatchError(monitor.ErrEndMonitor))
	})

	Describe("Linker", func() {
		It("sets up the monitor with its source", func() {
			newLinker(0)
			Expect(log.Lines()).To(Equal([]string{"setup oven.temp"}))
		})

		It("enforces the lifecycle", func() {
			l := newLinker(0)
			Expect(l.State()).To(Equal(monitor.StateIdle))
			Expect(l.Pause()).NotTo(Succeed())

			Expect(l.Start()).To(Succeed())
			Expect(l.Start()).NotTo(Succeed())
			Expect(l.Pause()).To(Succeed())
			Expect(l.State()).To(Equal(monitor.StatePaused))
			Expect(l.Update(nil)).To(Succeed())
			Expect(l.Resume()).To(Succeed())

			Expect(l.Stop()).To(Succeed())
			Expect(l.Stop()).To(Succeed())
			Expect(l.State()).To(Equal(monitor.StateStopped))
			Expect(log.Lines()).To(Equal([]string{"setup oven.temp", "start", "stop"}))
		})
	})

	Describe("Connection", func() {
		var (
			root *subscription.Downloader
			conn *monitor.Connection[*journal, *reading]
		)

		BeforeEach(func() {
			root = subscription.NewDownloader(subscription.WithLogger(zap.NewNop().Sugar()))
		})

		connect := func(limit int) {
			conn = monitor.NewConnection(newLinker(limit))
			Expect(conn.Connect(root)).To(Succeed())
		}

		It("must be connected before starting", func() {
			Expect(monitor.NewConnection(newLinker(0)).Start()).To(MatchError(monitor.ErrNotConnected))
		})

		It("updates the monitor after every download", func() {
			connect(0)
			Expect(root.Endpoints()).To(BeEmpty())
			Expect(conn.Start()).To(Succeed())
			Expect(root.Endpoints()).To(ConsistOf(endpoint.Endpoint(temp)))

			Expect(root.Download(ctx)).To(Succeed())
			store.Put("temp", 185.0)
			Expect(root.Download(ctx)).To(Succeed())
			Expect(data.Value).To(Equal(185.0))

			Expect(conn.Stop()).To(Succeed())
			Expect(root.Endpoints()).To(BeEmpty())
			Expect(log.Lines()).To(Equal([]string{"setup oven.temp", "start", "value 180", "value 185", "stop"}))
		})

		It("passes transfer failures to the monitor", func() {
			connect(0)
			Expect(conn.Start()).To(Succeed())

			store.FailReads(errors.New("door open"))
			Expect(root.Download(ctx)).To(Succeed())
			Expect(log.Lines()).To(ContainElement(ContainSubstring("failed:")))
		})

		It("detaches and stops when the monitor ends itself", func() {
			connect(1)
			Expect(conn.Start()).To(Succeed())

			Expect(root.Download(ctx)).To(Succeed())
			Expect(root.Download(ctx)).To(Succeed())
			Expect(conn.IsAttached()).To(BeFalse())
			Expect(root.Endpoints()).To(BeEmpty())

			Expect(root.Download(ctx)).To(Succeed())
			Expect(log.Lines()).To(Equal([]string{"setup oven.temp", "start", "value 180", "stop"}))
		})

		It("skips downloads while paused", func() {
			connect(0)
			Expect(conn.Start()).To(Succeed())
			Expect(conn.Pause()).To(Succeed())
			Expect(root.Endpoints()).To(BeEmpty())

			Expect(root.Download(ctx)).To(Succeed())
			Expect(conn.Resume()).To(Succeed())
			Expect(root.Download(ctx)).To(Succeed())
			Expect(log.Lines()).To(Equal([]string{"setup oven.temp", "start", "value 180"}))
		})

		It("attaches below connections too", func() {
			child, err := root.NewConnection()
			Expect(err).NotTo(HaveOccurred())

			conn = monitor.NewConnection(newLinker(0))
			Expect(conn.Connect(child)).To(Succeed())
			Expect(conn.Start()).To(Succeed())

			Expect(root.Download(ctx)).To(Succeed())
			Expect(data.Value).To(Equal(180.0))

			Expect(child.Disconnect()).To(Succeed())
			Expect(conn.IsAttached()).To(BeFalse())
		})
	})

	Describe("Poller", func() {
		It("downloads and updates on demand", func() {
			p, err := monitor.NewPoller(newLinker(0), true)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Start()).To(Succeed())

			Expect(p.Download(ctx)).To(Succeed())
			Expect(data.Value).To(Equal(180.0))

			store.FailReads(errors.New("door open"))
			Expect(p.Download(ctx)).To(Succeed())
			Expect(p.Stop()).To(Succeed())
			Expect(log.Lines()).To(HaveLen(5))
		})

		It("returns failures it does not catch", func() {
			p, err := monitor.NewPoller(newLinker(0), false)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Start()).To(Succeed())

			errDoor := errors.New("door open")
			store.FailReads(errDoor)
			Expect(p.Download(ctx)).To(MatchError(errDoor))
		})

		It("stops a monitor that ends itself", func() {
			l := newLinker(1)
			p, err := monitor.NewPoller(l, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Start()).To(Succeed())

			Expect(p.Download(ctx)).To(Succeed())
			Expect(p.Download(ctx)).To(MatchError(monitor.ErrEndMonitor))
			Expect(l.State()).To(Equal(monitor.StateStopped))
		})
	})

	Describe("Runner", func() {
		It("stops after the iteration limit", func() {
			l := newLinker(0)
			r, err := monitor.NewRunner(l, time.Millisecond, monitor.WithMaxIterations(3), monitor.WithDownload())
			Expect(err).NotTo(HaveOccurred())

			Expect(r.Start(ctx)).To(Succeed())
			Expect(log.Lines()).To(Equal([]string{
				"setup oven.temp", "start", "value 180", "value 180", "value 180", "stop",
			}))
			Expect(l.State()).To(Equal(monitor.StateStopped))
		})

		It("stops when the monitor ends itself", func() {
			r, err := monitor.NewRunner(newLinker(2), time.Millisecond)
			Expect(err).NotTo(HaveOccurred())

			Expect(r.Start(ctx)).To(Succeed())
			Expect(log.Lines()).To(HaveLen(5))
			Expect(r.IsRunning()).To(BeFalse())
		})

		It("is controlled from other goroutines", func() {
			l := newLinker(0)
			r, err := monitor.NewRunner(l, time.Millisecond)
			Expect(err).NotTo(HaveOccurred())

			done := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				done <- r.Start(ctx)
			}()

			Eventually(r.IsRunning).Should(BeTrue())
			Expect(r.Start(ctx)).To(MatchError(standarderrors.ErrAlreadyRunning))

			r.Pause()
			Eventually(l.State).Should(Equal(monitor.StatePaused))
			paused := len(log.Lines())
			Consistently(func() int { return len(log.Lines()) }, 20*time.Millisecond).Should(Equal(paused))

			r.Resume()
			Eventually(func() int { return len(log.Lines()) }).Should(BeNumerically(">", paused))

			r.Stop()
			Eventually(done).Should(Receive(BeNil()))
			Expect(l.State()).To(Equal(monitor.StateStopped))
		})

		It("does not start after an early stop", func() {
			l := newLinker(0)
			r, err := monitor.NewRunner(l, time.Millisecond, monitor.WithMaxIterations(1), monitor.WithDownload())
			Expect(err).NotTo(HaveOccurred())

			r.Stop()
			Expect(r.Start(ctx)).To(Succeed())
			Expect(log.Lines()).To(Equal([]string{"setup oven.temp"}))
			Expect(l.State()).To(Equal(monitor.StateIdle))
			Expect(r.IsRunning()).To(BeFalse())

			Expect(r.Start(ctx)).To(Succeed())
			Expect(log.Lines()).To(Equal([]string{"setup oven.temp", "start", "value 180", "stop"}))
		})
	})
})
