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

package starvationchecker

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/sentry"
)

var _ = Describe("StarvationChecker", func() {
	var checker *StarvationChecker

	BeforeEach(func() {
		sentry.EnableTestMode()
		checker = newStarvationChecker("test-loop", 100*time.Millisecond, 20*time.Millisecond)
	})

	AfterEach(func() {
		checker.Stop()
		sentry.DisableTestMode()
	})

	It("detects starvation when no cycle completes", func() {
		Eventually(checker.StarvedChecks, time.Second, 10*time.Millisecond).Should(BeNumerically(">", 0))
		Expect(time.Since(checker.GetLastCycleTime())).To(BeNumerically(">=", 100*time.Millisecond))
	})

	It("stays quiet while cycles keep completing", func() {
		for range 10 {
			checker.UpdateLastCycleTime()
			time.Sleep(20 * time.Millisecond)
		}

		Expect(checker.StarvedChecks()).To(Equal(0))
		Expect(time.Since(checker.GetLastCycleTime())).To(BeNumerically("<", 50*time.Millisecond))
	})

	It("moves the last cycle time forward", func() {
		initial := checker.GetLastCycleTime()
		time.Sleep(10 * time.Millisecond)
		checker.UpdateLastCycleTime()
		Expect(checker.GetLastCycleTime()).To(BeTemporally(">", initial))
	})

	It("stops the background checker", func() {
		checker.Stop()
		count := checker.StarvedChecks()
		time.Sleep(200 * time.Millisecond)
		Expect(checker.StarvedChecks()).To(Equal(count))
		checker.Stop()
	})
})
