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

package env_test

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/acquisition-core/pkg/env"
)

var _ = Describe("Environment", func() {
	const key = "ACQ_ENV_TEST_VALUE"

	AfterEach(func() {
		Expect(os.Unsetenv(key)).To(Succeed())
	})

	It("falls back to the default when unset or blank", func() {
		Expect(env.GetAsInt(key, false, 4)).To(Equal(4))

		Expect(os.Setenv(key, "  ")).To(Succeed())
		Expect(env.GetAsString(key, false, "x")).To(Equal("x"))
	})

	It("fails for unset required variables", func() {
		_, err := env.GetAsString(key, true, "")
		Expect(err).To(MatchError(ContainSubstring(key)))
	})

	It("returns set strings without surrounding blanks", func() {
		Expect(os.Setenv(key, " /etc/acquisition/config.yaml ")).To(Succeed())
		Expect(env.GetAsString(key, true, "")).To(Equal("/etc/acquisition/config.yaml"))
	})

	It("parses typed values", func() {
		Expect(os.Setenv(key, "12")).To(Succeed())
		Expect(env.GetAsInt(key, false, 0)).To(Equal(12))

		Expect(os.Setenv(key, "On")).To(Succeed())
		Expect(env.GetAsBool(key, false, false)).To(BeTrue())

		Expect(os.Setenv(key, "250ms")).To(Succeed())
		Expect(env.GetAsDuration(key, false, time.Second)).To(Equal(250 * time.Millisecond))
	})

	It("rejects malformed values instead of using the default", func() {
		Expect(os.Setenv(key, "fast")).To(Succeed())

		_, err := env.GetAsDuration(key, false, time.Second)
		Expect(err).To(HaveOccurred())

		_, err = env.GetAsInt(key, false, 1)
		Expect(err).To(HaveOccurred())

		_, err = env.GetAsBool(key, false, true)
		Expect(err).To(HaveOccurred())
	})
})
