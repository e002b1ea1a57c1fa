// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package logtally

import (
	"context"
	"os"
	"time"

	"github.com/siemens/logtally/engine/moby"
	"github.com/siemens/logtally/internal/test"
	"github.com/siemens/logtally/store"
	"github.com/thediveo/morbyd"
	"github.com/thediveo/morbyd/run"
	"github.com/thediveo/morbyd/session"
	"github.com/thediveo/morbyd/timestamper"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/siemens/logtally/matcher"
	. "github.com/thediveo/fdooze"
	. "github.com/thediveo/success"
)

// testWorkloadName specifies the name of a Docker container test workload
// that continuously logs requests.
const testWorkloadName = "logtally-test-workload"

var _ = Describe("counting requests of Docker containers", Serial, Ordered, func() {

	BeforeEach(func() {
		if _, err := os.Stat(moby.DefaultSocket); err != nil {
			Skip("needs a Docker engine at " + moby.DefaultSocket)
		}
	})

	BeforeEach(test.LogToGinkgo)

	BeforeEach(func() {
		goodfds := Filedescriptors()
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithTimeout(goroutinesUnwindTimeout).WithPolling(goroutinesUnwindPolling).
				ShouldNot(HaveLeaked(goodgos))
			Expect(Filedescriptors()).NotTo(HaveLeakedFds(goodfds))
		})
	})

	It("counts the requests logged by a container", NodeTimeout(60*time.Second), func(ctx context.Context) {
		By("creating a new Docker session for testing")
		sess := Successful(morbyd.NewSession(ctx,
			session.WithAutoCleaning("test.logtally=logtally")))
		DeferCleanup(func(ctx context.Context) {
			By("auto-cleaning the session")
			sess.Close(ctx)
		})

		By("creating a container logging requests")
		_ = Successful(sess.Run(ctx, "busybox",
			run.WithName(testWorkloadName),
			run.WithAutoRemove(),
			run.WithCommand("/bin/sh", "-c",
				`while true; do echo "42=200 https://example.com/index.html"; echo "43=503 http://example.org/"; sleep 0.2; done`),
			run.WithCombinedOutput(timestamper.New(GinkgoWriter))))

		By("watching the container's logs")
		eng := Successful(moby.New(""))
		defer eng.Close()
		s := store.New()
		r := New(eng, s, []string{"busybox"},
			WithPollInterval(500*time.Millisecond),
			WithBackoff(200*time.Millisecond))
		rctx, cancel := context.WithCancel(ctx)
		done := make(chan error)
		go func() { done <- r.Run(rctx) }()
		defer func() {
			cancel()
			Eventually(done).Within(5 * time.Second).Should(Receive(BeNil()))
		}()

		Eventually(r.Watched).Within(10 * time.Second).ProbeEvery(250 * time.Millisecond).
			Should(ContainElement(HaveField("Name", testWorkloadName)))
		Eventually(s.Snapshot).Within(10 * time.Second).ProbeEvery(250 * time.Millisecond).
			Should(ContainElements(
				HaveSample("example.com", 200, BeNumerically(">=", 1)),
				HaveSample("example.org", 503, BeNumerically(">=", 1))))
	})

})
