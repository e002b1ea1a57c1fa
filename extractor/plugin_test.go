// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package extractor

import (
	"bytes"

	"github.com/thediveo/go-plugger/v3"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type echoExtractor struct{}

func (e *echoExtractor) Extract(line []byte) ([]byte, []byte, bool) {
	status, domain, ok := bytes.Cut(line, []byte(" "))
	return status, domain, ok
}

var _ = Describe("extractor plugins", func() {

	BeforeEach(func() {
		g := plugger.Group[Extractor]()
		backup := g.Backup()
		DeferCleanup(func() {
			g.Restore(backup)
		})
		g.Clear()
	})

	It("looks up plugins by name", func() {
		Expect(Named("echo")).To(BeNil())
		Expect(Names()).To(BeEmpty())
		plugger.Group[Extractor]().Register(&echoExtractor{}, plugger.WithPlugin("echo"))
		Expect(Names()).To(ConsistOf("echo"))
		x := Named("echo")
		Expect(x).NotTo(BeNil())
		status, domain, ok := x.Extract([]byte("200 example.com"))
		Expect(ok).To(BeTrue())
		Expect(string(status)).To(Equal("200"))
		Expect(string(domain)).To(Equal("example.com"))
	})

})
