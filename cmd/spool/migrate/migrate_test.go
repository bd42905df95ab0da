package migratecmder

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMigrate(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Migrate Suite")
}

var _ = Describe("splitSegments", func() {
	It("splits on H2 headers", func() {
		segments := splitSegments("intro text\n## First\nbody one\n### Second\nbody two")
		Expect(segments).To(HaveLen(3))
		Expect(segments[0]).To(Equal("intro text"))
		Expect(segments[1]).To(Equal("First\nbody one"))
		Expect(segments[2]).To(Equal("Second\nbody two"))
	})

	It("splits on horizontal rules", func() {
		segments := splitSegments("part one\n--- \npart two")
		Expect(segments).To(HaveLen(2))
		Expect(segments[0]).To(Equal("part one"))
		Expect(segments[1]).To(Equal("part two"))
	})

	It("drops empty segments", func() {
		segments := splitSegments("one\n## \t\ntwo\n--- \n   \n## three")
		Expect(segments).To(Equal([]string{"one", "two", "## three"}))
	})

	It("keeps a file with no delimiters as one segment", func() {
		segments := splitSegments("just a flat note\nwith two lines")
		Expect(segments).To(HaveLen(1))
	})

	It("returns nothing for blank content", func() {
		Expect(splitSegments("  \n\t\n")).To(BeEmpty())
	})
})
