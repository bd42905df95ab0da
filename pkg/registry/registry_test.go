package registry_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/registry"
)

func TestRegistry(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Registry Suite")
}

var _ = Describe("Registry", func() {
	var (
		reg  *registry.Registry
		path string
	)

	BeforeEach(func() {
		dir, err := os.MkdirTemp("", "spool-registry-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(dir) })

		path = filepath.Join(dir, registry.FileName)
		reg = registry.NewRegistry(path)
	})

	Describe("Resolve", func() {
		It("should mint an ID with the expected shape", func() {
			id, err := reg.Resolve("/some/project")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(MatchRegexp(`^auto_\d{8}_\d{6}_[0-9a-f]{8}$`))
		})

		It("should be idempotent for the same project", func() {
			first, err := reg.Resolve("/some/project")
			Expect(err).NotTo(HaveOccurred())

			second, err := reg.Resolve("/some/project")
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
		})

		It("should give distinct projects distinct IDs", func() {
			a, err := reg.Resolve("/project/a")
			Expect(err).NotTo(HaveOccurred())

			b, err := reg.Resolve("/project/b")
			Expect(err).NotTo(HaveOccurred())
			Expect(b).NotTo(Equal(a))
		})

		It("should survive reopening the registry file", func() {
			first, err := reg.Resolve("/some/project")
			Expect(err).NotTo(HaveOccurred())

			reopened := registry.NewRegistry(path)
			second, err := reopened.Resolve("/some/project")
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
		})
	})

	Describe("Reset", func() {
		It("should always assign a fresh ID", func() {
			first, err := reg.Resolve("/some/project")
			Expect(err).NotTo(HaveOccurred())

			fresh, err := reg.Reset("/some/project")
			Expect(err).NotTo(HaveOccurred())
			Expect(fresh).NotTo(Equal(first))

			resolved, err := reg.Resolve("/some/project")
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved).To(Equal(fresh))
		})

		It("should work for a project never resolved", func() {
			id, err := reg.Reset("/brand/new")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeEmpty())
		})
	})

	Describe("Entries", func() {
		It("should expose the full mapping", func() {
			_, err := reg.Resolve("/project/a")
			Expect(err).NotTo(HaveOccurred())
			_, err = reg.Resolve("/project/b")
			Expect(err).NotTo(HaveOccurred())

			entries, err := reg.Entries()
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))
		})
	})
})
