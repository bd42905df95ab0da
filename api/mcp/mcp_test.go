package mcp_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/api/mcp"
	"github.com/papercomputeco/spool/pkg/engine"
	"github.com/papercomputeco/spool/pkg/episodic"
	"github.com/papercomputeco/spool/pkg/graph"
	testutils "github.com/papercomputeco/spool/pkg/utils/test"
)

func TestMCP(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "MCP Suite")
}

var _ = Describe("MCP Server", func() {
	var (
		server *mcp.Server
		eng    *engine.Engine
	)

	BeforeEach(func() {
		store, err := episodic.NewStore(":memory:")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { store.Close() })

		graphs, err := graph.NewStore(store.DB())
		Expect(err).NotTo(HaveOccurred())

		eng, err = engine.NewEngine(engine.Options{
			Logger:   zap.NewNop(),
			Episodic: store,
			Vectors:  testutils.NewMockVectorDriver(),
			Graph:    graphs,
			Embedder: testutils.NewMockEmbedder(),
		})
		Expect(err).NotTo(HaveOccurred())

		server, err = mcp.NewServer(mcp.Config{
			Engine:      eng,
			ProjectPath: "/test/project",
			Logger:      zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when the engine is nil", func() {
			_, err := mcp.NewServer(mcp.Config{
				Logger: zap.NewNop(),
			})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("engine is required"))
		})

		It("returns an error when the logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{
				Engine: eng,
			})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger is required"))
		})

		It("creates a server with valid config", func() {
			Expect(server).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			handler := server.Handler()
			Expect(handler).NotTo(BeNil())
		})

		It("creates an empty server in noop mode", func() {
			noop, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(noop).NotTo(BeNil())
		})
	})
})
