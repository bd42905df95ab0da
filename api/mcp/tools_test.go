package mcp

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/engine"
	"github.com/papercomputeco/spool/pkg/episodic"
	"github.com/papercomputeco/spool/pkg/graph"
	"github.com/papercomputeco/spool/pkg/registry"
	"github.com/papercomputeco/spool/pkg/snapshot"
	testutils "github.com/papercomputeco/spool/pkg/utils/test"
	"github.com/papercomputeco/spool/pkg/vector"
)

var _ = Describe("Tool handlers", func() {
	var (
		ctx      context.Context
		server   *Server
		store    *episodic.Store
		graphs   *graph.Store
		vectors  *testutils.MockVectorDriver
		embedder *testutils.MockEmbedder
	)

	BeforeEach(func() {
		ctx = context.Background()

		dir, err := os.MkdirTemp("", "spool-mcp-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(dir) })

		store, err = episodic.NewStore(":memory:")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { store.Close() })

		graphs, err = graph.NewStore(store.DB())
		Expect(err).NotTo(HaveOccurred())

		vectors = testutils.NewMockVectorDriver()
		embedder = testutils.NewMockEmbedder()

		reg := registry.NewRegistry(filepath.Join(dir, registry.FileName))
		snaps, err := snapshot.NewManager(snapshot.Config{
			Dir:         dir,
			AuthorName:  "Spool Agent",
			AuthorEmail: "agent@spool.local",
		}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		eng, err := engine.NewEngine(engine.Options{
			Logger:    zap.NewNop(),
			Episodic:  store,
			Vectors:   vectors,
			Graph:     graphs,
			Embedder:  embedder,
			Registry:  reg,
			Snapshots: snaps,
		})
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{
			Engine:      eng,
			ProjectPath: "/test/project",
			Logger:      zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("ingest_interaction", func() {
		It("records a scored interaction", func() {
			result, output, err := server.handleIngest(ctx, nil, IngestInput{
				ConversationID: "conv-1",
				Role:           "user",
				Content:        "hello",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.SurpriseScore).To(Equal(1.0))
			Expect(output.ConversationID).To(Equal("conv-1"))
		})

		It("rejects empty content", func() {
			result, _, err := server.handleIngest(ctx, nil, IngestInput{
				ConversationID: "conv-1",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})

		It("returns an IsError result when embedding fails", func() {
			embedder.FailOn = "poison"
			result, _, err := server.handleIngest(ctx, nil, IngestInput{
				ConversationID: "conv-1",
				Role:           "user",
				Content:        "poison",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})

	Describe("log_interaction", func() {
		It("records under the project's active conversation", func() {
			_, output, err := server.handleLog(ctx, nil, LogInput{
				Role:    "user",
				Content: "logged",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(output.ConversationID).To(MatchRegexp(`^auto_`))

			_, second, err := server.handleLog(ctx, nil, LogInput{
				Role:    "assistant",
				Content: "also logged",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.ConversationID).To(Equal(output.ConversationID))
		})
	})

	Describe("retrieve_memory", func() {
		It("returns index results with previews", func() {
			vectors.Results = []vector.QueryResult{
				{Record: vector.Record{ID: "1", Content: "found it", Role: "user", ConversationID: "conv-1"}, Score: 0.9},
			}

			result, output, err := server.handleRetrieve(ctx, nil, RetrieveInput{Query: "find"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Count).To(Equal(1))
			Expect(output.Results[0].Preview).To(Equal("found it"))
		})

		It("marks results from the current conversation as recent", func() {
			vectors.Results = []vector.QueryResult{
				{Record: vector.Record{ID: "1", Content: "this session", ConversationID: "conv-1"}, Score: 0.9},
				{Record: vector.Record{ID: "2", Content: "old session", ConversationID: "conv-0"}, Score: 0.8},
			}

			_, output, err := server.handleRetrieve(ctx, nil, RetrieveInput{
				ConversationID: "conv-1",
				Query:          "find",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(output.Results[0].Recent).To(BeTrue())
			Expect(output.Results[1].Recent).To(BeFalse())
		})

		It("auto-logs the query and a response summary", func() {
			vectors.Results = []vector.QueryResult{
				{Record: vector.Record{ID: "1", Content: "found it", ConversationID: "conv-1"}, Score: 0.9},
			}

			_, _, err := server.handleRetrieve(ctx, nil, RetrieveInput{
				ConversationID: "conv-1",
				Query:          "what happened",
			})
			Expect(err).NotTo(HaveOccurred())

			logged, err := store.Recent(ctx, "conv-1", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(logged).To(HaveLen(2))
			Expect(logged[1].Role).To(Equal("user"))
			Expect(logged[1].Content).To(Equal("what happened"))
			Expect(logged[0].Role).To(Equal("assistant"))
			Expect(logged[0].Content).To(HavePrefix("Memory retrieval: "))
		})

		It("logs nothing when auto-ingest is disabled", func() {
			enabled := false
			_, _, err := server.handleConfigureAutoIngest(ctx, nil, ConfigureAutoIngestInput{Enabled: &enabled})
			Expect(err).NotTo(HaveOccurred())

			_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{
				ConversationID: "conv-1",
				Query:          "what happened",
			})
			Expect(err).NotTo(HaveOccurred())

			count, err := store.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeEquivalentTo(0))
		})
	})

	Describe("knowledge graph tools", func() {
		It("upserts nodes and connects them", func() {
			_, _, err := server.handleAddNode(ctx, nil, AddNodeInput{Name: "a", Description: "node a"})
			Expect(err).NotTo(HaveOccurred())
			_, _, err = server.handleAddNode(ctx, nil, AddNodeInput{Name: "b", Description: "node b"})
			Expect(err).NotTo(HaveOccurred())

			result, edge, err := server.handleAddEdge(ctx, nil, AddEdgeInput{
				Source:   "a",
				Target:   "b",
				Relation: "knows",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(edge.Weight).To(Equal(1.0))

			_, traversal, err := server.handleTraverse(ctx, nil, TraverseInput{Start: "a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(traversal.Steps).To(HaveLen(1))
			Expect(traversal.Steps[0].Source).To(Equal("a"))
			Expect(traversal.Steps[0].Target).To(Equal("b"))
			Expect(traversal.Steps[0].Relation).To(Equal("knows"))
			Expect(traversal.Steps[0].Description).To(Equal("node b"))
		})

		It("returns an IsError result for an edge to a missing node", func() {
			_, _, err := server.handleAddNode(ctx, nil, AddNodeInput{Name: "a"})
			Expect(err).NotTo(HaveOccurred())

			result, _, err := server.handleAddEdge(ctx, nil, AddEdgeInput{
				Source:   "a",
				Target:   "missing",
				Relation: "knows",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})

	Describe("consolidate_memory", func() {
		It("lists candidates and prunes per the configured thresholds", func() {
			_, err := store.Append(ctx, "conv-1", "user", "surprising", 0.9)
			Expect(err).NotTo(HaveOccurred())
			_, err = store.Append(ctx, "conv-1", "user", "noise", 0.05)
			Expect(err).NotTo(HaveOccurred())

			result, output, err := server.handleConsolidate(ctx, nil, ConsolidateInput{ConversationID: "conv-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Promoted).To(HaveLen(1))
			Expect(output.Promoted[0].Content).To(Equal("surprising"))
			Expect(output.Promoted[0].SurpriseScore).To(Equal(0.9))
			Expect(output.PrunedCount).To(Equal(1))
		})

		It("creates no knowledge nodes for the candidates", func() {
			_, err := store.Append(ctx, "conv-1", "user", "surprising", 0.9)
			Expect(err).NotTo(HaveOccurred())

			_, output, err := server.handleConsolidate(ctx, nil, ConsolidateInput{ConversationID: "conv-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(output.Promoted).To(HaveLen(1))

			nodes, err := graphs.Nodes(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(BeEmpty())
		})
	})

	Describe("reconcile_index", func() {
		It("repairs the index against the log", func() {
			_, err := store.Append(ctx, "conv-1", "user", "unindexed", 0.5)
			Expect(err).NotTo(HaveOccurred())

			_, output, err := server.handleReconcile(ctx, nil, ReconcileInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(output.Reindexed).To(Equal(1))
		})
	})

	Describe("snapshot_memory", func() {
		It("records a checkpoint", func() {
			result, output, err := server.handleSnapshot(ctx, nil, SnapshotInput{Message: "test checkpoint"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Hash).NotTo(BeEmpty())
			Expect(output.Message).To(Equal("test checkpoint"))
		})
	})

	Describe("resolve_conversation", func() {
		It("reports a stable conversation id without recording anything", func() {
			_, first, err := server.handleResolveConversation(ctx, nil, ResolveConversationInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(first.ConversationID).To(MatchRegexp(`^auto_`))

			_, second, err := server.handleResolveConversation(ctx, nil, ResolveConversationInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.ConversationID).To(Equal(first.ConversationID))

			count, err := store.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeEquivalentTo(0))
		})

		It("matches the conversation used by log_interaction", func() {
			_, resolved, err := server.handleResolveConversation(ctx, nil, ResolveConversationInput{})
			Expect(err).NotTo(HaveOccurred())

			_, logged, err := server.handleLog(ctx, nil, LogInput{Role: "user", Content: "hello"})
			Expect(err).NotTo(HaveOccurred())
			Expect(logged.ConversationID).To(Equal(resolved.ConversationID))
		})
	})

	Describe("auto-ingest configuration", func() {
		It("defaults every switch to on", func() {
			_, status, err := server.handleAutoIngestStatus(ctx, nil, AutoIngestStatusInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(status.Enabled).To(BeTrue())
			Expect(status.LogQueries).To(BeTrue())
			Expect(status.LogResponses).To(BeTrue())
			Expect(status.ConversationID).To(MatchRegexp(`^auto_`))
		})

		It("round-trips configured switches through the status tool", func() {
			logResponses := false
			_, _, err := server.handleConfigureAutoIngest(ctx, nil, ConfigureAutoIngestInput{LogResponses: &logResponses})
			Expect(err).NotTo(HaveOccurred())

			_, status, err := server.handleAutoIngestStatus(ctx, nil, AutoIngestStatusInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(status.Enabled).To(BeTrue())
			Expect(status.LogQueries).To(BeTrue())
			Expect(status.LogResponses).To(BeFalse())
		})
	})

	Describe("start_new_conversation", func() {
		It("rotates the active conversation", func() {
			_, first, err := server.handleStartConversation(ctx, nil, StartConversationInput{})
			Expect(err).NotTo(HaveOccurred())

			_, second, err := server.handleStartConversation(ctx, nil, StartConversationInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.ConversationID).NotTo(Equal(first.ConversationID))
		})
	})

	Describe("get_recent_activity", func() {
		It("groups episodic activity by conversation", func() {
			_, _, err := server.handleIngest(ctx, nil, IngestInput{
				ConversationID: "conv-1",
				Role:           "user",
				Content:        "recent",
			})
			Expect(err).NotTo(HaveOccurred())

			_, output, err := server.handleActivity(ctx, nil, ActivityInput{Hours: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(output.Groups).To(HaveLen(1))
			Expect(output.Groups[0].Source).To(Equal("memory"))
		})
	})
})
