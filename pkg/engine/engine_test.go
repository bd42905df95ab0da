package engine_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/config"
	"github.com/papercomputeco/spool/pkg/engine"
	"github.com/papercomputeco/spool/pkg/episodic"
	"github.com/papercomputeco/spool/pkg/graph"
	"github.com/papercomputeco/spool/pkg/registry"
	"github.com/papercomputeco/spool/pkg/snapshot"
	testutils "github.com/papercomputeco/spool/pkg/utils/test"
	"github.com/papercomputeco/spool/pkg/vector"
)

func TestEngine(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Engine Suite")
}

var _ = Describe("Engine", func() {
	var (
		ctx      context.Context
		store    *episodic.Store
		graphs   *graph.Store
		vectors  *testutils.MockVectorDriver
		embedder *testutils.MockEmbedder
		eng      *engine.Engine
	)

	newEngine := func() *engine.Engine {
		e, err := engine.NewEngine(engine.Options{
			Logger:   zap.NewNop(),
			Episodic: store,
			Vectors:  vectors,
			Graph:    graphs,
			Embedder: embedder,
			Policy: config.ConsolidationConfig{
				PromoteThreshold: 0.5,
				PruneThreshold:   0.1,
				HistoryWindow:    100,
				SurpriseWindow:   50,
			},
		})
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		store, err = episodic.NewStore(":memory:")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { store.Close() })

		graphs, err = graph.NewStore(store.DB())
		Expect(err).NotTo(HaveOccurred())

		vectors = testutils.NewMockVectorDriver()
		embedder = testutils.NewMockEmbedder()

		eng = newEngine()
	})

	Describe("Ingest", func() {
		It("should score the first interaction in a conversation as fully novel", func() {
			result, err := eng.Ingest(ctx, "conv-1", "user", "hello world")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.SurpriseScore).To(Equal(1.0))
		})

		It("should score an exact repeat near zero", func() {
			embedder.Embeddings["same thing"] = []float32{1, 0, 0}

			_, err := eng.Ingest(ctx, "conv-1", "user", "same thing")
			Expect(err).NotTo(HaveOccurred())

			result, err := eng.Ingest(ctx, "conv-1", "user", "same thing")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.SurpriseScore).To(BeNumerically("~", 0.0, 1e-6))
		})

		It("should score novel content above repeated content", func() {
			embedder.Embeddings["topic one"] = []float32{1, 0, 0}
			embedder.Embeddings["something else entirely"] = []float32{0, 1, 0}

			_, err := eng.Ingest(ctx, "conv-1", "user", "topic one")
			Expect(err).NotTo(HaveOccurred())

			repeat, err := eng.Ingest(ctx, "conv-1", "user", "topic one")
			Expect(err).NotTo(HaveOccurred())

			novel, err := eng.Ingest(ctx, "conv-1", "user", "something else entirely")
			Expect(err).NotTo(HaveOccurred())

			Expect(novel.SurpriseScore).To(BeNumerically(">", repeat.SurpriseScore))
		})

		It("should scope surprise history to the conversation", func() {
			embedder.Embeddings["shared phrase"] = []float32{1, 0, 0}

			_, err := eng.Ingest(ctx, "conv-1", "user", "shared phrase")
			Expect(err).NotTo(HaveOccurred())

			other, err := eng.Ingest(ctx, "conv-2", "user", "shared phrase")
			Expect(err).NotTo(HaveOccurred())
			Expect(other.SurpriseScore).To(Equal(1.0))
		})

		It("should write nothing when embedding fails", func() {
			embedder.FailOn = "poison"

			_, err := eng.Ingest(ctx, "conv-1", "user", "poison")
			Expect(err).To(HaveOccurred())

			count, err := store.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeEquivalentTo(0))
			Expect(vectors.Records).To(BeEmpty())
		})

		It("should keep the episodic row when the index write fails", func() {
			vectors.FailAdd = true

			result, err := eng.Ingest(ctx, "conv-1", "user", "hello")
			Expect(err).NotTo(HaveOccurred())

			got, err := store.Get(ctx, result.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Content).To(Equal("hello"))
			Expect(vectors.Records).To(BeEmpty())
		})

		It("should score against history rows missing from the index", func() {
			embedder.Embeddings["same thing"] = []float32{1, 0, 0}

			vectors.FailAdd = true
			_, err := eng.Ingest(ctx, "conv-1", "user", "same thing")
			Expect(err).NotTo(HaveOccurred())
			vectors.FailAdd = false

			result, err := eng.Ingest(ctx, "conv-1", "user", "same thing")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.SurpriseScore).To(BeNumerically("~", 0.0, 1e-6))
		})

		It("should fail the ingest when a history row cannot be embedded", func() {
			vectors.FailAdd = true
			_, err := eng.Ingest(ctx, "conv-1", "user", "earlier entry")
			Expect(err).NotTo(HaveOccurred())
			vectors.FailAdd = false

			embedder.FailOn = "earlier entry"
			_, err = eng.Ingest(ctx, "conv-1", "user", "new entry")
			Expect(err).To(HaveOccurred())

			count, err := store.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeEquivalentTo(1))
		})

		It("should mirror the interaction into the index under its episodic ID", func() {
			result, err := eng.Ingest(ctx, "conv-1", "assistant", "indexed")
			Expect(err).NotTo(HaveOccurred())

			rec, ok := vectors.Records[strconv.FormatInt(result.ID, 10)]
			Expect(ok).To(BeTrue())
			Expect(rec.Content).To(Equal("indexed"))
			Expect(rec.ConversationID).To(Equal("conv-1"))
		})
	})

	Describe("Retrieve", func() {
		It("should embed the query and return index results", func() {
			vectors.Results = []vector.QueryResult{
				{Record: vector.Record{ID: "1", Content: "match"}, Score: 0.9},
			}

			results, err := eng.Retrieve(ctx, "find it", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Content).To(Equal("match"))
		})

		It("should fail when the query cannot be embedded", func() {
			embedder.FailOn = "bad query"

			_, err := eng.Retrieve(ctx, "bad query", 5)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Consolidate", func() {
		ingestScored := func(conv, content string, score float64) int64 {
			in, err := store.Append(ctx, conv, "user", content, score)
			Expect(err).NotTo(HaveOccurred())
			emb := []float32{0.1, 0.2, 0.3}
			Expect(vectors.Add(ctx, []vector.Record{{
				ID:        strconv.FormatInt(in.ID, 10),
				Content:   content,
				Embedding: emb,
			}})).To(Succeed())
			return in.ID
		}

		It("should list interactions strictly above the threshold as candidates", func() {
			highID := ingestScored("conv-1", "very surprising", 0.9)
			ingestScored("conv-1", "at threshold", 0.5)
			ingestScored("conv-1", "mundane", 0.3)

			result, err := eng.Consolidate(ctx, "conv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Promoted).To(HaveLen(1))
			Expect(result.Promoted[0].ID).To(Equal(highID))
			Expect(result.Promoted[0].Content).To(Equal("very surprising"))
			Expect(result.Promoted[0].SurpriseScore).To(Equal(0.9))
		})

		It("should leave the knowledge graph untouched", func() {
			ingestScored("conv-1", "very surprising", 0.9)

			result, err := eng.Consolidate(ctx, "conv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Promoted).To(HaveLen(1))

			nodes, err := graphs.Nodes(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(BeEmpty())
		})

		It("should prune interactions strictly below the threshold from both stores", func() {
			lowID := ingestScored("conv-1", "noise", 0.05)
			keepID := ingestScored("conv-1", "boundary", 0.1)

			result, err := eng.Consolidate(ctx, "conv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.PrunedCount).To(Equal(1))

			_, err = store.Get(ctx, lowID)
			Expect(err).To(MatchError(episodic.ErrNotFound))
			_, err = store.Get(ctx, keepID)
			Expect(err).NotTo(HaveOccurred())

			Expect(vectors.Records).NotTo(HaveKey(strconv.FormatInt(lowID, 10)))
			Expect(vectors.Records).To(HaveKey(strconv.FormatInt(keepID, 10)))
		})

		It("should never both promote and prune the same interaction", func() {
			id := ingestScored("conv-1", "promoted", 0.9)

			result, err := eng.Consolidate(ctx, "conv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Promoted).To(HaveLen(1))
			Expect(result.PrunedCount).To(BeZero())

			_, err = store.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should leave other conversations untouched", func() {
			otherID := ingestScored("conv-2", "other noise", 0.01)

			_, err := eng.Consolidate(ctx, "conv-1")
			Expect(err).NotTo(HaveOccurred())

			_, err = store.Get(ctx, otherID)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Reconcile", func() {
		It("should reindex episodic rows missing from the index", func() {
			in, err := store.Append(ctx, "conv-1", "user", "unindexed", 0.7)
			Expect(err).NotTo(HaveOccurred())

			result, err := eng.Reconcile(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Reindexed).To(Equal(1))
			Expect(vectors.Records).To(HaveKey(strconv.FormatInt(in.ID, 10)))
		})

		It("should remove orphaned index records", func() {
			Expect(vectors.Add(ctx, []vector.Record{{ID: "999", Content: "ghost"}})).To(Succeed())

			result, err := eng.Reconcile(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Removed).To(Equal(1))
			Expect(vectors.Records).To(BeEmpty())
		})

		It("should skip rows whose re-embedding fails", func() {
			_, err := store.Append(ctx, "conv-1", "user", "poison", 0.7)
			Expect(err).NotTo(HaveOccurred())
			embedder.FailOn = "poison"

			result, err := eng.Reconcile(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Skipped).To(Equal(1))
			Expect(result.Reindexed).To(BeZero())
		})

		It("should be a no-op when the stores already agree", func() {
			_, err := eng.Ingest(ctx, "conv-1", "user", "in sync")
			Expect(err).NotTo(HaveOccurred())

			result, err := eng.Reconcile(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Reindexed).To(BeZero())
			Expect(result.Removed).To(BeZero())
		})
	})

	Describe("RecentActivity", func() {
		It("should include episodic interactions grouped by conversation", func() {
			_, err := eng.Ingest(ctx, "conv-1", "user", "first")
			Expect(err).NotTo(HaveOccurred())
			_, err = eng.Ingest(ctx, "conv-1", "assistant", "second")
			Expect(err).NotTo(HaveOccurred())

			report, err := eng.RecentActivity(ctx, time.Now().Add(-time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Groups).To(HaveLen(1))
			Expect(report.Groups[0].Source).To(Equal("memory"))
			Expect(report.Groups[0].Project).To(Equal("conv-1"))
			Expect(report.Groups[0].Total).To(Equal(2))
		})

		It("should cap group items while counting the total", func() {
			for i := 0; i < 8; i++ {
				_, err := eng.Ingest(ctx, "conv-1", "user", fmt.Sprintf("message %d", i))
				Expect(err).NotTo(HaveOccurred())
			}

			report, err := eng.RecentActivity(ctx, time.Now().Add(-time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Groups).To(HaveLen(1))
			Expect(report.Groups[0].Items).To(HaveLen(5))
			Expect(report.Groups[0].Total).To(Equal(8))
		})
	})

	Describe("conversation and snapshot wiring", func() {
		var dir string

		BeforeEach(func() {
			var err error
			dir, err = os.MkdirTemp("", "spool-engine-*")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(func() { os.RemoveAll(dir) })

			reg := registry.NewRegistry(filepath.Join(dir, registry.FileName))
			snaps, err := snapshot.NewManager(snapshot.Config{
				Dir:         dir,
				AuthorName:  "Spool Agent",
				AuthorEmail: "agent@spool.local",
			}, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())

			eng, err = engine.NewEngine(engine.Options{
				Logger:    zap.NewNop(),
				Episodic:  store,
				Vectors:   vectors,
				Graph:     graphs,
				Embedder:  embedder,
				Registry:  reg,
				Snapshots: snaps,
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should resolve a stable conversation per project", func() {
			first, err := eng.ResolveConversation("/proj")
			Expect(err).NotTo(HaveOccurred())

			again, err := eng.ResolveConversation("/proj")
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(Equal(first))

			fresh, err := eng.StartConversation("/proj")
			Expect(err).NotTo(HaveOccurred())
			Expect(fresh).NotTo(Equal(first))
		})

		It("should record snapshots with a default message", func() {
			cp, err := eng.Snapshot("")
			Expect(err).NotTo(HaveOccurred())
			Expect(cp.Message).To(ContainSubstring("Memory snapshot"))

			history, err := eng.SnapshotHistory(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(1))
		})
	})
})
