package graph_test

import (
	"context"
	"database/sql"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	_ "modernc.org/sqlite"

	"github.com/papercomputeco/spool/pkg/graph"
)

func TestGraph(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Graph Suite")
}

var _ = Describe("Store", func() {
	var (
		db    *sql.DB
		store *graph.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = sql.Open("sqlite", ":memory:")
		Expect(err).NotTo(HaveOccurred())

		store, err = graph.NewStore(db)
		Expect(err).NotTo(HaveOccurred())

		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})

	Describe("UpsertNode", func() {
		It("should create a new node", func() {
			node, err := store.UpsertNode(ctx, "golang", "a programming language", map[string]string{"kind": "language"})
			Expect(err).NotTo(HaveOccurred())
			Expect(node.Name).To(Equal("golang"))
			Expect(node.Description).To(Equal("a programming language"))
			Expect(node.Attributes).To(HaveKeyWithValue("kind", "language"))
		})

		It("should require a name", func() {
			_, err := store.UpsertNode(ctx, "", "desc", nil)
			Expect(err).To(HaveOccurred())
		})

		It("should accumulate descriptions with the separator", func() {
			_, err := store.UpsertNode(ctx, "golang", "first", nil)
			Expect(err).NotTo(HaveOccurred())

			node, err := store.UpsertNode(ctx, "golang", "second", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(node.Description).To(Equal("first" + graph.DescriptionSeparator + "second"))
		})

		It("should leave the description alone when the update is empty", func() {
			_, err := store.UpsertNode(ctx, "golang", "first", nil)
			Expect(err).NotTo(HaveOccurred())

			node, err := store.UpsertNode(ctx, "golang", "", map[string]string{"kind": "language"})
			Expect(err).NotTo(HaveOccurred())
			Expect(node.Description).To(Equal("first"))
		})

		It("should merge attributes last writer wins", func() {
			_, err := store.UpsertNode(ctx, "golang", "", map[string]string{"kind": "language", "year": "2009"})
			Expect(err).NotTo(HaveOccurred())

			node, err := store.UpsertNode(ctx, "golang", "", map[string]string{"kind": "tool"})
			Expect(err).NotTo(HaveOccurred())
			Expect(node.Attributes).To(HaveKeyWithValue("kind", "tool"))
			Expect(node.Attributes).To(HaveKeyWithValue("year", "2009"))
		})
	})

	Describe("AddEdge", func() {
		BeforeEach(func() {
			_, err := store.UpsertNode(ctx, "a", "", nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = store.UpsertNode(ctx, "b", "", nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should connect two existing nodes", func() {
			edge, err := store.AddEdge(ctx, "a", "b", "knows", 0.8)
			Expect(err).NotTo(HaveOccurred())
			Expect(edge.Source).To(Equal("a"))
			Expect(edge.Target).To(Equal("b"))
			Expect(edge.Weight).To(Equal(0.8))
		})

		It("should default a non-positive weight to 1.0", func() {
			edge, err := store.AddEdge(ctx, "a", "b", "knows", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(edge.Weight).To(Equal(1.0))
		})

		It("should reject an unknown source", func() {
			_, err := store.AddEdge(ctx, "missing", "b", "knows", 1.0)
			Expect(err).To(MatchError(graph.ErrUnknownEntity))
		})

		It("should reject an unknown target", func() {
			_, err := store.AddEdge(ctx, "a", "missing", "knows", 1.0)
			Expect(err).To(MatchError(graph.ErrUnknownEntity))
		})
	})

	Describe("Traverse", func() {
		BeforeEach(func() {
			for _, name := range []string{"a", "b", "c", "d"} {
				_, err := store.UpsertNode(ctx, name, "node "+name, nil)
				Expect(err).NotTo(HaveOccurred())
			}
			_, err := store.AddEdge(ctx, "a", "b", "to", 1.0)
			Expect(err).NotTo(HaveOccurred())
			_, err = store.AddEdge(ctx, "b", "c", "to", 1.0)
			Expect(err).NotTo(HaveOccurred())
			_, err = store.AddEdge(ctx, "c", "d", "to", 1.0)
			Expect(err).NotTo(HaveOccurred())
		})

		targets := func(steps []graph.TraverseStep) []string {
			var names []string
			for _, s := range steps {
				names = append(names, s.Target)
			}
			return names
		}

		It("should emit one step per newly reached node, breadth-first", func() {
			steps, err := store.Traverse(ctx, "a", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(steps).To(Equal([]graph.TraverseStep{
				{Source: "a", Relation: "to", Target: "b", Description: "node b"},
				{Source: "b", Relation: "to", Target: "c", Description: "node c"},
			}))
		})

		It("should return nothing at depth zero", func() {
			steps, err := store.Traverse(ctx, "a", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(steps).To(BeEmpty())
		})

		It("should return an empty result for an unknown start", func() {
			steps, err := store.Traverse(ctx, "missing", 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(steps).To(BeEmpty())
		})

		It("should terminate on cycles", func() {
			_, err := store.AddEdge(ctx, "d", "a", "to", 1.0)
			Expect(err).NotTo(HaveOccurred())

			steps, err := store.Traverse(ctx, "a", 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(targets(steps)).To(Equal([]string{"b", "c", "d"}))
		})

		It("should not report back-edges into visited nodes", func() {
			_, err := store.AddEdge(ctx, "b", "a", "to", 1.0)
			Expect(err).NotTo(HaveOccurred())

			steps, err := store.Traverse(ctx, "a", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(targets(steps)).To(Equal([]string{"b", "c", "d"}))
		})

		It("should fan out in edge creation order", func() {
			_, err := store.UpsertNode(ctx, "e", "", nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = store.AddEdge(ctx, "a", "e", "to", 1.0)
			Expect(err).NotTo(HaveOccurred())

			steps, err := store.Traverse(ctx, "a", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(targets(steps)).To(Equal([]string{"b", "e"}))
		})
	})
})
