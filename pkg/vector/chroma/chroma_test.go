package chroma_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/vector"
	"github.com/papercomputeco/spool/pkg/vector/chroma"
)

func TestChroma(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Chroma Suite")
}

// fakeChroma stands in for a Chroma server. It answers the collection
// lookup and records the last request body per endpoint.
type fakeChroma struct {
	server     *httptest.Server
	lastBody   map[string]string
	queryResp  string
	getResp    string
	countResp  string
	collExists bool
}

func newFakeChroma() *fakeChroma {
	f := &fakeChroma{
		lastBody:   map[string]string{},
		queryResp:  `{"ids":[[]],"distances":[[]]}`,
		getResp:    `{"ids":[]}`,
		countResp:  `0`,
		collExists: true,
	}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/collections/spool"):
			if !f.collExists {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			fmt.Fprint(w, `{"id":"coll-1","name":"spool"}`)

		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/collections"):
			f.collExists = true
			fmt.Fprint(w, `{"id":"coll-1","name":"spool"}`)

		case strings.HasSuffix(r.URL.Path, "/upsert"):
			f.capture(r, "upsert")
			fmt.Fprint(w, `{}`)

		case strings.HasSuffix(r.URL.Path, "/query"):
			f.capture(r, "query")
			fmt.Fprint(w, f.queryResp)

		case strings.HasSuffix(r.URL.Path, "/get"):
			f.capture(r, "get")
			fmt.Fprint(w, f.getResp)

		case strings.HasSuffix(r.URL.Path, "/delete"):
			f.capture(r, "delete")
			fmt.Fprint(w, `{}`)

		case strings.HasSuffix(r.URL.Path, "/count"):
			fmt.Fprint(w, f.countResp)

		default:
			http.Error(w, "unexpected path "+r.URL.Path, http.StatusNotFound)
		}
	}))

	return f
}

func (f *fakeChroma) capture(r *http.Request, key string) {
	var body strings.Builder
	var decoded json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&decoded); err == nil {
		body.Write(decoded)
	}
	f.lastBody[key] = body.String()
}

var _ = Describe("ChromaDriver", func() {
	var (
		fake   *fakeChroma
		driver *chroma.ChromaDriver
		logger *zap.Logger
	)

	BeforeEach(func() {
		logger = zap.NewNop()
		fake = newFakeChroma()
		DeferCleanup(fake.server.Close)

		var err error
		driver, err = chroma.NewChromaDriver(chroma.Config{URL: fake.server.URL}, logger)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewChromaDriver", func() {
		It("should return an error when URL is empty", func() {
			_, err := chroma.NewChromaDriver(chroma.Config{URL: ""}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("chroma URL is required"))
		})

		It("should create the collection when it does not exist", func() {
			fresh := newFakeChroma()
			DeferCleanup(fresh.server.Close)
			fresh.collExists = false

			d, err := chroma.NewChromaDriver(chroma.Config{URL: fresh.server.URL}, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(d).NotTo(BeNil())
			Expect(fresh.collExists).To(BeTrue())
		})

		It("should wrap connection failures in ErrConnection", func() {
			dead := httptest.NewServer(nil)
			dead.Close()

			_, err := chroma.NewChromaDriver(chroma.Config{URL: dead.URL}, logger)
			Expect(err).To(MatchError(vector.ErrConnection))
		})
	})

	Describe("Interface compliance", func() {
		It("should implement vector.Driver interface", func() {
			var _ vector.Driver = (*chroma.ChromaDriver)(nil)
		})
	})

	Describe("Add", func() {
		It("should do nothing when given empty records", func() {
			err := driver.Add(context.Background(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(fake.lastBody).NotTo(HaveKey("upsert"))
		})

		It("should upsert records with documents and metadata", func() {
			err := driver.Add(context.Background(), []vector.Record{
				{
					ID:             "1",
					Content:        "hello",
					Role:           "user",
					ConversationID: "conv-1",
					Timestamp:      1700000000,
					Embedding:      []float32{0.1, 0.2},
				},
			})
			Expect(err).NotTo(HaveOccurred())

			body := fake.lastBody["upsert"]
			Expect(body).To(ContainSubstring(`"ids":["1"]`))
			Expect(body).To(ContainSubstring(`"documents":["hello"]`))
			Expect(body).To(ContainSubstring(`"conversation_id":"conv-1"`))
			Expect(body).To(ContainSubstring(`"created_at":1700000000`))
		})
	})

	Describe("Query", func() {
		It("should map distances to descending similarity scores", func() {
			fake.queryResp = `{
				"ids":[["1","2"]],
				"distances":[[0.0, 1.0]],
				"documents":[["close","far"]],
				"metadatas":[[{"role":"user","conversation_id":"conv-1","created_at":1700000000},{}]]
			}`

			results, err := driver.Query(context.Background(), []float32{0.1, 0.2}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))

			Expect(results[0].ID).To(Equal("1"))
			Expect(results[0].Content).To(Equal("close"))
			Expect(results[0].Role).To(Equal("user"))
			Expect(results[0].ConversationID).To(Equal("conv-1"))
			Expect(results[0].Timestamp).To(Equal(int64(1700000000)))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 0.001))
			Expect(results[1].Score).To(BeNumerically("~", 0.5, 0.001))
		})

		It("should return empty results for an empty response", func() {
			results, err := driver.Query(context.Background(), []float32{0.1, 0.2}, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})
	})

	Describe("Get", func() {
		It("should return nil for empty IDs", func() {
			recs, err := driver.Get(context.Background(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(BeNil())
		})

		It("should rebuild records from the response", func() {
			fake.getResp = `{
				"ids":["1"],
				"documents":["hello"],
				"metadatas":[{"role":"assistant","conversation_id":"conv-2","created_at":1700000001}],
				"embeddings":[[0.1,0.2]]
			}`

			recs, err := driver.Get(context.Background(), []string{"1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(1))
			Expect(recs[0].Content).To(Equal("hello"))
			Expect(recs[0].Role).To(Equal("assistant"))
			Expect(recs[0].ConversationID).To(Equal("conv-2"))
			Expect(recs[0].Embedding).To(HaveLen(2))
		})
	})

	Describe("Delete", func() {
		It("should do nothing when given empty IDs", func() {
			err := driver.Delete(context.Background(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(fake.lastBody).NotTo(HaveKey("delete"))
		})

		It("should send the IDs to the delete endpoint", func() {
			err := driver.Delete(context.Background(), []string{"1", "2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(fake.lastBody["delete"]).To(ContainSubstring(`"ids":["1","2"]`))
		})
	})

	Describe("Count and IDs", func() {
		It("should decode the count response", func() {
			fake.countResp = `42`

			count, err := driver.Count(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(42)))
		})

		It("should list every ID in the collection", func() {
			fake.getResp = `{"ids":["1","2","3"]}`

			ids, err := driver.IDs(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]string{"1", "2", "3"}))
		})
	})
})
