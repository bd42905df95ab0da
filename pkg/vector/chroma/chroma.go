// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/spool/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection name for storing spool embeddings.
	DefaultCollectionName = "spool"
)

// ChromaDriver implements vector.Driver using Chroma's REST API.
type ChromaDriver struct {
	baseURL        string
	collectionName string
	collectionID   string
	httpClient     *http.Client
	logger         *zap.Logger
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName is the name of the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string
}

// NewChromaDriver creates a new Chroma vector driver.
func NewChromaDriver(c Config, logger *zap.Logger) (*ChromaDriver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}

	d := &ChromaDriver{
		baseURL:        c.URL,
		collectionName: collectionName,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}

	// Get or create the collection
	collectionID, err := d.getOrCreateCollection(context.Background())
	if err != nil {
		return nil, fmt.Errorf("%w: getting or creating collection %q: %v", vector.ErrConnection, collectionName, err)
	}
	d.collectionID = collectionID

	logger.Info("connected to Chroma",
		zap.String("url", c.URL),
		zap.String("collection", collectionName),
		zap.String("collection_id", collectionID),
	)

	return d, nil
}

// getOrCreateCollection gets an existing collection or creates a new one.
func (d *ChromaDriver) getOrCreateCollection(ctx context.Context) (string, error) {
	// Try to get existing collection first
	url := fmt.Sprintf("%s/api/v2/tenants/default_tenant/databases/default_database/collections/%s", d.baseURL, d.collectionName)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("creating get request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending get request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var collection chromaCollection
		if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
			return "", fmt.Errorf("decoding collection response: %w", err)
		}
		return collection.ID, nil
	}

	// Collection doesn't exist, create it
	createURL := fmt.Sprintf("%s/api/v2/tenants/default_tenant/databases/default_database/collections", d.baseURL)
	createBody := map[string]string{"name": d.collectionName}
	jsonBody, err := json.Marshal(createBody)
	if err != nil {
		return "", fmt.Errorf("marshaling create request: %w", err)
	}

	req, err = http.NewRequestWithContext(ctx, "POST", createURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("creating create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err = d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending create request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to create collection: status %d: %s", resp.StatusCode, string(body))
	}

	var collection chromaCollection
	if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
		return "", fmt.Errorf("decoding create response: %w", err)
	}

	return collection.ID, nil
}

// recordMetadata flattens record fields into Chroma metadata.
func recordMetadata(rec vector.Record) map[string]any {
	return map[string]any{
		"role":            rec.Role,
		"conversation_id": rec.ConversationID,
		"created_at":      rec.Timestamp,
	}
}

// recordFromResponse rebuilds a record from Chroma response fields.
func recordFromResponse(id string, document string, metadata map[string]any) vector.Record {
	rec := vector.Record{
		ID:      id,
		Content: document,
	}
	if metadata == nil {
		return rec
	}
	if role, ok := metadata["role"].(string); ok {
		rec.Role = role
	}
	if conv, ok := metadata["conversation_id"].(string); ok {
		rec.ConversationID = conv
	}
	// JSON numbers decode as float64
	if ts, ok := metadata["created_at"].(float64); ok {
		rec.Timestamp = int64(ts)
	}
	return rec
}

// Add stores records with their embeddings.
func (d *ChromaDriver) Add(ctx context.Context, recs []vector.Record) error {
	if len(recs) == 0 {
		return nil
	}

	ids := make([]string, len(recs))
	embeddings := make([][]float32, len(recs))
	metadatas := make([]map[string]any, len(recs))
	documents := make([]string, len(recs))

	for i, rec := range recs {
		ids[i] = rec.ID
		embeddings[i] = rec.Embedding
		metadatas[i] = recordMetadata(rec)
		documents[i] = rec.Content
	}

	reqBody := chromaAddRequest{
		IDs:        ids,
		Embeddings: embeddings,
		Metadatas:  metadatas,
		Documents:  documents,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling add request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v2/tenants/default_tenant/databases/default_database/collections/%s/upsert", d.baseURL, d.collectionID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("creating add request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: sending add request: %v", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to add records: status %d: %s", resp.StatusCode, string(body))
	}

	d.logger.Debug("added records to chroma",
		zap.Int("count", len(recs)),
	)

	return nil
}

// Query finds the topK most similar records to the given embedding.
func (d *ChromaDriver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	reqBody := chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Include:         []string{"metadatas", "distances", "embeddings", "documents"},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling query request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v2/tenants/default_tenant/databases/default_database/collections/%s/query", d.baseURL, d.collectionID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending query request: %v", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to query: status %d: %s", resp.StatusCode, string(body))
	}

	var queryResp chromaQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&queryResp); err != nil {
		return nil, fmt.Errorf("decoding query response: %w", err)
	}

	var results []vector.QueryResult

	// Process first group (we only query with one embedding)
	if len(queryResp.IDs) == 0 || len(queryResp.IDs[0]) == 0 {
		return results, nil
	}

	ids := queryResp.IDs[0]
	distances := queryResp.Distances[0]

	var metadatas []map[string]any
	if len(queryResp.Metadatas) > 0 {
		metadatas = queryResp.Metadatas[0]
	}

	var documents []string
	if len(queryResp.Documents) > 0 {
		documents = queryResp.Documents[0]
	}

	var embeddings [][]float32
	if len(queryResp.Embeddings) > 0 {
		embeddings = queryResp.Embeddings[0]
	}

	for i, id := range ids {
		var document string
		if i < len(documents) {
			document = documents[i]
		}

		var metadata map[string]any
		if i < len(metadatas) {
			metadata = metadatas[i]
		}

		result := vector.QueryResult{
			Record: recordFromResponse(id, document, metadata),
		}

		// Add embedding if available
		if i < len(embeddings) {
			result.Embedding = embeddings[i]
		}

		// Convert distance to similarity score
		// Lower distance = higher similarity
		if i < len(distances) {
			result.Score = 1.0 / (1.0 + distances[i])
		}

		results = append(results, result)
	}

	d.logger.Debug("queried chroma",
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Get retrieves records by their IDs.
func (d *ChromaDriver) Get(ctx context.Context, ids []string) ([]vector.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	getResp, err := d.get(ctx, ids, []string{"metadatas", "embeddings", "documents"})
	if err != nil {
		return nil, err
	}

	recs := make([]vector.Record, len(getResp.IDs))
	for i, id := range getResp.IDs {
		var document string
		if i < len(getResp.Documents) {
			document = getResp.Documents[i]
		}

		var metadata map[string]any
		if i < len(getResp.Metadatas) {
			metadata = getResp.Metadatas[i]
		}

		recs[i] = recordFromResponse(id, document, metadata)

		// Add embedding if available
		if i < len(getResp.Embeddings) {
			recs[i].Embedding = getResp.Embeddings[i]
		}
	}

	return recs, nil
}

// get issues a get request against the collection. A nil ids slice
// returns every record.
func (d *ChromaDriver) get(ctx context.Context, ids []string, include []string) (*chromaGetResponse, error) {
	reqBody := chromaGetRequest{
		IDs:     ids,
		Include: include,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling get request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v2/tenants/default_tenant/databases/default_database/collections/%s/get", d.baseURL, d.collectionID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating get request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending get request: %v", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to get records: status %d: %s", resp.StatusCode, string(body))
	}

	var getResp chromaGetResponse
	if err := json.NewDecoder(resp.Body).Decode(&getResp); err != nil {
		return nil, fmt.Errorf("decoding get response: %w", err)
	}

	return &getResp, nil
}

// Delete removes records by their IDs.
func (d *ChromaDriver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	reqBody := chromaDeleteRequest{
		IDs: ids,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling delete request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v2/tenants/default_tenant/databases/default_database/collections/%s/delete", d.baseURL, d.collectionID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("creating delete request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: sending delete request: %v", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to delete records: status %d: %s", resp.StatusCode, string(body))
	}

	d.logger.Debug("deleted records from chroma",
		zap.Int("count", len(ids)),
	)

	return nil
}

// Count returns the number of records in the collection.
func (d *ChromaDriver) Count(ctx context.Context) (int64, error) {
	url := fmt.Sprintf("%s/api/v2/tenants/default_tenant/databases/default_database/collections/%s/count", d.baseURL, d.collectionID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return 0, fmt.Errorf("creating count request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: sending count request: %v", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("failed to count records: status %d: %s", resp.StatusCode, string(body))
	}

	var count int64
	if err := json.NewDecoder(resp.Body).Decode(&count); err != nil {
		return 0, fmt.Errorf("decoding count response: %w", err)
	}

	return count, nil
}

// IDs returns all record IDs currently in the collection.
func (d *ChromaDriver) IDs(ctx context.Context) ([]string, error) {
	getResp, err := d.get(ctx, nil, nil)
	if err != nil {
		return nil, err
	}
	return getResp.IDs, nil
}

// Close releases resources held by the driver.
func (d *ChromaDriver) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}
