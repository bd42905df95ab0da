package embeddings

import "errors"

// ErrEmbedding is returned when embedding generation fails. Callers treat
// it as fatal for the triggering ingest or retrieval: no interaction is
// recorded on a failed embed.
var ErrEmbedding = errors.New("embedding failed")
