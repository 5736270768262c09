package rag

// RetrieveRequest represents a retrieval query.
type RetrieveRequest struct {
	// Query is the user's question, embedded as is.
	Query string
	// Year restricts results to records of that year. nil or 0 means no filter.
	Year *int
	// Limit is the number of records requested. 0 selects the retriever default.
	Limit int
}

// RetrievalResult is one retrieved chunk, projected from the vector store payload.
type RetrievalResult struct {
	ChunkID string `json:"chunk_id"`
	Content string `json:"content"`
	Source  string `json:"source"`
	Page    int    `json:"page"`
	Year    *int   `json:"year,omitempty"`
	Section string `json:"section"`
	// Score is the cosine similarity reported by the store.
	Score float32 `json:"score"`
	// Certainty is Score mapped to [0, 1] as (1 + cosine) / 2.
	Certainty float64 `json:"certainty"`
	// LiteralMatch is set when Content contains the query verbatim (case-insensitive).
	LiteralMatch bool `json:"literal_match"`
}
