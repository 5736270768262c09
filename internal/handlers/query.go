package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"vitalsource-rag/internal/contextutil"
	"vitalsource-rag/internal/service"
)

// maxQueryBodyBytes bounds the JSON body of a query request.
const maxQueryBodyBytes = 64 << 10

// QueryHandler handles HTTP requests for questions over the indexed records.
type QueryHandler struct {
	queryService service.QueryService
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(queryService service.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

// QueryRequest represents the HTTP request payload for a question.
//
// swagger:model QueryRequest
type QueryRequest struct {
	Question string `json:"question"`
	// Restrict retrieval to records from this year. 0 or absent means every year.
	YearFilter *int `json:"year_filter,omitempty"`
	Limit      int  `json:"limit,omitempty"`
}

// QueryResponse represents the HTTP response payload for a question.
//
// swagger:model QueryResponse
type QueryResponse struct {
	// The generated answer, grounded on the citations
	Answer string `json:"answer"`

	// Records retrieved for the question, most relevant first
	Citations []CitationResponse `json:"citations"`

	// Certainty of the top-ranked citation
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`

	// Degraded is set when retrieval failed and the answer is a fallback
	Degraded bool `json:"degraded,omitempty"`
}

// CitationResponse represents one retrieved record in the HTTP response.
//
// swagger:model CitationResponse
type CitationResponse struct {
	Source  string `json:"source"`
	Page    int    `json:"page"`
	Year    *int   `json:"year"`
	ChunkID string `json:"chunk_id"`
	Snippet string `json:"snippet"`
	Section string `json:"section"`
	// Cited is set when the answer references this record as [Source n]
	Cited bool `json:"cited"`
}

// ServeHTTP handles HTTP requests for questions.
//
// swagger:route POST /api/v1/query queryRecords
//
// # Ask a question about the indexed lab reports
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  schema:
//	    "$ref": "#/definitions/QueryResponse"
//	'400':
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(ctx, w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBodyBytes)).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid query request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	logger.InfoContext(ctx, "query received", "question_length", len(req.Question), "year_filter", req.YearFilter)

	resp, err := h.queryService.Query(ctx, service.QueryRequest{
		Question:   req.Question,
		YearFilter: req.YearFilter,
		Limit:      req.Limit,
	})
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			writeJSON(ctx, w, http.StatusBadRequest, ErrorResponse{Error: vErr.Error(), Field: vErr.Field})
			return
		}
		if errors.Is(err, service.ErrInvalidInput) {
			writeError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
		logger.ErrorContext(ctx, "query failed", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "failed to answer question")
		return
	}

	writeJSON(ctx, w, http.StatusOK, NewQueryResponse(resp))
}

// NewQueryResponse maps a service answer onto the wire format.
func NewQueryResponse(resp service.QueryResponse) QueryResponse {
	out := QueryResponse{
		Answer:          resp.Answer,
		Citations:       make([]CitationResponse, 0, len(resp.Citations)),
		ConfidenceScore: resp.ConfidenceScore,
		Degraded:        resp.Degraded,
	}
	for _, c := range resp.Citations {
		out.Citations = append(out.Citations, CitationResponse{
			Source:  c.Source,
			Page:    c.Page,
			Year:    c.Year,
			ChunkID: c.ChunkID,
			Snippet: c.Snippet,
			Section: c.Section,
			Cited:   c.Cited,
		})
	}
	return out
}
