package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_query.go -package=mocks vitalsource-rag/internal/service Retriever,QueryService

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"vitalsource-rag/internal/contextutil"
	"vitalsource-rag/internal/rag"
)

// NothingFoundAnswer is returned when no record clears the similarity floor.
const NothingFoundAnswer = "I couldn't find any medical records matching your query and year filter."

// Retriever finds chunks relevant to a question.
// This interface is defined from the service layer's perspective (consumer-first).
type Retriever interface {
	Retrieve(ctx context.Context, req rag.RetrieveRequest) ([]rag.RetrievalResult, error)
}

// QueryRequest represents a question in the domain layer.
type QueryRequest struct {
	Question string `validate:"required,max=2000"`
	// YearFilter restricts retrieval to one year. nil or 0 means every year.
	YearFilter *int `validate:"omitempty,min=1900,max=2100"`
	// Limit overrides the retriever default when positive.
	Limit int `validate:"min=0,max=50"`
}

// Citation points at one retrieved chunk.
type Citation struct {
	Source    string
	Page      int
	Year      *int
	ChunkID   string
	Snippet   string
	Section   string
	Certainty float64
	// Cited is set when the answer references this source as [Source n].
	Cited bool
}

// QueryResponse is the answer with the records it was grounded on.
type QueryResponse struct {
	Answer    string
	Citations []Citation
	// ConfidenceScore is the certainty of the top-ranked citation, nil when none.
	ConfidenceScore *float64
	// Degraded is set when retrieval failed and the answer is a fallback.
	Degraded bool
}

// QueryService answers questions over the indexed records.
type QueryService interface {
	Query(ctx context.Context, req QueryRequest) (QueryResponse, error)
}

type queryService struct {
	retriever Retriever
	generator rag.Generator
	validate  *validator.Validate
}

// NewQueryService creates a new QueryService.
func NewQueryService(retriever Retriever, generator rag.Generator) QueryService {
	return &queryService{
		retriever: retriever,
		generator: generator,
		validate:  validator.New(),
	}
}

// Query retrieves records for the question and generates a grounded answer.
// Retrieval failures degrade to the nothing-found answer instead of an error.
func (s *queryService) Query(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	req.Question = strings.TrimSpace(req.Question)
	if req.YearFilter != nil && *req.YearFilter == 0 {
		req.YearFilter = nil
	}
	if err := s.validateRequest(req); err != nil {
		logger.WarnContext(ctx, "invalid query request", "error", err)
		return QueryResponse{}, err
	}

	results, err := s.retriever.Retrieve(ctx, rag.RetrieveRequest{
		Query: req.Question,
		Year:  req.YearFilter,
		Limit: req.Limit,
	})
	if err != nil {
		logger.ErrorContext(ctx, "retrieval failed, returning degraded answer", "error", err)
		return QueryResponse{Answer: NothingFoundAnswer, Citations: []Citation{}, Degraded: true}, nil
	}
	if len(results) == 0 {
		return QueryResponse{Answer: NothingFoundAnswer, Citations: []Citation{}}, nil
	}

	answer := s.generator.Generate(ctx, req.Question, results)
	cited := rag.CitedSources(answer)

	citations := make([]Citation, 0, len(results))
	for i, r := range results {
		citations = append(citations, Citation{
			Source:    r.Source,
			Page:      r.Page,
			Year:      r.Year,
			ChunkID:   r.ChunkID,
			Snippet:   rag.Snippet(r.Content),
			Section:   r.Section,
			Certainty: r.Certainty,
			Cited:     cited[i+1],
		})
	}
	confidence := results[0].Certainty

	logger.InfoContext(ctx, "query processed successfully",
		"question_length", len(req.Question), "citations", len(citations), "cited", len(cited))
	return QueryResponse{
		Answer:          answer,
		Citations:       citations,
		ConfidenceScore: &confidence,
	}, nil
}

func (s *queryService) validateRequest(req QueryRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return WrapError(ErrInvalidInput, err.Error())
	}

	fe := fieldErrs[0]
	field := map[string]string{
		"Question":   "question",
		"YearFilter": "year_filter",
		"Limit":      "limit",
	}[fe.Field()]
	if field == "" {
		field = fe.Field()
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = "cannot be empty"
	case "max":
		msg = fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		msg = fmt.Sprintf("must be at least %s", fe.Param())
	default:
		msg = fmt.Sprintf("failed %s validation", fe.Tag())
	}
	if field == "question" && fe.Tag() == "max" {
		msg = fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return &ValidationError{Field: field, Message: msg}
}
