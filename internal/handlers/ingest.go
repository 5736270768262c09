package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"vitalsource-rag/internal/contextutil"
	"vitalsource-rag/internal/service"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

// IngestHandler handles document uploads.
type IngestHandler struct {
	ingestService  service.IngestService
	maxUploadBytes int64
}

// NewIngestHandler creates a new IngestHandler. maxUploadBytes bounds the
// whole request body.
func NewIngestHandler(ingestService service.IngestService, maxUploadBytes int64) *IngestHandler {
	return &IngestHandler{ingestService: ingestService, maxUploadBytes: maxUploadBytes}
}

// IngestResponse represents the HTTP response payload for an upload.
//
// swagger:model IngestResponse
type IngestResponse struct {
	Status         string               `json:"status"`
	Message        string               `json:"message"`
	FilesProcessed []string             `json:"files_processed"`
	Files          []FileResultResponse `json:"files"`
	TotalPages     int                  `json:"total_pages"`
	TotalChunks    int                  `json:"total_chunks"`
	ChunksIndexed  int                  `json:"chunks_indexed"`
	SkippedReasons map[string]int       `json:"chunks_skipped_reasons,omitempty"`
}

// FileResultResponse reports the outcome for one uploaded file.
//
// swagger:model FileResultResponse
type FileResultResponse struct {
	Filename string `json:"filename"`
	// One of processed, skipped, invalid, failed
	Status string `json:"status"`
	Pages  int    `json:"pages"`
	Chunks int    `json:"chunks"`
	Error  string `json:"error,omitempty"`
}

// ServeHTTP handles document uploads.
//
// swagger:route POST /api/v1/ingest ingestDocuments
//
// # Upload lab reports for extraction and indexing
//
// Accepts multipart form data with one or more "files" parts.
//
// ---
// consumes:
// - multipart/form-data
// produces:
// - application/json
// responses:
//
//	'200':
//	  schema:
//	    "$ref": "#/definitions/IngestResponse"
//	'400':
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'500':
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(ctx, w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		logger.WarnContext(ctx, "invalid multipart upload", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(ctx, w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(ctx, w, http.StatusBadRequest, "expected multipart form with files")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	files := make([]service.UploadedFile, 0, len(headers))
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			logger.ErrorContext(ctx, "failed to open uploaded file", "filename", fh.Filename, "error", err)
			writeError(ctx, w, http.StatusBadRequest, "failed to read uploaded file "+fh.Filename)
			return
		}
		opened = append(opened, f)
		files = append(files, service.UploadedFile{Filename: fh.Filename, Content: f})
	}

	logger.InfoContext(ctx, "ingest received", "files", len(files))

	resp, err := h.ingestService.Ingest(ctx, service.IngestRequest{Files: files})
	switch {
	case errors.Is(err, service.ErrNoFiles):
		writeError(ctx, w, http.StatusBadRequest, "No PDF files uploaded")
		return
	case errors.Is(err, service.ErrNoText):
		writeError(ctx, w, http.StatusBadRequest, "No text extracted from documents.")
		return
	case errors.Is(err, service.ErrIndexing):
		cause := strings.TrimPrefix(err.Error(), service.ErrIndexing.Error()+": ")
		writeError(ctx, w, http.StatusInternalServerError, "Indexing Error: "+cause)
		return
	case err != nil:
		logger.ErrorContext(ctx, "ingest failed", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "ingest failed")
		return
	}

	writeJSON(ctx, w, http.StatusOK, NewIngestResponse(resp))
}

// NewIngestResponse maps a service result onto the wire format.
func NewIngestResponse(resp service.IngestResponse) IngestResponse {
	out := IngestResponse{
		Status:         resp.Status,
		Message:        resp.Message,
		FilesProcessed: resp.FilesProcessed,
		Files:          make([]FileResultResponse, 0, len(resp.Files)),
		TotalPages:     resp.TotalPages,
		TotalChunks:    resp.TotalChunks,
		ChunksIndexed:  resp.ChunksIndexed,
		SkippedReasons: resp.SkippedReasons,
	}
	for _, f := range resp.Files {
		out.Files = append(out.Files, FileResultResponse{
			Filename: f.Filename,
			Status:   f.Status,
			Pages:    f.Pages,
			Chunks:   f.Chunks,
			Error:    f.Error,
		})
	}
	return out
}
