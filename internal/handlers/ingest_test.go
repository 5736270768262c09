package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/mock/gomock"

	"vitalsource-rag/internal/service"
	"vitalsource-rag/internal/service/mocks"
)

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestIngestHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		serviceErr     error
		expectedStatus int
		expectedError  string
	}{
		{name: "success", expectedStatus: http.StatusOK},
		{name: "no files", serviceErr: service.ErrNoFiles, expectedStatus: http.StatusBadRequest, expectedError: "No PDF files uploaded"},
		{name: "no text", serviceErr: service.ErrNoText, expectedStatus: http.StatusBadRequest, expectedError: "No text extracted from documents."},
		{
			name:           "indexing error",
			serviceErr:     fmt.Errorf("%w: %v", service.ErrIndexing, "connection refused"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "Indexing Error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockService := mocks.NewMockIngestService(ctrl)

			mockService.EXPECT().
				Ingest(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, req service.IngestRequest) (service.IngestResponse, error) {
					if len(req.Files) != 1 || req.Files[0].Filename != "lab_2022.pdf" {
						t.Errorf("unexpected files %+v", req.Files)
					}
					content, err := io.ReadAll(req.Files[0].Content)
					if err != nil || string(content) != "%PDF-1.4" {
						t.Errorf("content = %q, err = %v", content, err)
					}
					if tt.serviceErr != nil {
						return service.IngestResponse{}, tt.serviceErr
					}
					return service.IngestResponse{
						Status:         "Success",
						Message:        "Ingestion complete. 4 chunks indexed.",
						FilesProcessed: []string{"lab_2022.pdf"},
						Files:          []service.FileResult{{Filename: "lab_2022.pdf", Status: service.FileStatusProcessed, Pages: 2, Chunks: 4}},
						TotalPages:     2,
						TotalChunks:    4,
						ChunksIndexed:  4,
					}, nil
				})

			body, contentType := multipartBody(t, map[string]string{"lab_2022.pdf": "%PDF-1.4"})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()

			NewIngestHandler(mockService, 1<<20).ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("ServeHTTP() status = %v, want %v (body %s)", w.Code, tt.expectedStatus, w.Body.String())
			}
			if tt.expectedError != "" {
				var resp ErrorResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if resp.Error != tt.expectedError {
					t.Errorf("error = %q, want %q", resp.Error, tt.expectedError)
				}
				return
			}

			var resp IngestResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.TotalChunks != 4 || len(resp.Files) != 1 || resp.Files[0].Status != service.FileStatusProcessed {
				t.Errorf("unexpected response %+v", resp)
			}
		})
	}
}

func TestIngestHandler_NotMultipart(t *testing.T) {
	ctrl := gomock.NewController(t)
	handler := NewIngestHandler(mocks.NewMockIngestService(ctrl), 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("ServeHTTP() status = %v, want %v", w.Code, http.StatusBadRequest)
	}
}

func TestIngestHandler_TooLarge(t *testing.T) {
	ctrl := gomock.NewController(t)
	handler := NewIngestHandler(mocks.NewMockIngestService(ctrl), 64)

	body, contentType := multipartBody(t, map[string]string{"big.pdf": string(bytes.Repeat([]byte("x"), 4096))})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("ServeHTTP() status = %v, want %v", w.Code, http.StatusRequestEntityTooLarge)
	}
}
