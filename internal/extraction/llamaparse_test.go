package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// fakeLlamaParse serves the upload, job and result endpoints.
func fakeLlamaParse(t *testing.T, pendingPolls int32, finalStatus string, pages []resultPage) *httptest.Server {
	t.Helper()
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/parsing/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("upload method = %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer llx-test" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
		}
		if !strings.Contains(r.FormValue("user_prompt"), "medical lab report") {
			t.Error("parsing prompt missing")
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("file part missing: %v", err)
		}
		_ = json.NewEncoder(w).Encode(jobResponse{ID: "job-1", Status: jobStatusPending})
	})
	mux.HandleFunc("/api/parsing/job/job-1", func(w http.ResponseWriter, r *http.Request) {
		status := finalStatus
		if polls.Add(1) <= pendingPolls {
			status = jobStatusPending
		}
		_ = json.NewEncoder(w).Encode(jobResponse{ID: "job-1", Status: status, ErrorMessage: "boom"})
	})
	mux.HandleFunc("/api/parsing/job/job-1/result/json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(resultResponse{Pages: pages})
	})

	return httptest.NewServer(mux)
}

func writeTempPDF(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLlamaParseClient_Extract(t *testing.T) {
	server := fakeLlamaParse(t, 2, jobStatusSuccess, []resultPage{
		{Page: 1, MD: "CLINICTECH LABS - COMPREHENSIVE REPORT\nPATIENT: Jane Doe\n# Lipid Panel\nLDL: 155 mg/dL H"},
		{Page: 2, MD: "", Text: "Glucose: 99 mg/dL\nPage 2"},
	})
	defer server.Close()

	debugDir := t.TempDir()
	client, err := NewLlamaParseClient(LlamaParseConfig{
		BaseURL:      server.URL,
		APIKey:       "llx-test",
		PollInterval: time.Millisecond,
		Timeout:      5 * time.Second,
		DebugDir:     debugDir,
	}, nil)
	if err != nil {
		t.Fatalf("NewLlamaParseClient() error = %v", err)
	}

	docs, err := client.Extract(context.Background(), writeTempPDF(t, "lab_report_2022.pdf"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(docs) != 2 {
		t.Fatalf("Extract() returned %d pages, want 2", len(docs))
	}

	first := docs[0]
	if strings.Contains(first.Content, "CLINICTECH") {
		t.Errorf("noise not cleaned: %q", first.Content)
	}
	if first.Metadata.Source != "lab_report_2022.pdf" || first.Metadata.Page != 1 {
		t.Errorf("metadata = %+v", first.Metadata)
	}
	if first.Metadata.Year == nil || *first.Metadata.Year != 2022 {
		t.Errorf("year = %v, want 2022", first.Metadata.Year)
	}
	if first.Metadata.ExtractionMethod != MethodLlamaParse {
		t.Errorf("extraction method = %q", first.Metadata.ExtractionMethod)
	}

	if docs[1].Content != "Glucose: 99 mg/dL" || docs[1].Metadata.Page != 2 {
		t.Errorf("page 2 = %+v", docs[1])
	}

	debug, err := os.ReadFile(filepath.Join(debugDir, "lab_report_2022.pdf_p1.md"))
	if err != nil {
		t.Fatalf("debug artifact missing: %v", err)
	}
	if string(debug) != first.Content {
		t.Errorf("debug artifact = %q, want cleaned content", debug)
	}
}

func TestLlamaParseClient_Extract_JobError(t *testing.T) {
	server := fakeLlamaParse(t, 0, jobStatusError, nil)
	defer server.Close()

	client, err := NewLlamaParseClient(LlamaParseConfig{
		BaseURL:      server.URL,
		APIKey:       "llx-test",
		PollInterval: time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.Extract(context.Background(), writeTempPDF(t, "report.pdf"))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Extract() error = %v, want job error", err)
	}
}

func TestLlamaParseClient_Extract_UploadRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid key"))
	}))
	defer server.Close()

	client, err := NewLlamaParseClient(LlamaParseConfig{BaseURL: server.URL, APIKey: "bad"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := client.Extract(context.Background(), writeTempPDF(t, "report.pdf")); err == nil {
		t.Error("Extract() should fail on rejected upload")
	}
}

func TestLlamaParseClient_Extract_Timeout(t *testing.T) {
	server := fakeLlamaParse(t, 1<<20, jobStatusSuccess, nil)
	defer server.Close()

	client, err := NewLlamaParseClient(LlamaParseConfig{
		BaseURL:      server.URL,
		APIKey:       "llx-test",
		PollInterval: 5 * time.Millisecond,
		Timeout:      50 * time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := client.Extract(context.Background(), writeTempPDF(t, "report.pdf")); err == nil {
		t.Error("Extract() should fail when the job never finishes")
	}
}

func TestNewLlamaParseClient_RequiresKey(t *testing.T) {
	if _, err := NewLlamaParseClient(LlamaParseConfig{BaseURL: "http://x"}, nil); err == nil {
		t.Error("NewLlamaParseClient() without API key should fail")
	}
}
