package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestClient_GetAndErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte(`{"status":"online"}`))
		case "/bad":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"success":false,"error":"Document content is required"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream down"))
		}
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	ctx := context.Background()

	var out struct{ Status string }
	if err := c.Get(ctx, "/ok", &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if out.Status != "online" {
		t.Errorf("Status = %q", out.Status)
	}

	var se *StatusError
	err := c.Get(ctx, "/bad", nil)
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest || se.Message != "Document content is required" {
		t.Errorf("Get(/bad) error = %v", err)
	}
	err = c.Get(ctx, "/other", nil)
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway || se.Message != "upstream down" {
		t.Errorf("Get(/other) error = %v", err)
	}
}

func TestClient_PostMultipartAndGetRaw(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Disposition", `attachment; filename="report_formatted.docx"`)
			w.Write([]byte("PK"))
			return
		}
		f, fh, err := r.FormFile("document")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if string(data) != "<p>hi</p>" || fh.Filename != "report.html" || r.FormValue("toc_enabled") != "true" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, ok := r.MultipartForm.Value["instructions"]; ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"success":true}`))
	}))
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "report.html")
	if err := os.WriteFile(path, []byte("<p>hi</p>"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewClient(ts.URL)
	var out struct{ Success bool }
	err := c.PostMultipart(context.Background(), "/upload",
		map[string]string{"toc_enabled": "true", "instructions": ""},
		[]UploadFile{{Field: "document", Path: path}}, &out)
	if err != nil {
		t.Fatalf("PostMultipart() error = %v", err)
	}
	if !out.Success {
		t.Error("Success = false")
	}

	data, name, err := c.GetRaw(context.Background(), "/file")
	if err != nil {
		t.Fatalf("GetRaw() error = %v", err)
	}
	if string(data) != "PK" || name != "report_formatted.docx" {
		t.Errorf("GetRaw() = %q, %q", data, name)
	}
}
