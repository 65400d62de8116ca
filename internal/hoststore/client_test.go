package hoststore_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"gantry/internal/anonymize"
	"gantry/internal/artifact"
	"gantry/internal/config"
	"gantry/internal/hoststore"
	"gantry/internal/services"
)

func newClient(t *testing.T, baseURL string) *hoststore.Client {
	t.Helper()
	client, err := hoststore.New(config.HostStore{URL: baseURL, Token: "store-token"})
	if err != nil {
		t.Fatalf("hoststore.New: %v", err)
	}
	return client
}

func testBundle(t *testing.T) *artifact.Bundle {
	t.Helper()
	slice := anonymize.Slice{
		Source:   "IM0001.dcm",
		Rows:     2,
		Cols:     2,
		Data:     []int{0, 10, 20, 30},
		Metadata: map[string]string{"Modality": "MR"},
	}
	bundle, err := artifact.Package([]anonymize.Slice{slice}, artifact.Provenance{
		ItemID:    "item-1",
		RunID:     "run-1",
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("artifact.Package: %v", err)
	}
	return bundle
}

func TestFetchItemDownloadsContainer(t *testing.T) {
	const payload = "not-really-a-zip"
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/v1/item/item-1/download" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, payload)
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	localPath, err := client.FetchItem(context.Background(), "item-1", t.TempDir())
	if err != nil {
		t.Fatalf("FetchItem failed: %v", err)
	}
	if auth != "Bearer store-token" {
		t.Fatalf("unexpected auth header %q", auth)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != payload {
		t.Fatalf("unexpected download content %q", data)
	}
}

func TestUploadBundleWritesImagesAndManifest(t *testing.T) {
	type upload struct {
		name  string
		runID string
		ctype string
		size  int
	}
	var uploads []upload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/v1/item/item-1/files") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		uploads = append(uploads, upload{
			name:  r.URL.Query().Get("name"),
			runID: r.URL.Query().Get("run_id"),
			ctype: r.Header.Get("Content-Type"),
			size:  len(body),
		})
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	if err := client.UploadBundle(context.Background(), "item-1", testBundle(t)); err != nil {
		t.Fatalf("UploadBundle failed: %v", err)
	}

	if len(uploads) != 2 {
		t.Fatalf("expected 2 uploads (image + manifest), got %d", len(uploads))
	}
	if uploads[0].name != "slice_000.png" || uploads[0].ctype != "image/png" {
		t.Fatalf("unexpected first upload %+v", uploads[0])
	}
	if uploads[1].name != "manifest.json" || uploads[1].ctype != "application/json" {
		t.Fatalf("unexpected second upload %+v", uploads[1])
	}
	for _, u := range uploads {
		if u.runID != "run-1" {
			t.Fatalf("upload %s missing run tag: %+v", u.name, u)
		}
		if u.size == 0 {
			t.Fatalf("upload %s had empty body", u.name)
		}
	}
}

func TestSetMetadataMergesOntoItem(t *testing.T) {
	var method, path, body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	err := client.SetMetadata(context.Background(), "item-1", map[string]any{
		"triage_status": "succeeded",
		"triage_run_id": "run-1",
	})
	if err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}
	if method != http.MethodPut || path != "/api/v1/item/item-1/metadata" {
		t.Fatalf("unexpected request %s %s", method, path)
	}
	if !strings.Contains(body, "triage_run_id") {
		t.Fatalf("metadata payload missing fields: %s", body)
	}
}

func TestClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/item/missing/download":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	client := newClient(t, server.URL)

	_, err := client.FetchItem(context.Background(), "missing", t.TempDir())
	if !errors.Is(err, services.ErrRejected) {
		t.Fatalf("expected rejected for 404, got %v", err)
	}

	err = client.SetMetadata(context.Background(), "item-1", map[string]any{"k": "v"})
	if !services.Retryable(err) {
		t.Fatalf("expected transient for 503, got %v", err)
	}
}

func TestUploadRejectsEmptyBundle(t *testing.T) {
	client := newClient(t, "http://127.0.0.1:0")
	err := client.UploadBundle(context.Background(), "item-1", &artifact.Bundle{})
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}
