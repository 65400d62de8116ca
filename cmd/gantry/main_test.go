package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTriggerCommandStarted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/triage/item-1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "started",
			"run_id": "run-1",
		})
	}))
	defer server.Close()

	out, err := executeCommand(t, "trigger", "item-1", "--api", server.URL)
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if !strings.Contains(out, "Run run-1 started for item item-1") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestTriggerCommandAlreadyDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "already_processed",
			"run_id":  "run-1",
			"warning": "item already processed; use force to re-run",
		})
	}))
	defer server.Close()

	out, err := executeCommand(t, "trigger", "item-1", "--api", server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "already processed") || !strings.Contains(out, "--force") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestTriggerForceQueryParameter(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "started", "run_id": "run-2"})
	}))
	defer server.Close()

	if _, err := executeCommand(t, "trigger", "item-1", "--force", "--api", server.URL); err != nil {
		t.Fatal(err)
	}
	if query != "force=1" {
		t.Fatalf("expected force=1 query, got %q", query)
	}
}

func TestStatusCommandJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status/run-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"run_id":   "run-1",
			"item_id":  "item-1",
			"status":   "running",
			"progress": map[string]any{"percent": 50.0, "label": "classify"},
		})
	}))
	defer server.Close()

	out, err := executeCommand(t, "status", "run-1", "--json", "--api", server.URL)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if decoded["status"] != "running" {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestRunsCommandPlainOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"runs": []map[string]any{
				{
					"run_id":   "run-1",
					"item_id":  "item-1",
					"status":   "succeeded",
					"progress": map[string]any{"percent": 100.0},
				},
			},
		})
	}))
	defer server.Close()

	out, err := executeCommand(t, "runs", "--api", server.URL)
	if err != nil {
		t.Fatal(err)
	}
	// Captured output is not a TTY, so rows come out tab-separated.
	if !strings.Contains(out, "run-1\titem-1\tsucceeded\t100%") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRunsCommandEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"runs": []any{}})
	}))
	defer server.Close()

	out, err := executeCommand(t, "runs", "--api", server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No runs recorded") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestDaemonErrorSurfacesMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "run not found"})
	}))
	defer server.Close()

	_, err := executeCommand(t, "status", "missing", "--api", server.URL)
	if err == nil || !strings.Contains(err.Error(), "run not found") {
		t.Fatalf("expected daemon error message, got %v", err)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := executeCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected output %q", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[orchestrator]") {
		t.Fatal("sample config missing orchestrator section")
	}

	// A second init without --overwrite refuses to clobber the file.
	if _, err := executeCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error for existing config without --overwrite")
	}
}
