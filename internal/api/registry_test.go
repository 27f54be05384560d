package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

type stubEndpoint struct {
	method, path, use, group string
	requiresInit             bool
	noCommand                bool
}

func (e *stubEndpoint) Route() (string, string, http.HandlerFunc) {
	return e.method, e.path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (e *stubEndpoint) RequiresInit() bool { return e.requiresInit }

func (e *stubEndpoint) Command(func() string) *cobra.Command {
	if e.noCommand {
		return nil
	}
	return &cobra.Command{Use: e.use}
}

type groupedStub struct{ stubEndpoint }

func (e *groupedStub) Group() string { return e.group }

func TestRegistry_BuildCommands(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubEndpoint{method: "GET", path: "/health", use: "health"})
	r.Register(&groupedStub{stubEndpoint{method: "GET", path: "/api/cache/{hash}", use: "get", group: "cache"}})
	r.Register(&groupedStub{stubEndpoint{method: "GET", path: "/api/prompts", use: "list", group: "prompts"}})
	r.Register(&groupedStub{stubEndpoint{method: "GET", path: "/api/prompts/{key}", use: "show", group: "prompts"}})
	r.Register(&stubEndpoint{method: "GET", path: "/swagger", noCommand: true})

	root := r.BuildCommands(func() string { return "http://localhost" })

	names := make(map[string]*cobra.Command)
	for _, c := range root.Commands() {
		names[c.Name()] = c
	}
	if len(names) != 3 {
		t.Fatalf("top-level commands = %v, want health, cache, prompts", names)
	}
	if c := names["prompts"]; c == nil || len(c.Commands()) != 2 {
		t.Errorf("prompts group = %v", c)
	}
	if c := names["cache"]; c == nil || len(c.Commands()) != 1 {
		t.Errorf("cache group = %v", c)
	}
}

func TestRegistry_RegisterRoutes(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubEndpoint{method: "GET", path: "/open"})
	r.Register(&stubEndpoint{method: "POST", path: "/gated", requiresInit: true})

	gate := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}
	mux := http.NewServeMux()
	r.RegisterRoutes(mux, gate)

	tests := []struct {
		method, path string
		want         int
	}{
		{"GET", "/open", http.StatusNoContent},
		{"POST", "/gated", http.StatusServiceUnavailable},
		{"GET", "/gated", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}
}

func TestOutputTo(t *testing.T) {
	data := map[string]any{"status": "online"}

	var buf bytes.Buffer
	if err := OutputTo(&buf, OutputFormatJSON, data); err != nil {
		t.Fatalf("OutputTo(json) error = %v", err)
	}
	if !strings.Contains(buf.String(), `"status": "online"`) {
		t.Errorf("json output = %q", buf.String())
	}

	buf.Reset()
	if err := OutputTo(&buf, OutputFormatYAML, data); err != nil {
		t.Fatalf("OutputTo(yaml) error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "status: online" {
		t.Errorf("yaml output = %q", buf.String())
	}

	buf.Reset()
	if err := OutputTo(&buf, OutputFormatText, "# Title"); err != nil {
		t.Fatalf("OutputTo(text) error = %v", err)
	}
	if buf.String() != "# Title\n" {
		t.Errorf("text output = %q", buf.String())
	}
}

func TestSetOutputFormat(t *testing.T) {
	defer SetOutputFormat("")

	if err := SetOutputFormat("json"); err != nil {
		t.Fatalf("SetOutputFormat(json) error = %v", err)
	}
	if GetOutputFormat() != OutputFormatJSON {
		t.Errorf("GetOutputFormat() = %q", GetOutputFormat())
	}
	if err := SetOutputFormat("xml"); err == nil {
		t.Error("SetOutputFormat(xml) error = nil")
	}
}
