package providers

import (
	"encoding/json"
	"testing"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n```json{\"a\":1}```  \n", `{"a":1}`},
		{"leading fence only", "```json\n{\"a\":1}", `{"a":1}`},
		{"trailing fence only", "{\"a\":1}\n```", `{"a":1}`},
		{"prose is kept", "Here you go: {\"a\":1}", `Here you go: {"a":1}`},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.in); got != tt.want {
				t.Errorf("StripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidator(t *testing.T) {
	schema := json.RawMessage(`{
		"name": "result",
		"schema": {
			"type": "object",
			"properties": {"formattedContent": {"type": "string"}},
			"required": ["formattedContent"]
		}
	}`)

	v, err := NewValidator(schema)
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}

	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"valid", `{"formattedContent":"<p>x</p>"}`, false},
		{"missing field", `{"summary":"x"}`, true},
		{"wrong type", `{"formattedContent":42}`, true},
		{"not an object", `["a"]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc any
			if err := json.Unmarshal([]byte(tt.doc), &doc); err != nil {
				t.Fatalf("bad fixture: %v", err)
			}
			err := v.Validate(doc)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewValidator(json.RawMessage(`{not json`)); err == nil {
		t.Error("expected error for malformed schema")
	}
}

func TestMockClient(t *testing.T) {
	m := NewMockClient()
	m.Respond = func(req *ChatRequest) (string, error) {
		return "echo:" + req.Messages[len(req.Messages)-1].Content, nil
	}

	res, err := m.Chat(t.Context(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if res.Content != "echo:hi" {
		t.Errorf("Content = %q", res.Content)
	}
	if m.RequestCount() != 1 || m.LastRequest().Messages[0].Content != "hi" {
		t.Error("request not recorded")
	}

	m.ShouldFail = true
	if _, err := m.Chat(t.Context(), &ChatRequest{}); err == nil {
		t.Error("expected failure")
	}

	m.Reset()
	if m.RequestCount() != 0 || m.LastRequest() != nil {
		t.Error("Reset() did not clear state")
	}
}
