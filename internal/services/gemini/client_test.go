package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body map[string]any)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		handler(w, r, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeCandidate(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	payload := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
			},
		},
		"usageMetadata": map[string]any{
			"promptTokenCount":     200,
			"candidatesTokenCount": 40,
			"thoughtsTokenCount":   10,
			"totalTokenCount":      250,
		},
		"modelVersion": "gemini-test-001",
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestGenerateSendsConfigAndReadsUsage(t *testing.T) {
	var path string
	var captured map[string]any
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		path = r.URL.Path
		captured = body
		writeCandidate(t, w, "1.0; 2.0; A; hi")
	})

	client, err := NewClient(context.Background(), Config{APIKey: "test", BaseURL: server.URL, Model: "primary-model"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	resp, err := client.Generate(context.Background(), Request{
		SystemPrompt:    "system",
		UserPrompt:      "user",
		MaxOutputTokens: 1500,
		ThinkingBudget:  20000,
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !strings.HasSuffix(path, "/models/primary-model:generateContent") {
		t.Fatalf("unexpected request path %q", path)
	}
	if resp.Content != "1.0; 2.0; A; hi" {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if resp.Model != "gemini-test-001" {
		t.Fatalf("expected model version, got %q", resp.Model)
	}
	if resp.Usage.PromptTokens != 200 || resp.Usage.CandidateTokens != 40 || resp.Usage.TotalTokens != 250 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
	genCfg, ok := captured["generationConfig"].(map[string]any)
	if !ok {
		t.Fatalf("expected generationConfig in request, got %v", captured)
	}
	if genCfg["maxOutputTokens"] != float64(1500) {
		t.Fatalf("expected maxOutputTokens 1500, got %v", genCfg["maxOutputTokens"])
	}
	thinking, ok := genCfg["thinkingConfig"].(map[string]any)
	if !ok || thinking["thinkingBudget"] != float64(20000) {
		t.Fatalf("expected thinking budget, got %v", genCfg["thinkingConfig"])
	}
	if _, ok := captured["systemInstruction"]; !ok {
		t.Fatal("expected systemInstruction in request")
	}
}

func TestGenerateRequestsJSONMimeType(t *testing.T) {
	var captured map[string]any
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		captured = body
		writeCandidate(t, w, "[]")
	})

	client, err := NewClient(context.Background(), Config{APIKey: "test", BaseURL: server.URL, Model: "m"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := client.Generate(context.Background(), Request{UserPrompt: "x", JSON: true}); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	genCfg := captured["generationConfig"].(map[string]any)
	if genCfg["responseMimeType"] != "application/json" {
		t.Fatalf("expected JSON mime type, got %v", genCfg["responseMimeType"])
	}
}

func TestGenerateInlineImage(t *testing.T) {
	var captured map[string]any
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		captured = body
		writeCandidate(t, w, "A : line")
	})

	client, err := NewClient(context.Background(), Config{APIKey: "test", BaseURL: server.URL, Model: "m"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := client.Generate(context.Background(), Request{UserPrompt: "extract", Images: []Image{{Data: []byte("png")}}}); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	contents := captured["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected text and image parts, got %v", parts)
	}
	inline, ok := parts[1].(map[string]any)["inlineData"].(map[string]any)
	if !ok || inline["mimeType"] != "image/png" {
		t.Fatalf("expected inline PNG part, got %v", parts[1])
	}
}

func TestGenerateSingleAttemptOnServerError(t *testing.T) {
	var calls int
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`))
	})

	client, err := NewClient(context.Background(), Config{APIKey: "test", BaseURL: server.URL, Model: "m"}, WithRetryMaxAttempts(1))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := client.Generate(context.Background(), Request{UserPrompt: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls int
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"boom","status":"INTERNAL"}}`))
			return
		}
		writeCandidate(t, w, "ok")
	})

	var slept int
	client, err := NewClient(
		context.Background(),
		Config{APIKey: "test", BaseURL: server.URL, Model: "m"},
		WithSleeper(func(time.Duration) { slept++ }),
	)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := client.Generate(context.Background(), Request{UserPrompt: "x"}); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if calls != 3 || slept != 2 {
		t.Fatalf("expected 3 calls and 2 sleeps, got %d/%d", calls, slept)
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(context.Background(), Config{Model: "m"}); err == nil {
		t.Fatal("expected error without api key")
	}
}
