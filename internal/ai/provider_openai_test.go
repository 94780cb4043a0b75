package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type: %s", r.Header.Get("Content-Type"))
		}

		var req openaiRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Model != "gpt-4o" {
			t.Errorf("model = %q, want %q", req.Model, "gpt-4o")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "hello" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_schema" {
			t.Errorf("response_format = %+v, want json_schema", req.ResponseFormat)
		} else if req.ResponseFormat.JSONSchema.Name != "course" {
			t.Errorf("schema name = %q, want course", req.ResponseFormat.JSONSchema.Name)
		}

		json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{{Message: openaiMessage{Role: "assistant", Content: "Hi there!"}}},
			Model:   "gpt-4o",
			Usage:   openaiUsage{PromptTokens: 10, CompletionTokens: 5},
		})
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-key", WithBaseURL(server.URL))

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		System:     "sys",
		Messages:   []Message{{Role: "user", Content: "hello"}},
		Model:      "gpt-4o",
		Task:       TaskCourse,
		JSONSchema: map[string]any{"type": "object"},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Hi there!" {
		t.Errorf("content = %q, want %q", resp.Content, "Hi there!")
	}
	if resp.InputTokens != 10 {
		t.Errorf("input_tokens = %d, want 10", resp.InputTokens)
	}
	if resp.OutputTokens != 5 {
		t.Errorf("output_tokens = %d, want 5", resp.OutputTokens)
	}
}

func TestOpenAIProvider_Complete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-key", WithBaseURL(server.URL))

	_, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})

	if err == nil {
		t.Fatal("Complete() should return error on API error")
	}
}

func TestOpenAIProvider_Complete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openaiResponse{Choices: nil})
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-key", WithBaseURL(server.URL))

	_, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})

	if err == nil {
		t.Fatal("Complete() should return error when no choices")
	}
}

func TestOpenAIProvider_DefaultModel(t *testing.T) {
	var receivedModel string
	var hadFormat bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		json.NewDecoder(r.Body).Decode(&req)
		receivedModel = req.Model
		hadFormat = req.ResponseFormat != nil

		json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{{Message: openaiMessage{Content: "ok"}}},
			Model:   req.Model,
		})
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-key", WithBaseURL(server.URL))

	_, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if receivedModel != "gpt-4o-mini" {
		t.Errorf("default model = %q, want %q", receivedModel, "gpt-4o-mini")
	}
	if hadFormat {
		t.Error("response_format sent without a schema")
	}
}

func TestOpenAIProvider_GenerateImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req openaiImageRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.N != 1 || req.Model != "gpt-image-1" {
			t.Errorf("request = %+v", req)
		}
		w.Write([]byte(`{"data":[{"b64_json":"` + base64.StdEncoding.EncodeToString(png) + `"}]}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-key", WithBaseURL(server.URL))

	resp, err := provider.GenerateImage(context.Background(), ImageRequest{Prompt: "avatar"})
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if len(resp.Images) != 1 || string(resp.Images[0].Data) != string(png) {
		t.Errorf("images = %+v", resp.Images)
	}
}

func TestOpenAIProvider_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{"healthy", http.StatusOK, false},
		{"unhealthy", http.StatusUnauthorized, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/models" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			provider := NewOpenAIProvider("test-key", WithBaseURL(server.URL))
			err := provider.HealthCheck(context.Background())

			if (err != nil) != tt.wantErr {
				t.Errorf("HealthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpenAIProvider_CustomModels(t *testing.T) {
	custom := []ModelInfo{{ID: "custom-model", Name: "Custom"}}
	provider := NewOpenAIProvider("test-key", WithModels(custom))
	models := provider.Models()

	if len(models) != 1 || models[0].ID != "custom-model" {
		t.Errorf("Models() = %+v, want custom models", models)
	}
}
