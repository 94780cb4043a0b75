package ai_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/finedu/internal/ai"
)

func TestRouter_SingleProvider(t *testing.T) {
	router := ai.NewRouter()
	mock := ai.NewMockProvider("Hello!")
	router.Register("google", mock)

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Hello!" {
		t.Errorf("Content = %q, want %q", resp.Content, "Hello!")
	}
}

func TestRouter_Fallback(t *testing.T) {
	router := ai.NewRouter()

	failing := &ai.MockProvider{Err: errors.New("rate limited")}
	fallback := ai.NewMockProvider("Fallback response")

	router.Register("google", failing)
	router.Register("openai", fallback)

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Fallback response" {
		t.Errorf("Content = %q, want %q", resp.Content, "Fallback response")
	}
}

func TestRouter_AllProvidersFail(t *testing.T) {
	router := ai.NewRouter()
	limit := errors.New("rate limited")
	router.Register("google", &ai.MockProvider{Err: limit})
	router.Register("openai", &ai.MockProvider{Err: errors.New("down")})

	_, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err == nil {
		t.Fatal("Complete() should return error when all providers fail")
	}
	if !errors.Is(err, limit) {
		t.Errorf("error %v should wrap the provider error", err)
	}
}

func TestRouter_NoProviders(t *testing.T) {
	router := ai.NewRouter()

	if router.HasProvider() {
		t.Error("HasProvider() should be false with no providers")
	}

	_, err := router.Complete(context.Background(), ai.CompletionRequest{})
	if !errors.Is(err, ai.ErrNoProvider) {
		t.Errorf("Complete() error = %v, want ErrNoProvider", err)
	}
	if err := router.HealthCheck(context.Background()); !errors.Is(err, ai.ErrNoProvider) {
		t.Errorf("HealthCheck() error = %v, want ErrNoProvider", err)
	}
}

func TestRouter_RegisterSameNameReplaces(t *testing.T) {
	router := ai.NewRouter()
	first := ai.NewMockProvider("first")
	second := ai.NewMockProvider("second")
	router.Register("google", first)
	router.Register("google", second)

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "second" {
		t.Errorf("Content = %q, want second", resp.Content)
	}
	if first.Calls() != 0 {
		t.Errorf("replaced provider was called %d times", first.Calls())
	}
}

// textOnly hides the mock's image capability.
type textOnly struct{ ai.Provider }

func TestRouter_GenerateImage(t *testing.T) {
	router := ai.NewRouter()
	router.Register("text", textOnly{ai.NewMockProvider("x")})

	if router.HasImageProvider() {
		t.Error("HasImageProvider() should be false for text-only providers")
	}
	if _, err := router.GenerateImage(context.Background(), ai.ImageRequest{Prompt: "p"}); !errors.Is(err, ai.ErrNoProvider) {
		t.Errorf("GenerateImage() error = %v, want ErrNoProvider", err)
	}

	failing := &ai.MockProvider{ImageErr: errors.New("blocked")}
	working := &ai.MockProvider{ImageData: []byte("png")}
	router.Register("google", failing)
	router.Register("openai", working)

	resp, err := router.GenerateImage(context.Background(), ai.ImageRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if len(resp.Images) != 1 || string(resp.Images[0].Data) != "png" {
		t.Errorf("Images = %+v", resp.Images)
	}
	if working.LastImage == nil || working.LastImage.Prompt != "p" {
		t.Errorf("LastImage = %+v", working.LastImage)
	}
}

func TestRouter_HealthCheck(t *testing.T) {
	router := ai.NewRouter()
	router.Register("down", &ai.MockProvider{Err: errors.New("down")})
	router.Register("up", ai.NewMockProvider("ok"))

	if err := router.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}
}
