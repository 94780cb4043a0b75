package ai

import (
	"context"
	"sync"
)

// MockProvider is a test double for AI providers.
type MockProvider struct {
	Response    string
	Err         error
	ImageData   []byte // returned by GenerateImage; nil means zero images
	ImageErr    error
	LastRequest *CompletionRequest // captures the last request for inspection
	LastImage   *ImageRequest

	mu    sync.Mutex
	calls int
}

// NewMockProvider creates a MockProvider that returns the given response.
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{Response: response}
}

func (m *MockProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	m.calls++
	m.LastRequest = &req
	m.mu.Unlock()

	if m.Err != nil {
		return CompletionResponse{}, m.Err
	}
	return CompletionResponse{
		Content:      m.Response,
		Model:        "mock",
		InputTokens:  10,
		OutputTokens: len(m.Response),
	}, nil
}

func (m *MockProvider) GenerateImage(_ context.Context, req ImageRequest) (ImageResponse, error) {
	m.mu.Lock()
	m.calls++
	m.LastImage = &req
	m.mu.Unlock()

	if m.ImageErr != nil {
		return ImageResponse{}, m.ImageErr
	}
	resp := ImageResponse{Model: "mock-image"}
	if m.ImageData != nil {
		resp.Images = []Image{{Data: m.ImageData, MIMEType: "image/png"}}
	}
	return resp, nil
}

// Calls returns how many requests the mock has served.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "mock", Name: "Mock Model", MaxTokens: 4096, Description: "Test mock"},
	}
}

func (m *MockProvider) HealthCheck(_ context.Context) error {
	return m.Err
}
