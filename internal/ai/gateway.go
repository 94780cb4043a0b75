// Package ai provides a provider-agnostic gateway for structured text and
// image generation.
package ai

import "context"

// TaskType defines the kind of AI task for routing and metrics.
type TaskType int

const (
	TaskCourse TaskType = iota
	TaskAvatar
)

func (t TaskType) String() string {
	switch t {
	case TaskCourse:
		return "course"
	case TaskAvatar:
		return "avatar"
	default:
		return "unknown"
	}
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Task        TaskType  `json:"task,omitempty"`
	// JSONSchema, when set, requests a JSON response conforming to this
	// JSON Schema document.
	JSONSchema map[string]any `json:"json_schema,omitempty"`
}

// CompletionResponse is the output from an AI completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// ImageRequest is the input to an image generation.
type ImageRequest struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model,omitempty"`
	Count       int    `json:"count,omitempty"`
	MIMEType    string `json:"mime_type,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

// Image is a generated image payload.
type Image struct {
	Data     []byte
	MIMEType string
}

// ImageResponse is the output from an image generation.
type ImageResponse struct {
	Images []Image
	Model  string
}

// ModelInfo describes an available model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxTokens   int    `json:"max_tokens"`
	Description string `json:"description"`
}

// Provider is the interface all AI providers must implement.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	Models() []ModelInfo
	HealthCheck(ctx context.Context) error
}

// ImageProvider is implemented by providers that can generate images.
type ImageProvider interface {
	GenerateImage(ctx context.Context, req ImageRequest) (ImageResponse, error)
}
