package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultOpenAITextModel  = "gpt-4o-mini"
	defaultOpenAIImageModel = "gpt-image-1"
)

// OpenAIProvider implements Provider and ImageProvider for OpenAI and
// OpenAI-compatible APIs via a configurable base URL.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	client     *http.Client
	name       string
	textModel  string
	imageModel string
	models     []ModelInfo
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithBaseURL sets the base URL for the OpenAI-compatible API.
func WithBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.client = client
	}
}

// WithModels sets the available models for this provider.
func WithModels(models []ModelInfo) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.models = models
	}
}

// WithTextModel sets the default completion model.
func WithTextModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.textModel = model
		}
	}
}

// WithProviderName sets the provider name used in errors.
func WithProviderName(name string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.name = name
	}
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:     apiKey,
		baseURL:    defaultOpenAIBaseURL,
		client:     http.DefaultClient,
		name:       "openai",
		textModel:  defaultOpenAITextModel,
		imageModel: defaultOpenAIImageModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// openaiRequest is the request body for the OpenAI chat completions API.
type openaiRequest struct {
	Model          string                `json:"model"`
	Messages       []openaiMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Temperature    *float64              `json:"temperature,omitempty"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openaiJSONSchema `json:"json_schema,omitempty"`
}

type openaiJSONSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
}

type openaiChoice struct {
	Message openaiMessage `json:"message"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// openaiResponse is the response from the OpenAI chat completions API.
type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Model   string         `json:"model"`
	Usage   openaiUsage    `json:"usage"`
}

type openaiImageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size,omitempty"`
}

type openaiImageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.textModel
	}

	messages := make([]openaiMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, openaiMessage(m))
	}

	oaiReq := openaiRequest{
		Model:    model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		oaiReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		oaiReq.Temperature = &temp
	}
	if req.JSONSchema != nil {
		oaiReq.ResponseFormat = &openaiResponseFormat{
			Type:       "json_schema",
			JSONSchema: &openaiJSONSchema{Name: req.Task.String(), Schema: req.JSONSchema},
		}
	}

	var oaiResp openaiResponse
	if err := p.post(ctx, "/chat/completions", oaiReq, &oaiResp); err != nil {
		return CompletionResponse{}, err
	}

	if len(oaiResp.Choices) == 0 {
		return CompletionResponse{}, fmt.Errorf("no choices in response")
	}

	return CompletionResponse{
		Content:      oaiResp.Choices[0].Message.Content,
		Model:        oaiResp.Model,
		InputTokens:  oaiResp.Usage.PromptTokens,
		OutputTokens: oaiResp.Usage.CompletionTokens,
	}, nil
}

func (p *OpenAIProvider) GenerateImage(ctx context.Context, req ImageRequest) (ImageResponse, error) {
	model := req.Model
	if model == "" {
		model = p.imageModel
	}
	n := req.Count
	if n <= 0 {
		n = 1
	}

	var imgResp openaiImageResponse
	if err := p.post(ctx, "/images/generations", openaiImageRequest{
		Model:  model,
		Prompt: req.Prompt,
		N:      n,
		Size:   "1024x1024",
	}, &imgResp); err != nil {
		return ImageResponse{}, err
	}

	out := ImageResponse{Model: model}
	for _, d := range imgResp.Data {
		if d.B64JSON == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return ImageResponse{}, fmt.Errorf("decode image: %w", err)
		}
		out.Images = append(out.Images, Image{Data: data, MIMEType: "image/png"})
	}
	return out, nil
}

func (p *OpenAIProvider) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s api error (status %d): %s", p.name, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func (p *OpenAIProvider) Models() []ModelInfo {
	if p.models != nil {
		return p.models
	}
	return []ModelInfo{
		{ID: p.textModel, Name: "OpenAI text", MaxTokens: 128000, Description: "Structured course generation"},
		{ID: p.imageModel, Name: "OpenAI image", Description: "Avatar image generation"},
	}
}

func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}
