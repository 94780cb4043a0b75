package ai

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

const (
	defaultGeminiTextModel  = "gemini-2.5-flash"
	defaultGeminiImageModel = "imagen-4.0-generate-001"
)

// GoogleProvider implements Provider and ImageProvider for Google Gemini and
// Imagen through the genai SDK.
type GoogleProvider struct {
	client     *genai.Client
	textModel  string
	imageModel string
}

type googleConfig struct {
	baseURL    string
	httpClient *http.Client
	textModel  string
	imageModel string
}

// GoogleOption configures a GoogleProvider.
type GoogleOption func(*googleConfig)

// WithGoogleBaseURL sets the base URL (for testing).
func WithGoogleBaseURL(url string) GoogleOption {
	return func(c *googleConfig) {
		c.baseURL = url
	}
}

// WithGoogleHTTPClient sets a custom HTTP client.
func WithGoogleHTTPClient(client *http.Client) GoogleOption {
	return func(c *googleConfig) {
		c.httpClient = client
	}
}

// WithGoogleTextModel sets the default model for completions.
func WithGoogleTextModel(model string) GoogleOption {
	return func(c *googleConfig) {
		if model != "" {
			c.textModel = model
		}
	}
}

// WithGoogleImageModel sets the default model for image generation.
func WithGoogleImageModel(model string) GoogleOption {
	return func(c *googleConfig) {
		if model != "" {
			c.imageModel = model
		}
	}
}

// NewGoogleProvider creates a Gemini API provider.
func NewGoogleProvider(ctx context.Context, apiKey string, opts ...GoogleOption) (*GoogleProvider, error) {
	cfg := googleConfig{
		textModel:  defaultGeminiTextModel,
		imageModel: defaultGeminiImageModel,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.httpClient,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GoogleProvider{
		client:     client,
		textModel:  cfg.textModel,
		imageModel: cfg.imageModel,
	}, nil
}

func (p *GoogleProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.textModel
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" || m.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.JSONSchema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseJsonSchema = req.JSONSchema
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return CompletionResponse{}, fmt.Errorf("no content in gemini response")
	}

	out := CompletionResponse{
		Content: text,
		Model:   model,
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func (p *GoogleProvider) GenerateImage(ctx context.Context, req ImageRequest) (ImageResponse, error) {
	model := req.Model
	if model == "" {
		model = p.imageModel
	}
	count := req.Count
	if count <= 0 {
		count = 1
	}
	mime := req.MIMEType
	if mime == "" {
		mime = "image/png"
	}

	resp, err := p.client.Models.GenerateImages(ctx, model, req.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: int32(count),
		OutputMIMEType: mime,
		AspectRatio:    req.AspectRatio,
	})
	if err != nil {
		return ImageResponse{}, fmt.Errorf("imagen generate images: %w", err)
	}

	out := ImageResponse{Model: model}
	for _, gi := range resp.GeneratedImages {
		if gi == nil || gi.Image == nil || len(gi.Image.ImageBytes) == 0 {
			continue
		}
		m := gi.Image.MIMEType
		if m == "" {
			m = mime
		}
		out.Images = append(out.Images, Image{Data: gi.Image.ImageBytes, MIMEType: m})
	}
	return out, nil
}

func (p *GoogleProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: p.textModel, Name: "Gemini", MaxTokens: 1000000, Description: "Structured course generation"},
		{ID: p.imageModel, Name: "Imagen", Description: "Avatar image generation"},
	}
}

func (p *GoogleProvider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.Models.Get(ctx, p.textModel, nil); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
