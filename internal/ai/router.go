package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNoProvider is returned when no registered provider can serve a request.
var ErrNoProvider = errors.New("no AI provider available")

// Router tries registered providers in registration order.
type Router struct {
	providers map[string]Provider
	fallback  []string // ordered fallback chain
	mu        sync.RWMutex
}

// NewRouter creates a new AI router.
func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the router.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		r.fallback = append(r.fallback, name)
	}
	r.providers[name] = provider
}

// Complete routes a request to the first provider that succeeds.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, name := range r.fallback {
		provider := r.providers[name]

		resp, err := provider.Complete(ctx, req)
		if err != nil {
			slog.Warn("AI provider failed, trying next",
				"provider", name,
				"task", req.Task.String(),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}

		slog.Debug("AI request completed",
			"provider", name,
			"task", req.Task.String(),
			"model", resp.Model,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		return resp, nil
	}

	if len(errs) == 0 {
		return CompletionResponse{}, ErrNoProvider
	}
	return CompletionResponse{}, fmt.Errorf("all AI providers failed: %w", errors.Join(errs...))
}

// GenerateImage routes an image request to the first image-capable provider
// that succeeds.
func (r *Router) GenerateImage(ctx context.Context, req ImageRequest) (ImageResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, name := range r.fallback {
		ip, ok := r.providers[name].(ImageProvider)
		if !ok {
			continue
		}

		resp, err := ip.GenerateImage(ctx, req)
		if err != nil {
			slog.Warn("AI image provider failed, trying next", "provider", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}

		slog.Debug("AI image generated", "provider", name, "model", resp.Model, "images", len(resp.Images))
		return resp, nil
	}

	if len(errs) == 0 {
		return ImageResponse{}, ErrNoProvider
	}
	return ImageResponse{}, fmt.Errorf("all AI image providers failed: %w", errors.Join(errs...))
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}

// HasImageProvider returns true if a registered provider can generate images.
func (r *Router) HasImageProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.providers {
		if _, ok := p.(ImageProvider); ok {
			return true
		}
	}
	return false
}

// HealthCheck succeeds if any registered provider is healthy.
func (r *Router) HealthCheck(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, name := range r.fallback {
		if err := r.providers[name].HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		return nil
	}
	if len(errs) == 0 {
		return ErrNoProvider
	}
	return errors.Join(errs...)
}
