package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/p-n-ai/finedu/internal/ai"
)

// ErrNoImage is returned when the provider answers with zero images.
var ErrNoImage = errors.New("no image was generated")

// AvatarFailureMessage is shown to the user when avatar generation fails.
const AvatarFailureMessage = "Failed to generate avatar. Please check your prompt and try again."

const avatarPromptTemplate = "Um avatar fofo e estilizado para um app de finanças, representando: %s. Estilo de ícone de aplicativo, minimalista, fundo de cor sólida."

// Imager is the image side of the ai gateway.
type Imager interface {
	GenerateImage(ctx context.Context, req ai.ImageRequest) (ai.ImageResponse, error)
}

// AvatarGenerator produces square PNG avatars from a short description.
type AvatarGenerator struct {
	imager Imager
	model  string
	cb     *gobreaker.CircuitBreaker
}

// NewAvatarGenerator creates an avatar generator over imager.
func NewAvatarGenerator(imager Imager, opts ...Option) *AvatarGenerator {
	o := buildOptions("avatar-generator", opts)
	return &AvatarGenerator{
		imager: imager,
		model:  o.model,
		cb:     newBreaker(o.breaker, o.logger),
	}
}

// AvatarPrompt wraps a user description in the fixed avatar style.
func AvatarPrompt(description string) string {
	return fmt.Sprintf(avatarPromptTemplate, strings.TrimSpace(description))
}

// Generate returns the first generated image for description.
func (g *AvatarGenerator) Generate(ctx context.Context, description string) (ai.Image, error) {
	out, err := g.cb.Execute(func() (any, error) {
		resp, err := g.imager.GenerateImage(ctx, ai.ImageRequest{
			Prompt:      AvatarPrompt(description),
			Model:       g.model,
			Count:       1,
			MIMEType:    "image/png",
			AspectRatio: "1:1",
		})
		if err != nil {
			return nil, fmt.Errorf("generate image: %w", err)
		}
		if len(resp.Images) == 0 || len(resp.Images[0].Data) == 0 {
			return nil, ErrNoImage
		}
		return resp.Images[0], nil
	})
	if err != nil {
		return ai.Image{}, breakerErr(err)
	}
	return out.(ai.Image), nil
}

// DataURL encodes img as a data URL suitable for the avatar slice.
func DataURL(img ai.Image) string {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
