// Package generator adapts the ai gateway into the course and avatar
// generators used by the catalog and the app.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sony/gobreaker"
	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/finedu/internal/ai"
	"github.com/p-n-ai/finedu/internal/course"
)

var (
	// ErrInvalidCourse is returned when a response does not match the course schema.
	ErrInvalidCourse = errors.New("invalid course structure received from provider")

	// ErrUnavailable is returned while the circuit breaker rejects calls.
	ErrUnavailable = errors.New("generator temporarily unavailable")
)

const systemPrompt = "Você é um educador financeiro que cria cursos didáticos em português do Brasil. Responda somente com JSON."

const coursePromptTemplate = `Gere um curso de educação financeira sobre "%s" para o nível de dificuldade "%s". O curso deve ser completo, didático e em português do Brasil.

Siga estritamente a estrutura JSON fornecida no schema.

- Para o nível 'beginner', use linguagem muito simples, analogias do dia a dia e foque nos conceitos mais fundamentais. As perguntas do quiz devem ser diretas.
- Para o nível 'intermediate', assuma que o usuário já conhece o básico. Introduza conceitos mais complexos, use terminologia técnica (com explicação) e apresente cenários mais elaborados. As perguntas do quiz podem exigir mais raciocínio.

O curso deve ter:
1. Uma 'description' curta e envolvente (2-3 sentenças).
2. O 'icon' mais relevante para o tópico. Escolha um entre: 'tax', 'investment', ou 'budget'.
3. O 'difficulty' correspondente ao solicitado ('beginner' ou 'intermediate').
4. Uma lista de 3 'lessons'.

Cada lição deve ter:
1. Um 'title' claro e conciso.
2. Um 'content' detalhado com pelo menos 3 parágrafos, explicando o tópico da lição. Use markdown para formatação (negrito, listas).
3. Um 'quiz' com exatamente 3 perguntas de múltipla escolha.

Cada questão do quiz deve ter:
1. A 'question' em si.
2. Uma lista de 4 'options'.
3. O 'correctAnswerIndex' (de 0 a 3) indicando a resposta correta.

O conteúdo deve ser prático e fácil de entender para o público-alvo.`

// Completer is the text side of the ai gateway.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
}

// Option configures a generator.
type Option func(*options)

type options struct {
	model   string
	logger  *slog.Logger
	breaker BreakerConfig
}

// WithModel overrides the provider's default model.
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithBreaker overrides the circuit breaker settings.
func WithBreaker(cfg BreakerConfig) Option {
	return func(o *options) {
		o.breaker = cfg
	}
}

func buildOptions(name string, opts []Option) options {
	o := options{
		logger:  slog.Default(),
		breaker: DefaultBreakerConfig(name),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// CourseGenerator produces course bodies through a Completer.
type CourseGenerator struct {
	completer Completer
	model     string
	logger    *slog.Logger
	schema    map[string]any
	validator *gojsonschema.Schema
	cb        *gobreaker.CircuitBreaker
}

// NewCourseGenerator creates a course generator over completer.
func NewCourseGenerator(completer Completer, opts ...Option) (*CourseGenerator, error) {
	o := buildOptions("course-generator", opts)

	schema := CourseSchema()
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile course schema: %w", err)
	}

	return &CourseGenerator{
		completer: completer,
		model:     o.model,
		logger:    o.logger,
		schema:    schema,
		validator: compiled,
		cb:        newBreaker(o.breaker, o.logger),
	}, nil
}

// Prompt returns the generation prompt for topic at difficulty.
func Prompt(topic string, difficulty course.Difficulty) string {
	return fmt.Sprintf(coursePromptTemplate, topic, difficulty)
}

// Generate asks the provider for a course about topic and validates the
// response against the course schema and the generation contract.
func (g *CourseGenerator) Generate(ctx context.Context, topic string, difficulty course.Difficulty) (course.Body, error) {
	out, err := g.cb.Execute(func() (any, error) {
		resp, err := g.completer.Complete(ctx, ai.CompletionRequest{
			System:     systemPrompt,
			Messages:   []ai.Message{{Role: "user", Content: Prompt(topic, difficulty)}},
			Model:      g.model,
			Task:       ai.TaskCourse,
			JSONSchema: g.schema,
		})
		if err != nil {
			return nil, fmt.Errorf("complete: %w", err)
		}

		g.logger.Debug("course generated",
			"topic", topic,
			"difficulty", string(difficulty),
			"model", resp.Model,
			"tokens", resp.TotalTokens(),
		)
		return g.decode(resp.Content)
	})
	if err != nil {
		return course.Body{}, breakerErr(err)
	}
	return out.(course.Body), nil
}

// decode validates raw against the schema, then the body contract.
func (g *CourseGenerator) decode(raw string) (course.Body, error) {
	raw = stripFence(raw)

	result, err := g.validator.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return course.Body{}, fmt.Errorf("%w: %v", ErrInvalidCourse, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return course.Body{}, fmt.Errorf("%w: %s", ErrInvalidCourse, strings.Join(msgs, "; "))
	}

	var body course.Body
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return course.Body{}, fmt.Errorf("%w: %v", ErrInvalidCourse, err)
	}
	if err := body.Validate(); err != nil {
		return course.Body{}, fmt.Errorf("%w: %v", ErrInvalidCourse, err)
	}
	return body, nil
}

// stripFence removes a surrounding markdown code fence, which some
// OpenAI-compatible models add even in JSON mode.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
