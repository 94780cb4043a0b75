package generator

// CourseSchema is the JSON Schema of a generated course body. It is sent to
// providers that support structured output and used to validate every
// response before decoding.
func CourseSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Uma breve descrição do curso (2-3 frases).",
			},
			"icon": map[string]any{
				"type":        "string",
				"enum":        []any{"tax", "investment", "budget"},
				"description": "O ícone mais apropriado para o curso. Deve ser uma das seguintes opções: 'tax', 'investment', ou 'budget'.",
			},
			"difficulty": map[string]any{
				"type":        "string",
				"enum":        []any{"beginner", "intermediate"},
				"description": "O nível de dificuldade do curso. Deve ser 'beginner' ou 'intermediate'.",
			},
			"lessons": map[string]any{
				"type":        "array",
				"minItems":    1,
				"description": "Uma lista de 3 a 4 lições.",
				"items":       lessonSchema(),
			},
		},
		"required": []any{"description", "lessons", "icon", "difficulty"},
	}
}

func lessonSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "O título da lição.",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "O conteúdo educacional da lição, formatado em markdown (parágrafos, listas). Mínimo de 3 parágrafos.",
			},
			"quiz": map[string]any{
				"type":        "array",
				"description": "Um quiz com 3 perguntas de múltipla escolha para a lição.",
				"items":       questionSchema(),
			},
		},
		"required": []any{"title", "content", "quiz"},
	}
}

func questionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type":        "string",
				"description": "A pergunta do quiz.",
			},
			"options": map[string]any{
				"type":        "array",
				"minItems":    4,
				"maxItems":    4,
				"description": "Uma lista de 4 opções de resposta.",
				"items":       map[string]any{"type": "string"},
			},
			"correctAnswerIndex": map[string]any{
				"type":        "integer",
				"minimum":     0,
				"maximum":     3,
				"description": "O índice (0-3) da resposta correta na lista de opções.",
			},
		},
		"required": []any{"question", "options", "correctAnswerIndex"},
	}
}
