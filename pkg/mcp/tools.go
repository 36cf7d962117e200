package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

type toolArgs struct {
	Topic     string  `json:"topic"`
	Verb      string  `json:"verb"`
	Theme     string  `json:"theme"`
	Situation string  `json:"situation"`
	Task      string  `json:"task"`
	Essay     string  `json:"essay"`
	Level     string  `json:"level"`
	Language  string  `json:"language"`
	SinceDays float64 `json:"since_days"`
}

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args toolArgs) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"causerie_grammar":          handleGrammar,
	"causerie_conjugation":      handleConjugation,
	"causerie_quiz":             handleQuiz,
	"causerie_flashcards":       handleFlashcards,
	"causerie_phrases":          handlePhrases,
	"causerie_writing_feedback": handleWritingFeedback,
	"causerie_cache_stats":      handleCacheStats,
	"causerie_provider_stats":   handleProviderStats,
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func objectSchema(required []string, props map[string]any) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var languageProp = stringProp("Language of explanations and translations (optional, defaults to the learner's native language)")

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "causerie_grammar",
		Description: "Explain a French grammar topic with examples.",
		InputSchema: objectSchema([]string{"topic"}, map[string]any{
			"topic":    stringProp("Grammar topic, e.g. \"le subjonctif présent\""),
			"language": languageProp,
		}),
	},
	{
		Name:        "causerie_conjugation",
		Description: "Conjugate a French verb in seven tenses.",
		InputSchema: objectSchema([]string{"verb"}, map[string]any{
			"verb":     stringProp("Infinitive, e.g. \"aller\""),
			"language": languageProp,
		}),
	},
	{
		Name:        "causerie_quiz",
		Description: "Generate a multiple choice quiz on a topic.",
		InputSchema: objectSchema([]string{"topic"}, map[string]any{
			"topic":    stringProp("Quiz topic"),
			"level":    stringProp("CEFR level, e.g. A2 (optional)"),
			"language": languageProp,
		}),
	},
	{
		Name:        "causerie_flashcards",
		Description: "Generate vocabulary flashcards for a theme.",
		InputSchema: objectSchema([]string{"theme"}, map[string]any{
			"theme":    stringProp("Vocabulary theme, e.g. \"la cuisine\""),
			"language": languageProp,
		}),
	},
	{
		Name:        "causerie_phrases",
		Description: "Generate useful phrases for an everyday situation.",
		InputSchema: objectSchema([]string{"situation"}, map[string]any{
			"situation": stringProp("Situation, e.g. \"au restaurant\""),
			"language":  languageProp,
		}),
	},
	{
		Name:        "causerie_writing_feedback",
		Description: "Correct a French essay, score it out of 20 and add a model answer.",
		InputSchema: objectSchema([]string{"task", "essay"}, map[string]any{
			"task":     stringProp("The writing task the essay answers"),
			"essay":    stringProp("The learner's essay"),
			"language": languageProp,
		}),
	},
	{
		Name:        "causerie_cache_stats",
		Description: "Show content cache statistics (entries per store, size, hits, misses).",
		InputSchema: objectSchema(nil, map[string]any{}),
	},
	{
		Name:        "causerie_provider_stats",
		Description: "Show provider attempts per feature and outcome.",
		InputSchema: objectSchema(nil, map[string]any{
			"since_days": map[string]any{"type": "number", "description": "Look-back window in days (optional, default 7)"},
		}),
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

// jsonResult returns v as indented JSON text.
func jsonResult(v any) ToolCallResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("Error encoding result: " + err.Error())
	}
	return textResult(string(data))
}

func (s *Server) lang(args toolArgs) string {
	if strings.TrimSpace(args.Language) != "" {
		return args.Language
	}
	return s.language
}

func required(name, value string) (ToolCallResult, bool) {
	if strings.TrimSpace(value) == "" {
		return errorResult(name + " is required"), false
	}
	return ToolCallResult{}, true
}

func handleGrammar(ctx context.Context, s *Server, args toolArgs) ToolCallResult {
	if res, ok := required("topic", args.Topic); !ok {
		return res
	}
	text, err := s.gen.GrammarExplanation(ctx, args.Topic, s.lang(args))
	if err != nil {
		return errorResult("Error generating explanation: " + err.Error())
	}
	return textResult(string(text))
}

func handleConjugation(ctx context.Context, s *Server, args toolArgs) ToolCallResult {
	if res, ok := required("verb", args.Verb); !ok {
		return res
	}
	v, err := s.gen.Conjugation(ctx, args.Verb, s.lang(args))
	if err != nil {
		return errorResult("Error generating conjugation: " + err.Error())
	}
	return textResult(formatConjugation(v))
}

func handleQuiz(ctx context.Context, s *Server, args toolArgs) ToolCallResult {
	if res, ok := required("topic", args.Topic); !ok {
		return res
	}
	level := args.Level
	if level == "" {
		level = s.level
	}
	quiz, err := s.gen.Quiz(ctx, args.Topic, level, s.lang(args))
	if err != nil {
		return errorResult("Error generating quiz: " + err.Error())
	}
	return jsonResult(quiz)
}

func handleFlashcards(ctx context.Context, s *Server, args toolArgs) ToolCallResult {
	if res, ok := required("theme", args.Theme); !ok {
		return res
	}
	cards, err := s.gen.Flashcards(ctx, args.Theme, s.lang(args))
	if err != nil {
		return errorResult("Error generating flashcards: " + err.Error())
	}
	return textResult(formatFlashcards(cards))
}

func handlePhrases(ctx context.Context, s *Server, args toolArgs) ToolCallResult {
	if res, ok := required("situation", args.Situation); !ok {
		return res
	}
	phrases, err := s.gen.Phrases(ctx, args.Situation, s.lang(args))
	if err != nil {
		return errorResult("Error generating phrases: " + err.Error())
	}
	return textResult(formatPhrases(phrases))
}

func handleWritingFeedback(ctx context.Context, s *Server, args toolArgs) ToolCallResult {
	if res, ok := required("task", args.Task); !ok {
		return res
	}
	if res, ok := required("essay", args.Essay); !ok {
		return res
	}
	fb, err := s.gen.WritingFeedback(ctx, args.Task, args.Essay, s.lang(args))
	if err != nil {
		return errorResult("Error generating feedback: " + err.Error())
	}
	return jsonResult(fb)
}

func handleCacheStats(ctx context.Context, s *Server, _ toolArgs) ToolCallResult {
	if s.cache == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}

func handleProviderStats(ctx context.Context, s *Server, args toolArgs) ToolCallResult {
	if s.attempts == nil {
		return textResult("Attempt tracking is not enabled.")
	}
	days := args.SinceDays
	if days <= 0 {
		days = 7
	}
	since := time.Now().Add(-time.Duration(days * float64(24*time.Hour)))
	rows, err := s.attempts.Summary(ctx, since)
	if err != nil {
		return errorResult("Error fetching provider stats: " + err.Error())
	}
	return textResult(formatAttemptSummary(rows))
}
