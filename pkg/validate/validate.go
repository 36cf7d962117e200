// Package validate checks decoded model output against the structural
// contract of each artifact kind.
package validate

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Kind names an artifact shape with its own schema.
type Kind string

const (
	KindConjugation Kind = "conjugation"
	KindQuiz        Kind = "quiz"
	KindFlashcards  Kind = "flashcards"
	KindPhrases     Kind = "phrases"
	KindExam        Kind = "exam"
	KindWriting     Kind = "writing"
)

// SchemaViolationError reports output that parsed but breaks the artifact contract.
type SchemaViolationError struct {
	Kind   Kind
	Reason string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("%s response violates schema: %s", e.Kind, e.Reason)
}

// Violation builds a SchemaViolationError from an invariant check.
func Violation(kind Kind, err error) error {
	return &SchemaViolationError{Kind: kind, Reason: err.Error()}
}

const quizItem = `{
	"type": "object",
	"required": ["question", "options", "correctAnswerIndex"],
	"properties": {
		"question": {"type": "string"},
		"options": {"type": "array", "items": {"type": "string"}, "minItems": 4, "maxItems": 4},
		"correctAnswerIndex": {"type": "integer", "minimum": 0, "maximum": 3},
		"explanation": {"type": "string"}
	}
}`

const tense = `{"type": "array", "items": {"type": "string"}, "minItems": 6, "maxItems": 6}`

var sources = map[Kind]string{
	KindConjugation: `{
		"type": "object",
		"required": ["verb", "tenses"],
		"properties": {
			"verb": {"type": "string"},
			"translation": {"type": "string"},
			"tenses": {
				"type": "object",
				"required": ["present", "passeCompose", "imparfait", "futurSimple", "conditionnelPresent", "subjonctifPresent", "plusQueParfait"],
				"properties": {
					"present": ` + tense + `,
					"passeCompose": ` + tense + `,
					"imparfait": ` + tense + `,
					"futurSimple": ` + tense + `,
					"conditionnelPresent": ` + tense + `,
					"subjonctifPresent": ` + tense + `,
					"plusQueParfait": ` + tense + `
				}
			}
		}
	}`,
	KindQuiz: `{"type": "array", "items": ` + quizItem + `}`,
	KindFlashcards: `{
		"type": "array",
		"items": {
			"type": "object",
			"required": ["front", "back"],
			"properties": {
				"front": {"type": "string"},
				"back": {"type": "string"},
				"example": {"type": "string"}
			}
		}
	}`,
	KindPhrases: `{
		"type": "array",
		"items": {
			"type": "object",
			"required": ["french", "translation"],
			"properties": {
				"french": {"type": "string"},
				"translation": {"type": "string"},
				"context": {"type": "string"}
			}
		}
	}`,
	KindExam: `{
		"type": "object",
		"required": ["listening", "reading", "writing", "speaking"],
		"properties": {
			"listening": {
				"type": "object",
				"required": ["dialogue"],
				"properties": {
					"dialogue": {"type": "string"},
					"questions": {"type": "array", "items": ` + quizItem + `}
				}
			},
			"reading": {
				"type": "object",
				"required": ["text"],
				"properties": {
					"text": {"type": "string"},
					"questions": {"type": "array", "items": ` + quizItem + `}
				}
			},
			"writing": {"type": "object", "properties": {"prompt": {"type": "string"}}},
			"speaking": {"type": "object", "properties": {"prompt1": {"type": "string"}, "prompt2": {"type": "string"}}}
		}
	}`,
	KindWriting: `{
		"type": "object",
		"required": ["correctedText", "score"],
		"properties": {
			"correctedText": {"type": "string"},
			"score": {"type": "integer", "minimum": 0, "maximum": 20},
			"feedback": {"type": "array", "items": {"type": "string"}},
			"modelAnswer": {"type": "string"}
		}
	}`,
}

var (
	compileOnce sync.Once
	compiled    map[Kind]*jsonschema.Schema
	compileErr  error
)

func schemas() (map[Kind]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled = make(map[Kind]*jsonschema.Schema, len(sources))
		for kind, src := range sources {
			s, err := jsonschema.CompileString("mem://causerie/"+string(kind)+".json", src)
			if err != nil {
				compileErr = fmt.Errorf("compile %s schema: %w", kind, err)
				return
			}
			compiled[kind] = s
		}
	})
	return compiled, compileErr
}

// JSON validates raw against the schema registered for kind.
func JSON(kind Kind, raw []byte) error {
	all, err := schemas()
	if err != nil {
		return err
	}
	schema, ok := all[kind]
	if !ok {
		return fmt.Errorf("no schema for kind %q", kind)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &SchemaViolationError{Kind: kind, Reason: err.Error()}
	}
	if err := schema.Validate(doc); err != nil {
		return &SchemaViolationError{Kind: kind, Reason: err.Error()}
	}
	return nil
}
