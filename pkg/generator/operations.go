package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/causerie-app/causerie/pkg/extract"
	"github.com/causerie-app/causerie/pkg/models"
	"github.com/causerie-app/causerie/pkg/provider"
	"github.com/causerie-app/causerie/pkg/validate"
)

// Feature ids, used as the first part of every cache key.
const (
	FeatureGrammar     = "grammar"
	FeatureConjugation = "conjugation"
	FeatureQuiz        = "quiz"
	FeatureFlashcards  = "flashcards"
	FeaturePhrases     = "phrases"
	FeatureExam        = "exam"
	FeatureWriting     = "writing"
	FeatureSpeaking    = "speaking"
)

type normalizer interface{ Normalize() }

type checker interface{ Validate() error }

// jsonParser extracts, schema-checks and decodes model output into a T and
// returns its canonical encoding.
func jsonParser[T any](kind validate.Kind) parseFunc {
	return func(raw string) (json.RawMessage, error) {
		candidate, err := extract.Raw(raw)
		if err != nil {
			return nil, err
		}
		if err := validate.JSON(kind, candidate); err != nil {
			return nil, err
		}

		var v T
		if err := json.Unmarshal(candidate, &v); err != nil {
			return nil, validate.Violation(kind, err)
		}
		if n, ok := any(&v).(normalizer); ok {
			n.Normalize()
		}
		if c, ok := any(v).(checker); ok {
			if err := c.Validate(); err != nil {
				return nil, validate.Violation(kind, err)
			}
		}
		return json.Marshal(v)
	}
}

func jsonCheck(parse parseFunc) func(json.RawMessage) error {
	return func(v json.RawMessage) error {
		_, err := parse(string(v))
		return err
	}
}

// textParser accepts any non-empty text and stores it as a JSON string.
func textParser(raw string) (json.RawMessage, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, &extract.MalformedResponseError{Raw: raw, Err: errors.New("empty response")}
	}
	return json.Marshal(text)
}

func textCheck(v json.RawMessage) error {
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		return errors.New("empty text")
	}
	return nil
}

// fetch runs j and decodes the result into a T.
func fetch[T any](ctx context.Context, g *Generator, j job) (T, error) {
	var out T
	raw, err := g.run(ctx, j)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s result: %w", j.feature, err)
	}
	return out, nil
}

func (g *Generator) jsonJob(feature string, store models.Store, parse parseFunc, prompt string, params ...string) job {
	return job{
		feature: feature,
		store:   store,
		key:     Key(feature, params...),
		request: provider.Request{System: jsonSystemPrompt, User: g.prompt(prompt), WantsJSON: true},
		parse:   parse,
		check:   jsonCheck(parse),
	}
}

// GrammarExplanation returns formatted text explaining topic, written in language.
func (g *Generator) GrammarExplanation(ctx context.Context, topic, language string) (models.GrammarExplanation, error) {
	text, err := fetch[string](ctx, g, job{
		feature: FeatureGrammar,
		store:   models.StoreGrammar,
		key:     Key(FeatureGrammar, topic, language),
		request: provider.Request{System: systemPrompt, User: g.prompt(grammarPrompt(topic, language))},
		parse:   textParser,
		check:   textCheck,
	})
	return models.GrammarExplanation(text), err
}

// Conjugation returns the seven-tense conjugation table of verb.
func (g *Generator) Conjugation(ctx context.Context, verb, language string) (models.VerbConjugation, error) {
	return fetch[models.VerbConjugation](ctx, g, g.jsonJob(
		FeatureConjugation, models.StoreConjugations,
		jsonParser[models.VerbConjugation](validate.KindConjugation),
		conjugationPrompt(verb, language), verb, language,
	))
}

// Quiz returns multiple choice questions on topic for a learner level.
func (g *Generator) Quiz(ctx context.Context, topic, level, language string) (models.Quiz, error) {
	return fetch[models.Quiz](ctx, g, g.jsonJob(
		FeatureQuiz, models.StoreQuizzes,
		jsonParser[models.Quiz](validate.KindQuiz),
		quizPrompt(topic, level, language), topic, level, language,
	))
}

// Flashcards returns vocabulary cards for theme.
func (g *Generator) Flashcards(ctx context.Context, theme, language string) ([]models.Flashcard, error) {
	return fetch[[]models.Flashcard](ctx, g, g.jsonJob(
		FeatureFlashcards, models.StoreFlashcards,
		jsonParser[[]models.Flashcard](validate.KindFlashcards),
		flashcardsPrompt(theme, language), theme, language,
	))
}

// Phrases returns useful expressions for situation.
func (g *Generator) Phrases(ctx context.Context, situation, language string) ([]models.Phrase, error) {
	return fetch[[]models.Phrase](ctx, g, g.jsonJob(
		FeaturePhrases, models.StorePhrases,
		jsonParser[[]models.Phrase](validate.KindPhrases),
		phrasesPrompt(situation, language), situation, language,
	))
}

// Exam returns a mock exam. The listening dialogue is voiced when speech
// is available; otherwise Audio stays empty.
func (g *Generator) Exam(ctx context.Context, level, language string) (models.ExamBundle, error) {
	exam, err := fetch[models.ExamBundle](ctx, g, g.jsonJob(
		FeatureExam, models.StoreExams,
		jsonParser[models.ExamBundle](validate.KindExam),
		examPrompt(level, language), level, language,
	))
	if err != nil {
		return exam, err
	}
	exam.Normalize()
	if exam.Listening.Audio == "" {
		exam.Listening.Audio = g.speak(ctx, exam.Listening.Dialogue)
	}
	return exam, nil
}

// WritingFeedback corrects essay, written in answer to task, and adds a model answer.
func (g *Generator) WritingFeedback(ctx context.Context, task, essay, language string) (models.WritingFeedback, error) {
	fb, err := fetch[models.WritingFeedback](ctx, g, g.jsonJob(
		FeatureWriting, models.StoreWriting,
		jsonParser[models.WritingFeedback](validate.KindWriting),
		writingPrompt(task, essay, language), task, essay, language,
	))
	if err == nil {
		fb.Normalize()
	}
	return fb, err
}

// SpeakingExample returns a spoken model answer for a speaking task. The
// text is generated fresh each time; its audio is memoized by the speech
// client.
func (g *Generator) SpeakingExample(ctx context.Context, task, level string) (models.SpeakingExample, error) {
	text, err := fetch[string](ctx, g, job{
		feature: FeatureSpeaking,
		request: provider.Request{System: systemPrompt, User: g.prompt(speakingPrompt(task, level))},
		parse:   textParser,
	})
	if err != nil {
		return models.SpeakingExample{}, err
	}
	return models.SpeakingExample{Text: text, Audio: g.speak(ctx, text)}, nil
}
