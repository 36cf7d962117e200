package models

import (
	"errors"
	"fmt"
)

// PersonForms is the number of conjugated forms per tense (je, tu, il/elle, nous, vous, ils/elles).
const PersonForms = 6

// QuizOptions is the number of answer options per quiz question.
const QuizOptions = 4

// GrammarExplanation is formatted text using headings, bold spans, list items and blank-line paragraphs.
type GrammarExplanation string

// Tenses holds the seven tense slots of a conjugation table.
type Tenses struct {
	Present             []string `json:"present"`
	PasseCompose        []string `json:"passeCompose"`
	Imparfait           []string `json:"imparfait"`
	FuturSimple         []string `json:"futurSimple"`
	ConditionnelPresent []string `json:"conditionnelPresent"`
	SubjonctifPresent   []string `json:"subjonctifPresent"`
	PlusQueParfait      []string `json:"plusQueParfait"`
}

// Named returns the tense slots in declaration order with their JSON names.
func (t Tenses) Named() []struct {
	Name  string
	Forms []string
} {
	return []struct {
		Name  string
		Forms []string
	}{
		{"present", t.Present},
		{"passeCompose", t.PasseCompose},
		{"imparfait", t.Imparfait},
		{"futurSimple", t.FuturSimple},
		{"conditionnelPresent", t.ConditionnelPresent},
		{"subjonctifPresent", t.SubjonctifPresent},
		{"plusQueParfait", t.PlusQueParfait},
	}
}

// VerbConjugation is a verb with its translation and seven conjugated tenses.
type VerbConjugation struct {
	Verb        string `json:"verb"`
	Translation string `json:"translation"`
	Tenses      Tenses `json:"tenses"`
}

// Validate checks that every tense has exactly six person forms.
func (v VerbConjugation) Validate() error {
	for _, tense := range v.Tenses.Named() {
		if len(tense.Forms) != PersonForms {
			return fmt.Errorf("tense %s has %d forms, want %d", tense.Name, len(tense.Forms), PersonForms)
		}
	}
	return nil
}

// QuizQuestion is a multiple choice question with exactly four options.
type QuizQuestion struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation"`
}

// Validate checks the option count and that the answer index points at an option.
func (q QuizQuestion) Validate() error {
	if len(q.Options) != QuizOptions {
		return fmt.Errorf("question has %d options, want %d", len(q.Options), QuizOptions)
	}
	if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= len(q.Options) {
		return fmt.Errorf("correct answer index %d out of range", q.CorrectAnswerIndex)
	}
	return nil
}

// Quiz is the list of questions returned for one quiz request. Its length is not enforced.
type Quiz []QuizQuestion

// Validate checks every question.
func (q Quiz) Validate() error {
	for i, question := range q {
		if err := question.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}

// Flashcard is one vocabulary card.
type Flashcard struct {
	Front   string `json:"front"`
	Back    string `json:"back"`
	Example string `json:"example"`
}

// Phrase is a useful expression with its translation and usage context.
type Phrase struct {
	French      string `json:"french"`
	Translation string `json:"translation"`
	Context     string `json:"context"`
}

// Listening is the listening section of an exam.
type Listening struct {
	Dialogue  string         `json:"dialogue"`
	Questions []QuizQuestion `json:"questions"`
	Audio     string         `json:"audio,omitempty"`
}

// Reading is the reading section of an exam.
type Reading struct {
	Text      string         `json:"text"`
	Questions []QuizQuestion `json:"questions"`
}

// Writing is the writing section of an exam.
type Writing struct {
	Prompt string `json:"prompt"`
}

// Speaking is the speaking section of an exam.
type Speaking struct {
	Prompt1 string `json:"prompt1"`
	Prompt2 string `json:"prompt2"`
}

// ExamBundle is a full mock exam assembled from one text generation and one speech generation.
type ExamBundle struct {
	Listening Listening `json:"listening"`
	Reading   Reading   `json:"reading"`
	Writing   Writing   `json:"writing"`
	Speaking  Speaking  `json:"speaking"`
}

// Normalize replaces absent sequences with empty ones.
func (e *ExamBundle) Normalize() {
	if e.Listening.Questions == nil {
		e.Listening.Questions = []QuizQuestion{}
	}
	if e.Reading.Questions == nil {
		e.Reading.Questions = []QuizQuestion{}
	}
}

// Validate checks the exam's questions.
func (e ExamBundle) Validate() error {
	if err := Quiz(e.Listening.Questions).Validate(); err != nil {
		return fmt.Errorf("listening: %w", err)
	}
	if err := Quiz(e.Reading.Questions).Validate(); err != nil {
		return fmt.Errorf("reading: %w", err)
	}
	if e.Listening.Dialogue == "" {
		return errors.New("listening dialogue is empty")
	}
	return nil
}

// WritingFeedback is the correction of a learner's essay with a model answer.
type WritingFeedback struct {
	CorrectedText string   `json:"correctedText"`
	Score         int      `json:"score"`
	Feedback      []string `json:"feedback"`
	ModelAnswer   string   `json:"modelAnswer"`
}

// Normalize replaces absent sequences with empty ones.
func (w *WritingFeedback) Normalize() {
	if w.Feedback == nil {
		w.Feedback = []string{}
	}
}

// Validate checks the score range.
func (w WritingFeedback) Validate() error {
	if w.Score < 0 || w.Score > 20 {
		return fmt.Errorf("score %d out of range 0-20", w.Score)
	}
	return nil
}

// SpeakingExample is a spoken model answer for a speaking prompt.
type SpeakingExample struct {
	Text  string `json:"text"`
	Audio string `json:"audio,omitempty"`
}
