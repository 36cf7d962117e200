package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func forms(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "x"
	}
	return out
}

func fullTenses() Tenses {
	return Tenses{
		Present:             forms(6),
		PasseCompose:        forms(6),
		Imparfait:           forms(6),
		FuturSimple:         forms(6),
		ConditionnelPresent: forms(6),
		SubjonctifPresent:   forms(6),
		PlusQueParfait:      forms(6),
	}
}

func TestVerbConjugationValidate(t *testing.T) {
	v := VerbConjugation{Verb: "être", Translation: "to be", Tenses: fullTenses()}
	assert.NoError(t, v.Validate())

	v.Tenses.Imparfait = forms(5)
	assert.ErrorContains(t, v.Validate(), "imparfait")

	v.Tenses = fullTenses()
	v.Tenses.PlusQueParfait = nil
	assert.Error(t, v.Validate())
}

func TestQuizValidate(t *testing.T) {
	ok := QuizQuestion{Question: "q", Options: forms(4), CorrectAnswerIndex: 3}
	assert.NoError(t, Quiz{ok, ok}.Validate())

	tests := []struct {
		name string
		q    QuizQuestion
	}{
		{"three options", QuizQuestion{Options: forms(3), CorrectAnswerIndex: 0}},
		{"index too high", QuizQuestion{Options: forms(4), CorrectAnswerIndex: 4}},
		{"negative index", QuizQuestion{Options: forms(4), CorrectAnswerIndex: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Quiz{ok, tt.q}.Validate())
		})
	}
}

func TestQuizToleratesAnyLength(t *testing.T) {
	assert.NoError(t, Quiz{}.Validate())
}

func TestExamNormalize(t *testing.T) {
	var e ExamBundle
	e.Normalize()
	assert.NotNil(t, e.Listening.Questions)
	assert.NotNil(t, e.Reading.Questions)
	assert.Error(t, e.Validate(), "empty dialogue is invalid")

	e.Listening.Dialogue = "— Bonjour !"
	assert.NoError(t, e.Validate())
}

func TestStoreKnown(t *testing.T) {
	assert.True(t, StoreFlashcards.Known())
	assert.False(t, Store("lessons").Known())
}
