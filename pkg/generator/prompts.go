package generator

import (
	"fmt"
	"strings"

	"github.com/causerie-app/causerie/pkg/config"
)

const systemPrompt = "You are an expert French teacher. You write accurate, natural French and explain it clearly to learners."

const jsonSystemPrompt = systemPrompt + " Reply with a single valid JSON document and nothing else."

// Requested counts. Models sometimes return fewer or more items; callers
// accept whatever comes back.
const (
	quizQuestions  = 10
	flashcardCount = 10
	phraseCount    = 8
)

func learnerContext(l config.LearnerConfig) string {
	var b strings.Builder
	b.WriteString("Learner profile:\n")
	if l.Name != "" {
		fmt.Fprintf(&b, "- Name: %s\n", l.Name)
	}
	if l.NativeLanguage != "" {
		fmt.Fprintf(&b, "- Native language: %s\n", l.NativeLanguage)
	}
	if l.Level != "" {
		fmt.Fprintf(&b, "- Current level: %s\n", l.Level)
	}
	if l.Goal != "" {
		fmt.Fprintf(&b, "- Goal: %s\n", l.Goal)
	}
	if len(l.Interests) > 0 {
		fmt.Fprintf(&b, "- Interests: %s\n", strings.Join(l.Interests, ", "))
	}
	b.WriteString("Use examples that relate to this learner where natural.\n\n")
	return b.String()
}

func (g *Generator) prompt(body string) string {
	return learnerContext(g.learner) + body
}

func grammarPrompt(topic, language string) string {
	return fmt.Sprintf(`Explain the French grammar topic "%s" in %s.
Use headings (#, ##, ###), **bold** for key terms, "- " list items and blank lines between paragraphs.
Include the rule, how to form it, common exceptions and at least five example sentences with translations.`, topic, language)
}

func conjugationPrompt(verb, language string) string {
	return fmt.Sprintf(`Conjugate the French verb "%s". Give its %s translation.
Return JSON: {"verb": string, "translation": string, "tenses": {"present": [6], "passeCompose": [6], "imparfait": [6], "futurSimple": [6], "conditionnelPresent": [6], "subjonctifPresent": [6], "plusQueParfait": [6]}}
Each tense is an array of exactly 6 strings in the order je, tu, il/elle, nous, vous, ils/elles, including the pronoun.`, verb, language)
}

func quizPrompt(topic, level, language string) string {
	return fmt.Sprintf(`Write a %d-question multiple choice quiz on "%s" for a French learner at level %s.
Explanations are written in %s.
Return a JSON array of {"question": string, "options": [4 strings], "correctAnswerIndex": 0-3, "explanation": string}.`, quizQuestions, topic, level, language)
}

func flashcardsPrompt(theme, language string) string {
	return fmt.Sprintf(`Create %d French vocabulary flashcards on the theme "%s".
Return a JSON array of {"front": French word with article, "back": %s translation, "example": a French example sentence}.`, flashcardCount, theme, language)
}

func phrasesPrompt(situation, language string) string {
	return fmt.Sprintf(`Give %d useful French phrases for the situation "%s".
Return a JSON array of {"french": string, "translation": %s translation, "context": when to use it, in %s}.`, phraseCount, situation, language, language)
}

func examPrompt(level, language string) string {
	return fmt.Sprintf(`Write a DELF-style French mock exam at level %s. Instructions and explanations are in %s.
Return JSON:
{"listening": {"dialogue": a natural French dialogue of 8-12 lines, "questions": [quiz questions]},
 "reading": {"text": a French text of 200-300 words, "questions": [quiz questions]},
 "writing": {"prompt": a writing task},
 "speaking": {"prompt1": a monologue task, "prompt2": an interaction task}}
Each quiz question is {"question": string, "options": [4 strings], "correctAnswerIndex": 0-3, "explanation": string}. Give 5 questions per section.`, level, language)
}

func writingPrompt(task, essay, language string) string {
	return fmt.Sprintf(`A learner answered this writing task:
"%s"

Their text:
"""
%s
"""

Correct the text, score it out of 20 and explain the main issues in %s.
Then write a model answer of 8 to 10 sentences.
Return JSON: {"correctedText": string, "score": integer 0-20, "feedback": [strings], "modelAnswer": string}.`, task, essay, language)
}

func speakingPrompt(task, level string) string {
	return fmt.Sprintf(`Write a model spoken answer in French, at level %s, to this speaking task:
"%s"
Answer in 8 to 10 sentences of natural spoken French. Return only the answer text, without headings or notes.`, level, task)
}
