package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemasCompile(t *testing.T) {
	all, err := schemas()
	require.NoError(t, err)
	assert.Len(t, all, len(sources))
}

func TestQuiz(t *testing.T) {
	valid := `[{"question":"Quel est le pluriel de cheval ?","options":["chevals","chevaux","chevaus","chevales"],"correctAnswerIndex":1,"explanation":"-al devient -aux"}]`
	assert.NoError(t, JSON(KindQuiz, []byte(valid)))

	tests := map[string]string{
		"three options":  `[{"question":"q","options":["a","b","c"],"correctAnswerIndex":0}]`,
		"index too high": `[{"question":"q","options":["a","b","c","d"],"correctAnswerIndex":4}]`,
		"not an array":   `{"question":"q"}`,
		"string index":   `[{"question":"q","options":["a","b","c","d"],"correctAnswerIndex":"1"}]`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			err := JSON(KindQuiz, []byte(raw))
			var violation *SchemaViolationError
			require.True(t, errors.As(err, &violation), "got %v", err)
			assert.Equal(t, KindQuiz, violation.Kind)
		})
	}
}

func TestQuizAcceptsShortList(t *testing.T) {
	assert.NoError(t, JSON(KindQuiz, []byte(`[]`)))
}

func TestConjugation(t *testing.T) {
	six := `["je suis","tu es","il est","nous sommes","vous êtes","ils sont"]`
	full := `{"verb":"être","translation":"to be","tenses":{` +
		`"present":` + six + `,"passeCompose":` + six + `,"imparfait":` + six + `,` +
		`"futurSimple":` + six + `,"conditionnelPresent":` + six + `,` +
		`"subjonctifPresent":` + six + `,"plusQueParfait":` + six + `}}`
	assert.NoError(t, JSON(KindConjugation, []byte(full)))

	missing := `{"verb":"être","tenses":{"present":` + six + `}}`
	assert.Error(t, JSON(KindConjugation, []byte(missing)))
}

func TestWritingScoreRange(t *testing.T) {
	assert.NoError(t, JSON(KindWriting, []byte(`{"correctedText":"x","score":14}`)))
	assert.Error(t, JSON(KindWriting, []byte(`{"correctedText":"x","score":25}`)))
}

func TestUnknownKind(t *testing.T) {
	err := JSON(Kind("lesson"), []byte(`{}`))
	require.Error(t, err)
	var violation *SchemaViolationError
	assert.False(t, errors.As(err, &violation))
}
