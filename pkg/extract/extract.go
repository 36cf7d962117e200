// Package extract pulls a JSON document out of free-form model output.
//
// Models often wrap JSON in a fenced code block and add commentary before
// or after it. Extract keeps only the fenced interior when the output is not
// itself JSON and a fence is present, then decodes it into the requested type.
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fence matches the first ``` block, with an optional language tag on the opening line.
var fence = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)```")

// MalformedResponseError reports model output that could not be parsed.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Candidate returns the text Extract will try to parse. Output that is
// already a JSON document is used as is, so backticks inside its strings
// are never taken for a fence.
func Candidate(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if json.Valid([]byte(trimmed)) {
		return trimmed
	}
	if m := fence.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// Extract decodes the JSON document contained in raw into a T.
func Extract[T any](raw string) (T, error) {
	var out T
	candidate := Candidate(raw)
	if candidate == "" {
		return out, &MalformedResponseError{Raw: raw, Err: fmt.Errorf("empty response")}
	}
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return out, &MalformedResponseError{Raw: raw, Err: err}
	}
	return out, nil
}

// Raw validates that raw contains a JSON document and returns its candidate bytes.
func Raw(raw string) (json.RawMessage, error) {
	if _, err := Extract[any](raw); err != nil {
		return nil, err
	}
	return json.RawMessage(Candidate(raw)), nil
}
