package models

import "encoding/json"

// Store names one namespace of the response cache.
type Store string

const (
	StoreGrammar      Store = "grammar"
	StoreConjugations Store = "conjugations"
	StoreQuizzes      Store = "quizzes"
	StoreFlashcards   Store = "flashcards"
	StorePhrases      Store = "phrases"
	StoreExams        Store = "exams"
	StoreWriting      Store = "writing"
	StoreSpeech       Store = "speech"
)

// Stores lists every namespace in export order.
var Stores = []Store{
	StoreGrammar,
	StoreConjugations,
	StoreQuizzes,
	StoreFlashcards,
	StorePhrases,
	StoreExams,
	StoreWriting,
	StoreSpeech,
}

// Known reports whether s is one of the declared namespaces.
func (s Store) Known() bool {
	for _, k := range Stores {
		if k == s {
			return true
		}
	}
	return false
}

// CacheEntry is one cached artifact as it appears in an export file.
type CacheEntry struct {
	ID    string          `json:"id"`
	Value json.RawMessage `json:"value"`
}

// Snapshot is the full exported content of the cache, keyed by store name.
type Snapshot map[Store][]CacheEntry

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Entries int64           `json:"entries"`
	Bytes   int64           `json:"bytes"`
	Hits    int64           `json:"hits"`
	Misses  int64           `json:"misses"`
	ByStore map[Store]int64 `json:"by_store"`
}
