package sqlite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/causerie-app/causerie/pkg/models"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache_test.db")
	c, err := New(dbPath, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPutAndGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := "grammar|Le Subjonctif Présent|English"

	if err := c.Put(ctx, models.StoreGrammar, key, json.RawMessage(`"# Le subjonctif"`)); err != nil {
		t.Fatal(err)
	}

	data, ok := c.Get(ctx, models.StoreGrammar, key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(data) != `"# Le subjonctif"` {
		t.Errorf("unexpected value: %s", data)
	}

	// same id, different store
	if _, ok := c.Get(ctx, models.StoreQuizzes, key); ok {
		t.Error("expected miss in another store")
	}
}

func TestPutIsIdempotent(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	value := json.RawMessage(`[{"front":"le chat","back":"the cat","example":""}]`)

	for i := 0; i < 2; i++ {
		if err := c.Put(ctx, models.StoreFlashcards, "flashcards|animaux|English", value); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry, got %d", stats.Entries)
	}
	got, _ := c.Get(ctx, models.StoreFlashcards, "flashcards|animaux|English")
	if !bytes.Equal(got, value) {
		t.Errorf("unexpected value: %s", got)
	}
}

func TestLastWriteWins(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_ = c.Put(ctx, models.StoreGrammar, "k", json.RawMessage(`"first"`))
	_ = c.Put(ctx, models.StoreGrammar, "k", json.RawMessage(`"second"`))

	got, _ := c.Get(ctx, models.StoreGrammar, "k")
	if string(got) != `"second"` {
		t.Errorf("expected second write to win, got %s", got)
	}
}

func TestSpeechIsCompressed(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	audio := json.RawMessage(`"` + strings.Repeat("AAAA", 4096) + `"`)

	if err := c.Put(ctx, models.StoreSpeech, "Bonjour", audio); err != nil {
		t.Fatal(err)
	}

	var encoding string
	var size int
	err := c.db.QueryRow(`SELECT encoding, LENGTH(value) FROM cache_entries WHERE store = 'speech'`).Scan(&encoding, &size)
	if err != nil {
		t.Fatal(err)
	}
	if encoding != encodingZstd {
		t.Errorf("expected zstd encoding, got %s", encoding)
	}
	if size >= len(audio) {
		t.Errorf("expected compressed size below %d, got %d", len(audio), size)
	}

	got, ok := c.Get(ctx, models.StoreSpeech, "Bonjour")
	if !ok || !bytes.Equal(got, audio) {
		t.Error("speech entry did not round-trip")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newTestCache(t)
	ctx := context.Background()

	_ = src.Put(ctx, models.StoreGrammar, "grammar|Les articles|English", json.RawMessage(`"## Articles"`))
	_ = src.Put(ctx, models.StoreQuizzes, "quiz|articles|A1|English", json.RawMessage(`[{"question":"q","options":["a","b","c","d"],"correctAnswerIndex":2,"explanation":"e"}]`))
	_ = src.Put(ctx, models.StoreSpeech, "Salut", json.RawMessage(`"UklGRg=="`))

	snap, err := src.ExportAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range models.Stores {
		if snap[s] == nil {
			t.Errorf("store %s missing from export", s)
		}
	}

	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, snap); err != nil {
		t.Fatal(err)
	}
	read, err := ReadSnapshot(&buf)
	if err != nil {
		t.Fatal(err)
	}

	dst := newTestCache(t)
	if err := dst.ImportAll(ctx, read); err != nil {
		t.Fatal(err)
	}

	again, err := dst.ExportAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := json.Marshal(snap)
	got, _ := json.Marshal(again)
	if !bytes.Equal(want, got) {
		t.Errorf("round trip mismatch:\nwant %s\ngot  %s", want, got)
	}
}

func TestImportKeepsOtherStores(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	grammar := json.RawMessage(`"# Le passé composé"`)
	_ = c.Put(ctx, models.StoreGrammar, "grammar|Le passé composé|English", grammar)

	snap, err := ReadSnapshot(strings.NewReader(`{"flashcards":[{"id":"flashcards|cuisine|English","value":[{"front":"le pain","back":"bread","example":"Je mange du pain."}]}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.ImportAll(ctx, snap); err != nil {
		t.Fatal(err)
	}

	if got, ok := c.Get(ctx, models.StoreGrammar, "grammar|Le passé composé|English"); !ok || !bytes.Equal(got, grammar) {
		t.Error("pre-existing grammar entry changed")
	}
	if _, ok := c.Get(ctx, models.StoreFlashcards, "flashcards|cuisine|English"); !ok {
		t.Error("imported flashcards entry missing")
	}
}

func TestImportRejectsInvalid(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	tests := map[string]models.Snapshot{
		"unknown store": {"lessons": {{ID: "x", Value: json.RawMessage(`1`)}}},
		"missing id":    {models.StoreGrammar: {{Value: json.RawMessage(`"x"`)}}},
		"missing value": {models.StoreGrammar: {{ID: "x"}}},
	}
	for name, snap := range tests {
		t.Run(name, func(t *testing.T) {
			if err := c.ImportAll(ctx, snap); !errors.Is(err, ErrInvalidSnapshot) {
				t.Errorf("expected ErrInvalidSnapshot, got %v", err)
			}
		})
	}

	stats, _ := c.Stats(ctx)
	if stats.Entries != 0 {
		t.Errorf("rejected import wrote %d entries", stats.Entries)
	}
}

func TestReadSnapshotRejectsMalformed(t *testing.T) {
	tests := []string{
		`not json`,
		`[{"id":"a","value":1}]`,
		`null`,
		`{"grammar":[{"value":"x"}]}`,
		`{"grammar":[{"id":"a"}]}`,
		`{}xyz`,
		`{"grammar":[]} {"grammar":[]}`,
	}
	for _, doc := range tests {
		if _, err := ReadSnapshot(strings.NewReader(doc)); !errors.Is(err, ErrInvalidSnapshot) {
			t.Errorf("%s: expected ErrInvalidSnapshot, got %v", doc, err)
		}
	}
}

func TestStats(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_ = c.Put(ctx, models.StoreGrammar, "h1", json.RawMessage(`"data"`))
	c.Get(ctx, models.StoreGrammar, "h1") // hit
	c.Get(ctx, models.StoreGrammar, "h2") // miss

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 || stats.ByStore[models.StoreGrammar] != 1 {
		t.Errorf("unexpected entry counts: %+v", stats)
	}
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}

func TestClearAll(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	keys := map[models.Store]string{
		models.StoreGrammar:      "grammar|a|English",
		models.StoreConjugations: "conjugation|être|English",
		models.StoreSpeech:       "Bonjour",
	}
	for store, id := range keys {
		_ = c.Put(ctx, store, id, json.RawMessage(`"v"`))
	}

	if err := c.ClearAll(ctx); err != nil {
		t.Fatal(err)
	}

	for store, id := range keys {
		if _, ok := c.Get(ctx, store, id); ok {
			t.Errorf("expected %s/%s to be absent after clear", store, id)
		}
	}
}
