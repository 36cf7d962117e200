package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/causerie-app/causerie/pkg/models"
)

func newTestTracker(t *testing.T) *SQLiteTracker {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	tr, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestRecordAndTrace(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	attempts := []models.AttemptRecord{
		{TraceID: "t1", Feature: "conjugation", Provider: "groq", Attempt: 1, Outcome: "malformed", LatencyMs: 800, CreatedAt: now},
		{TraceID: "t1", Feature: "conjugation", Provider: "gemini", Attempt: 1, Outcome: "ok", LatencyMs: 1200, Tokens: 900, CreatedAt: now},
		{TraceID: "t2", Feature: "grammar", Provider: "groq", Attempt: 1, Outcome: "ok", LatencyMs: 400, CreatedAt: now},
	}
	for _, a := range attempts {
		if err := tr.Record(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	trace, err := tr.Trace(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(trace) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(trace))
	}
	if trace[0].Provider != "groq" || trace[1].Provider != "gemini" {
		t.Errorf("unexpected order: %s, %s", trace[0].Provider, trace[1].Provider)
	}
	if trace[1].Tokens != 900 {
		t.Errorf("expected 900 tokens, got %d", trace[1].Tokens)
	}
}

func TestRecordDefaultsTimestamp(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	if err := tr.Record(ctx, models.AttemptRecord{TraceID: "t", Feature: "quiz", Provider: "groq", Attempt: 1, Outcome: "ok"}); err != nil {
		t.Fatal(err)
	}
	recent, err := tr.Recent(ctx, time.Now().UTC().Add(-time.Minute), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 recent attempt, got %d", len(recent))
	}
}

func TestRecentLimit(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := range 5 {
		_ = tr.Record(ctx, models.AttemptRecord{
			TraceID: "t", Feature: "quiz", Provider: "groq", Attempt: i + 1, Outcome: "transport",
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
	}

	recent, err := tr.Recent(ctx, now.Add(-time.Minute), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(recent))
	}
	if recent[0].Attempt != 5 {
		t.Errorf("expected newest first, got attempt %d", recent[0].Attempt)
	}
}

func TestSummary(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = tr.Record(ctx, models.AttemptRecord{TraceID: "a", Feature: "quiz", Provider: "groq", Attempt: 1, Outcome: "ok", LatencyMs: 100, Tokens: 50, CreatedAt: now})
	_ = tr.Record(ctx, models.AttemptRecord{TraceID: "b", Feature: "quiz", Provider: "groq", Attempt: 1, Outcome: "ok", LatencyMs: 300, Tokens: 70, CreatedAt: now})
	_ = tr.Record(ctx, models.AttemptRecord{TraceID: "c", Feature: "quiz", Provider: "groq", Attempt: 1, Outcome: "rate_limited", LatencyMs: 20, CreatedAt: now})

	summaries, err := tr.Summary(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summary rows, got %d", len(summaries))
	}
	ok := summaries[0]
	if ok.Outcome != "ok" || ok.Count != 2 || ok.AvgLatencyMs != 200 || ok.TotalTokens != 120 {
		t.Errorf("unexpected summary: %+v", ok)
	}
}
