package mcp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/causerie-app/causerie/pkg/models"
)

// formatConjugation formats a conjugation as one block per tense.
func formatConjugation(v models.VerbConjugation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", v.Verb, v.Translation)
	for _, tense := range v.Tenses.Named() {
		fmt.Fprintf(&b, "\n%s\n", tense.Name)
		for _, form := range tense.Forms {
			fmt.Fprintf(&b, "  %s\n", form)
		}
	}
	return b.String()
}

// formatFlashcards formats cards as a text table.
func formatFlashcards(cards []models.Flashcard) string {
	if len(cards) == 0 {
		return "No flashcards generated."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-28s %-28s %s\n", "French", "Translation", "Example")
	b.WriteString(strings.Repeat("-", 90) + "\n")
	for _, c := range cards {
		fmt.Fprintf(&b, "%-28s %-28s %s\n", c.Front, c.Back, c.Example)
	}
	return b.String()
}

// formatPhrases formats phrases as a bulleted list.
func formatPhrases(phrases []models.Phrase) string {
	if len(phrases) == 0 {
		return "No phrases generated."
	}
	var b strings.Builder
	for _, p := range phrases {
		fmt.Fprintf(&b, "- %s: %s", p.French, p.Translation)
		if p.Context != "" {
			fmt.Fprintf(&b, " (%s)", p.Context)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Cache Statistics\n"+
		"  Entries:  %s\n"+
		"  Size:     %s\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		humanize.Comma(stats.Entries), humanize.Bytes(uint64(stats.Bytes)), stats.Hits, stats.Misses, hitRate)

	stores := make([]string, 0, len(stats.ByStore))
	for s := range stats.ByStore {
		stores = append(stores, string(s))
	}
	sort.Strings(stores)
	for _, s := range stores {
		fmt.Fprintf(&b, "  %-14s %d\n", s+":", stats.ByStore[models.Store(s)])
	}
	return b.String()
}

// formatAttemptSummary formats attempt summaries as a text table.
func formatAttemptSummary(rows []models.AttemptSummary) string {
	if len(rows) == 0 {
		return "No provider attempts found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-10s %-14s %8s %12s %10s\n",
		"Feature", "Provider", "Outcome", "Attempts", "Avg Latency", "Tokens")
	b.WriteString(strings.Repeat("-", 71) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-12s %-10s %-14s %8d %10dms %10d\n",
			r.Feature, r.Provider, r.Outcome, r.Count, r.AvgLatencyMs, r.TotalTokens)
	}
	return b.String()
}
