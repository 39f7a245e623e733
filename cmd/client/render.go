package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
)

func printAnalysis(out io.Writer, resolved *domain.ResolvedAnalysis) {
	rec := resolved.Record

	fmt.Fprintln(out)
	fmt.Fprintf(out, "== %s ==\n", fallback(rec.Title, "Untitled document"))
	if resolved.Source == domain.SourceCache {
		fmt.Fprintf(out, "(cached analysis from %s)\n", rec.Timestamp.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(out, "Document ID: %s\n", rec.DocumentID)
	if rec.Applicant != "" {
		fmt.Fprintf(out, "Applicant:   %s\n", rec.Applicant)
	}
	if rec.Date != "" {
		fmt.Fprintf(out, "Date:        %s\n", rec.Date)
	}
	fmt.Fprintf(out, "Novelty:     %d/100 (%s)\n", rec.NoveltyScore, noveltyText(domain.RateNovelty(rec.NoveltyScore)))

	fmt.Fprintln(out, "\nSummary")
	for _, p := range domain.Paragraphs(rec.Summary) {
		fmt.Fprintf(out, "  %s\n\n", p)
	}

	fmt.Fprintf(out, "Similar patents (%d)\n", len(rec.SimilarPatents))
	for _, c := range domain.BucketCounts(rec.SimilarPatents) {
		fmt.Fprintf(out, "  %-16s %d\n", c.Bucket.Label(), c.Count)
	}
	for _, p := range rec.SimilarPatents {
		fmt.Fprintf(out, "  [%3d%%] %s %s (%s, %s)\n", p.Similarity, p.ID, p.Title, p.Assignee, p.Date)
	}

	printList(out, "Potential issues", rec.PotentialIssues)
	printList(out, "Recommendations", rec.Recommendations)
}

func printList(out io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s\n", title)
	for _, item := range items {
		fmt.Fprintf(out, "  - %s\n", item)
	}
}

func printMessage(out io.Writer, msg domain.Message) {
	who := "You"
	if msg.Role == domain.RoleAssistant {
		who = "Assistant"
	}
	fmt.Fprintf(out, "%s [%s]: %s\n", who, msg.Timestamp.Local().Format("15:04"), msg.Content)
	if len(msg.Sources) > 0 {
		fmt.Fprintf(out, "  Sources: %s\n", strings.Join(msg.Sources, ", "))
	}
}

func noveltyText(r domain.NoveltyRating) string {
	switch r {
	case domain.NoveltyHigh:
		return "high novelty"
	case domain.NoveltyModerate:
		return "moderate novelty"
	default:
		return "low novelty"
	}
}

func formatSize(size int64) string {
	return fmt.Sprintf("%.2f MB", float64(size)/(1024*1024))
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
