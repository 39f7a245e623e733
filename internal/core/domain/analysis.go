package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

type SimilarPatent struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Similarity int    `json:"similarity"`
	Date       string `json:"date"`
	Assignee   string `json:"assignee"`
}

// AnalysisRecord is the single cached analysis. Timestamp is always the
// client time at which the analysis was fetched, never a server time.
type AnalysisRecord struct {
	DocumentID      string          `json:"document_id"`
	Title           string          `json:"title"`
	Date            string          `json:"date"`
	Applicant       string          `json:"applicant"`
	Summary         string          `json:"summary"`
	NoveltyScore    int             `json:"noveltyScore"`
	PotentialIssues []string        `json:"potentialIssues"`
	Recommendations []string        `json:"recommendations"`
	SimilarPatents  []SimilarPatent `json:"similarPatents"`
	Timestamp       time.Time       `json:"timestamp"`
}

// AnalysisPayload is the body of GET /analyze/{document_id}.
// SimilarPatents stays nil when the field is absent or null.
type AnalysisPayload struct {
	Title           string          `json:"title"`
	Date            string          `json:"date"`
	Applicant       string          `json:"applicant"`
	Summary         string          `json:"summary"`
	NoveltyScore    int             `json:"noveltyScore"`
	PotentialIssues []string        `json:"potentialIssues"`
	Recommendations []string        `json:"recommendations"`
	SimilarPatents  []SimilarPatent `json:"similarPatents"`
}

// UnmarshalJSON accepts a fractional similarity such as 87.53 and rounds it
// to the nearest percent.
func (p *SimilarPatent) UnmarshalJSON(data []byte) error {
	type plain SimilarPatent
	var wire struct {
		plain
		Similarity percent `json:"similarity"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*p = SimilarPatent(wire.plain)
	p.Similarity = int(wire.Similarity)
	return nil
}

// UnmarshalJSON accepts a fractional noveltyScore the same way.
func (p *AnalysisPayload) UnmarshalJSON(data []byte) error {
	type plain AnalysisPayload
	var wire struct {
		plain
		NoveltyScore percent `json:"noveltyScore"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*p = AnalysisPayload(wire.plain)
	p.NoveltyScore = int(wire.NoveltyScore)
	return nil
}

// percent is a 0-100 integer decoded from any JSON number.
type percent int

func (v *percent) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode percentage: %w", err)
	}
	*v = percent(min(max(math.Round(f), 0), 100))
	return nil
}

type AnalysisSource string

const (
	SourceCache AnalysisSource = "cache"
	SourceLive  AnalysisSource = "live"
)

type ResolvedAnalysis struct {
	Record AnalysisRecord `json:"record"`
	Source AnalysisSource `json:"source"`
}

type SimilarityBucket string

const (
	BucketHigh    SimilarityBucket = "high"
	BucketMedium  SimilarityBucket = "medium"
	BucketLow     SimilarityBucket = "low"
	BucketMinimal SimilarityBucket = "minimal"
)

// SimilarityBuckets lists buckets from most to least similar.
var SimilarityBuckets = []SimilarityBucket{BucketHigh, BucketMedium, BucketLow, BucketMinimal}

func BucketFor(similarity int) SimilarityBucket {
	switch {
	case similarity >= 85:
		return BucketHigh
	case similarity >= 70:
		return BucketMedium
	case similarity >= 50:
		return BucketLow
	default:
		return BucketMinimal
	}
}

func (b SimilarityBucket) Label() string {
	switch b {
	case BucketHigh:
		return "High (>85%)"
	case BucketMedium:
		return "Medium (70-85%)"
	case BucketLow:
		return "Low (50-70%)"
	default:
		return "Minimal (<50%)"
	}
}

type BucketCount struct {
	Bucket SimilarityBucket `json:"bucket"`
	Count  int              `json:"count"`
}

func BucketCounts(patents []SimilarPatent) []BucketCount {
	counts := make(map[SimilarityBucket]int, len(SimilarityBuckets))
	for _, p := range patents {
		counts[BucketFor(p.Similarity)]++
	}
	out := make([]BucketCount, 0, len(SimilarityBuckets))
	for _, b := range SimilarityBuckets {
		out = append(out, BucketCount{Bucket: b, Count: counts[b]})
	}
	return out
}

type NoveltyRating string

const (
	NoveltyHigh     NoveltyRating = "high"
	NoveltyModerate NoveltyRating = "moderate"
	NoveltyLow      NoveltyRating = "low"
)

func RateNovelty(score int) NoveltyRating {
	switch {
	case score >= 80:
		return NoveltyHigh
	case score >= 60:
		return NoveltyModerate
	default:
		return NoveltyLow
	}
}

// Paragraphs splits a free-text summary on blank lines.
func Paragraphs(summary string) []string {
	raw := strings.Split(strings.ReplaceAll(summary, "\r\n", "\n"), "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
