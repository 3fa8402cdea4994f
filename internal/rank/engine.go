// Package rank orchestrates the full ranking pipeline: embed the profile
// and every job, score skill overlap, combine into a composite score, and
// return a deterministic top-K. Failures below the job level never abort
// a run; a valid input always produces a full result list, possibly with
// degraded sub-scores.
package rank

import (
	"context"
	"log"
	"sort"

	"github.com/asteroid-belt/matchbox/internal/embedding"
	"github.com/asteroid-belt/matchbox/internal/match"
	"github.com/asteroid-belt/matchbox/internal/models"
)

// Embedder is the slice of the embedding client the engine needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// SkillScorer scores one job's skill list against the profile's.
type SkillScorer interface {
	Score(ctx context.Context, profileSkills, jobSkills []string) match.Result
}

// Weights combines the two sub-scores. Semantic fit is weighted higher
// than literal skill overlap by default; this is policy, not invariant,
// and a candidate for empirical tuning.
type Weights struct {
	Semantic float64
	Skill    float64
}

// DefaultWeights returns the default 0.6/0.4 combination.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.6, Skill: 0.4}
}

// Config holds engine tunables.
type Config struct {
	Weights Weights

	// MaxJobsToIndex caps how many jobs one run embeds, to bound API
	// spend on oversized inputs. 0 means no cap.
	MaxJobsToIndex int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Weights:        DefaultWeights(),
		MaxJobsToIndex: 50,
	}
}

// Engine ranks job postings against a candidate profile.
type Engine struct {
	embedder Embedder
	skills   SkillScorer
	config   Config
}

// New creates an Engine. The embedder should be the process-shared
// embedding client so rate-limit state stays coordinated.
func New(embedder Embedder, skills SkillScorer, cfg Config) *Engine {
	if cfg.Weights.Semantic == 0 && cfg.Weights.Skill == 0 {
		cfg.Weights = DefaultWeights()
	}
	return &Engine{embedder: embedder, skills: skills, config: cfg}
}

// Rank scores jobs against the profile and returns the top-K results,
// ordered best first with 1-based ranks. An empty profile or empty job
// list yields an empty result, not an error. topK <= 0 means all jobs.
func (e *Engine) Rank(ctx context.Context, profile models.Profile, jobs []models.JobPosting, topK int) ([]models.MatchResult, error) {
	if profile.Empty() || len(jobs) == 0 {
		return []models.MatchResult{}, nil
	}

	if e.config.MaxJobsToIndex > 0 && len(jobs) > e.config.MaxJobsToIndex {
		log.Printf("ranking first %d of %d jobs to bound embedding calls", e.config.MaxJobsToIndex, len(jobs))
		jobs = jobs[:e.config.MaxJobsToIndex]
	}

	queryVec, err := e.embedder.Embed(ctx, profile.QueryText())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Ranking survives a missing profile embedding: similarity
		// degrades to zero and skill overlap carries the ordering.
		log.Printf("profile embedding unavailable, ranking on skills only: %v", err)
		queryVec = nil
	}

	docs := make([]string, len(jobs))
	for i, job := range jobs {
		docs[i] = job.DocumentText()
	}

	jobVecs, err := e.embedder.EmbedBatch(ctx, docs)
	if err != nil {
		// EmbedBatch only errors on cancellation; per-job failures come
		// back as sentinels.
		return nil, err
	}

	results := make([]models.MatchResult, len(jobs))
	for i, job := range jobs {
		similarity := 0.0
		if queryVec != nil && !embedding.Unavailable(jobVecs[i]) {
			similarity = embedding.CosineSimilarity(queryVec, jobVecs[i])
			if similarity < 0 {
				// Normalized embeddings live in 0..1 for ranking.
				similarity = 0
			}
		}

		skill := e.skills.Score(ctx, profile.Skills, job.Skills)

		results[i] = models.MatchResult{
			JobID:         job.ID,
			Similarity:    similarity,
			SkillScore:    skill.Score,
			Composite:     e.config.Weights.Semantic*similarity + e.config.Weights.Skill*skill.Score,
			MatchedSkills: skill.Matched,
			MissingSkills: skill.Missing,
		}
	}

	// Descending composite, ties by descending skill score, then by
	// input order (stable sort keeps it).
	sort.SliceStable(results, func(a, b int) bool {
		if results[a].Composite != results[b].Composite {
			return results[a].Composite > results[b].Composite
		}
		return results[a].SkillScore > results[b].SkillScore
	})

	for i := range results {
		results[i].Rank = i + 1
	}

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}
