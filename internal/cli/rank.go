package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/asteroid-belt/matchbox/internal/cache"
	"github.com/asteroid-belt/matchbox/internal/config"
	"github.com/asteroid-belt/matchbox/internal/db"
	"github.com/asteroid-belt/matchbox/internal/embedding"
	"github.com/asteroid-belt/matchbox/internal/match"
	"github.com/asteroid-belt/matchbox/internal/models"
	"github.com/asteroid-belt/matchbox/internal/rank"
	"github.com/asteroid-belt/matchbox/internal/retry"
)

var (
	rankProfilePath string
	rankJobsPath    string
	rankTopK        int
	rankNoCache     bool
	rankNoHistory   bool
	rankJSONOutput  bool
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank job postings against a candidate profile",
	Long: `Rank job postings against a candidate profile.

Reads the profile and job postings from JSON files, embeds them (using
the local cache where possible), scores skill overlap, and prints the
jobs ordered by composite score.`,
	RunE: runRank,
}

func init() {
	rankCmd.Flags().StringVarP(&rankProfilePath, "profile", "p", "", "path to the profile JSON file (required)")
	rankCmd.Flags().StringVarP(&rankJobsPath, "jobs", "j", "", "path to the job postings JSON file (required)")
	rankCmd.Flags().IntVarP(&rankTopK, "top", "t", 10, "number of results to show (0 = all)")
	rankCmd.Flags().BoolVar(&rankNoCache, "no-cache", false, "skip the persistent embedding cache")
	rankCmd.Flags().BoolVar(&rankNoHistory, "no-history", false, "do not record this run in history")
	rankCmd.Flags().BoolVar(&rankJSONOutput, "json", false, "print results as JSON")
	_ = rankCmd.MarkFlagRequired("profile")
	_ = rankCmd.MarkFlagRequired("jobs")
}

func runRank(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return trackCLIError("rank", fmt.Errorf("load config: %w", err))
	}
	if !cfg.HasProvider() {
		return trackCLIError("rank", fmt.Errorf("no embedding provider configured: set OPENAI_API_KEY, or AZURE_OPENAI_API_KEY and AZURE_OPENAI_ENDPOINT"))
	}

	profile, err := loadProfile(rankProfilePath)
	if err != nil {
		return trackCLIError("rank", err)
	}
	jobs, err := loadJobs(rankJobsPath)
	if err != nil {
		return trackCLIError("rank", err)
	}

	paths := config.GetPaths(cfg)

	var store cache.Store
	if rankNoCache {
		store = cache.NewMemoryStore()
	} else {
		store, err = cache.NewChromemStore(paths.Vectors)
		if err != nil {
			return trackCLIError("rank", fmt.Errorf("open embedding cache: %w", err))
		}
	}

	var provider embedding.Provider
	if cfg.UseAzure() {
		deployment := cfg.Embedding.AzureDeployment
		if deployment == "" {
			deployment = cfg.Embedding.Model
		}
		provider = embedding.NewAzure(cfg.Embedding.AzureAPIKey, cfg.Embedding.AzureEndpoint, deployment)
	} else {
		provider = embedding.NewOpenAI(cfg.Embedding.OpenAIAPIKey, cfg.Embedding.Model)
	}

	policy := retry.Default()
	if cfg.Embedding.MaxRetries > 0 {
		policy.MaxAttempts = cfg.Embedding.MaxRetries
	}

	client := embedding.New(provider, store, embedding.Config{
		MaxBatchSize:      cfg.Embedding.MaxBatchSize,
		InterBatchDelay:   cfg.Embedding.InterBatchDelay,
		RequestsPerMinute: cfg.Embedding.RequestsPerMinute,
		Policy:            policy,
	})

	matcher := match.New(client, match.Config{
		Threshold: cfg.Match.SimilarityThreshold,
	})

	engine := rank.New(client, matcher, rank.Config{
		Weights: rank.Weights{
			Semantic: cfg.Ranking.SemanticWeight,
			Skill:    cfg.Ranking.SkillWeight,
		},
		MaxJobsToIndex: cfg.Ranking.MaxJobsToIndex,
	})

	started := time.Now()
	results, err := engine.Rank(cmd.Context(), profile, jobs, rankTopK)
	if err != nil {
		return trackCLIError("rank", fmt.Errorf("rank jobs: %w", err))
	}
	elapsed := time.Since(started)

	stats := client.Stats()
	telemetryClient.TrackRankCompleted(len(jobs), rankTopK, elapsed.Milliseconds(), cacheHitRate(stats))
	if stats.RateLimitHits > 0 {
		telemetryClient.TrackRateLimited(stats.RateLimitHits, cfg.Embedding.MaxBatchSize)
	}
	if stats.FailedTexts > 0 {
		telemetryClient.TrackEmbeddingFailed(stats.FailedTexts, len(jobs))
	}

	if !rankNoHistory {
		if err := saveHistory(paths.Database, profile, len(jobs), rankTopK, elapsed, results); err != nil {
			// History is a convenience; a failed write should not fail
			// the ranking output.
			fmt.Fprintf(os.Stderr, "warning: could not record run history: %v\n", err)
		}
	}

	if rankJSONOutput {
		return printResultsJSON(results)
	}
	printResults(results, jobs, stats, elapsed)
	return nil
}

func loadProfile(path string) (models.Profile, error) {
	var profile models.Profile
	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("read profile: %w", err)
	}
	if err := json.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("parse profile: %w", err)
	}
	if profile.Empty() {
		return profile, fmt.Errorf("profile %s has no resume, summary, or skills", path)
	}
	return profile, nil
}

func loadJobs(path string) ([]models.JobPosting, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs: %w", err)
	}
	var jobs []models.JobPosting
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("parse jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("jobs file %s contains no postings", path)
	}
	for i := range jobs {
		if jobs[i].ID == "" {
			jobs[i].ID = fmt.Sprintf("job-%d", i+1)
		}
	}
	return jobs, nil
}

func saveHistory(dbPath string, profile models.Profile, jobCount, topK int, elapsed time.Duration, results []models.MatchResult) error {
	database, err := db.New(db.DefaultConfig(dbPath))
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	_, err = database.SaveRun(cache.Key(profile.QueryText()), jobCount, topK, elapsed, results)
	return err
}

func cacheHitRate(stats embedding.Stats) float64 {
	total := stats.CacheHits + stats.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(stats.CacheHits) / float64(total)
}

func printResultsJSON(results []models.MatchResult) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func printResults(results []models.MatchResult, jobs []models.JobPosting, stats embedding.Stats, elapsed time.Duration) {
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}

	byID := make(map[string]models.JobPosting, len(jobs))
	for _, job := range jobs {
		byID[job.ID] = job
	}

	fmt.Printf("RESULTS (%d of %d jobs, %s)\n", len(results), len(jobs), elapsed.Round(time.Millisecond))
	fmt.Println("──────────────────────────────────────────────────")

	for _, r := range results {
		job := byID[r.JobID]
		fmt.Printf("%3d. %s at %s\n", r.Rank, job.Title, job.Company)
		fmt.Printf("     score %.3f  (similarity %.3f, skills %.3f)\n", r.Composite, r.Similarity, r.SkillScore)
		if len(r.MatchedSkills) > 0 {
			fmt.Printf("     matched: %s\n", strings.Join(r.MatchedSkills, ", "))
		}
		if len(r.MissingSkills) > 0 {
			fmt.Printf("     missing: %s\n", strings.Join(r.MissingSkills, ", "))
		}
		fmt.Println()
	}

	fmt.Printf("cache: %d hits, %d misses; api calls: %d", stats.CacheHits, stats.CacheMisses, stats.APICalls)
	if stats.FailedTexts > 0 {
		fmt.Printf("; %d text(s) could not be embedded", stats.FailedTexts)
	}
	fmt.Println()
}
